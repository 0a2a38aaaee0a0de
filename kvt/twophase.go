package kvt

// twoPhase implements strict two-phase locking with entry-granular
// locks. An entry's meta field holds the id of the transaction locking
// it, or 0 when unlocked. Lock acquisition never blocks: finding an
// entry locked by another transaction surfaces ErrKeyIsLocked and the
// caller retries or rolls back, which is why no deadlock detection is
// needed. Locks are held until commit or rollback.
//
// Writes to keys the table has never seen insert a pending placeholder
// entry so the new key is locked like any other. One-shot writes and
// deletes are rejected because they cannot take part in the lock
// discipline.
type twoPhase struct{}

var _ scheme = (*twoPhase)(nil)

func (s *twoPhase) name() string {
	return SchemeTwoPhase
}

func (s *twoPhase) begin(engine *Engine) error {
	return nil
}

// lock acquires the entry's lock for txn. The entry must exist.
func (s *twoPhase) lock(txn *transaction, tab *table, key []byte, ent entry) error {
	if ent.meta != 0 && ent.meta != int64(txn.id) {
		return ErrKeyIsLocked
	}

	if ent.meta == 0 {
		ent.meta = int64(txn.id)
		tab.put(key, ent)
	}

	return nil
}

func (s *twoPhase) get(engine *Engine, txn *transaction, tab *table, key []byte) ([]byte, error) {
	if txn == nil {
		ent, ok := tab.get(key)

		if !ok {
			return nil, ErrKeyNotFound
		}

		if ent.meta != 0 {
			return nil, ErrKeyIsLocked
		}

		return ent.value, nil
	}

	tk := tableKey(tab.id, key)

	if buffered, ok := txn.writeSet[tk]; ok {
		return buffered.value, nil
	}

	if txn.deleted(tk) {
		return nil, ErrKeyIsDeleted
	}

	if observed, ok := txn.readSet[tk]; ok {
		return observed.value, nil
	}

	ent, ok := tab.get(key)

	if !ok {
		return nil, ErrKeyNotFound
	}

	if err := s.lock(txn, tab, key, ent); err != nil {
		return nil, err
	}

	txn.readSet[tk] = entry{value: ent.value}

	return ent.value, nil
}

func (s *twoPhase) set(engine *Engine, txn *transaction, tab *table, key, value []byte) error {
	if txn == nil {
		return ErrOneShotWriteNotAllowed
	}

	ent, ok := tab.get(key)

	if ok {
		if err := s.lock(txn, tab, key, ent); err != nil {
			return err
		}
	} else {
		// Lock the key being created so concurrent readers and
		// writers see it as held until this transaction resolves.
		tab.put(key, entry{meta: int64(txn.id), pending: true})
	}

	tk := tableKey(tab.id, key)

	delete(txn.deleteSet, tk)
	txn.writeSet[tk] = entry{value: value}

	return nil
}

func (s *twoPhase) del(engine *Engine, txn *transaction, tab *table, key []byte) error {
	if txn == nil {
		return ErrOneShotDeleteNotAllowed
	}

	tk := tableKey(tab.id, key)

	if txn.deleted(tk) {
		return ErrKeyNotFound
	}

	ent, ok := tab.get(key)

	if !ok {
		return ErrKeyNotFound
	}

	if err := s.lock(txn, tab, key, ent); err != nil {
		return err
	}

	delete(txn.writeSet, tk)
	txn.deleteSet[tk] = struct{}{}

	return nil
}

func (s *twoPhase) scan(engine *Engine, txn *transaction, tab *table, start, end []byte, limit int) ([]KV, error) {
	if txn == nil {
		items, err := collectRange(nil, tab, start, end, func(key []byte, ent entry) error {
			if ent.meta != 0 {
				return ErrKeyIsLocked
			}

			return nil
		})

		if err != nil {
			return nil, err
		}

		return itemsToKVs(truncateItems(items, limit)), nil
	}

	// Locks acquired while scanning must be released again if the
	// scan aborts partway through the range.
	acquired := [][]byte{}

	items, err := collectRange(txn, tab, start, end, func(key []byte, ent entry) error {
		if ent.meta != 0 && ent.meta != int64(txn.id) {
			return ErrKeyIsLocked
		}

		if ent.meta == 0 {
			ent.meta = int64(txn.id)
			tab.put(key, ent)
			acquired = append(acquired, key)
			txn.readSet[tableKey(tab.id, key)] = entry{value: ent.value}
		}

		return nil
	})

	if err != nil {
		for _, key := range acquired {
			if ent, ok := tab.get(key); ok && ent.meta == int64(txn.id) {
				ent.meta = 0
				tab.put(key, ent)
			}

			delete(txn.readSet, tableKey(tab.id, key))
		}

		return nil, err
	}

	return itemsToKVs(truncateItems(items, limit)), nil
}

func (s *twoPhase) commit(engine *Engine, txn *transaction) error {
	for tk, buffered := range txn.writeSet {
		tableID, key := parseTableKey(tk)
		engine.tablesByID[tableID].put(key, entry{value: buffered.value})
	}

	for tk := range txn.deleteSet {
		tableID, key := parseTableKey(tk)
		tab := engine.tablesByID[tableID]

		if ent, ok := tab.get(key); ok && ent.meta == int64(txn.id) {
			tab.delete(key)
		}
	}

	s.releaseReadLocks(engine, txn)

	return nil
}

func (s *twoPhase) rollback(engine *Engine, txn *transaction) {
	for tk := range txn.writeSet {
		s.releaseOrRemove(engine, txn, tk)
	}

	for tk := range txn.deleteSet {
		s.releaseOrRemove(engine, txn, tk)
	}

	s.releaseReadLocks(engine, txn)
}

// releaseOrRemove unlocks the entry at tk, removing it entirely when
// it is a placeholder this transaction created.
func (s *twoPhase) releaseOrRemove(engine *Engine, txn *transaction, tk string) {
	tableID, key := parseTableKey(tk)
	tab := engine.tablesByID[tableID]

	ent, ok := tab.get(key)

	if !ok || ent.meta != int64(txn.id) {
		return
	}

	if ent.pending {
		tab.delete(key)

		return
	}

	ent.meta = 0
	tab.put(key, ent)
}

func (s *twoPhase) releaseReadLocks(engine *Engine, txn *transaction) {
	for tk := range txn.readSet {
		if _, ok := txn.writeSet[tk]; ok {
			continue
		}

		if txn.deleted(tk) {
			continue
		}

		tableID, key := parseTableKey(tk)
		tab := engine.tablesByID[tableID]

		if ent, ok := tab.get(key); ok && ent.meta == int64(txn.id) {
			ent.meta = 0
			tab.put(key, ent)
		}
	}
}
