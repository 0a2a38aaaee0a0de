package kvt

// optimistic implements optimistic concurrency control. An entry's
// meta field is its version counter. Readers record the versions they
// observe, writers stage changes in their write-set carrying the
// observed version forward, and no locks are held between Begin and
// Commit. Commit re-validates every observation against the current
// table state and aborts with ErrTransactionHasStaleData on any
// mismatch.
//
// An observed version of -1 records that the key was absent (or
// deleted) when observed; validation then requires it to still be
// absent at commit.
type optimistic struct{}

var _ scheme = (*optimistic)(nil)

// versionAbsent is the observed version recorded when a key is seen
// to not exist.
const versionAbsent int64 = -1

func (s *optimistic) name() string {
	return SchemeOptimistic
}

func (s *optimistic) begin(engine *Engine) error {
	return nil
}

func (s *optimistic) get(engine *Engine, txn *transaction, tab *table, key []byte) ([]byte, error) {
	if txn == nil {
		ent, ok := tab.get(key)

		if !ok {
			return nil, ErrKeyNotFound
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
		if observed.meta == versionAbsent {
			return nil, ErrKeyNotFound
		}

		return observed.value, nil
	}

	ent, ok := tab.get(key)

	if !ok {
		txn.readSet[tk] = entry{meta: versionAbsent}

		return nil, ErrKeyNotFound
	}

	txn.readSet[tk] = entry{value: ent.value, meta: ent.meta}

	return ent.value, nil
}

func (s *optimistic) set(engine *Engine, txn *transaction, tab *table, key, value []byte) error {
	if txn == nil {
		return ErrOneShotWriteNotAllowed
	}

	tk := tableKey(tab.id, key)

	if buffered, ok := txn.writeSet[tk]; ok {
		// Overwriting an earlier staged write keeps the version
		// that write observed.
		txn.writeSet[tk] = entry{value: value, meta: buffered.meta}

		return nil
	}

	observed, ok := txn.readSet[tk]

	if !ok {
		observed = entry{meta: versionAbsent}

		if ent, stored := tab.get(key); stored {
			observed = entry{value: ent.value, meta: ent.meta}
		}

		txn.readSet[tk] = observed
	}

	delete(txn.deleteSet, tk)
	txn.writeSet[tk] = entry{value: value, meta: observed.meta}

	return nil
}

func (s *optimistic) del(engine *Engine, txn *transaction, tab *table, key []byte) error {
	if txn == nil {
		return ErrOneShotDeleteNotAllowed
	}

	tk := tableKey(tab.id, key)

	if txn.deleted(tk) {
		return ErrKeyNotFound
	}

	if buffered, ok := txn.writeSet[tk]; ok {
		// The staged write's observed version moves to the read-set
		// so commit-time validation still covers this key.
		if _, seen := txn.readSet[tk]; !seen {
			txn.readSet[tk] = entry{meta: buffered.meta}
		}

		delete(txn.writeSet, tk)
		txn.deleteSet[tk] = struct{}{}

		return nil
	}

	observed, seen := txn.readSet[tk]

	if seen && observed.meta == versionAbsent {
		return ErrKeyNotFound
	}

	if !seen {
		ent, ok := tab.get(key)

		if !ok {
			return ErrKeyNotFound
		}

		txn.readSet[tk] = entry{value: ent.value, meta: ent.meta}
	}

	txn.deleteSet[tk] = struct{}{}

	return nil
}

func (s *optimistic) scan(engine *Engine, txn *transaction, tab *table, start, end []byte, limit int) ([]KV, error) {
	items, err := collectRange(txn, tab, start, end, nil)

	if err != nil {
		return nil, err
	}

	items = truncateItems(items, limit)

	if txn != nil {
		// Only keys actually returned are recorded as observations.
		// Keys merely passed over while iterating carry no
		// commit-time guarantee, so scans do not protect against
		// phantoms across the range.
		for _, item := range items {
			if !item.committed {
				continue
			}

			tk := tableKey(tab.id, item.key)

			if _, ok := txn.readSet[tk]; !ok {
				txn.readSet[tk] = entry{value: item.ent.value, meta: item.ent.meta}
			}
		}
	}

	return itemsToKVs(items), nil
}

func (s *optimistic) commit(engine *Engine, txn *transaction) error {
	// Validation phase: every observation must still hold. Staged
	// writes always have a matching read-set observation, recorded
	// when they were staged.
	for tk, observed := range txn.readSet {
		tableID, key := parseTableKey(tk)
		ent, ok := engine.tablesByID[tableID].get(key)

		if observed.meta == versionAbsent {
			if ok {
				return ErrTransactionHasStaleData
			}

			continue
		}

		if !ok || ent.meta != observed.meta {
			return ErrTransactionHasStaleData
		}
	}

	// Install phase.
	for tk, buffered := range txn.writeSet {
		tableID, key := parseTableKey(tk)
		tab := engine.tablesByID[tableID]

		version := buffered.meta

		if ent, ok := tab.get(key); ok && ent.meta > version {
			version = ent.meta
		}

		tab.put(key, entry{value: buffered.value, meta: version + 1})
	}

	for tk := range txn.deleteSet {
		tableID, key := parseTableKey(tk)
		engine.tablesByID[tableID].delete(key)
	}

	return nil
}

func (s *optimistic) rollback(engine *Engine, txn *transaction) {
	// No locks were taken, so there is nothing to release.
}
