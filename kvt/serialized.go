package kvt

// serialized allows at most one live transaction. Mutual exclusion of
// whole transactions makes conflict detection unnecessary: a second
// Begin fails with ErrTransactionAlreadyRunning until the first
// transaction commits or rolls back. One-shot operations remain
// permitted alongside the live transaction.
type serialized struct{}

var _ scheme = (*serialized)(nil)

func (s *serialized) name() string {
	return SchemeSerialized
}

func (s *serialized) begin(engine *Engine) error {
	if engine.current != 0 {
		return ErrTransactionAlreadyRunning
	}

	engine.current = engine.nextTxID

	return nil
}

func (s *serialized) get(engine *Engine, txn *transaction, tab *table, key []byte) ([]byte, error) {
	if txn != nil {
		tk := tableKey(tab.id, key)

		if buffered, ok := txn.writeSet[tk]; ok {
			return buffered.value, nil
		}

		if txn.deleted(tk) {
			return nil, ErrKeyIsDeleted
		}
	}

	ent, ok := tab.get(key)

	if !ok {
		return nil, ErrKeyNotFound
	}

	return ent.value, nil
}

func (s *serialized) set(engine *Engine, txn *transaction, tab *table, key, value []byte) error {
	if txn == nil {
		tab.put(key, entry{value: value})

		return nil
	}

	tk := tableKey(tab.id, key)

	delete(txn.deleteSet, tk)
	txn.writeSet[tk] = entry{value: value}

	return nil
}

func (s *serialized) del(engine *Engine, txn *transaction, tab *table, key []byte) error {
	if txn == nil {
		if _, ok := tab.get(key); !ok {
			return ErrKeyNotFound
		}

		tab.delete(key)

		return nil
	}

	tk := tableKey(tab.id, key)

	if txn.deleted(tk) {
		return ErrKeyNotFound
	}

	_, buffered := txn.writeSet[tk]
	_, stored := tab.get(key)

	if !buffered && !stored {
		return ErrKeyNotFound
	}

	delete(txn.writeSet, tk)
	txn.deleteSet[tk] = struct{}{}

	return nil
}

func (s *serialized) scan(engine *Engine, txn *transaction, tab *table, start, end []byte, limit int) ([]KV, error) {
	items, err := collectRange(txn, tab, start, end, nil)

	if err != nil {
		return nil, err
	}

	return itemsToKVs(truncateItems(items, limit)), nil
}

func (s *serialized) commit(engine *Engine, txn *transaction) error {
	for tk, buffered := range txn.writeSet {
		tableID, key := parseTableKey(tk)
		engine.tablesByID[tableID].put(key, entry{value: buffered.value})
	}

	for tk := range txn.deleteSet {
		tableID, key := parseTableKey(tk)
		engine.tablesByID[tableID].delete(key)
	}

	engine.current = 0

	return nil
}

func (s *serialized) rollback(engine *Engine, txn *transaction) {
	engine.current = 0
}
