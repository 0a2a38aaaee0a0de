package kvt

// noCC applies no concurrency control at all. Every operation acts
// directly on table data whether or not a transaction is given, so
// rollback has nothing to undo. It exists for single-caller
// deployments and as the baseline the other schemes are measured
// against.
type noCC struct{}

var _ scheme = (*noCC)(nil)

func (s *noCC) name() string {
	return SchemeNoCC
}

func (s *noCC) begin(engine *Engine) error {
	return nil
}

func (s *noCC) get(engine *Engine, txn *transaction, tab *table, key []byte) ([]byte, error) {
	ent, ok := tab.get(key)

	if !ok {
		return nil, ErrKeyNotFound
	}

	return ent.value, nil
}

func (s *noCC) set(engine *Engine, txn *transaction, tab *table, key, value []byte) error {
	tab.put(key, entry{value: value})

	return nil
}

func (s *noCC) del(engine *Engine, txn *transaction, tab *table, key []byte) error {
	if _, ok := tab.get(key); !ok {
		return ErrKeyNotFound
	}

	tab.delete(key)

	return nil
}

func (s *noCC) scan(engine *Engine, txn *transaction, tab *table, start, end []byte, limit int) ([]KV, error) {
	// Writes were applied directly, so there is no pending state
	// to merge.
	items, err := collectRange(nil, tab, start, end, nil)

	if err != nil {
		return nil, err
	}

	return itemsToKVs(truncateItems(items, limit)), nil
}

func (s *noCC) commit(engine *Engine, txn *transaction) error {
	return nil
}

func (s *noCC) rollback(engine *Engine, txn *transaction) {
}
