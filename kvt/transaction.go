package kvt

// transaction is the per-transaction context. The sets are keyed by
// fully-qualified keys (see tableKey).
//
// A key appears in at most one of writeSet and deleteSet. Under OCC
// every key in deleteSet also appears in readSet so that its observed
// version survives until commit-time validation.
type transaction struct {
	id uint64
	// readSet records observed entries. Under OCC the entry's meta
	// is the observed version, or -1 when the key was observed
	// absent. Under 2PL membership tracks which locks to release.
	readSet map[string]entry
	// writeSet buffers new values. Under OCC the entry's meta
	// carries the version observed when the write was staged.
	writeSet map[string]entry
	// deleteSet buffers pending deletions.
	deleteSet map[string]struct{}
}

func newTransaction(id uint64) *transaction {
	return &transaction{
		id:        id,
		readSet:   map[string]entry{},
		writeSet:  map[string]entry{},
		deleteSet: map[string]struct{}{},
	}
}

func (txn *transaction) deleted(tk string) bool {
	_, ok := txn.deleteSet[tk]

	return ok
}
