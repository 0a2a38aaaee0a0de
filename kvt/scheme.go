package kvt

import (
	"fmt"
)

// scheme is the concurrency-control strategy behind the engine's data
// operations. One implementation exists per scheme name in Config.
// All methods run under the engine mutex. A nil txn means one-shot
// auto-commit mode.
type scheme interface {
	name() string
	// begin gates transaction creation (the serialized scheme
	// rejects a second live transaction).
	begin(engine *Engine) error
	get(engine *Engine, txn *transaction, tab *table, key []byte) ([]byte, error)
	set(engine *Engine, txn *transaction, tab *table, key, value []byte) error
	del(engine *Engine, txn *transaction, tab *table, key []byte) error
	scan(engine *Engine, txn *transaction, tab *table, start, end []byte, limit int) ([]KV, error)
	// commit installs the transaction's buffered changes. The engine
	// destroys the context afterwards whether or not commit succeeds.
	commit(engine *Engine, txn *transaction) error
	rollback(engine *Engine, txn *transaction)
}

func newScheme(name string) (scheme, error) {
	switch name {
	case SchemeNoCC:
		return &noCC{}, nil
	case SchemeSerialized:
		return &serialized{}, nil
	case SchemeTwoPhase:
		return &twoPhase{}, nil
	case SchemeOptimistic:
		return &optimistic{}, nil
	}

	return nil, fmt.Errorf("unknown concurrency scheme %q", name)
}
