package kvt

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ltzhang/kvtstore/kvt/ordered"
)

// KV is a single key-value pair returned by Scan.
type KV struct {
	Key   []byte
	Value []byte
}

// Engine is a multi-table transactional key-value store held entirely
// in process memory. All state hangs off the handle; Close releases
// everything.
//
// A single engine-wide mutex serializes all public operations. No
// operation blocks waiting for another once the mutex is held:
// contention surfaces as an error (for example ErrKeyIsLocked) and the
// caller decides whether to retry or roll back.
type Engine struct {
	mu sync.Mutex

	logger  *zap.Logger
	scheme  scheme
	metrics *metrics

	maxScanLimit int

	tables     map[string]*table
	tablesByID map[uint64]*table
	txns       map[uint64]*transaction

	driver      ordered.Driver
	nextTableID uint64
	nextTxID    uint64
	// current is the live transaction under the serialized scheme,
	// 0 when none is running.
	current uint64

	closed bool
}

// New creates an engine from the given config.
func New(config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	config = config.withDefaults()

	scheme, err := newScheme(config.Scheme)

	if err != nil {
		return nil, err
	}

	engine := &Engine{
		logger:       config.Logger.With(zap.String("engine_id", uuid.New().String())),
		scheme:       scheme,
		metrics:      newMetrics(config.Registerer),
		maxScanLimit: config.MaxScanLimit,
		tables:       map[string]*table{},
		tablesByID:   map[uint64]*table{},
		txns:         map[uint64]*transaction{},
		driver:       ordered.Lookup(config.Driver),
		nextTableID:  1,
		nextTxID:     1,
	}

	engine.logger.Info("engine initialized",
		zap.String("scheme", config.Scheme),
		zap.String("driver", config.Driver),
	)

	return engine, nil
}

// Close shuts the engine down and releases all tables and transaction
// contexts. Any operation on a closed engine fails with
// ErrNotInitialized.
func (engine *Engine) Close() error {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	if engine.closed {
		return ErrNotInitialized
	}

	engine.closed = true
	engine.tables = nil
	engine.tablesByID = nil
	engine.txns = nil
	engine.current = 0

	engine.logger.Info("engine shut down")

	return nil
}

// CreateTable creates a table with the given name and partition
// method ("hash" or "range") and returns its id. Table names are
// unique across the engine. Callers that want create-if-absent
// semantics may treat ErrTableAlreadyExists as success and look up
// the existing id.
func (engine *Engine) CreateTable(name string, partitionMethod string) (uint64, error) {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	if engine.closed {
		return 0, ErrNotInitialized
	}

	if _, ok := engine.tables[name]; ok {
		return 0, fmt.Errorf("could not create %q: %w", name, ErrTableAlreadyExists)
	}

	if partitionMethod != PartitionHash && partitionMethod != PartitionRange {
		return 0, ErrInvalidPartitionMethod
	}

	tab := &table{
		id:        engine.nextTableID,
		name:      name,
		partition: partitionMethod,
		data:      engine.driver.New(),
	}
	engine.nextTableID++

	engine.tables[name] = tab
	engine.tablesByID[tab.id] = tab

	engine.logger.Debug("table created",
		zap.String("table", name),
		zap.Uint64("table_id", tab.id),
		zap.String("partition_method", partitionMethod),
	)

	return tab.id, nil
}

// LookupTable resolves a table name to its id.
func (engine *Engine) LookupTable(name string) (uint64, error) {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	if engine.closed {
		return 0, ErrNotInitialized
	}

	tab, ok := engine.tables[name]

	if !ok {
		return 0, fmt.Errorf("could not look up %q: %w", name, ErrTableNotFound)
	}

	return tab.id, nil
}

// Begin starts a transaction and returns its id. Transaction ids are
// never zero and never reused.
func (engine *Engine) Begin() (uint64, error) {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	if engine.closed {
		return 0, ErrNotInitialized
	}

	if err := engine.scheme.begin(engine); err != nil {
		return 0, err
	}

	txn := newTransaction(engine.nextTxID)
	engine.nextTxID++
	engine.txns[txn.id] = txn

	engine.metrics.liveTransactions.Inc()

	return txn.id, nil
}

// Commit validates and installs the transaction's writes and
// deletions atomically, then destroys the context. Whether Commit
// succeeds or fails the transaction id is dead afterwards.
func (engine *Engine) Commit(txID uint64) error {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	if engine.closed {
		return ErrNotInitialized
	}

	txn, ok := engine.txns[txID]

	if !ok {
		return ErrTransactionNotFound
	}

	err := engine.scheme.commit(engine, txn)

	// The context is destroyed even when optimistic validation
	// fails. Retrying requires a fresh transaction.
	delete(engine.txns, txID)
	engine.metrics.liveTransactions.Dec()

	if err != nil {
		engine.metrics.conflicts.WithLabelValues(conflictStale).Inc()
		engine.logger.Debug("commit aborted", zap.Uint64("tx_id", txID), zap.Error(err))

		return err
	}

	engine.metrics.commits.Inc()

	return nil
}

// Rollback discards the transaction's buffered changes, releases any
// locks it holds and destroys the context.
func (engine *Engine) Rollback(txID uint64) error {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	if engine.closed {
		return ErrNotInitialized
	}

	txn, ok := engine.txns[txID]

	if !ok {
		return ErrTransactionNotFound
	}

	engine.scheme.rollback(engine, txn)
	delete(engine.txns, txID)

	engine.metrics.liveTransactions.Dec()
	engine.metrics.rollbacks.Inc()

	return nil
}

// Get returns the value stored under key in the given table. With
// txID = 0 it reads committed state directly; otherwise the
// transaction's own pending writes and deletions take precedence.
func (engine *Engine) Get(txID uint64, tableID uint64, key []byte) ([]byte, error) {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	value, err := engine.doGet(txID, tableID, key)
	engine.countConflict(err)

	return value, err
}

// Set stores value under key in the given table. With txID = 0 the
// write is applied immediately; schemes that cannot preserve their
// discipline for one-shot writes fail with ErrOneShotWriteNotAllowed.
func (engine *Engine) Set(txID uint64, tableID uint64, key []byte, value []byte) error {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	err := engine.doSet(txID, tableID, key, value)
	engine.countConflict(err)

	return err
}

// Delete removes key from the given table. With txID = 0 the removal
// is applied immediately; schemes that cannot preserve their
// discipline for one-shot deletes fail with ErrOneShotDeleteNotAllowed.
func (engine *Engine) Delete(txID uint64, tableID uint64, key []byte) error {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	err := engine.doDelete(txID, tableID, key)
	engine.countConflict(err)

	return err
}

// Scan returns the key-value pairs with start <= key <= end in
// lexicographic key order, at most limit of them. A limit <= 0 means
// no truncation beyond Config.MaxScanLimit, which caps every scan when
// set. A nil end means no upper bound. Pending writes and
// deletions of the given transaction are merged into the result.
// Only range-partitioned tables may be scanned.
func (engine *Engine) Scan(txID uint64, tableID uint64, start, end []byte, limit int) ([]KV, error) {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	if engine.closed {
		return nil, ErrNotInitialized
	}

	tab, txn, err := engine.resolve(txID, tableID)

	if err != nil {
		return nil, err
	}

	if tab.partition != PartitionRange {
		return nil, fmt.Errorf("cannot scan %q: %w", tab.name, ErrNotRangePartitioned)
	}

	if engine.maxScanLimit > 0 && (limit <= 0 || limit > engine.maxScanLimit) {
		limit = engine.maxScanLimit
	}

	result, err := engine.scheme.scan(engine, txn, tab, start, end, limit)
	engine.countConflict(err)

	if err != nil {
		return nil, err
	}

	engine.metrics.scans.Inc()

	return result, nil
}

func (engine *Engine) doGet(txID uint64, tableID uint64, key []byte) ([]byte, error) {
	if engine.closed {
		return nil, ErrNotInitialized
	}

	tab, txn, err := engine.resolve(txID, tableID)

	if err != nil {
		return nil, err
	}

	return engine.scheme.get(engine, txn, tab, key)
}

func (engine *Engine) doSet(txID uint64, tableID uint64, key []byte, value []byte) error {
	if engine.closed {
		return ErrNotInitialized
	}

	tab, txn, err := engine.resolve(txID, tableID)

	if err != nil {
		return err
	}

	return engine.scheme.set(engine, txn, tab, key, value)
}

func (engine *Engine) doDelete(txID uint64, tableID uint64, key []byte) error {
	if engine.closed {
		return ErrNotInitialized
	}

	tab, txn, err := engine.resolve(txID, tableID)

	if err != nil {
		return err
	}

	return engine.scheme.del(engine, txn, tab, key)
}

// resolve maps a table id to its table and a transaction id to its
// context. txID = 0 resolves to a nil context, meaning one-shot mode.
func (engine *Engine) resolve(txID uint64, tableID uint64) (*table, *transaction, error) {
	tab, ok := engine.tablesByID[tableID]

	if !ok {
		return nil, nil, ErrTableNotFound
	}

	if txID == 0 {
		return tab, nil, nil
	}

	txn, ok := engine.txns[txID]

	if !ok {
		return nil, nil, ErrTransactionNotFound
	}

	return tab, txn, nil
}

func (engine *Engine) countConflict(err error) {
	if errors.Is(err, ErrKeyIsLocked) {
		engine.metrics.conflicts.WithLabelValues(conflictLocked).Inc()
	}
}
