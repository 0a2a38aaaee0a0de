package kcv

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ltzhang/kvtstore/kvt"
)

// Manager is a registry of named stores sharing one engine. Each
// store is backed by its own range-partitioned engine table, created
// on first open.
type Manager struct {
	mu     sync.Mutex
	engine *kvt.Engine
	logger *zap.Logger
	stores map[string]*Store
}

// NewManager creates a manager over the given engine. A nil logger
// disables logging.
func NewManager(engine *kvt.Engine, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		engine: engine,
		logger: logger,
		stores: map[string]*Store{},
	}
}

// OpenStore returns the store with the given name, creating its
// backing table on first use. Opening the same name again returns the
// same store; a concurrent duplicate table creation is treated as
// success by looking up the existing table. Reopening with a
// different layout fails with ErrLayoutMismatch.
func (m *Manager) OpenStore(name string, layout Layout) (*Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if store, ok := m.stores[name]; ok {
		if store.layout != layout {
			return nil, fmt.Errorf("could not open %q as %s: %w", name, layout, ErrLayoutMismatch)
		}

		return store, nil
	}

	tableID, err := m.engine.CreateTable(name, kvt.PartitionRange)

	if errors.Is(err, kvt.ErrTableAlreadyExists) {
		tableID, err = m.engine.LookupTable(name)
	}

	if err != nil {
		return nil, err
	}

	store := &Store{
		name:    name,
		tableID: tableID,
		layout:  layout,
		engine:  m.engine,
		logger:  m.logger.With(zap.String("store", name)),
	}
	m.stores[name] = store

	m.logger.Info("store opened",
		zap.String("store", name),
		zap.Uint64("table_id", tableID),
		zap.String("layout", layout.String()),
	)

	return store, nil
}

// Store returns the already-open store with the given name.
func (m *Manager) Store(name string) (*Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	store, ok := m.stores[name]

	if !ok {
		return nil, fmt.Errorf("no open store named %q: %w", name, ErrStoreNotFound)
	}

	return store, nil
}

// Close marks every open store closed and forgets them. The engine
// and its tables stay alive; the caller owns the engine's lifecycle.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, store := range m.stores {
		store.closed = true
	}

	m.stores = map[string]*Store{}

	m.logger.Info("manager closed")

	return nil
}

// ClearStorage deletes every column of every open store in one
// transaction.
func (m *Manager) ClearStorage() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	txID, err := m.engine.Begin()

	if err != nil {
		return err
	}

	for _, store := range m.stores {
		if err := m.clearTable(txID, store.tableID); err != nil {
			if rollbackErr := m.engine.Rollback(txID); rollbackErr != nil {
				m.logger.Warn("rollback after failed clear", zap.Error(rollbackErr))
			}

			return err
		}
	}

	return m.engine.Commit(txID)
}

func (m *Manager) clearTable(txID uint64, tableID uint64) error {
	// Repeated scans handle engines configured with a scan cap;
	// deleted keys drop out of the next round.
	for {
		kvs, err := m.engine.Scan(txID, tableID, nil, nil, 0)

		if err != nil {
			return err
		}

		if len(kvs) == 0 {
			return nil
		}

		for _, kv := range kvs {
			if err := m.engine.Delete(txID, tableID, kv.Key); err != nil {
				return err
			}
		}
	}
}

// MutateMany applies per-key mutations across several stores under
// one transaction id. Stores and keys are visited in sorted order so
// repeated calls behave identically.
func (m *Manager) MutateMany(txID uint64, mutations map[string]map[string]Mutation) error {
	m.mu.Lock()
	stores := make(map[string]*Store, len(mutations))

	for name := range mutations {
		store, ok := m.stores[name]

		if !ok {
			m.mu.Unlock()

			return fmt.Errorf("no open store named %q: %w", name, ErrStoreNotFound)
		}

		stores[name] = store
	}
	m.mu.Unlock()

	names := make([]string, 0, len(mutations))

	for name := range mutations {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		byKey := mutations[name]
		storeKeys := make([]string, 0, len(byKey))

		for key := range byKey {
			storeKeys = append(storeKeys, key)
		}

		sort.Strings(storeKeys)

		for _, key := range storeKeys {
			if err := stores[name].Mutate(txID, []byte(key), byKey[key]); err != nil {
				return err
			}
		}
	}

	return nil
}
