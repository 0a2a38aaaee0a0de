// Package kvtbind maintains a process-wide default engine for host
// bindings that marshal byte arrays across a C-style boundary and
// cannot thread an engine handle through their calls. It is a
// convenience wrapper; the engine itself is handle-based.
package kvtbind

import (
	"errors"
	"sync"

	"github.com/ltzhang/kvtstore/kvt"
)

// ErrAlreadyInitialized is returned by Initialize when a default
// engine already exists.
var ErrAlreadyInitialized = errors.New("kvt is already initialized")

var (
	mu     sync.Mutex
	engine *kvt.Engine
)

// Initialize creates the process-wide default engine.
func Initialize(config kvt.Config) error {
	mu.Lock()
	defer mu.Unlock()

	if engine != nil {
		return ErrAlreadyInitialized
	}

	e, err := kvt.New(config)

	if err != nil {
		return err
	}

	engine = e

	return nil
}

// Shutdown closes and discards the process-wide default engine.
func Shutdown() error {
	mu.Lock()
	defer mu.Unlock()

	if engine == nil {
		return kvt.ErrNotInitialized
	}

	err := engine.Close()
	engine = nil

	return err
}

// Default returns the process-wide default engine. It fails with
// kvt.ErrNotInitialized before Initialize or after Shutdown.
func Default() (*kvt.Engine, error) {
	mu.Lock()
	defer mu.Unlock()

	if engine == nil {
		return nil, kvt.ErrNotInitialized
	}

	return engine, nil
}
