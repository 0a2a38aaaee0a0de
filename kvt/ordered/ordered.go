// Package ordered provides the ordered-map abstraction backing table data
// and a registry of named drivers implementing it.
package ordered

import (
	"github.com/ltzhang/kvtstore/kvt/keys"
)

// Map is an ordered mapping from keys to opaque values. Keys are
// ordered lexicographically. Implementations are not safe for
// concurrent use; callers serialize access.
type Map interface {
	// Put inserts or replaces the value stored under key
	Put(key []byte, value interface{})
	// Get returns the value stored under key
	Get(key []byte) (interface{}, bool)
	// Delete removes the value stored under key
	Delete(key []byte)
	// Len returns the number of keys in the map
	Len() int
	// Ascend visits keys within r in ascending order until
	// fn returns false or the range is exhausted
	Ascend(r keys.Range, fn func(key []byte, value interface{}) bool)
}

// Driver creates Map instances. Each driver has a unique name
// that identifies it in configuration.
type Driver interface {
	// Name returns the name of this driver
	Name() string
	// New creates an empty map
	New() Map
}

var drivers []Driver

func init() {
	drivers = append(drivers, &treemapDriver{}, &btreeDriver{})
}

// Lookup returns the driver whose name matches the given name.
// It returns nil if no such driver is found.
func Lookup(name string) Driver {
	for _, driver := range drivers {
		if driver.Name() == name {
			return driver
		}
	}

	return nil
}

// Drivers lists all the drivers that are available
func Drivers() []Driver {
	return drivers
}
