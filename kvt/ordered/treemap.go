package ordered

import (
	"bytes"

	"github.com/emirpasic/gods/maps/treemap"

	"github.com/ltzhang/kvtstore/kvt/keys"
)

// DriverTreemap is the name of the treemap driver
const DriverTreemap = "treemap"

var _ Map = (*treemapMap)(nil)

type treemapDriver struct{}

func (d *treemapDriver) Name() string {
	return DriverTreemap
}

func (d *treemapDriver) New() Map {
	return &treemapMap{m: treemap.NewWith(func(a, b interface{}) int {
		return bytes.Compare(a.([]byte), b.([]byte))
	})}
}

// treemapMap is a red-black-tree backed implementation of the
// Map interface
type treemapMap struct {
	m *treemap.Map
}

// Put implements Map.Put
func (m *treemapMap) Put(key []byte, value interface{}) {
	m.m.Put(key, value)
}

// Get implements Map.Get
func (m *treemapMap) Get(key []byte) (interface{}, bool) {
	return m.m.Get(key)
}

// Delete implements Map.Delete
func (m *treemapMap) Delete(key []byte) {
	m.m.Remove(key)
}

// Len implements Map.Len
func (m *treemapMap) Len() int {
	return m.m.Size()
}

// Ascend implements Map.Ascend
func (m *treemapMap) Ascend(r keys.Range, fn func(key []byte, value interface{}) bool) {
	iter := m.m.Iterator()

	for iter.Next() {
		key := iter.Key().([]byte)

		if r.Min != nil && keys.Compare(key, r.Min) < 0 {
			continue
		}

		if r.Max != nil && keys.Compare(key, r.Max) >= 0 {
			return
		}

		if !fn(key, iter.Value()) {
			return
		}
	}
}
