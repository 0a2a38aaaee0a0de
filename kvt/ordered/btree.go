package ordered

import (
	"bytes"

	"github.com/google/btree"

	"github.com/ltzhang/kvtstore/kvt/keys"
)

// DriverBTree is the name of the btree driver
const DriverBTree = "btree"

const btreeDegree = 32

var _ Map = (*btreeMap)(nil)

type btreeDriver struct{}

func (d *btreeDriver) Name() string {
	return DriverBTree
}

func (d *btreeDriver) New() Map {
	return &btreeMap{tree: btree.New(btreeDegree)}
}

type btreeItem struct {
	key   []byte
	value interface{}
}

func (item *btreeItem) Less(than btree.Item) bool {
	return bytes.Compare(item.key, than.(*btreeItem).key) < 0
}

// btreeMap is a B-tree backed implementation of the Map interface
type btreeMap struct {
	tree *btree.BTree
}

// Put implements Map.Put
func (m *btreeMap) Put(key []byte, value interface{}) {
	m.tree.ReplaceOrInsert(&btreeItem{key: key, value: value})
}

// Get implements Map.Get
func (m *btreeMap) Get(key []byte) (interface{}, bool) {
	item := m.tree.Get(&btreeItem{key: key})

	if item == nil {
		return nil, false
	}

	return item.(*btreeItem).value, true
}

// Delete implements Map.Delete
func (m *btreeMap) Delete(key []byte) {
	m.tree.Delete(&btreeItem{key: key})
}

// Len implements Map.Len
func (m *btreeMap) Len() int {
	return m.tree.Len()
}

// Ascend implements Map.Ascend
func (m *btreeMap) Ascend(r keys.Range, fn func(key []byte, value interface{}) bool) {
	visit := func(item btree.Item) bool {
		i := item.(*btreeItem)

		return fn(i.key, i.value)
	}

	switch {
	case r.Min == nil && r.Max == nil:
		m.tree.Ascend(visit)
	case r.Min == nil:
		m.tree.AscendLessThan(&btreeItem{key: r.Max}, visit)
	case r.Max == nil:
		m.tree.AscendGreaterOrEqual(&btreeItem{key: r.Min}, visit)
	default:
		m.tree.AscendRange(&btreeItem{key: r.Min}, &btreeItem{key: r.Max}, visit)
	}
}
