package kvt

import (
	"encoding/binary"

	"github.com/ltzhang/kvtstore/kvt/ordered"
)

// PartitionHash and PartitionRange are the accepted partition methods.
// Hash-partitioned tables reject range scans; range-partitioned tables
// accept them.
const (
	PartitionHash  = "hash"
	PartitionRange = "range"
)

// entry is a stored value together with its concurrency metadata.
// Under 2PL meta holds the id of the transaction locking the entry
// (0 = unlocked). Under OCC meta holds the entry's version counter.
// The other schemes leave meta at zero.
type entry struct {
	value []byte
	meta  int64
	// pending marks a placeholder inserted by a 2PL transaction to
	// lock a key it is creating. Pending entries are removed on
	// rollback and replaced by the buffered write on commit.
	pending bool
}

type table struct {
	id        uint64
	name      string
	partition string
	data      ordered.Map
}

func (t *table) get(key []byte) (entry, bool) {
	v, ok := t.data.Get(key)

	if !ok {
		return entry{}, false
	}

	return v.(entry), true
}

func (t *table) put(key []byte, ent entry) {
	t.data.Put(key, ent)
}

func (t *table) delete(key []byte) {
	t.data.Delete(key)
}

// tableKey composes a table id and a key into the fully-qualified key
// used by transaction contexts. The fixed-width id prefix makes the
// encoding injective without reserving a separator byte.
func tableKey(tableID uint64, key []byte) string {
	b := make([]byte, 8+len(key))
	binary.BigEndian.PutUint64(b[:8], tableID)
	copy(b[8:], key)

	return string(b)
}

func parseTableKey(tk string) (uint64, []byte) {
	b := []byte(tk)

	return binary.BigEndian.Uint64(b[:8]), b[8:]
}
