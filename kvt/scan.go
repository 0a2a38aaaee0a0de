package kvt

import (
	"sort"

	"github.com/ltzhang/kvtstore/kvt/keys"
)

// scanItem is one candidate scan result before truncation. committed
// is true when the pair came from table data rather than the
// transaction's write-set; ent is only valid for committed items.
type scanItem struct {
	key       []byte
	value     []byte
	committed bool
	ent       entry
}

// scanRange converts closed scan bounds into a key range. A nil end
// means no upper bound.
func scanRange(start, end []byte) keys.Range {
	r := keys.All().Gte(start)

	if end != nil {
		r = r.Lte(end)
	}

	return r
}

// collectRange merges table data in [start, end] with the
// transaction's pending writes and deletions:
// keys in the delete-set are skipped, keys in the write-set take their
// buffered value, and write-set keys never seen in the table are
// included. visit is called for every committed entry that will be
// emitted; a non-nil return aborts the scan.
//
// The result is sorted by key and not yet truncated.
func collectRange(txn *transaction, tab *table, start, end []byte, visit func(key []byte, ent entry) error) ([]scanItem, error) {
	r := scanRange(start, end)
	items := []scanItem{}
	emitted := map[string]struct{}{}

	tab.data.Ascend(r, func(key []byte, value interface{}) bool {
		ent := value.(entry)

		if txn != nil {
			tk := tableKey(tab.id, key)

			if txn.deleted(tk) {
				return true
			}

			if buffered, ok := txn.writeSet[tk]; ok {
				items = append(items, scanItem{key: key, value: buffered.value})
				emitted[tk] = struct{}{}

				return true
			}
		}

		items = append(items, scanItem{key: key, value: ent.value, committed: true, ent: ent})

		return true
	})

	// The visit hook may mutate entries (2PL lock acquisition), so
	// it runs only after iteration over the table finished.
	if visit != nil {
		for _, item := range items {
			if !item.committed {
				continue
			}

			if err := visit(item.key, item.ent); err != nil {
				return nil, err
			}
		}
	}

	if txn != nil {
		// Writes to keys the table has never seen must still show
		// up in scan results.
		for tk, buffered := range txn.writeSet {
			tableID, key := parseTableKey(tk)

			if tableID != tab.id || !r.Contains(key) {
				continue
			}

			if _, ok := emitted[tk]; ok {
				continue
			}

			items = append(items, scanItem{key: key, value: buffered.value})
		}
	}

	sort.Slice(items, func(i, j int) bool {
		return keys.Compare(items[i].key, items[j].key) < 0
	})

	return items, nil
}

func truncateItems(items []scanItem, limit int) []scanItem {
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	return items
}

func itemsToKVs(items []scanItem) []KV {
	kvs := make([]KV, len(items))

	for i, item := range items {
		kvs[i] = KV{Key: item.key, Value: item.value}
	}

	return kvs
}
