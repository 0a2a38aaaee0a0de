package kcv

import (
	"bytes"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/ltzhang/kvtstore/kvt"
)

// Store exposes column-family operations over one engine table. All
// operations take the transaction id to run under; 0 means one-shot
// auto-commit, subject to the engine's concurrency scheme.
type Store struct {
	name    string
	tableID uint64
	layout  Layout
	engine  *kvt.Engine
	logger  *zap.Logger
	closed  bool
}

// Name returns the store's name.
func (s *Store) Name() string {
	return s.name
}

// Layout returns the store's physical layout.
func (s *Store) Layout() Layout {
	return s.layout
}

// TableID returns the id of the engine table backing this store.
func (s *Store) TableID() uint64 {
	return s.tableID
}

func (s *Store) check(key, column []byte) error {
	if s.closed {
		return ErrStoreClosed
	}

	if len(key) == 0 {
		return ErrEmptyKey
	}

	if s.layout == LayoutComposite {
		if len(column) == 0 {
			return ErrEmptyColumn
		}

		if bytes.IndexByte(key, Separator) >= 0 || bytes.IndexByte(column, Separator) >= 0 {
			return ErrReservedByte
		}
	}

	return nil
}

// asNotFound collapses a deleted-in-transaction observation into plain
// absence so both layouts report missing columns identically.
func asNotFound(err error) error {
	if errors.Is(err, kvt.ErrKeyIsDeleted) {
		return kvt.ErrKeyNotFound
	}

	return err
}

// SetColumn stores value under (key, column).
func (s *Store) SetColumn(txID uint64, key, column, value []byte) error {
	if err := s.check(key, column); err != nil {
		return err
	}

	if s.layout == LayoutComposite {
		composite, err := CompositeKey(key, column)

		if err != nil {
			return err
		}

		return s.engine.Set(txID, s.tableID, composite, value)
	}

	columns, err := s.readColumns(txID, key)

	if err != nil {
		return err
	}

	columns = upsertColumn(columns, column, value)

	return s.writeColumns(txID, key, columns)
}

// GetColumn returns the value stored under (key, column). A missing
// column fails with kvt.ErrKeyNotFound in both layouts.
func (s *Store) GetColumn(txID uint64, key, column []byte) ([]byte, error) {
	if err := s.check(key, column); err != nil {
		return nil, err
	}

	if s.layout == LayoutComposite {
		composite, err := CompositeKey(key, column)

		if err != nil {
			return nil, err
		}

		value, err := s.engine.Get(txID, s.tableID, composite)

		return value, asNotFound(err)
	}

	frame, err := s.engine.Get(txID, s.tableID, key)

	if err != nil {
		return nil, asNotFound(err)
	}

	columns, err := DeserializeColumns(frame)

	if err != nil {
		return nil, err
	}

	i, found := searchColumn(columns, column)

	if !found {
		return nil, kvt.ErrKeyNotFound
	}

	return columns[i].Value, nil
}

// DeleteColumn removes (key, column). A missing column fails with
// kvt.ErrKeyNotFound. Removing the last column of a key removes the
// key itself.
func (s *Store) DeleteColumn(txID uint64, key, column []byte) error {
	if err := s.check(key, column); err != nil {
		return err
	}

	if s.layout == LayoutComposite {
		composite, err := CompositeKey(key, column)

		if err != nil {
			return err
		}

		return s.engine.Delete(txID, s.tableID, composite)
	}

	columns, err := s.readColumns(txID, key)

	if err != nil {
		return err
	}

	i, found := searchColumn(columns, column)

	if !found {
		return kvt.ErrKeyNotFound
	}

	columns = append(columns[:i], columns[i+1:]...)

	return s.writeColumns(txID, key, columns)
}

// GetAllColumns returns every column of key in ascending column
// order. A key with no columns yields an empty list, not an error.
func (s *Store) GetAllColumns(txID uint64, key []byte) ([]ColumnValue, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}

	if len(key) == 0 {
		return nil, ErrEmptyKey
	}

	if s.layout == LayoutComposite {
		return s.scanColumns(txID, key)
	}

	return s.readColumns(txID, key)
}

// SetColumns stores every given column of key, overriding existing
// values column by column.
func (s *Store) SetColumns(txID uint64, key []byte, columns []ColumnValue) error {
	if len(columns) == 0 {
		return ErrNoColumns
	}

	for _, cv := range columns {
		if err := s.check(key, cv.Column); err != nil {
			return err
		}
	}

	if s.layout == LayoutComposite {
		for _, cv := range columns {
			composite, err := CompositeKey(key, cv.Column)

			if err != nil {
				return err
			}

			if err := s.engine.Set(txID, s.tableID, composite, cv.Value); err != nil {
				return err
			}
		}

		return nil
	}

	existing, err := s.readColumns(txID, key)

	if err != nil {
		return err
	}

	for _, cv := range columns {
		existing = upsertColumn(existing, cv.Column, cv.Value)
	}

	return s.writeColumns(txID, key, existing)
}

// DeleteKey removes every column of key. A key with no columns fails
// with kvt.ErrKeyNotFound.
func (s *Store) DeleteKey(txID uint64, key []byte) error {
	if s.closed {
		return ErrStoreClosed
	}

	if len(key) == 0 {
		return ErrEmptyKey
	}

	if s.layout == LayoutFrame {
		return asNotFound(s.engine.Delete(txID, s.tableID, key))
	}

	columns, err := s.scanColumns(txID, key)

	if err != nil {
		return err
	}

	if len(columns) == 0 {
		return kvt.ErrKeyNotFound
	}

	for _, cv := range columns {
		composite, err := CompositeKey(key, cv.Column)

		if err != nil {
			return err
		}

		if err := s.engine.Delete(txID, s.tableID, composite); err != nil {
			return err
		}
	}

	return nil
}

// GetSlice returns the columns c of key with colStart <= c < colEnd
// in ascending order, at most limit of them. A nil or empty bound
// means the slice is unbounded on that side; limit <= 0 means no
// truncation.
func (s *Store) GetSlice(txID uint64, key, colStart, colEnd []byte, limit int) ([]ColumnValue, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}

	if len(key) == 0 {
		return nil, ErrEmptyKey
	}

	if s.layout == LayoutFrame {
		columns, err := s.readColumns(txID, key)

		if err != nil {
			return nil, err
		}

		return sliceColumns(columns, colStart, colEnd, limit), nil
	}

	start, end := columnBounds(key)

	if len(colStart) > 0 {
		composite, err := CompositeKey(key, colStart)

		if err != nil {
			return nil, err
		}

		start = composite
	}

	// The engine scan is closed on both ends while the slice upper
	// bound is exclusive, so scan one extra item and drop an exact
	// bound match afterwards.
	scanLimit := 0
	filtered := false

	if len(colEnd) > 0 {
		composite, err := CompositeKey(key, colEnd)

		if err != nil {
			return nil, err
		}

		end = composite
		filtered = true
	}

	if limit > 0 {
		scanLimit = limit

		if filtered {
			scanLimit++
		}
	}

	kvs, err := s.engine.Scan(txID, s.tableID, start, end, scanLimit)

	if err != nil {
		return nil, err
	}

	columns := make([]ColumnValue, 0, len(kvs))

	for _, kv := range kvs {
		_, column, err := SplitCompositeKey(kv.Key)

		if err != nil {
			return nil, err
		}

		if filtered && bytes.Equal(column, colEnd) {
			continue
		}

		columns = append(columns, ColumnValue{Column: column, Value: kv.Value})
	}

	if limit > 0 && len(columns) > limit {
		columns = columns[:limit]
	}

	return columns, nil
}

// GetSliceKeys runs the same slice query against several keys,
// returning the results keyed by the string form of each key.
func (s *Store) GetSliceKeys(txID uint64, sliceKeys [][]byte, colStart, colEnd []byte, limit int) (map[string][]ColumnValue, error) {
	results := make(map[string][]ColumnValue, len(sliceKeys))

	for _, key := range sliceKeys {
		columns, err := s.GetSlice(txID, key, colStart, colEnd, limit)

		if err != nil {
			return nil, err
		}

		results[string(key)] = columns
	}

	return results, nil
}

// Keys returns the application keys with keyStart <= key <= keyEnd
// that have at least one column, in ascending order, at most limit of
// them. A nil keyEnd means no upper bound; limit <= 0 means no
// truncation.
func (s *Store) Keys(txID uint64, keyStart, keyEnd []byte, limit int) ([][]byte, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}

	if s.layout == LayoutFrame {
		kvs, err := s.engine.Scan(txID, s.tableID, keyStart, keyEnd, limit)

		if err != nil {
			return nil, err
		}

		result := make([][]byte, len(kvs))

		for i, kv := range kvs {
			result[i] = kv.Key
		}

		return result, nil
	}

	end := keyEnd

	if end != nil {
		// Composite keys of keyEnd itself sort after keyEnd, so
		// the bound has to cover its column range too.
		_, end = columnBounds(keyEnd)
	}

	kvs, err := s.engine.Scan(txID, s.tableID, keyStart, end, 0)

	if err != nil {
		return nil, err
	}

	result := [][]byte{}

	for _, kv := range kvs {
		key, _, err := SplitCompositeKey(kv.Key)

		if err != nil {
			return nil, err
		}

		if len(result) > 0 && bytes.Equal(result[len(result)-1], key) {
			continue
		}

		if limit > 0 && len(result) == limit {
			break
		}

		result = append(result, key)
	}

	return result, nil
}

// Mutation is a batch of column changes for one key. Deletions are
// applied before additions.
type Mutation struct {
	Additions []ColumnValue
	Deletions [][]byte
}

// Mutate applies a mutation to key. Deleting a column that does not
// exist is not an error. The result is equivalent to deleting then
// setting each column individually under the same transaction.
func (s *Store) Mutate(txID uint64, key []byte, mutation Mutation) error {
	if s.closed {
		return ErrStoreClosed
	}

	if len(key) == 0 {
		return ErrEmptyKey
	}

	for _, column := range mutation.Deletions {
		if err := s.check(key, column); err != nil {
			return err
		}
	}

	for _, cv := range mutation.Additions {
		if err := s.check(key, cv.Column); err != nil {
			return err
		}
	}

	if s.layout == LayoutComposite {
		for _, column := range mutation.Deletions {
			composite, err := CompositeKey(key, column)

			if err != nil {
				return err
			}

			if err := s.engine.Delete(txID, s.tableID, composite); err != nil && !errors.Is(err, kvt.ErrKeyNotFound) {
				return err
			}
		}

		for _, cv := range mutation.Additions {
			composite, err := CompositeKey(key, cv.Column)

			if err != nil {
				return err
			}

			if err := s.engine.Set(txID, s.tableID, composite, cv.Value); err != nil {
				return err
			}
		}

		return nil
	}

	// Frame layout: one read-modify-write covers the whole mutation.
	columns, err := s.readColumns(txID, key)

	if err != nil {
		return err
	}

	for _, column := range mutation.Deletions {
		if i, found := searchColumn(columns, column); found {
			columns = append(columns[:i], columns[i+1:]...)
		}
	}

	for _, cv := range mutation.Additions {
		columns = upsertColumn(columns, cv.Column, cv.Value)
	}

	return s.writeColumns(txID, key, columns)
}

// readColumns loads and decodes the frame stored under key. An absent
// or transaction-deleted key reads as an empty column list.
func (s *Store) readColumns(txID uint64, key []byte) ([]ColumnValue, error) {
	frame, err := s.engine.Get(txID, s.tableID, key)

	if errors.Is(err, kvt.ErrKeyNotFound) || errors.Is(err, kvt.ErrKeyIsDeleted) {
		return []ColumnValue{}, nil
	}

	if err != nil {
		return nil, err
	}

	return DeserializeColumns(frame)
}

// writeColumns encodes and stores the column list under key. An empty
// list deletes the key instead; frames never hold zero columns.
func (s *Store) writeColumns(txID uint64, key []byte, columns []ColumnValue) error {
	if len(columns) == 0 {
		err := s.engine.Delete(txID, s.tableID, key)

		if errors.Is(err, kvt.ErrKeyNotFound) {
			return nil
		}

		return err
	}

	frame, err := SerializeColumns(columns)

	if err != nil {
		return err
	}

	return s.engine.Set(txID, s.tableID, key, frame)
}

// scanColumns enumerates the composite entries of key in column order.
func (s *Store) scanColumns(txID uint64, key []byte) ([]ColumnValue, error) {
	start, end := columnBounds(key)

	kvs, err := s.engine.Scan(txID, s.tableID, start, end, 0)

	if err != nil {
		return nil, err
	}

	columns := make([]ColumnValue, 0, len(kvs))

	for _, kv := range kvs {
		_, column, err := SplitCompositeKey(kv.Key)

		if err != nil {
			return nil, err
		}

		columns = append(columns, ColumnValue{Column: column, Value: kv.Value})
	}

	return columns, nil
}

// searchColumn binary-searches a sorted column list. It returns the
// index where column is or would be, and whether it was found.
func searchColumn(columns []ColumnValue, column []byte) (int, bool) {
	i := sort.Search(len(columns), func(i int) bool {
		return bytes.Compare(columns[i].Column, column) >= 0
	})

	return i, i < len(columns) && bytes.Equal(columns[i].Column, column)
}

// upsertColumn inserts or replaces column in a sorted column list,
// keeping it sorted.
func upsertColumn(columns []ColumnValue, column, value []byte) []ColumnValue {
	i, found := searchColumn(columns, column)

	if found {
		columns[i].Value = value

		return columns
	}

	columns = append(columns, ColumnValue{})
	copy(columns[i+1:], columns[i:])
	columns[i] = ColumnValue{Column: column, Value: value}

	return columns
}

func sliceColumns(columns []ColumnValue, colStart, colEnd []byte, limit int) []ColumnValue {
	result := []ColumnValue{}

	for _, cv := range columns {
		if len(colStart) > 0 && bytes.Compare(cv.Column, colStart) < 0 {
			continue
		}

		if len(colEnd) > 0 && bytes.Compare(cv.Column, colEnd) >= 0 {
			break
		}

		if limit > 0 && len(result) == limit {
			break
		}

		result = append(result, cv)
	}

	return result
}
