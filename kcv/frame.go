package kcv

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Frame layout, all integers little-endian:
//
//	uint32 column count N, N >= 1
//	N times: uint32 column length, column bytes,
//	         uint32 value length, value bytes
//
// Columns are strictly ascending. An empty column set is never stored;
// deleting the last column deletes the key instead.

const lenSize = 4

// SerializeColumns encodes a sorted column list into a frame.
func SerializeColumns(columns []ColumnValue) ([]byte, error) {
	if len(columns) == 0 {
		return nil, ErrNoColumns
	}

	if !columnsSorted(columns) {
		return nil, ErrUnsortedColumns
	}

	size := lenSize

	for _, cv := range columns {
		size += 2*lenSize + len(cv.Column) + len(cv.Value)
	}

	frame := make([]byte, size)
	binary.LittleEndian.PutUint32(frame, uint32(len(columns)))
	offset := lenSize

	for _, cv := range columns {
		offset += putChunk(frame[offset:], cv.Column)
		offset += putChunk(frame[offset:], cv.Value)
	}

	return frame, nil
}

// DeserializeColumns decodes a frame back into its column list,
// verifying bounds at every step and rejecting unsorted columns.
func DeserializeColumns(frame []byte) ([]ColumnValue, error) {
	if len(frame) < lenSize {
		return nil, fmt.Errorf("%w: frame shorter than its header", ErrCorruptFrame)
	}

	count := binary.LittleEndian.Uint32(frame)

	if count == 0 {
		return nil, fmt.Errorf("%w: column count is zero", ErrCorruptFrame)
	}

	columns := make([]ColumnValue, 0, count)
	rest := frame[lenSize:]

	for i := uint32(0); i < count; i++ {
		var column, value []byte
		var err error

		if column, rest, err = takeChunk(rest); err != nil {
			return nil, fmt.Errorf("%w: column %d: %s", ErrCorruptFrame, i, err)
		}

		if value, rest, err = takeChunk(rest); err != nil {
			return nil, fmt.Errorf("%w: value %d: %s", ErrCorruptFrame, i, err)
		}

		columns = append(columns, ColumnValue{Column: column, Value: value})
	}

	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptFrame, len(rest))
	}

	if !columnsSorted(columns) {
		return nil, ErrUnsortedColumns
	}

	return columns, nil
}

func putChunk(b []byte, chunk []byte) int {
	binary.LittleEndian.PutUint32(b, uint32(len(chunk)))
	copy(b[lenSize:], chunk)

	return lenSize + len(chunk)
}

func takeChunk(b []byte) ([]byte, []byte, error) {
	if len(b) < lenSize {
		return nil, nil, fmt.Errorf("no room for a length prefix")
	}

	n := int(binary.LittleEndian.Uint32(b))
	b = b[lenSize:]

	if len(b) < n {
		return nil, nil, fmt.Errorf("length prefix %d exceeds remaining %d bytes", n, len(b))
	}

	return b[:n], b[n:], nil
}

func columnsSorted(columns []ColumnValue) bool {
	for i := 1; i < len(columns); i++ {
		if bytes.Compare(columns[i-1].Column, columns[i].Column) >= 0 {
			return false
		}
	}

	return true
}
