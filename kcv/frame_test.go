package kcv_test

import (
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ltzhang/kvtstore/kcv"
)

func cv(column, value string) kcv.ColumnValue {
	return kcv.ColumnValue{Column: []byte(column), Value: []byte(value)}
}

func TestFrameRoundTrip(t *testing.T) {
	testCases := map[string][]kcv.ColumnValue{
		"single column": {cv("age", "30")},
		"several columns": {
			cv("age", "30"),
			cv("city", "zurich"),
			cv("name", "alice"),
		},
		"empty value":  {cv("flag", "")},
		"empty column": {cv("", "anonymous"), cv("x", "1")},
		"binary values": {
			{Column: []byte{0x01}, Value: []byte{0x00, 0xff, 0x00}},
			{Column: []byte{0x02, 0x00}, Value: []byte{}},
		},
	}

	for name, columns := range testCases {
		t.Run(name, func(t *testing.T) {
			frame, err := kcv.SerializeColumns(columns)
			require.NoError(t, err)

			decoded, err := kcv.DeserializeColumns(frame)
			require.NoError(t, err)

			if diff := cmp.Diff(columns, decoded); diff != "" {
				t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFrameWireFormat(t *testing.T) {
	frame, err := kcv.SerializeColumns([]kcv.ColumnValue{cv("ab", "xyz")})
	require.NoError(t, err)

	expected := []byte{
		1, 0, 0, 0, // column count
		2, 0, 0, 0, 'a', 'b', // column
		3, 0, 0, 0, 'x', 'y', 'z', // value
	}
	require.Equal(t, expected, frame)
}

func TestSerializeRejects(t *testing.T) {
	_, err := kcv.SerializeColumns(nil)
	require.ErrorIs(t, err, kcv.ErrNoColumns)

	_, err = kcv.SerializeColumns([]kcv.ColumnValue{cv("b", "1"), cv("a", "2")})
	require.ErrorIs(t, err, kcv.ErrUnsortedColumns)

	// Duplicate columns are not sorted strictly ascending
	_, err = kcv.SerializeColumns([]kcv.ColumnValue{cv("a", "1"), cv("a", "2")})
	require.ErrorIs(t, err, kcv.ErrUnsortedColumns)
}

func TestDeserializeRejects(t *testing.T) {
	valid, err := kcv.SerializeColumns([]kcv.ColumnValue{cv("a", "1"), cv("b", "2")})
	require.NoError(t, err)

	truncatedLength := make([]byte, len(valid))
	copy(truncatedLength, valid)
	// Claim a value length far past the end of the frame
	binary.LittleEndian.PutUint32(truncatedLength[len(truncatedLength)-5:], 1<<30)

	unsorted, err := kcv.SerializeColumns([]kcv.ColumnValue{cv("a", "1"), cv("b", "2")})
	require.NoError(t, err)
	// Swap the column names to break the ordering
	unsorted[8], unsorted[18] = unsorted[18], unsorted[8]

	testCases := map[string]struct {
		frame    []byte
		expected error
	}{
		"empty":              {frame: []byte{}, expected: kcv.ErrCorruptFrame},
		"short header":       {frame: []byte{1, 0}, expected: kcv.ErrCorruptFrame},
		"zero columns":       {frame: []byte{0, 0, 0, 0}, expected: kcv.ErrCorruptFrame},
		"missing records":    {frame: []byte{2, 0, 0, 0}, expected: kcv.ErrCorruptFrame},
		"truncated record":   {frame: valid[:len(valid)-1], expected: kcv.ErrCorruptFrame},
		"oversized length":   {frame: truncatedLength, expected: kcv.ErrCorruptFrame},
		"trailing bytes":     {frame: append(append([]byte{}, valid...), 0xde, 0xad), expected: kcv.ErrCorruptFrame},
		"columns not sorted": {frame: unsorted, expected: kcv.ErrUnsortedColumns},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := kcv.DeserializeColumns(testCase.frame)
			require.ErrorIs(t, err, testCase.expected)
		})
	}
}
