package kcv

import (
	"bytes"
	"fmt"
)

// Separator joins keys and columns in the composite layout. 0x1F is
// the ASCII unit separator; keys and columns must not contain it.
const Separator byte = 0x1F

// CompositeKey joins an application key and a column into a single
// engine key. Both parts must be non-empty and free of the separator,
// so that composite keys cannot be forged or split ambiguously.
func CompositeKey(key, column []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}

	if len(column) == 0 {
		return nil, ErrEmptyColumn
	}

	if bytes.IndexByte(key, Separator) >= 0 || bytes.IndexByte(column, Separator) >= 0 {
		return nil, ErrReservedByte
	}

	composite := make([]byte, 0, len(key)+1+len(column))
	composite = append(composite, key...)
	composite = append(composite, Separator)
	composite = append(composite, column...)

	return composite, nil
}

// SplitCompositeKey splits an engine key produced by CompositeKey
// back into its application key and column.
func SplitCompositeKey(composite []byte) ([]byte, []byte, error) {
	i := bytes.IndexByte(composite, Separator)

	if i < 0 {
		return nil, nil, fmt.Errorf("no separator in composite key %q", composite)
	}

	return composite[:i], composite[i+1:], nil
}

// columnBounds returns the closed scan bounds covering every
// composite key of the given application key. No composite key can
// sort between key.(Separator+1) and the columns of any other key, so
// the closed upper bound admits no strays.
func columnBounds(key []byte) ([]byte, []byte) {
	start := make([]byte, 0, len(key)+1)
	start = append(start, key...)
	start = append(start, Separator)

	end := make([]byte, 0, len(key)+1)
	end = append(end, key...)
	end = append(end, Separator+1)

	return start, end
}
