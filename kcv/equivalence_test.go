package kcv_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ltzhang/kvtstore/kcv"
	"github.com/ltzhang/kvtstore/kvt"
)

// Drives both layouts through the same pseudo-random operation
// sequence and requires identical observable results at every step.
func TestLayoutEquivalence(t *testing.T) {
	frame := newStore(t, kvt.SchemeNoCC, kcv.LayoutFrame)
	composite := newStore(t, kvt.SchemeNoCC, kcv.LayoutComposite)

	rng := rand.New(rand.NewSource(42))

	randKey := func() []byte {
		return []byte(fmt.Sprintf("key%d", rng.Intn(8)))
	}
	randColumn := func() []byte {
		return []byte(fmt.Sprintf("col%d", rng.Intn(12)))
	}

	for step := 0; step < 500; step++ {
		key := randKey()
		column := randColumn()
		value := []byte(fmt.Sprintf("v%d", step))

		switch rng.Intn(6) {
		case 0, 1:
			require.NoError(t, frame.SetColumn(0, key, column, value))
			require.NoError(t, composite.SetColumn(0, key, column, value))
		case 2:
			frameErr := frame.DeleteColumn(0, key, column)
			compositeErr := composite.DeleteColumn(0, key, column)
			require.Equal(t, kvt.CodeOf(frameErr), kvt.CodeOf(compositeErr))
		case 3:
			frameValue, frameErr := frame.GetColumn(0, key, column)
			compositeValue, compositeErr := composite.GetColumn(0, key, column)
			require.Equal(t, kvt.CodeOf(frameErr), kvt.CodeOf(compositeErr))
			require.Equal(t, frameValue, compositeValue)
		case 4:
			mutation := kcv.Mutation{
				Additions: []kcv.ColumnValue{{Column: randColumn(), Value: value}},
				Deletions: [][]byte{randColumn()},
			}
			require.NoError(t, frame.Mutate(0, key, mutation))
			require.NoError(t, composite.Mutate(0, key, mutation))
		case 5:
			frameErr := frame.DeleteKey(0, key)
			compositeErr := composite.DeleteKey(0, key)
			require.Equal(t, kvt.CodeOf(frameErr), kvt.CodeOf(compositeErr))
		}

		frameAll, err := frame.GetAllColumns(0, key)
		require.NoError(t, err)
		compositeAll, err := composite.GetAllColumns(0, key)
		require.NoError(t, err)

		if diff := cmp.Diff(frameAll, compositeAll); diff != "" {
			t.Fatalf("layouts diverged at step %d (-frame +composite):\n%s", step, diff)
		}
	}

	// Final full comparison across every key
	frameKeys, err := frame.Keys(0, nil, nil, 0)
	require.NoError(t, err)
	compositeKeys, err := composite.Keys(0, nil, nil, 0)
	require.NoError(t, err)

	if diff := cmp.Diff(frameKeys, compositeKeys); diff != "" {
		t.Fatalf("layouts report different keys (-frame +composite):\n%s", diff)
	}

	for _, key := range frameKeys {
		frameSlice, err := frame.GetSlice(0, key, []byte("col2"), []byte("col8"), 4)
		require.NoError(t, err)
		compositeSlice, err := composite.GetSlice(0, key, []byte("col2"), []byte("col8"), 4)
		require.NoError(t, err)

		if diff := cmp.Diff(frameSlice, compositeSlice); diff != "" {
			t.Fatalf("slices diverged for key %q (-frame +composite):\n%s", key, diff)
		}
	}
}
