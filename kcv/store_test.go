package kcv_test

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ltzhang/kvtstore/kcv"
	"github.com/ltzhang/kvtstore/kvt"
)

var layouts = []kcv.Layout{kcv.LayoutFrame, kcv.LayoutComposite}

func newStore(t *testing.T, scheme string, layout kcv.Layout) *kcv.Store {
	t.Helper()

	engine, err := kvt.New(kvt.Config{Scheme: scheme})
	require.NoError(t, err)

	t.Cleanup(func() {
		engine.Close()
	})

	store, err := kcv.NewManager(engine, nil).OpenStore("edgestore", layout)
	require.NoError(t, err)

	return store
}

// Each test case runs against both layouts; their observable behavior
// must not differ.
func forEachLayout(t *testing.T, run func(t *testing.T, store *kcv.Store)) {
	for _, layout := range layouts {
		layout := layout

		t.Run(layout.String(), func(t *testing.T) {
			run(t, newStore(t, kvt.SchemeNoCC, layout))
		})
	}
}

func TestColumnRoundTrip(t *testing.T) {
	forEachLayout(t, func(t *testing.T, store *kcv.Store) {
		key := []byte("k")

		require.NoError(t, store.SetColumn(0, key, []byte("age"), []byte("30")))
		require.NoError(t, store.SetColumn(0, key, []byte("name"), []byte("alice")))

		all, err := store.GetAllColumns(0, key)
		require.NoError(t, err)

		expected := []kcv.ColumnValue{cv("age", "30"), cv("name", "alice")}

		if diff := cmp.Diff(expected, all); diff != "" {
			t.Fatalf("unexpected columns (-want +got):\n%s", diff)
		}

		require.NoError(t, store.DeleteColumn(0, key, []byte("age")))

		_, err = store.GetColumn(0, key, []byte("age"))
		require.ErrorIs(t, err, kvt.ErrKeyNotFound)

		value, err := store.GetColumn(0, key, []byte("name"))
		require.NoError(t, err)
		require.Equal(t, []byte("alice"), value)
	})
}

func TestColumnOverwrite(t *testing.T) {
	forEachLayout(t, func(t *testing.T, store *kcv.Store) {
		key := []byte("k")

		require.NoError(t, store.SetColumn(0, key, []byte("c"), []byte("1")))
		require.NoError(t, store.SetColumn(0, key, []byte("c"), []byte("2")))

		value, err := store.GetColumn(0, key, []byte("c"))
		require.NoError(t, err)
		require.Equal(t, []byte("2"), value)

		all, err := store.GetAllColumns(0, key)
		require.NoError(t, err)
		require.Len(t, all, 1)
	})
}

func TestDeleteLastColumnRemovesKey(t *testing.T) {
	forEachLayout(t, func(t *testing.T, store *kcv.Store) {
		key := []byte("k")

		require.NoError(t, store.SetColumn(0, key, []byte("only"), []byte("v")))
		require.NoError(t, store.DeleteColumn(0, key, []byte("only")))

		all, err := store.GetAllColumns(0, key)
		require.NoError(t, err)
		require.Empty(t, all)

		keys, err := store.Keys(0, nil, nil, 0)
		require.NoError(t, err)
		require.Empty(t, keys)

		require.ErrorIs(t, store.DeleteKey(0, key), kvt.ErrKeyNotFound)
	})
}

func TestDeleteMissingColumn(t *testing.T) {
	forEachLayout(t, func(t *testing.T, store *kcv.Store) {
		require.ErrorIs(t, store.DeleteColumn(0, []byte("nope"), []byte("c")), kvt.ErrKeyNotFound)

		require.NoError(t, store.SetColumn(0, []byte("k"), []byte("a"), []byte("1")))
		require.ErrorIs(t, store.DeleteColumn(0, []byte("k"), []byte("b")), kvt.ErrKeyNotFound)
	})
}

func TestSetColumnsMergesByColumn(t *testing.T) {
	forEachLayout(t, func(t *testing.T, store *kcv.Store) {
		key := []byte("k")

		require.NoError(t, store.SetColumn(0, key, []byte("b"), []byte("old")))
		require.NoError(t, store.SetColumns(0, key, []kcv.ColumnValue{
			cv("a", "1"),
			cv("b", "new"),
			cv("c", "3"),
		}))

		all, err := store.GetAllColumns(0, key)
		require.NoError(t, err)

		expected := []kcv.ColumnValue{cv("a", "1"), cv("b", "new"), cv("c", "3")}

		if diff := cmp.Diff(expected, all); diff != "" {
			t.Fatalf("unexpected columns (-want +got):\n%s", diff)
		}

		require.ErrorIs(t, store.SetColumns(0, key, nil), kcv.ErrNoColumns)
	})
}

func TestDeleteKey(t *testing.T) {
	forEachLayout(t, func(t *testing.T, store *kcv.Store) {
		require.NoError(t, store.SetColumns(0, []byte("k"), []kcv.ColumnValue{
			cv("a", "1"),
			cv("b", "2"),
		}))
		require.NoError(t, store.SetColumn(0, []byte("other"), []byte("c"), []byte("3")))

		require.NoError(t, store.DeleteKey(0, []byte("k")))

		all, err := store.GetAllColumns(0, []byte("k"))
		require.NoError(t, err)
		require.Empty(t, all)

		// Other keys are untouched
		value, err := store.GetColumn(0, []byte("other"), []byte("c"))
		require.NoError(t, err)
		require.Equal(t, []byte("3"), value)
	})
}

func TestGetSlice(t *testing.T) {
	forEachLayout(t, func(t *testing.T, store *kcv.Store) {
		key := []byte("k")

		require.NoError(t, store.SetColumns(0, key, []kcv.ColumnValue{
			cv("a", "1"),
			cv("b", "2"),
			cv("c", "3"),
			cv("d", "4"),
		}))

		testCases := map[string]struct {
			start    []byte
			end      []byte
			limit    int
			expected []kcv.ColumnValue
		}{
			"start inclusive end exclusive": {
				start:    []byte("b"),
				end:      []byte("d"),
				limit:    0,
				expected: []kcv.ColumnValue{cv("b", "2"), cv("c", "3")},
			},
			"unbounded": {
				start:    nil,
				end:      nil,
				limit:    0,
				expected: []kcv.ColumnValue{cv("a", "1"), cv("b", "2"), cv("c", "3"), cv("d", "4")},
			},
			"limit": {
				start:    []byte("a"),
				end:      nil,
				limit:    2,
				expected: []kcv.ColumnValue{cv("a", "1"), cv("b", "2")},
			},
			"limit meets end bound": {
				start:    []byte("a"),
				end:      []byte("c"),
				limit:    2,
				expected: []kcv.ColumnValue{cv("a", "1"), cv("b", "2")},
			},
			"open start": {
				start:    nil,
				end:      []byte("b"),
				limit:    0,
				expected: []kcv.ColumnValue{cv("a", "1")},
			},
			"empty window": {
				start:    []byte("x"),
				end:      []byte("z"),
				limit:    0,
				expected: []kcv.ColumnValue{},
			},
		}

		for name, testCase := range testCases {
			t.Run(name, func(t *testing.T) {
				result, err := store.GetSlice(0, key, testCase.start, testCase.end, testCase.limit)
				require.NoError(t, err)

				if diff := cmp.Diff(testCase.expected, result); diff != "" {
					t.Fatalf("unexpected slice (-want +got):\n%s", diff)
				}
			})
		}
	})
}

// The slice of a key equals the filtered, truncated prefix of its
// full column list.
func TestGetSliceMatchesGetAllColumns(t *testing.T) {
	forEachLayout(t, func(t *testing.T, store *kcv.Store) {
		key := []byte("k")

		for i := 0; i < 10; i++ {
			column := fmt.Sprintf("c%02d", i)
			require.NoError(t, store.SetColumn(0, key, []byte(column), []byte("v")))
		}

		all, err := store.GetAllColumns(0, key)
		require.NoError(t, err)

		slice, err := store.GetSlice(0, key, []byte("c02"), []byte("c07"), 3)
		require.NoError(t, err)

		if diff := cmp.Diff(all[2:5], slice); diff != "" {
			t.Fatalf("slice disagrees with full column list (-want +got):\n%s", diff)
		}
	})
}

func TestGetSliceKeys(t *testing.T) {
	forEachLayout(t, func(t *testing.T, store *kcv.Store) {
		require.NoError(t, store.SetColumns(0, []byte("k1"), []kcv.ColumnValue{cv("a", "1"), cv("b", "2")}))
		require.NoError(t, store.SetColumns(0, []byte("k2"), []kcv.ColumnValue{cv("b", "3")}))

		results, err := store.GetSliceKeys(0, [][]byte{[]byte("k1"), []byte("k2"), []byte("k3")}, []byte("b"), nil, 0)
		require.NoError(t, err)

		expected := map[string][]kcv.ColumnValue{
			"k1": {cv("b", "2")},
			"k2": {cv("b", "3")},
			"k3": {},
		}

		if diff := cmp.Diff(expected, results); diff != "" {
			t.Fatalf("unexpected slices (-want +got):\n%s", diff)
		}
	})
}

func TestKeys(t *testing.T) {
	forEachLayout(t, func(t *testing.T, store *kcv.Store) {
		require.NoError(t, store.SetColumns(0, []byte("a"), []kcv.ColumnValue{cv("c1", "1"), cv("c2", "2")}))
		require.NoError(t, store.SetColumn(0, []byte("b"), []byte("c1"), []byte("3")))
		require.NoError(t, store.SetColumn(0, []byte("c"), []byte("c1"), []byte("4")))

		keys, err := store.Keys(0, nil, nil, 0)
		require.NoError(t, err)

		expected := [][]byte{[]byte("a"), []byte("b"), []byte("c")}

		if diff := cmp.Diff(expected, keys); diff != "" {
			t.Fatalf("unexpected keys (-want +got):\n%s", diff)
		}

		// The bounds are closed and the limit caps distinct keys,
		// not entries
		keys, err = store.Keys(0, []byte("a"), []byte("b"), 0)
		require.NoError(t, err)

		if diff := cmp.Diff(expected[:2], keys); diff != "" {
			t.Fatalf("unexpected bounded keys (-want +got):\n%s", diff)
		}

		keys, err = store.Keys(0, nil, nil, 2)
		require.NoError(t, err)
		require.Len(t, keys, 2)
	})
}

func TestMutate(t *testing.T) {
	forEachLayout(t, func(t *testing.T, store *kcv.Store) {
		key := []byte("k")

		require.NoError(t, store.SetColumns(0, key, []kcv.ColumnValue{
			cv("drop", "old"),
			cv("keep", "1"),
			cv("replace", "old"),
		}))

		require.NoError(t, store.Mutate(0, key, kcv.Mutation{
			Additions: []kcv.ColumnValue{cv("add", "new"), cv("replace", "new")},
			Deletions: [][]byte{[]byte("drop"), []byte("never existed")},
		}))

		all, err := store.GetAllColumns(0, key)
		require.NoError(t, err)

		expected := []kcv.ColumnValue{cv("add", "new"), cv("keep", "1"), cv("replace", "new")}

		if diff := cmp.Diff(expected, all); diff != "" {
			t.Fatalf("unexpected columns (-want +got):\n%s", diff)
		}
	})
}

// A column deleted and re-added in the same mutation ends up set:
// deletions apply before additions.
func TestMutateDeletionsFirst(t *testing.T) {
	forEachLayout(t, func(t *testing.T, store *kcv.Store) {
		key := []byte("k")

		require.NoError(t, store.SetColumn(0, key, []byte("c"), []byte("old")))
		require.NoError(t, store.Mutate(0, key, kcv.Mutation{
			Additions: []kcv.ColumnValue{cv("c", "new")},
			Deletions: [][]byte{[]byte("c")},
		}))

		value, err := store.GetColumn(0, key, []byte("c"))
		require.NoError(t, err)
		require.Equal(t, []byte("new"), value)
	})
}

func TestMutateDeleteAllRemovesKey(t *testing.T) {
	forEachLayout(t, func(t *testing.T, store *kcv.Store) {
		key := []byte("k")

		require.NoError(t, store.SetColumn(0, key, []byte("c"), []byte("v")))
		require.NoError(t, store.Mutate(0, key, kcv.Mutation{Deletions: [][]byte{[]byte("c")}}))

		keys, err := store.Keys(0, nil, nil, 0)
		require.NoError(t, err)
		require.Empty(t, keys)
	})
}

func TestValidation(t *testing.T) {
	forEachLayout(t, func(t *testing.T, store *kcv.Store) {
		require.ErrorIs(t, store.SetColumn(0, nil, []byte("c"), []byte("v")), kcv.ErrEmptyKey)

		_, err := store.GetAllColumns(0, nil)
		require.ErrorIs(t, err, kcv.ErrEmptyKey)

		require.ErrorIs(t, store.DeleteKey(0, nil), kcv.ErrEmptyKey)
	})
}

func TestCompositeLayoutValidation(t *testing.T) {
	store := newStore(t, kvt.SchemeNoCC, kcv.LayoutComposite)

	require.ErrorIs(t, store.SetColumn(0, []byte("k"), nil, []byte("v")), kcv.ErrEmptyColumn)

	withSep := []byte{'k', kcv.Separator, 'x'}
	require.ErrorIs(t, store.SetColumn(0, withSep, []byte("c"), []byte("v")), kcv.ErrReservedByte)
	require.ErrorIs(t, store.SetColumn(0, []byte("k"), withSep, []byte("v")), kcv.ErrReservedByte)
}

// The frame layout accepts empty columns; they sort before every
// other column.
func TestFrameLayoutEmptyColumn(t *testing.T) {
	store := newStore(t, kvt.SchemeNoCC, kcv.LayoutFrame)

	require.NoError(t, store.SetColumn(0, []byte("k"), []byte("z"), []byte("1")))
	require.NoError(t, store.SetColumn(0, []byte("k"), nil, []byte("2")))

	all, err := store.GetAllColumns(0, []byte("k"))
	require.NoError(t, err)

	expected := []kcv.ColumnValue{cv("", "2"), cv("z", "1")}

	if diff := cmp.Diff(expected, all); diff != "" {
		t.Fatalf("unexpected columns (-want +got):\n%s", diff)
	}
}

// Adapter operations run under engine transactions like any other
// engine caller: uncommitted column writes stay invisible and
// rollback discards them.
func TestStoreTransactions(t *testing.T) {
	for _, layout := range layouts {
		layout := layout

		t.Run(layout.String(), func(t *testing.T) {
			engine, err := kvt.New(kvt.Config{Scheme: kvt.SchemeSerialized})
			require.NoError(t, err)
			defer engine.Close()

			store, err := kcv.NewManager(engine, nil).OpenStore("edgestore", layout)
			require.NoError(t, err)

			txID, err := engine.Begin()
			require.NoError(t, err)

			require.NoError(t, store.SetColumn(txID, []byte("k"), []byte("c"), []byte("v")))

			_, err = store.GetColumn(0, []byte("k"), []byte("c"))
			require.ErrorIs(t, err, kvt.ErrKeyNotFound)

			value, err := store.GetColumn(txID, []byte("k"), []byte("c"))
			require.NoError(t, err)
			require.Equal(t, []byte("v"), value)

			require.NoError(t, engine.Commit(txID))

			value, err = store.GetColumn(0, []byte("k"), []byte("c"))
			require.NoError(t, err)
			require.Equal(t, []byte("v"), value)

			txID, err = engine.Begin()
			require.NoError(t, err)
			require.NoError(t, store.DeleteColumn(txID, []byte("k"), []byte("c")))
			require.NoError(t, engine.Rollback(txID))

			value, err = store.GetColumn(0, []byte("k"), []byte("c"))
			require.NoError(t, err)
			require.Equal(t, []byte("v"), value)
		})
	}
}

func TestBatchExecuteFrameLayoutRefused(t *testing.T) {
	store := newStore(t, kvt.SchemeNoCC, kcv.LayoutFrame)

	_, err := store.BatchExecute(0, []kcv.ColumnOp{
		{Type: kcv.ColumnOpSet, Key: []byte("k"), Column: []byte("c"), Value: []byte("v")},
	})
	require.ErrorIs(t, err, kcv.ErrBatchUnsupportedLayout)
}

func TestBatchExecuteComposite(t *testing.T) {
	store := newStore(t, kvt.SchemeNoCC, kcv.LayoutComposite)

	results, err := store.BatchExecute(0, []kcv.ColumnOp{
		{Type: kcv.ColumnOpSet, Key: []byte("k"), Column: []byte("a"), Value: []byte("1")},
		{Type: kcv.ColumnOpSet, Key: []byte("k"), Column: []byte("b"), Value: []byte("2")},
		{Type: kcv.ColumnOpGet, Key: []byte("k"), Column: []byte("a")},
		{Type: kcv.ColumnOpDelete, Key: []byte("k"), Column: []byte("b")},
	})
	require.NoError(t, err)
	require.Len(t, results, 4)
	require.Equal(t, []byte("1"), results[2].Value)

	all, err := store.GetAllColumns(0, []byte("k"))
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestBatchExecuteCompositePartialFailure(t *testing.T) {
	store := newStore(t, kvt.SchemeNoCC, kcv.LayoutComposite)

	results, err := store.BatchExecute(0, []kcv.ColumnOp{
		{Type: kcv.ColumnOpGet, Key: []byte("k"), Column: []byte("missing")},
		{Type: kcv.ColumnOpSet, Key: []byte("k"), Column: []byte("a"), Value: []byte("1")},
	})
	require.ErrorIs(t, err, kvt.ErrBatchNotFullySuccess)
	require.ErrorIs(t, results[0].Err, kvt.ErrKeyNotFound)
	require.NoError(t, results[1].Err)

	// Invalid operations fail the whole batch up front
	_, err = store.BatchExecute(0, []kcv.ColumnOp{
		{Type: kcv.ColumnOpSet, Key: nil, Column: []byte("c"), Value: []byte("v")},
	})
	require.ErrorIs(t, err, kcv.ErrEmptyKey)
}
