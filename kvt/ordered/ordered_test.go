package ordered_test

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ltzhang/kvtstore/kvt/keys"
	"github.com/ltzhang/kvtstore/kvt/ordered"
)

// Both drivers must satisfy the same contract. Every test case runs
// against every registered driver.
func TestDrivers(t *testing.T) {
	for _, driver := range ordered.Drivers() {
		driver := driver

		t.Run(driver.Name(), func(t *testing.T) {
			testDriver(t, driver)
		})
	}
}

func TestLookup(t *testing.T) {
	require.NotNil(t, ordered.Lookup(ordered.DriverTreemap))
	require.NotNil(t, ordered.Lookup(ordered.DriverBTree))
	require.Nil(t, ordered.Lookup("no-such-driver"))
}

func testDriver(t *testing.T, driver ordered.Driver) {
	t.Run("put get delete", func(t *testing.T) {
		m := driver.New()

		m.Put([]byte("a"), "1")
		m.Put([]byte("b"), "2")
		m.Put([]byte("a"), "3")

		v, ok := m.Get([]byte("a"))
		require.True(t, ok)
		require.Equal(t, "3", v)

		require.Equal(t, 2, m.Len())

		m.Delete([]byte("a"))
		_, ok = m.Get([]byte("a"))
		require.False(t, ok)
		require.Equal(t, 1, m.Len())

		// Deleting a missing key is a no-op
		m.Delete([]byte("zzz"))
		require.Equal(t, 1, m.Len())
	})

	t.Run("ascend", func(t *testing.T) {
		m := driver.New()

		for _, k := range []string{"d", "a", "c", "b", "e"} {
			m.Put([]byte(k), k)
		}

		testCases := map[string]struct {
			r        keys.Range
			expected []string
		}{
			"all":       {r: keys.All(), expected: []string{"a", "b", "c", "d", "e"}},
			"min only":  {r: keys.All().Gte([]byte("c")), expected: []string{"c", "d", "e"}},
			"max only":  {r: keys.All().Lt([]byte("c")), expected: []string{"a", "b"}},
			"closed":    {r: keys.All().Gte([]byte("b")).Lte([]byte("d")), expected: []string{"b", "c", "d"}},
			"empty":     {r: keys.All().Gte([]byte("x")), expected: []string{}},
			"singleton": {r: keys.All().Eq([]byte("c")), expected: []string{"c"}},
		}

		for name, testCase := range testCases {
			t.Run(name, func(t *testing.T) {
				visited := []string{}

				m.Ascend(testCase.r, func(key []byte, value interface{}) bool {
					visited = append(visited, string(key))

					return true
				})

				if diff := cmp.Diff(testCase.expected, visited); diff != "" {
					t.Fatalf("unexpected keys (-want +got):\n%s", diff)
				}
			})
		}
	})

	t.Run("ascend stops early", func(t *testing.T) {
		m := driver.New()

		for i := 0; i < 10; i++ {
			m.Put([]byte(fmt.Sprintf("k%02d", i)), i)
		}

		visited := 0

		m.Ascend(keys.All(), func(key []byte, value interface{}) bool {
			visited++

			return visited < 3
		})

		require.Equal(t, 3, visited)
	})
}
