package secrets

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetAndGet(t *testing.T) {
	s := NewStore()

	_, ok := s.Get("API_KEY")
	assert.False(t, ok)
	assert.False(t, s.Has("API_KEY"))

	s.Set("API_KEY", "sk_live_abc123", "global.env")
	v, ok := s.Get("API_KEY")
	require.True(t, ok)
	assert.Equal(t, "sk_live_abc123", v)
	assert.True(t, s.Has("API_KEY"))
	assert.False(t, s.Has("api_key"), "names are case-sensitive")
}

func TestStore_Provenance(t *testing.T) {
	s := NewStore()
	s.Set("DB_PASS", "one", "global.env")
	s.Set("DB_PASS", "one", "project.env")
	s.Set("DB_PASS", "three", "local.env")
	s.Set("DB_PASS", "three", "local.env")

	v, _ := s.Get("DB_PASS")
	assert.Equal(t, "three", v)

	active, ok := s.ActiveSource("DB_PASS")
	require.True(t, ok)
	assert.Equal(t, "local.env", active)
	assert.Equal(t, []string{"global.env", "project.env", "local.env", "local.env"}, s.Sources("DB_PASS"))
}

func TestStore_NamesKeepFirstInsertionOrder(t *testing.T) {
	s := NewStore()
	s.Set("B", "1", "a")
	s.Set("A", "2", "a")
	s.Set("C", "3", "a")
	s.Set("B", "4", "b")

	assert.Equal(t, []string{"B", "A", "C"}, s.Names())
	assert.Equal(t, []string{"4", "2", "3"}, s.AllValues())
	assert.Equal(t, 3, s.Len())
}

func TestStore_UnknownNames(t *testing.T) {
	s := NewStore()

	assert.Nil(t, s.Sources("NOPE"))
	_, ok := s.ActiveSource("NOPE")
	assert.False(t, ok)
	assert.Empty(t, s.Names())
	assert.Empty(t, s.Values())
	assert.Empty(t, s.AllValues())
}

func TestStore_SnapshotsAreCopies(t *testing.T) {
	s := NewStore()
	s.Set("K", "v1", "a")

	values := s.Values()
	values["K"] = "tampered"
	names := s.Names()
	names[0] = "X"
	sources := s.Sources("K")
	sources[0] = "evil"

	v, _ := s.Get("K")
	assert.Equal(t, "v1", v)
	assert.Equal(t, []string{"K"}, s.Names())
	assert.Equal(t, []string{"a"}, s.Sources("K"))
}

func TestStore_Resolve(t *testing.T) {
	s := NewStore()
	s.Set("A", "1", "f")
	s.Set("B", "2", "f")

	found, missing := s.Resolve([]string{"A", "Z", "B", "Y", "Z"})
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, found)
	assert.Equal(t, []string{"Z", "Y"}, missing)

	found, missing = s.Resolve(nil)
	assert.Empty(t, found)
	assert.Empty(t, missing)
}

func TestStore_Describe(t *testing.T) {
	s := NewStore()
	s.Set("A", "secret-a", "one.env")
	s.Set("A", "secret-a2", "two.env")
	s.Set("B", "secret-b", "one.env")

	md := s.Describe()
	require.Len(t, md, 2)
	assert.Equal(t, Metadata{Name: "A", ActiveSource: "two.env", Sources: []string{"one.env", "two.env"}}, md[0])
	assert.Equal(t, Metadata{Name: "B", ActiveSource: "one.env", Sources: []string{"one.env"}}, md[1])
}

func TestStore_ConcurrentReads(t *testing.T) {
	s := NewStore()
	for i := 0; i < 50; i++ {
		s.Set(fmt.Sprintf("K%d", i), fmt.Sprintf("v%d", i), "f")
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				v, ok := s.Get(fmt.Sprintf("K%d", j))
				assert.True(t, ok)
				assert.Equal(t, fmt.Sprintf("v%d", j), v)
				_ = s.Values()
			}
		}()
	}
	wg.Wait()
}
