// Package secrets holds the named secret values of one session and the
// provenance of each value.
//
// A Store is populated once, by applying source files in a fixed order,
// and then only read. Later sources win on value; every source that ever
// defined a name is remembered.
package secrets

import (
	"sync"
)

// Entry is one named secret.
type Entry struct {
	Value string
	// Sources lists every source that set this name, in application order.
	// It may repeat a source that was applied twice.
	Sources []string
	// ActiveSource is the last element of Sources.
	ActiveSource string
}

// Store maps case-sensitive names to entries.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	order   []string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*Entry)}
}

// Set creates or overwrites name. The source is appended to the history
// even when it repeats.
func (s *Store) Set(name, value, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		e = &Entry{}
		s.entries[name] = e
		s.order = append(s.order, name)
	}
	e.Value = value
	e.Sources = append(e.Sources, source)
	e.ActiveSource = source
}

// Get returns the value of name.
func (s *Store) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[name]
	if !ok {
		return "", false
	}
	return e.Value, true
}

// Has reports whether name is defined.
func (s *Store) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[name]
	return ok
}

// Len returns the number of names.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Names returns names in first-insertion order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Sources returns the source history of name, or nil if unknown.
func (s *Store) Sources(name string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[name]
	if !ok {
		return nil
	}
	return append([]string(nil), e.Sources...)
}

// ActiveSource returns the source that provided the current value.
func (s *Store) ActiveSource(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[name]
	if !ok {
		return "", false
	}
	return e.ActiveSource, true
}

// Values returns a snapshot of every name and value.
func (s *Store) Values() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.entries))
	for name, e := range s.entries {
		out[name] = e.Value
	}
	return out
}

// AllValues returns every value in name insertion order.
func (s *Store) AllValues() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.entries[name].Value)
	}
	return out
}

// Resolve returns the values for names and, separately, every requested
// name that is not defined. Missing names keep request order without
// duplicates.
func (s *Store) Resolve(names []string) (map[string]string, []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string]string, len(names))
	var missing []string
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		if e, ok := s.entries[name]; ok {
			found[name] = e.Value
		} else {
			missing = append(missing, name)
		}
	}
	return found, missing
}

// Metadata describes a secret without its value.
type Metadata struct {
	Name         string   `json:"name"`
	ActiveSource string   `json:"active_source"`
	Sources      []string `json:"sources"`
}

// Describe returns metadata for every name in insertion order.
func (s *Store) Describe() []Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Metadata, 0, len(s.order))
	for _, name := range s.order {
		e := s.entries[name]
		out = append(out, Metadata{
			Name:         name,
			ActiveSource: e.ActiveSource,
			Sources:      append([]string(nil), e.Sources...),
		})
	}
	return out
}
