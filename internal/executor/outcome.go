package executor

import "sync"

type outcomeKind int

const (
	pending outcomeKind = iota
	timedOut
	exited
	spawnFailed
	canceled
)

func (k outcomeKind) String() string {
	switch k {
	case timedOut:
		return "timeout"
	case exited:
		return "exited"
	case spawnFailed:
		return "spawn_failed"
	case canceled:
		return "canceled"
	default:
		return "pending"
	}
}

type outcome struct {
	kind outcomeKind
	code int
	err  error
}

// settlement resolves an execution exactly once. The first terminal
// outcome wins; later ones are ignored.
type settlement struct {
	mu  sync.Mutex
	out outcome
}

func (s *settlement) settle(o outcome) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out.kind != pending {
		return false
	}
	s.out = o
	return true
}

func (s *settlement) result() outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out
}
