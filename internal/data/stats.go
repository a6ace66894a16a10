package data

import (
	"fmt"
	"sync"
)

type handleKind int

const (
	handleEnv handleKind = iota
	handleConn
	handleStmt
)

// HandleCounts is a snapshot of live handles.
type HandleCounts struct {
	Env  int
	Conn int
	Stmt int
}

// Stats counts handles that were allocated and not yet freed.
type Stats struct {
	mu     sync.Mutex
	counts HandleCounts
}

func (s *Stats) update(kind handleKind, change int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case handleEnv:
		s.counts.Env += change
	case handleConn:
		s.counts.Conn += change
	case handleStmt:
		s.counts.Stmt += change
	default:
		panic(fmt.Errorf("unexpected handle kind %d", kind))
	}
}

// Counts returns the current live handle counts.
func (s *Stats) Counts() HandleCounts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}
