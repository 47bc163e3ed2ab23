// Package setstore holds named word lists which keyword rules can
// reference via "set:<name>" pattern elements.
package setstore

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
)

type SetStore interface {
	InSet(ctx context.Context, name, val string) (bool, error)
}

type MemSetStore struct {
	mu   sync.RWMutex
	sets map[string]map[string]bool
}

var _ SetStore = (*MemSetStore)(nil)

func NewMemSetStore() *MemSetStore {
	return &MemSetStore{
		sets: make(map[string]map[string]bool),
	}
}

func (s *MemSetStore) InSet(ctx context.Context, name, val string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.sets[name]
	if !ok {
		// NOTE: currently returns false when entire set isn't found
		return false, nil
	}
	_, ok = set[val]
	return ok, nil
}

func (s *MemSetStore) AddToSet(name string, vals []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.sets[name]
	if !ok {
		m = make(map[string]bool, len(vals))
		s.sets[name] = m
	}
	for _, v := range vals {
		m[v] = true
	}
}

func (s *MemSetStore) LoadFromFileJSON(p string) error {

	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	var lists map[string][]string
	if err := json.Unmarshal(raw, &lists); err != nil {
		return err
	}

	for name, l := range lists {
		s.AddToSet(name, l)
	}
	return nil
}
