package flagstore

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

type MemFlagStore struct {
	data *xsync.MapOf[string, bool]
}

var _ FlagStore = (*MemFlagStore)(nil)

func NewMemFlagStore() *MemFlagStore {
	return &MemFlagStore{
		data: xsync.NewMapOf[string, bool](),
	}
}

func (s *MemFlagStore) Get(ctx context.Context, name string) (bool, error) {
	v, ok := s.data.Load(name)
	if !ok {
		return false, nil
	}
	return v, nil
}

func (s *MemFlagStore) Set(ctx context.Context, name string, val bool) error {
	s.data.Store(name, val)
	return nil
}
