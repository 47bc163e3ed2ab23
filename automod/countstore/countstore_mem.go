package countstore

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

type MemCountStore struct {
	counts         *xsync.MapOf[string, *xsync.Counter]
	distinctCounts *xsync.MapOf[string, *xsync.MapOf[string, struct{}]]
}

func NewMemCountStore() *MemCountStore {
	return &MemCountStore{
		counts:         xsync.NewMapOf[string, *xsync.Counter](),
		distinctCounts: xsync.NewMapOf[string, *xsync.MapOf[string, struct{}]](),
	}
}

var _ CountStore = (*MemCountStore)(nil)

func (s *MemCountStore) GetCount(ctx context.Context, name, val, period string) (int, error) {
	v, ok := s.counts.Load(periodBucket(name, val, period))
	if !ok {
		return 0, nil
	}
	return int(v.Value()), nil
}

func (s *MemCountStore) Increment(ctx context.Context, name, val string) error {
	for _, p := range []string{PeriodTotal, PeriodDay, PeriodHour} {
		k := periodBucket(name, val, p)
		c, _ := s.counts.LoadOrCompute(k, func() *xsync.Counter {
			return xsync.NewCounter()
		})
		c.Inc()
	}
	return nil
}

func (s *MemCountStore) GetCountDistinct(ctx context.Context, name, bucket, period string) (int, error) {
	v, ok := s.distinctCounts.Load(periodBucket(name, bucket, period))
	if !ok {
		return 0, nil
	}
	return v.Size(), nil
}

func (s *MemCountStore) IncrementDistinct(ctx context.Context, name, bucket, val string) error {
	for _, p := range []string{PeriodTotal, PeriodDay, PeriodHour} {
		k := periodBucket(name, bucket, p)
		m, _ := s.distinctCounts.LoadOrCompute(k, func() *xsync.MapOf[string, struct{}] {
			return xsync.NewMapOf[string, struct{}]()
		})
		m.Store(val, struct{}{})
	}
	return nil
}
