package flagstore

import (
	"context"

	"github.com/redis/go-redis/v9"
)

var redisFlagPrefix string = "flag/"

type RedisFlagStore struct {
	Client *redis.Client
}

var _ FlagStore = (*RedisFlagStore)(nil)

func NewRedisFlagStore(redisURL string) (*RedisFlagStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisFlagStore{Client: rdb}, nil
}

func (s *RedisFlagStore) Get(ctx context.Context, name string) (bool, error) {
	v, err := s.Client.Get(ctx, redisFlagPrefix+name).Result()
	if err == redis.Nil {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return v == "1", nil
}

func (s *RedisFlagStore) Set(ctx context.Context, name string, val bool) error {
	raw := "0"
	if val {
		raw = "1"
	}
	// flags persist until explicitly flipped back
	return s.Client.Set(ctx, redisFlagPrefix+name, raw, 0).Err()
}
