// Package cachestore is a generic string cache used for subject metadata
// (eg, recently fetched account status listings) with bounded staleness.
package cachestore

import (
	"context"
)

type CacheStore interface {
	Get(ctx context.Context, name, key string) (string, error)
	Set(ctx context.Context, name, key string, val string) error
	Purge(ctx context.Context, name, key string) error
}
