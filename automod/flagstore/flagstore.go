// Package flagstore holds process-wide operational switches (dry-run,
// panic-stop). Callers are expected to read flags fresh at the start of
// every scan cycle, never to cache them across cycles.
package flagstore

import (
	"context"
)

const (
	FlagDryRun    = "dry-run"
	FlagPanicStop = "panic-stop"
)

type FlagStore interface {
	Get(ctx context.Context, name string) (bool, error)
	Set(ctx context.Context, name string, val bool) error
}
