package engine

import (
	"context"

	"github.com/mastowatch/mastowatch/automod/flagstore"
)

// SafetySnapshot is the process-wide interlock state captured at the
// start of a cycle and passed down immutably. It is never cached across
// cycles; every cycle reads fresh.
type SafetySnapshot struct {
	DryRun    bool
	PanicStop bool
}

// ReadSafety reads both interlocks from the flag store. A read failure
// fails toward dry-run: decisions still compute and audit, but nothing
// is dispatched until the flag store recovers.
func (eng *Engine) ReadSafety(ctx context.Context) SafetySnapshot {
	var snap SafetySnapshot
	dry, err := eng.Flags.Get(ctx, flagstore.FlagDryRun)
	if err != nil {
		eng.Logger.Error("reading dry-run flag failed, forcing dry-run", "err", err)
		snap.DryRun = true
	} else {
		snap.DryRun = dry
	}
	panicStop, err := eng.Flags.Get(ctx, flagstore.FlagPanicStop)
	if err != nil {
		eng.Logger.Error("reading panic-stop flag failed, forcing dry-run", "err", err)
		snap.DryRun = true
	} else {
		snap.PanicStop = panicStop
	}
	return snap
}

// SetFlag flips an interlock and audits the change.
func (eng *Engine) SetFlag(ctx context.Context, flag string, val bool) error {
	if err := eng.Flags.Set(ctx, flag, val); err != nil {
		return err
	}
	eng.RecordInterlock(ctx, flag, val)
	return nil
}
