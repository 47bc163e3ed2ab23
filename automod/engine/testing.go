package engine

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/mastowatch/mastowatch/automod/auditstore"
	"github.com/mastowatch/mastowatch/automod/countstore"
	"github.com/mastowatch/mastowatch/automod/dedupestore"
	"github.com/mastowatch/mastowatch/automod/detector"
	"github.com/mastowatch/mastowatch/automod/flagstore"
	"github.com/mastowatch/mastowatch/automod/rules"
	"github.com/mastowatch/mastowatch/automod/setstore"
)

// FakePlatform records dispatched actions instead of calling out.
type FakePlatform struct {
	mu      sync.Mutex
	Err     error
	applied []ActionRequest
	undone  []string
}

var _ PlatformClient = (*FakePlatform)(nil)

func (p *FakePlatform) ApplyAction(ctx context.Context, req *ActionRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return "", p.Err
	}
	p.applied = append(p.applied, *req)
	return "ext-ref-1", nil
}

func (p *FakePlatform) UndoAction(ctx context.Context, subjectID, actionType string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.undone = append(p.undone, subjectID+"/"+actionType)
	return p.Err
}

func (p *FakePlatform) Applied() []ActionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ActionRequest, len(p.applied))
	copy(out, p.applied)
	return out
}

func (p *FakePlatform) Undone() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.undone))
	copy(out, p.undone)
	return out
}

// EngineTestFixture wires a fully in-memory engine around a static rule
// set, for tests here and in dependent packages.
func EngineTestFixture(ruleSet []rules.Rule) *Engine {
	sets := setstore.NewMemSetStore()
	sets.AddToSet("bad-words", []string{"lottery", "jackpot"})
	// detectors and activity tracking share one counter store
	counters := countstore.NewMemCountStore()
	return &Engine{
		Logger: slog.New(slog.NewTextHandler(os.Stderr, nil)),
		Rules:  &rules.StaticSource{Rules: ruleSet},
		Detectors: &detector.Set{
			Counters: counters,
			Sets:     sets,
		},
		Dedupe:          dedupestore.NewMemDedupeStore(),
		Flags:           flagstore.NewMemFlagStore(),
		Counters:        counters,
		Platform:        &FakePlatform{},
		Audit:           auditstore.NewMemAuditStore(),
		Actions:         NewMemEnforcementStore(),
		DedupeRetention: time.Hour,
	}
}
