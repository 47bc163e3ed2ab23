package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mastowatch/mastowatch/automod/auditstore"
	"github.com/mastowatch/mastowatch/automod/cachestore"
	"github.com/mastowatch/mastowatch/automod/countstore"
	"github.com/mastowatch/mastowatch/automod/dedupestore"
	"github.com/mastowatch/mastowatch/automod/detector"
	"github.com/mastowatch/mastowatch/automod/engine"
	"github.com/mastowatch/mastowatch/automod/flagstore"
	"github.com/mastowatch/mastowatch/automod/rules"
	"github.com/mastowatch/mastowatch/automod/setstore"
	"github.com/mastowatch/mastowatch/mastodon"
	"github.com/mastowatch/mastowatch/models"
	"github.com/mastowatch/mastowatch/scanner"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	slogecho "github.com/samber/slog-echo"
	"gorm.io/gorm"
)

type Server struct {
	logger        *slog.Logger
	engine        *engine.Engine
	scanner       *scanner.Scanner
	ruleCache     *rules.CachedSource
	client        *mastodon.Client
	echo          *echo.Echo
	cron          *cron.Cron
	webhookSecret string
	scanInterval  time.Duration
}

type Config struct {
	Logger               *slog.Logger
	InstanceURL          string
	AdminToken           string
	RedisURL             string
	WebhookSecret        string
	SetsFileJSON         string
	ScanInterval         time.Duration
	PageSize             int
	MaxPagesPerCycle     int
	ScanConcurrency      int
	RuleCacheTTL         time.Duration
	DedupeRetention      time.Duration
	DailyActionQuota     int
	SilenceDuration      time.Duration
	DryRun               bool
	ForwardRemoteReports bool
}

func NewServer(db *gorm.DB, config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	if err := db.AutoMigrate(
		&models.Rule{},
		&models.Account{},
		&models.ScanSession{},
		&models.DedupeRecord{},
		&models.EnforcementAction{},
		&models.AuditLog{},
		&models.ScheduledReversal{},
	); err != nil {
		return nil, fmt.Errorf("running database migrations: %w", err)
	}

	sets := setstore.NewMemSetStore()
	if config.SetsFileJSON != "" {
		if err := sets.LoadFromFileJSON(config.SetsFileJSON); err != nil {
			return nil, fmt.Errorf("initializing in-process setstore: %v", err)
		}
		logger.Info("loaded set config from JSON", "path", config.SetsFileJSON)
	}

	var counters countstore.CountStore
	var cache cachestore.CacheStore
	var flags flagstore.FlagStore
	if config.RedisURL != "" {
		opt, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %v", err)
		}
		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
			return nil, fmt.Errorf("redis ping failed: %v", err)
		}

		cnt, err := countstore.NewRedisCountStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis countstore: %v", err)
		}
		counters = cnt

		csh, err := cachestore.NewRedisCacheStore(config.RedisURL, 30*time.Minute)
		if err != nil {
			return nil, fmt.Errorf("initializing redis cachestore: %v", err)
		}
		cache = csh

		flg, err := flagstore.NewRedisFlagStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis flagstore: %v", err)
		}
		flags = flg
	} else {
		counters = countstore.NewMemCountStore()
		cache = cachestore.NewMemCacheStore(5_000, 30*time.Minute)
		flags = flagstore.NewMemFlagStore()
	}

	ruleCacheTTL := config.RuleCacheTTL
	if ruleCacheTTL <= 0 {
		ruleCacheTTL = 60 * time.Second
	}
	ruleCache := rules.NewCachedSource(rules.NewGormSource(db), ruleCacheTTL)

	client := mastodon.NewClient(config.InstanceURL, config.AdminToken)
	client.Cache = cache

	eng := &engine.Engine{
		Logger: logger,
		Rules:  ruleCache,
		Detectors: &detector.Set{
			Counters: counters,
			Sets:     sets,
		},
		Dedupe:               dedupestore.NewGormDedupeStore(db),
		Flags:                flags,
		Counters:             counters,
		Platform:             client,
		Audit:                auditstore.NewGormAuditStore(db),
		Actions:              engine.NewGormEnforcementStore(db),
		Reversals:            engine.NewGormReversalStore(db),
		DedupeRetention:      config.DedupeRetention,
		DailyActionQuota:     config.DailyActionQuota,
		SilenceDuration:      config.SilenceDuration,
		ForwardRemoteReports: config.ForwardRemoteReports,
	}

	if config.DryRun {
		if err := flags.Set(context.TODO(), flagstore.FlagDryRun, true); err != nil {
			return nil, fmt.Errorf("engaging dry-run interlock: %v", err)
		}
		logger.Warn("starting with dry-run interlock engaged")
	}

	scn := &scanner.Scanner{
		Logger:           logger,
		Engine:           eng,
		Source:           client,
		Sessions:         scanner.NewGormSessionStore(db),
		Accounts:         scanner.NewGormAccountStore(db),
		PageSize:         config.PageSize,
		MaxPagesPerCycle: config.MaxPagesPerCycle,
		Concurrency:      config.ScanConcurrency,
	}

	s := &Server{
		logger:        logger,
		engine:        eng,
		scanner:       scn,
		ruleCache:     ruleCache,
		client:        client,
		cron:          cron.New(),
		webhookSecret: config.WebhookSecret,
		scanInterval:  config.ScanInterval,
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(logger.With("subsystem", "http")))
	s.registerRoutes(e)
	s.echo = e

	return s, nil
}

func (s *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

// Run starts the scan scheduler and the HTTP API, and blocks until the
// context is cancelled or a shutdown signal arrives.
func (s *Server) Run(ctx context.Context, bind string) error {
	interval := s.scanInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	every := fmt.Sprintf("@every %s", interval)
	for _, sessionType := range []string{scanner.SessionRemote, scanner.SessionLocal} {
		if _, err := s.cron.AddFunc(every, func() {
			if err := s.scanner.RunCycle(ctx, sessionType); err != nil {
				s.logger.Error("scan cycle failed", "session", sessionType, "err", err)
			}
		}); err != nil {
			return fmt.Errorf("scheduling %s scan: %w", sessionType, err)
		}
	}
	if _, err := s.cron.AddFunc("@every 1m", func() {
		if err := s.engine.SweepReversals(ctx); err != nil {
			s.logger.Error("reversal sweep failed", "err", err)
		}
	}); err != nil {
		return fmt.Errorf("scheduling reversal sweep: %w", err)
	}
	s.cron.Start()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(bind)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	case sig := <-sigCh:
		s.logger.Info("shutting down", "signal", sig.String())
	}

	cronCtx := s.cron.Stop()
	<-cronCtx.Done()

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutCtx)
}
