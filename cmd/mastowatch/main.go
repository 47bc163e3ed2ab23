package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/mastowatch/mastowatch/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "mastowatch",
		Usage:   "moderation scanning daemon for Mastodon instances",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "instance-url",
			Usage:   "base URL of the Mastodon instance to scan",
			Value:   "http://localhost:3000",
			EnvVars: []string{"INSTANCE_URL"},
		},
		&cli.StringFlag{
			Name:    "admin-token",
			Usage:   "admin-scoped API token",
			EnvVars: []string{"MASTODON_ADMIN_TOKEN"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   40,
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Value:   "sqlite://data/mastowatch/mastowatch.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection for counters, caches, and safety flags (eg, redis://localhost:6379/0); in-process fallback if empty",
			EnvVars: []string{"REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":8080",
			EnvVars: []string{"MASTOWATCH_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":8081",
			EnvVars: []string{"MASTOWATCH_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "webhook-secret",
			Usage:   "shared secret for webhook HMAC signature verification",
			EnvVars: []string{"WEBHOOK_SECRET"},
		},
		&cli.StringFlag{
			Name:    "sets-file-json",
			Usage:   "file path of word lists in JSON format",
			EnvVars: []string{"MASTOWATCH_SETS_FILE_JSON"},
		},
		&cli.DurationFlag{
			Name:    "scan-interval",
			Usage:   "how often to run a scan cycle per session type",
			Value:   30 * time.Second,
			EnvVars: []string{"SCAN_INTERVAL"},
		},
		&cli.IntFlag{
			Name:    "page-size",
			Usage:   "accounts per listing page",
			Value:   40,
			EnvVars: []string{"SCAN_PAGE_SIZE"},
		},
		&cli.IntFlag{
			Name:    "max-pages-per-cycle",
			Value:   10,
			EnvVars: []string{"SCAN_MAX_PAGES_PER_CYCLE"},
		},
		&cli.IntFlag{
			Name:    "scan-concurrency",
			Usage:   "worker pool size for subject evaluation within a page",
			Value:   4,
			EnvVars: []string{"SCAN_CONCURRENCY"},
		},
		&cli.DurationFlag{
			Name:    "rule-cache-ttl",
			Value:   60 * time.Second,
			EnvVars: []string{"RULE_CACHE_TTL"},
		},
		&cli.DurationFlag{
			Name:    "dedupe-retention",
			Usage:   "how long a violation fingerprint suppresses repeat actions",
			Value:   24 * time.Hour,
			EnvVars: []string{"DEDUPE_RETENTION"},
		},
		&cli.IntFlag{
			Name:    "daily-action-quota",
			Usage:   "max enforcement actions per day across all subjects (0 = unlimited)",
			Value:   500,
			EnvVars: []string{"DAILY_ACTION_QUOTA"},
		},
		&cli.DurationFlag{
			Name:    "silence-duration",
			Usage:   "auto-reverse silence actions after this long (0 disables)",
			EnvVars: []string{"SILENCE_DURATION"},
		},
		&cli.BoolFlag{
			Name:    "dry-run",
			Usage:   "start with the dry-run interlock engaged",
			EnvVars: []string{"DRY_RUN"},
		},
		&cli.BoolFlag{
			Name:    "forward-remote-reports",
			Usage:   "forward reports on remote accounts to their origin instance",
			EnvVars: []string{"FORWARD_REMOTE_REPORTS"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		slog.SetDefault(logger)

		// Enable OTLP HTTP exporter
		// For relevant environment variables:
		// https://pkg.go.dev/go.opentelemetry.io/otel/exporters/otlp/otlptrace#readme-environment-variables
		// At a minimum, you need to set
		// OTEL_EXPORTER_OTLP_ENDPOINT=http://localhost:4318
		if ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); ep != "" {
			slog.Info("setting up trace exporter", "endpoint", ep)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			exp, err := otlptracehttp.New(ctx)
			if err != nil {
				log.Fatal("failed to create trace exporter", "error", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := exp.Shutdown(ctx); err != nil {
					slog.Error("failed to shutdown trace exporter", "error", err)
				}
			}()

			tp := tracesdk.NewTracerProvider(
				tracesdk.WithBatcher(exp),
				tracesdk.WithResource(resource.NewWithAttributes(
					semconv.SchemaURL,
					semconv.ServiceNameKey.String("mastowatch"),
					attribute.String("env", os.Getenv("ENVIRONMENT")),         // DataDog
					attribute.String("environment", os.Getenv("ENVIRONMENT")), // Others
					attribute.Int64("ID", 1),
				)),
			)
			otel.SetTracerProvider(tp)
		}

		db, err := cliutil.SetupDatabase(cctx.String("database-url"), cctx.Int("max-db-connections"))
		if err != nil {
			return err
		}

		srv, err := NewServer(db, Config{
			Logger:               logger,
			InstanceURL:          cctx.String("instance-url"),
			AdminToken:           cctx.String("admin-token"),
			RedisURL:             cctx.String("redis-url"),
			WebhookSecret:        cctx.String("webhook-secret"),
			SetsFileJSON:         cctx.String("sets-file-json"),
			ScanInterval:         cctx.Duration("scan-interval"),
			PageSize:             cctx.Int("page-size"),
			MaxPagesPerCycle:     cctx.Int("max-pages-per-cycle"),
			ScanConcurrency:      cctx.Int("scan-concurrency"),
			RuleCacheTTL:         cctx.Duration("rule-cache-ttl"),
			DedupeRetention:      cctx.Duration("dedupe-retention"),
			DailyActionQuota:     cctx.Int("daily-action-quota"),
			SilenceDuration:      cctx.Duration("silence-duration"),
			DryRun:               cctx.Bool("dry-run"),
			ForwardRemoteReports: cctx.Bool("forward-remote-reports"),
		})
		if err != nil {
			return err
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		if err := srv.Run(ctx, cctx.String("bind")); err != nil {
			return fmt.Errorf("failed to run moderation service: %w", err)
		}
		return nil
	},
}
