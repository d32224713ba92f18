package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bluesky-social/kyupikon/bot/annotate"
	"github.com/bluesky-social/kyupikon/bot/consumer"
	"github.com/bluesky-social/kyupikon/bot/engine"
	"github.com/bluesky-social/kyupikon/bot/keyword"
	"github.com/bluesky-social/kyupikon/bot/rotator"
	"github.com/bluesky-social/kyupikon/bot/rules"
	"github.com/bluesky-social/kyupikon/bot/setstore"
	"github.com/bluesky-social/kyupikon/platform"
	"github.com/bluesky-social/kyupikon/platform/auth"
	"github.com/bluesky-social/kyupikon/platform/rest"
	"github.com/bluesky-social/kyupikon/util"
	"github.com/bluesky-social/kyupikon/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	_ "go.uber.org/automaxprocs"
	"golang.org/x/time/rate"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "kyupikon",
		Usage:   "reply bot daemon (きゅぴこん)",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			Value:   "info",
			EnvVars: []string{"KYUPIKON_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "credentials",
			Usage:   "path to YAML credential file (app key, secret and tokens)",
			Value:   ".oauth_secrets.yaml",
			EnvVars: []string{"KYUPIKON_CREDENTIALS"},
		},
		&cli.StringFlag{
			Name:    "api-host",
			Usage:   "method, hostname, and port of the platform API",
			Value:   "https://api.example.com",
			EnvVars: []string{"KYUPIKON_API_HOST"},
		},
		&cli.StringFlag{
			Name:    "stream-host",
			Usage:   "hostname and port of the event stream (ws:// or wss:// optional)",
			Value:   "wss://stream.example.com",
			EnvVars: []string{"KYUPIKON_STREAM_HOST"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database for bot state, when redis is not configured (sqlite:// or postgres://)",
			Value:   "sqlite://data/kyupikon/bot.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   10,
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL; when set, bot state is kept in redis instead of the database",
			EnvVars: []string{"KYUPIKON_REDIS_URL"},
		},
		&cli.BoolFlag{
			Name:    "enable-db-tracing",
			Usage:   "trace database queries with OpenTelemetry",
			EnvVars: []string{"KYUPIKON_ENABLE_DB_TRACING"},
		},
		&cli.BoolFlag{
			Name:    "debug",
			Usage:   "dry-run: log platform actions instead of performing them",
			EnvVars: []string{"KYUPIKON_DEBUG"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
		authorizeCmd,
		resetCountersCmd,
		queueCmd,
		policyCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the bot: stream consumer, scheduled jobs, and admin API",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:    "reply-ceiling",
			Usage:   "maximum fallback replies per user until counters are reset",
			Value:   engine.DefaultReplyCeiling,
			EnvVars: []string{"KYUPIKON_REPLY_CEILING"},
		},
		&cli.DurationFlag{
			Name:    "post-interval",
			Usage:   "how often to post scheduled content (0 disables)",
			Value:   15 * time.Minute,
			EnvVars: []string{"KYUPIKON_POST_INTERVAL"},
		},
		&cli.DurationFlag{
			Name:    "favorite-scan-interval",
			Usage:   "DEPRECATED: how often to search and favorite matching content (0 disables)",
			Value:   0,
			EnvVars: []string{"KYUPIKON_FAVORITE_SCAN_INTERVAL"},
		},
		&cli.StringFlag{
			Name:    "favorite-scan-query",
			Usage:   "search query for the favorite scan",
			Value:   "きゅぴこん",
			EnvVars: []string{"KYUPIKON_FAVORITE_SCAN_QUERY"},
		},
		&cli.IntFlag{
			Name:    "favorite-scan-limit",
			Usage:   "maximum search results per favorite scan",
			Value:   100,
			EnvVars: []string{"KYUPIKON_FAVORITE_SCAN_LIMIT"},
		},
		&cli.IntFlag{
			Name:    "recent-post-window",
			Usage:   "number of own recent posts checked to avoid repeating content",
			Value:   rotator.DefaultRecentWindow,
			EnvVars: []string{"KYUPIKON_RECENT_POST_WINDOW"},
		},
		&cli.IntFlag{
			Name:    "rotation-expansion",
			Usage:   "maximum repetitions of a stem+mark unit in generated content",
			Value:   1,
			EnvVars: []string{"KYUPIKON_ROTATION_EXPANSION"},
		},
		&cli.IntFlag{
			Name:    "photo-size-limit",
			Usage:   "encoded size budget for signed images, in bytes (0 asks the platform)",
			Value:   0,
			EnvVars: []string{"KYUPIKON_PHOTO_SIZE_LIMIT"},
		},
		&cli.StringFlag{
			Name:    "signature-image",
			Usage:   "path to the signature overlay image; signing is disabled if unset",
			EnvVars: []string{"KYUPIKON_SIGNATURE_IMAGE"},
		},
		&cli.StringFlag{
			Name:    "work-dir",
			Usage:   "directory for downloaded and signed media",
			Value:   "var/",
			EnvVars: []string{"KYUPIKON_WORK_DIR"},
		},
		&cli.StringSliceFlag{
			Name:    "mention-keywords",
			Usage:   "keywords which trigger replies to messages not addressed to the bot",
			Value:   cli.NewStringSlice("きゅぴこん", "キュピコン", "ななみちゃん", "白井ななみ", "kyupikon"),
			EnvVars: []string{"KYUPIKON_MENTION_KEYWORDS"},
		},
		&cli.StringFlag{
			Name:    "deny-favorites-json",
			Usage:   "path to JSON file of sets to import at startup (eg, deny-favorite handles)",
			EnvVars: []string{"KYUPIKON_DENY_FAVORITES_JSON"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for the admin API",
			Value:   ":3010",
			EnvVars: []string{"KYUPIKON_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3011",
			EnvVars: []string{"KYUPIKON_METRICS_LISTEN"},
		},
		&cli.Float64Flag{
			Name:    "api-rate-limit",
			Usage:   "max requests per second to the platform API",
			Value:   2,
			EnvVars: []string{"KYUPIKON_API_RATE_LIMIT"},
		},
		&cli.StringFlag{
			Name:    "admin-password",
			Usage:   "secret password for accessing admin endpoints (random is used if not set)",
			EnvVars: []string{"KYUPIKON_ADMIN_PASSWORD"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "full URL of slack webhook for operator notifications",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
	},
	Action: runBot,
}

func runBot(cctx *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := cliutil.ConfigLogger(cctx, os.Stdout)
	shutdownOTEL := configOTEL(logger, "kyupikon")
	defer shutdownOTEL()

	credPath := cctx.String("credentials")
	creds, err := auth.LoadCredentials(credPath)
	if err != nil {
		return err
	}
	if err := creds.Validate(); err != nil {
		return err
	}
	if creds.Handle == "" {
		return fmt.Errorf("credential file has no account handle; run the authorize command again")
	}

	stores, err := storesFromCLI(cctx)
	if err != nil {
		return err
	}
	if p := cctx.String("deny-favorites-json"); p != "" {
		n, err := setstore.ImportJSON(ctx, stores.Sets, p)
		if err != nil {
			return fmt.Errorf("importing sets: %w", err)
		}
		logger.Info("loaded set config from JSON", "path", p, "values", n)
	}

	apiHost := cctx.String("api-host")
	base := util.RobustHTTPClientWithLogger(logger.With("system", "http"))
	base.Transport = otelhttp.NewTransport(base.Transport)
	ts := auth.NewTokenSource(ctx, auth.OAuthConfig(creds, apiHost), creds, credPath, base, logger)
	httpc := auth.NewHTTPClient(ctx, ts, base)
	httpc.Timeout = base.Timeout

	// media URLs come from inbound messages, so they are fetched through a public-only client
	restc := &rest.Client{
		Client:      httpc,
		Host:        apiHost,
		Limiter:     rate.NewLimiter(rate.Limit(cctx.Float64("api-rate-limit")), 1),
		SelfHandle:  creds.Handle,
		MediaClient: rest.PublicMediaClient(base.Timeout),
	}
	var client platform.Client = restc
	dryRun := cctx.Bool("debug")
	if dryRun {
		logger.Warn("debug mode: platform actions will be logged, not performed")
		client = platform.NewDryRunClient(restc, logger)
	}

	var annotator *annotate.Annotator
	if p := cctx.String("signature-image"); p != "" {
		annotator, err = annotate.LoadSignature(p)
		if err != nil {
			return err
		}
	} else {
		logger.Warn("no signature image configured; image signing disabled")
	}

	var notifier engine.Notifier
	if u := cctx.String("slack-webhook-url"); u != "" {
		notifier = &engine.SlackNotifier{SlackWebhookURL: u, Client: util.RobustHTTPClient()}
	}

	rot := rotator.NewRotator(stores.Queues, stores.Cache, client.FetchRecentOwnPosts, logger.With("system", "rotator"), rotator.Config{
		Expansion:    cctx.Int("rotation-expansion"),
		RecentWindow: cctx.Int("recent-post-window"),
	})

	eng := &engine.Engine{
		Logger:    logger,
		Rules:     rules.DefaultRules(),
		Policies:  stores.Policies,
		Sets:      stores.Sets,
		Rotator:   rot,
		Client:    client,
		Annotator: annotator,
		Keywords:  keyword.NewMatcher(cctx.StringSlice("mention-keywords")),
		Notifier:  notifier,
		Config: engine.Config{
			SelfHandle:     creds.Handle,
			ReplyCeiling:   cctx.Int("reply-ceiling"),
			PhotoSizeLimit: cctx.Int("photo-size-limit"),
			WorkDir:        cctx.String("work-dir"),
			DryRun:         dryRun,
		},
	}

	con := &consumer.Consumer{
		Logger:      logger.With("system", "consumer"),
		Host:        cctx.String("stream-host"),
		SelfHandle:  creds.Handle,
		TokenSource: ts,
		Callbacks: consumer.StreamCallbacks{
			Status: eng.ProcessMessage,
			Follow: eng.ProcessFollow,
		},
	}

	adminPassword := cctx.String("admin-password")
	if adminPassword == "" {
		var rblob [10]byte
		_, _ = rand.Read(rblob[:])
		adminPassword = base64.URLEncoding.EncodeToString(rblob[:])
		logger.Info("generated random admin password", "username", "admin", "password", adminPassword)
	}

	srv, err := NewServer(eng, con, stores, Config{
		Logger:               logger,
		Bind:                 cctx.String("bind"),
		AdminPassword:        adminPassword,
		PostInterval:         cctx.Duration("post-interval"),
		FavoriteScanInterval: cctx.Duration("favorite-scan-interval"),
		FavoriteScanQuery:    cctx.String("favorite-scan-query"),
		FavoriteScanLimit:    cctx.Int("favorite-scan-limit"),
	})
	if err != nil {
		return fmt.Errorf("failed to construct server: %w", err)
	}

	go func() {
		if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
			slog.Error("failed to start metrics endpoint", "error", err)
			panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
		}
	}()

	logger.Info("starting bot", "handle", creds.Handle, "version", versioninfo.Short(), "dryrun", dryRun)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("failed to run bot: %w", err)
	}
	return nil
}
