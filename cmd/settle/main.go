package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/settle/cmd/settle/cli"
	"github.com/odyssey-erp/settle/internal/app"
	"github.com/odyssey-erp/settle/internal/observability"
	"github.com/odyssey-erp/settle/internal/platform/cache"
	"github.com/odyssey-erp/settle/internal/platform/db"
	"github.com/odyssey-erp/settle/internal/settlement"
	"github.com/odyssey-erp/settle/internal/settlement/fxrate"
	settlementhttp "github.com/odyssey-erp/settle/internal/settlement/http"
	"github.com/odyssey-erp/settle/internal/settlement/submission"
	"github.com/odyssey-erp/settle/internal/settlement/vendor"
	"github.com/odyssey-erp/settle/jobs"
)

const usage = `usage: settle [command]

commands:
  serve                          run the HTTP service (default)
  rate resolve --date YYYY-MM-DD resolve the settlement rate for a date
  preview --file batch.json      aggregate a batch snapshot and check the gate
`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	switch cmd {
	case "serve":
		os.Exit(serve(ctx, stop))
	case "rate":
		os.Exit(rate(ctx, args))
	case "preview":
		os.Exit(preview(args))
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(cli.ExitError)
	}
}

func rate(ctx context.Context, args []string) int {
	if len(args) == 0 || args[0] != "resolve" {
		fmt.Fprint(os.Stderr, usage)
		return cli.ExitError
	}
	fs := flag.NewFlagSet("rate resolve", flag.ContinueOnError)
	date := fs.String("date", time.Now().UTC().Format("2006-01-02"), "payment date (YYYY-MM-DD)")
	jsonOut := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args[1:]); err != nil {
		return cli.ExitError
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return cli.ExitError
	}
	logger := app.NewLogger(cfg)

	var fallback fxrate.FallbackSource
	if redisClient, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("fallback rate cache unavailable", slog.Any("error", err))
	} else {
		defer func() { _ = redisClient.Close() }()
		fallback = fxrate.NewFallbackStore(redisClient, cfg.FXPair(), cfg.FXFallbackTTL)
	}
	resolver := app.NewRateResolver(cfg, fallback, logger, nil)
	return cli.RateCommand(ctx, resolver, cli.RateOptions{Date: *date, JSONOutput: *jsonOut})
}

func preview(args []string) int {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	file := fs.String("file", "-", "batch JSON file, - for stdin")
	jsonOut := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return cli.ExitError
	}
	return cli.PreviewCommand(cli.PreviewOptions{File: *file, JSONOutput: *jsonOut})
}

func serve(ctx context.Context, stop context.CancelFunc) int {
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return 1
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return 1
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessions := settlement.NewSessionStore()
	metrics := observability.NewMetrics(sessions.Len)

	fallback := fxrate.NewFallbackStore(redisClient, cfg.FXPair(), cfg.FXFallbackTTL)
	resolver := fxrate.NewSharedResolver(app.NewRateResolver(cfg, fallback, logger, fxrate.NewMetrics(metrics.Registerer())))
	balances := vendor.NewRepository(dbpool)
	submitter := submission.NewClient(cfg.SubmitURL, cfg.SubmitTimeout)
	settlementHandler := settlementhttp.NewHandler(logger, sessions, resolver, balances, submitter)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, cfg.FXPair(), logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SettlementHandler: settlementHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
		return 1
	}
	return 0
}
