package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"github.com/teemow/inboxrelay/internal/ai"
	"github.com/teemow/inboxrelay/internal/approval"
	"github.com/teemow/inboxrelay/internal/config"
	"github.com/teemow/inboxrelay/internal/cursor"
	"github.com/teemow/inboxrelay/internal/gmail"
	"github.com/teemow/inboxrelay/internal/google"
	"github.com/teemow/inboxrelay/internal/instrumentation"
	"github.com/teemow/inboxrelay/internal/logging"
	"github.com/teemow/inboxrelay/internal/poller"
	"github.com/teemow/inboxrelay/internal/server"
	"github.com/teemow/inboxrelay/internal/sheet"
	"github.com/teemow/inboxrelay/internal/telegram"
	"github.com/teemow/inboxrelay/internal/worker"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Relay unread email to Telegram and handle approvals",
		Long: `Start the relay. Three loops run until the process is interrupted:

  - the mailbox worker summarizes unread messages and posts them to Telegram
  - the poller reads button presses and resolves pending approvals
  - the sweeper expires approvals nobody answered

Required settings (flags, environment or config file):
  GEMINI_API_KEY, TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID, GMAIL_CLIENT_ID
and a stored Gmail token (see 'inboxrelay auth').`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration:\n%w", err)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runRelay(ctx, cfg, logger)
		},
	}

	cmd.Flags().String("account", "default", "Google account name whose token is used. Can also use GMAIL_ACCOUNT env var.")
	cmd.Flags().String("download-dir", "downloads", "Directory attachments are saved to. Can also use WORKER_DOWNLOAD_DIR env var.")
	cmd.Flags().Bool("metrics", true, "Serve metrics and health probes. Can also use METRICS_ENABLED env var.")
	cmd.Flags().String("metrics-addr", server.DefaultMetricsAddr, "Metrics and health server address. Can also use METRICS_ADDR env var.")
	cmd.Flags().String("cursor-backend", config.CursorMemory, "Where the poll cursor is kept: memory or redis. Can also use CURSOR_BACKEND env var.")

	return cmd
}

func runRelay(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	provider, err := instrumentation.NewProvider(ctx, cfg.Instrumentation(version))
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error during instrumentation shutdown", logging.Err(err))
		}
	}()
	metrics := provider.Metrics()

	tg, err := telegram.New(telegram.Config{
		Token:             cfg.Telegram.BotToken,
		ChatID:            cfg.Telegram.ChatID,
		BaseURL:           cfg.Telegram.BaseURL,
		MessagesPerSecond: cfg.Telegram.MessagesPerSecond,
		Logger:            logger,
		Metrics:           metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create Telegram client: %w", err)
	}

	googleCfg := googleConfig(cfg)
	if !google.HasToken(googleCfg) {
		return fmt.Errorf("%w for account %q: run 'inboxrelay auth' first", google.ErrNoToken, cfg.Gmail.Account)
	}
	httpClient, err := google.HTTPClient(ctx, googleCfg)
	if err != nil {
		return fmt.Errorf("failed to create Google HTTP client: %w", err)
	}
	mail, err := gmail.NewClient(ctx, gmail.Config{
		Query:       cfg.Gmail.Query,
		MaxMessages: cfg.Gmail.MaxMessages,
		Logger:      logger,
		Metrics:     metrics,
	}, option.WithHTTPClient(httpClient))
	if err != nil {
		return fmt.Errorf("failed to create Gmail client: %w", err)
	}

	gen, err := ai.NewGemini(ctx, ai.GeminiConfig{APIKey: cfg.Gemini.APIKey, Model: cfg.Gemini.Model})
	if err != nil {
		return err
	}
	summarizer := ai.NewSummarizer(gen, ai.SummarizerConfig{
		Language:         cfg.Gemini.Language,
		Timeout:          cfg.Gemini.Timeout,
		FailureThreshold: cfg.Gemini.BreakerFailures,
		OpenTimeout:      cfg.Gemini.BreakerOpenFor,
		Logger:           logger,
		Metrics:          metrics,
	})

	coordinator := approval.NewCoordinator(
		approval.NewStore(approval.StoreConfig{Timeout: cfg.Approval.Timeout, Logger: logger}),
		approval.CoordinatorConfig{Logger: logger, Metrics: metrics},
	)

	processor := sheet.New(sheet.Config{Logger: logger})
	w, err := worker.New(worker.Config{
		Source:      mail,
		Notifier:    tg,
		Approvals:   coordinator,
		Checker:     processor,
		Editor:      processor,
		Summarizer:  summarizer,
		DownloadDir: cfg.Worker.DownloadDir,
		Interval:    cfg.Worker.Interval,
		Suffix:      cfg.Worker.Suffix,
		Logger:      logger,
		Metrics:     metrics,
	})
	if err != nil {
		return err
	}
	w.RegisterActions(coordinator)

	cur, closeCursor, err := newCursorStore(ctx, cfg.Cursor)
	if err != nil {
		return err
	}
	defer closeCursor()

	p := poller.New(poller.Config{
		Transport:       tg,
		Notifier:        tg,
		Resolver:        coordinator,
		Cursor:          cur,
		Wait:            cfg.Telegram.PollWait,
		Interval:        cfg.Telegram.PollInterval,
		ConflictBackoff: cfg.Telegram.ConflictBackoff,
		ErrorBackoff:    cfg.Telegram.ErrorBackoff,
		Logger:          logger,
		Metrics:         metrics,
		Audit:           provider.Audit(logger),
	})

	health := server.NewHealthChecker()
	health.AddCheck("poller", func() error {
		if !p.Running() {
			return errors.New("stopped")
		}
		return nil
	})
	health.AddGauge("pending_approvals", coordinator.Pending)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		ops, err := server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.Metrics.Addr,
			InstrumentationProvider: provider,
			Health:                  health,
			Logger:                  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		g.Go(ops.Start)
		g.Go(func() error {
			<-gctx.Done()
			health.SetShuttingDown()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
			defer cancel()
			return ops.Shutdown(shutdownCtx)
		})
	}

	p.Start(gctx)
	done := p.Done()
	g.Go(func() error {
		<-gctx.Done()
		p.Stop()
		<-done
		return nil
	})

	g.Go(func() error {
		coordinator.RunSweeper(gctx, cfg.Approval.SweepInterval, func(req *approval.Request) {
			w.NotifyExpired(gctx, req)
		})
		return nil
	})

	g.Go(func() error {
		if err := w.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	logger.Info("relay started",
		slog.String("version", version),
		slog.String("cursor_backend", cfg.Cursor.Backend),
		logging.Duration(cfg.Worker.Interval))

	err = g.Wait()
	logger.Info("relay stopped", slog.Int("pending_approvals", coordinator.Pending()))
	return err
}

func googleConfig(cfg *config.Config) google.Config {
	return google.Config{
		ClientID:     cfg.Gmail.ClientID,
		ClientSecret: cfg.Gmail.ClientSecret,
		TokenDir:     cfg.Gmail.TokenDir,
		Account:      cfg.Gmail.Account,
	}
}

// newCursorStore opens the configured poll cursor backend. The returned
// function releases it.
func newCursorStore(ctx context.Context, cfg config.CursorConfig) (cursor.Store, func(), error) {
	if cfg.Backend != config.CursorRedis {
		return cursor.NewMemory(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	return cursor.NewRedis(client, cfg.Key), func() { _ = client.Close() }, nil
}
