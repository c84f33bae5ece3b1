package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"biabot/internal/backend"
	"biabot/internal/config"
	"biabot/internal/domain"
	"biabot/internal/extract"
	"biabot/internal/interpret"
	"biabot/internal/logging"
	"biabot/internal/metrics"
	"biabot/internal/notify"
	"biabot/internal/provider"
	"biabot/internal/queue"
	"biabot/internal/worker"

	"github.com/spf13/cobra"
)

func workerCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume queued WhatsApp messages and record transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(metricsAddr)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /health on this address (empty disables)")
	return cmd
}

func runWorker(metricsAddr string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger = logging.New(cfg.General.LogLevel, cfg.General.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	broker, err := queue.Open(cfg.Queue, logger)
	if err != nil {
		return err
	}
	defer broker.Close()

	client := backend.NewClient(backend.ClientConfig{Config: cfg.Backend, Logger: logger})

	prov := provider.NewClient(provider.ClientConfig{
		APIKey:  cfg.OpenAI.APIKey,
		APIBase: cfg.OpenAI.APIBase,
		Timeout: time.Duration(cfg.OpenAI.TimeoutSeconds) * time.Second,
		Logger:  logger,
	})

	categories, err := interpret.LoadCategories(cfg.OpenAI.CategoriesFile)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	interp := interpret.NewInterpreter(interpret.InterpreterConfig{
		Client:      prov,
		Model:       cfg.OpenAI.Model,
		Temperature: cfg.OpenAI.Temperature,
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Categories:  categories,
		Logger:      logger,
	})

	var extractor domain.TextExtractor
	if cfg.OCR.Enabled {
		extractor = extract.NewVisionExtractor(extract.VisionExtractorConfig{
			Client:    prov,
			Model:     cfg.OCR.Model,
			Language:  cfg.OCR.Language,
			Timeout:   time.Duration(cfg.OCR.TimeoutSeconds) * time.Second,
			BasicUser: cfg.Twilio.AccountSID,
			BasicPass: cfg.Twilio.AuthToken,
			MetaToken: cfg.Meta.AccessToken,
			Logger:    logger,
		})
	} else {
		logger.Info("receipt extraction disabled, image captions are used as-is")
	}

	notifier, err := buildNotifier(cfg)
	if err != nil {
		return err
	}

	pipeline := worker.NewPipeline(worker.PipelineConfig{
		Auth:       client,
		Extractor:  extractor,
		Interp:     interp,
		Ledger:     client,
		Notifier:   notifier,
		Logger:     logger,
		MaxRetries: cfg.Queue.MaxRetries,
		RetryDelay: time.Duration(cfg.Queue.RetryDelaySeconds) * time.Second,
	})

	deliveries, err := broker.Consume("biabot-worker")
	if err != nil {
		return err
	}

	var opsServer *http.Server
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		opsServer = &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server", "err", err)
			}
		}()
		logger.Info("metrics listening", "addr", metricsAddr)
	}

	// A broker-side close means the delivery channel is dead; exit so the
	// supervisor restarts the process with a fresh connection.
	brokerClosed := broker.NotifyClose()

	done := make(chan struct{})
	go func() {
		worker.RunPool(ctx, cfg.General.Workers, pipeline, deliveries, logger)
		close(done)
	}()

	logger.Info("worker started", "workers", cfg.General.Workers, "queue", cfg.Queue.Name)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down worker...")
	case amqpErr := <-brokerClosed:
		runErr = fmt.Errorf("broker connection lost: %v", amqpErr)
		logger.Error("broker connection lost", "err", amqpErr)
		stop()
	}

	// In-flight entries finish before the pool drains; give them a bound.
	select {
	case <-done:
		logger.Info("worker pool drained")
	case <-time.After(30 * time.Second):
		logger.Warn("worker pool drain timed out")
	}

	if opsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		opsServer.Shutdown(shutdownCtx)
	}

	return runErr
}

func buildNotifier(cfg *config.Config) (domain.Notifier, error) {
	switch cfg.General.Notifier {
	case "twilio":
		if cfg.Twilio.AccountSID == "" || cfg.Twilio.AuthToken == "" {
			return nil, fmt.Errorf("twilio notifier selected but twilio.accountSid/authToken are not set")
		}
		return notify.NewTwilio(notify.TwilioConfig{Config: cfg.Twilio, Logger: logger}), nil
	case "meta":
		if cfg.Meta.AccessToken == "" || cfg.Meta.PhoneNumberID == "" {
			return nil, fmt.Errorf("meta notifier selected but meta.accessToken/phoneNumberId are not set")
		}
		return notify.NewMeta(notify.MetaConfig{Config: cfg.Meta, Logger: logger}), nil
	default:
		return nil, fmt.Errorf("unknown notifier %q", cfg.General.Notifier)
	}
}
