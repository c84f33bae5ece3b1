package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"biabot/internal/gateway"
	"biabot/internal/logging"
	"biabot/internal/queue"

	"github.com/spf13/cobra"
)

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Receive WhatsApp webhooks and publish them to the queue",
		Long:  "Serves the Twilio and Meta Cloud API webhook endpoints and publishes each inbound message to the work queue for the worker to consume.",
		RunE:  runGateway,
	}
}

func runGateway(cmd *cobra.Command, args []string) error {
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

	gw := gateway.New(gateway.GatewayConfig{
		Publisher: broker,
		Meta:      cfg.Meta,
		Logger:    logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      gw.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	logger.Info("gateway listening", "addr", addr)

	brokerClosed := broker.NotifyClose()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down gateway...")
	case err := <-errCh:
		runErr = fmt.Errorf("gateway server: %w", err)
	case amqpErr := <-brokerClosed:
		runErr = fmt.Errorf("broker connection lost: %v", amqpErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("gateway shutdown", "err", err)
	}

	return runErr
}
