package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"whatsapp-relay/internal/api"
	"whatsapp-relay/internal/config"
	"whatsapp-relay/internal/history"
	"whatsapp-relay/internal/messaging"
	"whatsapp-relay/internal/metrics"
	"whatsapp-relay/internal/relay"
	"whatsapp-relay/internal/webhook"
)

// @title WhatsApp Relay API
// @version 1.0
// @description Webhook receiver and outbound relay for the WhatsApp Cloud API
// @host localhost:3000
// @BasePath /
// @schemes http
func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "whatsapp-relay",
		Short:         "WhatsApp Cloud API webhook receiver and message relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to yaml config (optional)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg)
	metrics.Init()

	if missing := cfg.Missing(); len(missing) > 0 {
		logger.Warn().
			Str("missing", strings.Join(missing, ", ")).
			Msg("required environment variables missing, whatsapp functionality will be limited")
	}

	store := history.New(cfg.History.Capacity)

	hookCfg := webhook.Config{
		VerifyToken: cfg.WhatsApp.VerifyToken,
		Store:       store,
		Logger:      logger.With().Str("component", "webhook").Logger(),
	}

	if cfg.RabbitMQ.URL != "" {
		rabbitClient, err := messaging.NewRabbitClient(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, logger.With().Str("component", "rabbitmq").Logger())
		if err != nil {
			return err
		}
		defer rabbitClient.Close()
		hookCfg.Publisher = rabbitClient
		logger.Info().Str("queue", cfg.RabbitMQ.Queue).Msg("RabbitMQ connected")
	}

	sender := relay.NewClient(relay.Config{
		BaseURL:       cfg.WhatsApp.APIBaseURL,
		AccessToken:   cfg.WhatsApp.AccessToken,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		Timeout:       cfg.WhatsApp.Timeout,
		Logger:        logger.With().Str("component", "relay").Logger(),
	})

	apiHandler := api.NewAPI(store, sender, webhook.NewHandler(hookCfg), cfg, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiHandler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.WhatsApp.Timeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful Shutdown Setup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Int("port", cfg.Server.Port).
			Bool("verify_token", cfg.WhatsApp.VerifyToken != "").
			Bool("whatsapp_token", cfg.WhatsApp.AccessToken != "").
			Bool("phone_number_id", cfg.WhatsApp.PhoneNumberID != "").
			Int("history_capacity", store.Cap()).
			Msg("starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info().Msg("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown error")
	}

	logger.Info().Msg("graceful shutdown complete")
	return nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Log.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
