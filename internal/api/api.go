// Package api provides the HTTP surface and main server bootstrap for ShiftDesk.
//
// It exposes RESTful endpoints for recording clinic shifts and reading
// schedules, and wires the messaging transport, the status flow and the
// store together.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avolkov/shiftdesk/internal/flow"
	"github.com/avolkov/shiftdesk/internal/lockfile"
	"github.com/avolkov/shiftdesk/internal/messaging"
	"github.com/avolkov/shiftdesk/internal/store"
	"github.com/avolkov/shiftdesk/internal/twiliowhatsapp"
	"github.com/avolkov/shiftdesk/internal/whatsapp"
)

// Default server configuration.
const (
	DefaultAddr            = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
)

// ProviderEnvVar selects the messaging transport ("whatsapp" or "twilio").
const ProviderEnvVar = "SHIFTDESK_MESSAGING_PROVIDER"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr     string // HTTP listen address
	StateDir string // directory for the instance lock
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the HTTP listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithStateDir sets the state directory used for instance locking.
func WithStateDir(dir string) Option {
	return func(o *Opts) { o.StateDir = dir }
}

// Run boots the full service: instance lock, store, messaging transport,
// status flow, dispatcher and HTTP server. It blocks until SIGINT/SIGTERM
// and then shuts down cleanly.
func Run(waOpts []whatsapp.Option, storeOpts []store.Option, apiOpts []Option) error {
	var cfg Opts
	for _, opt := range apiOpts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	if cfg.StateDir != "" {
		lock, err := lockfile.AcquireLock(cfg.StateDir)
		if err != nil {
			return fmt.Errorf("failed to acquire instance lock: %w", err)
		}
		defer lock.Release()
	}

	st, err := store.New(storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	msgService, err := buildMessagingService(waOpts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := msgService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	defer msgService.Stop()

	statusFlow := flow.NewStatusFlow(st, flow.NewStoreBasedStateManager(st), msgService)
	dispatcher := messaging.NewDispatcher(msgService, statusFlow)
	dispatcher.Start(ctx)

	server := NewServer(st, msgService)
	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("ShiftDesk API listening", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("Shutting down on signal", "signal", sig)
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	cancel()
	<-dispatcher.Done()
	slog.Info("ShiftDesk stopped")
	return nil
}

// buildMessagingService selects the transport from ProviderEnvVar.
func buildMessagingService(waOpts []whatsapp.Option) (messaging.Service, error) {
	provider := os.Getenv(ProviderEnvVar)
	switch provider {
	case "twilio":
		slog.Info("Using Twilio messaging provider")
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, fmt.Errorf("failed to create Twilio client: %w", err)
		}
		return messaging.NewTwilioService(client), nil
	case "", "whatsapp":
		slog.Info("Using WhatsApp messaging provider")
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create WhatsApp client: %w", err)
		}
		return messaging.NewWhatsAppService(client), nil
	default:
		return nil, fmt.Errorf("unknown messaging provider %q", provider)
	}
}
