// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-council/internal/secrets"
	"github.com/pdiddy/research-council/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Serve exposes runs, ideas, gates, council revision and resubmission,
snapshots and credentials over a JSON API (OpenAPI at /openapi.json, docs
at /docs). Runs started over HTTP are processed in the background; on
SIGINT or SIGTERM the server stops accepting requests and waits for
running batches up to server.shutdown_timeout.

The credential session starts locked unless --passphrase or
RESEARCH_COUNCIL_PASSPHRASE is set; POST /api/session/unlock unlocks it.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg.Server
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Addr = addr
	}
	if base, _ := cmd.Flags().GetString("base-path"); base != "" {
		cfg.BasePath = base
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	keyring := &secrets.Keyring{}
	if pass := viper.GetString("passphrase"); pass != "" {
		if _, err := keyring.Unlock(pass); err != nil {
			return err
		}
	}

	handler, err := server.New(server.Config{
		Service:   a.svc,
		Store:     a.store,
		Keyring:   keyring,
		Providers: a.providers,
		BasePath:  cfg.BasePath,
		Version:   version,
		Logger:    slog.Default(),
	})
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fmt.Printf("Serving research-council API on http://%s%s (OpenAPI at /openapi.json, docs at /docs)\n", cfg.Addr, cfg.BasePath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down", "timeout", cfg.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		if err := a.svc.Wait(shutdownCtx); err != nil {
			return fmt.Errorf("waiting for runs: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default server.addr, 127.0.0.1:8080)")
	serveCmd.Flags().String("base-path", "", "API base path (default server.base_path, /api)")

	rootCmd.AddCommand(serveCmd)
}
