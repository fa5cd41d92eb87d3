package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/server"
)

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lab portal API server",
	Long: `Start the HTTP server with REST API and WebSocket support.

API endpoints are under /api; live runs stream over /api/labs/{id}/ws.

Examples:
  vlab serve
  vlab serve --port 9090`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	svc, done, err := openService(context.Background())
	if err != nil {
		return err
	}
	defer done()

	log.Printf("Sandbox: %s backend, timeout %v", cfg.Sandbox.Backend, cfg.Sandbox.Timeout)

	// Determine port
	port := cfg.Server.Port
	if portFlag > 0 {
		port = portFlag
	}

	srv := server.New(svc, server.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RunsPerMinute:  cfg.Server.RateLimit.PerMinute,
		RunBurst:       cfg.Server.RateLimit.Burst,
		MaxConcurrent:  cfg.Server.RateLimit.MaxConcurrent,
	})

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		srv.Shutdown(context.Background())
	}()

	if err := srv.Start(port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
