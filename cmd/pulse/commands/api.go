package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantfeed/pulse/internal/api"
	"github.com/quantfeed/pulse/internal/api/handlers"
	"github.com/quantfeed/pulse/internal/api/ws"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the dashboard API server",
	Long: `Starts the REST API server for the performance dashboard.

Endpoints:
  GET  /health               - Health check
  GET  /api/performance      - Multi-point aggregates and trajectories
  GET  /api/snapshots        - List stored snapshots
  GET  /api/sectors          - Distinct sectors of a point
  GET  /api/history          - Recorded group history
  GET  /api/download/{id}    - Full export CSV
  POST /api/refresh          - Trigger a refresh run
  GET  /ws                   - Snapshot update notifications

Example:
  go run ./cmd/pulse api
  go run ./cmd/pulse api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Pulse API Server ===")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// 1. Wire config, storage and the market service
	st, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if apiPort != "" {
		st.cfg.Port = apiPort
	}

	log := st.logger
	log.WithFields(map[string]interface{}{
		"port": st.cfg.Port,
		"env":  st.cfg.Env,
	}).Info("Initializing API server")

	// 2. Create websocket hub and attach it to the refresh pipeline
	hub := ws.NewHub(log)
	defer hub.Close()
	st.service.WithNotifier(hub)

	// 3. Create handler
	marketHandler := handlers.NewMarketHandler(st.service, st.warehouse, st.db, st.cfg, log)

	// 4. Create router
	router := api.NewRouter(marketHandler, hub, log)

	// 5. Create server
	server := api.New(st.cfg, log, router)

	// 6. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("\nServer running on http://localhost:%s\n", st.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
