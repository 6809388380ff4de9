package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentcore/agentcore/pkg/agentcore/event"
	"github.com/agentcore/agentcore/pkg/agentcore/transport/ws"
)

const shutdownGrace = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the event Dispatcher and mirror every event over WebSocket",
	Long: `Wires an event Router and Dispatcher, registers the Correlation
Aggregator's store, and mounts a read-only WebSocket event mirror over
HTTP so external tools can observe dispatch traffic live.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8090", "HTTP address to listen on")
	serveCmd.Flags().String("ws-path", "/events", "Path the WebSocket mirror is mounted at")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := loadFileConfig(configPath)
	if err != nil {
		return err
	}
	envCfg, err := loadEnv()
	if err != nil {
		return err
	}

	aggregatorStore, err := buildAggregatorStore(cfg, envCfg, logger)
	if err != nil {
		return err
	}

	router := event.NewRouter()
	mirror := ws.NewMirror(ws.WithLogger(logger))
	router.Register(mirror)

	onComplete := event.OnComplete(func(_ context.Context, correlationKey string, events []event.Event) ([]event.Event, error) {
		logger.Info("correlation complete", slog.String("correlation_key", correlationKey), slog.Int("event_count", len(events)))
		return nil, nil
	})
	neededTypes := cfg.StringSlice("aggregator_needed_types", nil)
	if len(neededTypes) > 0 {
		aggregatorHandler := event.NewCorrelationAggregator(neededTypes, aggregatorStore, onComplete)
		router.Register(aggregatorHandler)
	}

	dispatcher := event.NewDispatcher(router, event.WithDispatcherLogger(logger))

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go dispatcher.Run(ctx)

	addr, _ := cmd.Flags().GetString("addr")
	wsPath, _ := cmd.Flags().GetString("ws-path")

	mux := http.NewServeMux()
	mux.Handle(wsPath, mirror)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})

	server := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving", slog.String("addr", addr), slog.String("ws_path", wsPath))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}
