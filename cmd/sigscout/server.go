package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mlavrik/sigscout/internal/agent"
	"github.com/mlavrik/sigscout/internal/api"
	"github.com/mlavrik/sigscout/internal/config"
	"github.com/mlavrik/sigscout/internal/orchestrator"
	"github.com/mlavrik/sigscout/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sigscout server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sigscout system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "sigscout version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	signalLog := storage.NewSignalLog(cfg.SignalLogPath())

	// Build the scan service on top of the assistant client.
	agentClient := agent.New(cfg.Agent.APIKey, agent.WithBaseURL(cfg.Agent.BaseURL))
	scanner, err := orchestrator.New(agentClient, signalLog, store, orchestrator.Config{
		AssistantID:  cfg.Agent.AssistantID,
		PollInterval: cfg.Agent.PollInterval,
		PollTimeout:  cfg.Agent.PollTimeout,
	})
	if err != nil {
		return fmt.Errorf("building scan service: %w", err)
	}

	deps := api.Deps{
		Scanner: scanner,
		Log:     signalLog,
		Archive: store,
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewHandler(deps),
	}

	stdioSrv := server.NewStdioServer(api.NewMCPServer(deps))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "sigscout listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// MCP server on stdio. Errors here do not take the HTTP server down.
	g.Go(func() error {
		slog.Info("MCP server started (stdio transport)")
		if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	// Check server health.
	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Assistant", "%s", cfg.Agent.AssistantID)

	// Show saved-signal count if the server is running.
	if running {
		savedResp, err := client.Get(serverURL + "/api/saved?limit=100")
		if err == nil {
			var saved []struct {
				ID string `json:"id"`
			}
			if decodeErr := decodeJSON(savedResp, &saved); decodeErr == nil {
				printStatus("Saved signals", "%s", countLabel(len(saved), 100))
			}
		}
	}

	// The CSV log lives on disk whether or not the server is up.
	if info, err := os.Stat(cfg.SignalLogPath()); err == nil && info.Size() > 0 {
		printStatus("Signal log", "%s (%d bytes)", cfg.SignalLogPath(), info.Size())
	} else {
		printStatus("Signal log", "empty")
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
