package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/data4good/owl/internal/api"
	"github.com/data4good/owl/internal/cache"
	"github.com/data4good/owl/internal/config"
	"github.com/data4good/owl/internal/gemini"
	"github.com/data4good/owl/internal/pipeline"
	"github.com/data4good/owl/internal/similarity"
	"github.com/data4good/owl/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the owl server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		debug, _ := cmd.Flags().GetBool("debug")
		return runServer(withMCP, debug)
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also expose the MCP tools over stdio")
	serveCmd.Flags().Bool("debug", false, "include raw error detail in API responses")
}

func runServer(withMCP, debug bool) error {
	fmt.Fprintf(os.Stderr, "owl version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	if cfg.Similarity.URL == "" {
		printWarning("no similarity endpoint configured; retrieval will fail until OWL_SIMILARITY_URL is set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open submission history.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Build the answer pipeline: similarity client (optionally cached),
	// Gemini client, controller.
	var retriever pipeline.Retriever = similarity.New(cfg.Similarity.URL)
	if cfg.Cache.Enabled {
		retriever = cache.New(retriever, cfg.Cache.Size, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
	}

	generator := gemini.NewClient(cfg.Gemini.APIKey)
	controller := pipeline.New(retriever, generator, "", pipeline.Defaults{
		K:            cfg.Pipeline.DefaultK,
		Model:        cfg.Gemini.DefaultModel,
		Temperature:  cfg.Pipeline.DefaultTemperature,
		ContextLimit: cfg.Pipeline.ContextLimitChars,
	})

	handler := api.NewHandler(api.Deps{
		Pipeline: controller,
		Store:    store,
		Token:    cfg.Server.APIToken,
		Debug:    debug,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Optionally expose the MCP tools over stdio.
	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Pipeline:  controller,
			Retriever: retriever,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "owl listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
