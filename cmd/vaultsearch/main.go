package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/rhagen/vaultsearch-mcp/internal/config"
	"github.com/rhagen/vaultsearch-mcp/internal/embedder"
	"github.com/rhagen/vaultsearch-mcp/internal/indexer"
	"github.com/rhagen/vaultsearch-mcp/internal/mcp"
	"github.com/rhagen/vaultsearch-mcp/internal/notes"
	"github.com/rhagen/vaultsearch-mcp/internal/tracker"
	"github.com/rhagen/vaultsearch-mcp/internal/vectorstore"
	"github.com/rhagen/vaultsearch-mcp/internal/watcher"
	pkgconfig "github.com/rhagen/vaultsearch-mcp/pkg/config"
)

var version = "dev"

// Well-known filenames inside the index directory.
const (
	indexDBFile      = "vaultsearch.db"
	fingerprintsFile = "fingerprints.json"
	pidFile          = "vaultsearch.pid"
)

// app bundles the wired components behind each CLI command.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	reconciler *indexer.Reconciler
	store      vectorstore.Store
	lock       *indexer.PIDLock
}

// build loads configuration and wires the indexing pipeline. Logs go to
// stderr: stdout is reserved for MCP protocol traffic and command output.
func build(cmd *cli.Command) (*app, error) {
	cfg := config.NewDefault()
	if err := pkgconfig.LoadIfExists(cmd.String("config"), cfg); err != nil {
		return nil, err
	}
	// Flags win over file values.
	if path := cmd.String("vault"); path != "" {
		cfg.Vault.Path = path
	}
	if dir := cmd.String("index-dir"); dir != "" {
		cfg.Index.Dir = dir
	}
	if cfg.Index.Dir == "" && cfg.Vault.Path != "" {
		cfg.Index.Dir = filepath.Join(cfg.Vault.Path, ".vaultsearch")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))

	source := notes.NewSource(cfg.Vault.Path, cfg.Vault.Include, cfg.Vault.Exclude)
	store := vectorstore.NewSQLite(filepath.Join(cfg.Index.Dir, indexDBFile))
	trk := tracker.Load(filepath.Join(cfg.Index.Dir, fingerprintsFile))
	gateway := embedder.NewGateway(embedder.Config{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   cfg.Embedding.APIKey,
	})

	reconciler := indexer.New(source, store, gateway, trk, logger, indexer.Options{
		RebuildMode: cfg.Index.Rebuild,
	})

	return &app{
		cfg:        cfg,
		logger:     logger,
		reconciler: reconciler,
		store:      store,
		lock:       indexer.NewPIDLock(filepath.Join(cfg.Index.Dir, pidFile)),
	}, nil
}

// runServe reconciles the index, arms the watcher, and serves MCP on
// stdio. The watcher starts only after startup reconciliation finishes.
func runServe(ctx context.Context, cmd *cli.Command) error {
	a, err := build(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.store.Close() }()

	if err := a.lock.Acquire(); err != nil {
		if errors.Is(err, indexer.ErrAlreadyRunning) {
			a.logger.Info("serve: exiting", slog.String("reason", err.Error()))
			return nil
		}
		return err
	}
	defer a.lock.Release()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := a.reconciler.Startup(ctx)
	if err != nil {
		return fmt.Errorf("startup reconciliation: %w", err)
	}
	a.logger.Info("serve: index ready",
		slog.Int("indexed", summary.Indexed),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed))

	if a.cfg.Watch.Enabled {
		source := notes.NewSource(a.cfg.Vault.Path, a.cfg.Vault.Include, a.cfg.Vault.Exclude)
		coalescer := watcher.NewCoalescer(a.reconciler, a.cfg.Watch.Debounce, a.logger)
		go func() {
			if err := watcher.Watch(ctx, source, coalescer, a.logger); err != nil {
				a.logger.Error("serve: watcher failed", slog.String("error", err.Error()))
			}
		}()
	}

	server := mcp.NewServer(a.reconciler, a.logger)
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("serve: MCP server listening on stdio",
			slog.String("version", version))
		errCh <- server.Serve(ctx)
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("serve: shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}

// runIndex performs a one-shot indexing run.
func runIndex(ctx context.Context, cmd *cli.Command) error {
	a, err := build(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.store.Close() }()

	if err := a.lock.Acquire(); err != nil {
		if errors.Is(err, indexer.ErrAlreadyRunning) {
			a.logger.Info("index: exiting", slog.String("reason", err.Error()))
			return nil
		}
		return err
	}
	defer a.lock.Release()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var summary interface{}
	if cmd.Bool("force") {
		if err := a.reconciler.Clear(ctx); err != nil {
			return err
		}
		summary, err = a.reconciler.IndexAll(ctx, true)
	} else {
		summary, err = a.reconciler.Startup(ctx)
	}
	if err != nil {
		return err
	}
	return printJSON(summary)
}

// runSearch performs an ad-hoc semantic query against the index.
func runSearch(ctx context.Context, cmd *cli.Command) error {
	a, err := build(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.store.Close() }()

	results, err := a.reconciler.Search(ctx, cmd.String("query"),
		int(cmd.Int("limit")), cmd.Float("min-score"))
	if err != nil {
		return err
	}
	return printJSON(results)
}

// runStats prints index statistics.
func runStats(ctx context.Context, cmd *cli.Command) error {
	a, err := build(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.store.Close() }()

	stats, err := a.reconciler.Stats(ctx)
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func main() {
	sharedFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to config file",
			Value:   "vaultsearch.yaml",
			Sources: cli.EnvVars("VAULTSEARCH_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "vault",
			Usage:   "Path to the Markdown vault",
			Sources: cli.EnvVars("VAULTSEARCH_VAULT"),
		},
		&cli.StringFlag{
			Name:    "index-dir",
			Usage:   "Directory holding the index, fingerprints, and PID file",
			Sources: cli.EnvVars("VAULTSEARCH_INDEX_DIR"),
		},
	}

	cmd := &cli.Command{
		Name:    "vaultsearch",
		Usage:   "Semantic search over a Markdown note vault, served over MCP",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Reconcile the index, watch the vault, and serve MCP on stdio",
				Flags:  sharedFlags,
				Action: runServe,
			},
			{
				Name:  "index",
				Usage: "Run the indexing pipeline once and exit",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Rebuild the index from scratch",
					},
				}, sharedFlags...),
				Action: runIndex,
			},
			{
				Name:  "search",
				Usage: "Query the index from the command line",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "Search query",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum results",
						Value: 10,
					},
					&cli.FloatFlag{
						Name:  "min-score",
						Usage: "Minimum cosine similarity",
					},
				}, sharedFlags...),
				Action: runSearch,
			},
			{
				Name:   "stats",
				Usage:  "Print index statistics",
				Flags:  sharedFlags,
				Action: runStats,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("vaultsearch failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
