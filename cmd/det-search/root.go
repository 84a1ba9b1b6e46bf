package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/det-search/internal/filterjob"
	"github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/det-search/pkg/redis"
)

var errNoCommand = errors.New("a command is required")

// app carries the state shared by all subcommands once flags are parsed.
type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "det-search",
		Short: "Keyword search over extracted PDF pages",
		Long: `det-search indexes the page.<N>.json files of a document directory and
answers keyword queries against that index.

Keywords are AND-ed. A keyword prefixed with "_" excludes units containing it.
A "table:" or "text:" prefix restricts that keyword and all following ones to
table or text content.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return a.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = false
			return errNoCommand
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newBuildCmd(a),
		newSearchCmd(a),
		newWorkerCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, nil)
	a.cfg = cfg
	return nil
}

// openCache connects to Redis when enabled. An unreachable Redis disables
// caching rather than failing the command.
func (a *app) openCache() (*cache.QueryCache, *pkgredis.Client, func()) {
	if !a.cfg.Redis.Enabled {
		return nil, nil, func() {}
	}
	client, err := pkgredis.NewClient(a.cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "addr", a.cfg.Redis.Addr, "error", err)
		return nil, nil, func() {}
	}
	return cache.New(client, a.cfg.Redis.CacheTTL), client, func() { client.Close() }
}

// openStore returns the Postgres-backed run store when enabled and an
// in-memory store otherwise. The client is nil for the in-memory store.
func (a *app) openStore(ctx context.Context) (filterjob.Store, *postgres.Client, error) {
	if !a.cfg.Postgres.Enabled {
		return filterjob.NewMemoryStore(), nil, nil
	}
	db, err := postgres.New(ctx, a.cfg.Postgres)
	if err != nil {
		return nil, nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return filterjob.NewPGStore(db), db, nil
}
