package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/det-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher"
)

func newBuildCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "build <path>",
		Short: "Build the search index of a document directory",
		Long: `Reads every page.<N>.json file in <path> and writes a fresh index to
<path>/search-index, replacing any previous index.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			report, err := indexer.NewBuilder(a.cfg.Indexer, nil).Build(ctx, args[0])
			if err != nil {
				return err
			}
			queryCache, _, closeCache := a.openCache()
			defer closeCache()
			if err := searcher.New(a.cfg.Indexer, nil, queryCache).InvalidateCache(ctx, args[0]); err != nil {
				slog.Warn("cache invalidation failed", "error", err)
			}
			slog.Info("index built", "index_dir", report.IndexDir, "units", report.Units, "terms", report.Terms)
			return nil
		},
	}
}
