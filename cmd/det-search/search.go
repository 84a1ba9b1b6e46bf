package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher/merger"
)

func newSearchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <path> <keywords...>",
		Short: "Search the index of a document directory",
		Long: `Prints a JSON array of matching pages, best first:

  [{"page": 2, "cindex": [0, 3], "score": 1.6931}]

An empty array means nothing matched or no keyword was included.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			queryCache, _, closeCache := a.openCache()
			defer closeCache()

			pages, err := searcher.New(a.cfg.Indexer, nil, queryCache).Search(cmd.Context(), args[0], args[1:])
			if err != nil {
				return err
			}
			if pages == nil {
				pages = []merger.PageResult{}
			}
			data, err := json.Marshal(pages)
			if err != nil {
				return fmt.Errorf("encoding result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
