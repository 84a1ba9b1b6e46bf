package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/det-search/internal/filterjob"
	"github.com/Adithya-Monish-Kumar-K/det-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/metrics"
)

func newWorkerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume filter requests from Kafka and run them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runWorker(ctx)
		},
	}
}

func (a *app) runWorker(ctx context.Context) error {
	cfg := a.cfg
	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, m)
		defer shutdown(context.Background())
	}

	store, db, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	queryCache, _, closeCache := a.openCache()
	defer closeCache()

	results := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.FilterResults)
	defer results.Close()

	runner := filterjob.NewRunner(
		cfg.Search,
		indexer.NewBuilder(cfg.Indexer, m),
		searcher.New(cfg.Indexer, m, queryCache),
		store,
		results,
		m,
	)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.FilterRequests, filterjob.HandleMessage(runner))

	slog.Info("filter worker started",
		"brokers", cfg.Kafka.Brokers,
		"requests", cfg.Kafka.Topics.FilterRequests,
		"results", cfg.Kafka.Topics.FilterResults,
		"postgres", db != nil,
		"cache", queryCache != nil,
	)
	err = consumer.Run(ctx)
	slog.Info("filter worker stopped")
	return err
}
