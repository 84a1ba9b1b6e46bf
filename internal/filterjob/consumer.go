package filterjob

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/kafka"
)

// HandleMessage adapts a Runner to the filter-requests consumer. Messages
// that can never succeed (undecodable or invalid) are logged and committed.
// A run that could not be recorded is returned as an error; the consumer
// retries it and stops without committing if the store stays down. Rerunning
// a request is safe because MarkRunning upserts the run.
func HandleMessage(runner *Runner) kafka.MessageHandler {
	logger := slog.Default().With("component", "filter-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		req, err := kafka.DecodeJSON[Request](value)
		if err != nil {
			logger.Error("dropping undecodable filter request", "key", string(key), "error", err)
			return nil
		}
		if req.RunID == "" {
			req.RunID = string(key)
		}
		res, err := runner.Run(ctx, req)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				logger.Warn("dropping invalid filter request", "run_id", req.RunID, "error", verr)
				return nil
			}
			return err
		}
		logger.Debug("filter request handled", "run_id", res.RunID, "status", res.Status)
		return nil
	}
}
