package agent

import (
	"context"
	"log/slog"

	"github.com/sharpline/cardline/internal/domain"
)

// Batch parameters for the per-game agent stages.
const (
	DefaultBatchSize  = 5
	DefaultMaxRetries = 2
)

// BatchConfig tunes the batch-with-retry discipline.
type BatchConfig struct {
	BatchSize  int
	MaxRetries int
}

// DefaultBatchConfig returns the standard research/model batching.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{BatchSize: DefaultBatchSize, MaxRetries: DefaultMaxRetries}
}

// RunBatched drives one per-game agent stage: the games are split into
// batches, each batch is retried on empty or invalid output, and any game
// still missing after all batches gets a synthesized fallback record. The
// result always contains exactly one record per input game, keyed by the
// stage invariant downstream code relies on.
func RunBatched[T any](
	ctx context.Context,
	logger *slog.Logger,
	cfg BatchConfig,
	stage string,
	games []domain.Game,
	call func(ctx context.Context, batch []domain.Game) ([]T, error),
	gameID func(T) string,
	fallback func(domain.Game) T,
) []T {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	wanted := make(map[string]bool, len(games))
	for _, g := range games {
		wanted[g.ID] = true
	}

	produced := make(map[string]T, len(games))

	for start := 0; start < len(games); start += cfg.BatchSize {
		end := start + cfg.BatchSize
		if end > len(games) {
			end = len(games)
		}
		batch := games[start:end]

		for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
			records, err := call(ctx, batch)
			if err != nil {
				logger.Warn("batch call failed", "stage", stage,
					"batch_start", start, "attempt", attempt+1, "error", err)
				continue
			}

			accepted := 0
			for _, rec := range records {
				id := gameID(rec)
				if id == "" || !wanted[id] {
					continue
				}
				if _, dup := produced[id]; dup {
					continue
				}
				produced[id] = rec
				accepted++
			}
			if accepted > 0 {
				break
			}
			logger.Warn("batch returned no usable records", "stage", stage,
				"batch_start", start, "attempt", attempt+1)
		}
	}

	// Fallback insertion: every input game yields an output record.
	out := make([]T, 0, len(games))
	missing := 0
	for _, g := range games {
		if rec, ok := produced[g.ID]; ok {
			out = append(out, rec)
			continue
		}
		out = append(out, fallback(g))
		missing++
	}
	if missing > 0 {
		logger.Warn("fallback records synthesized", "stage", stage, "count", missing)
	}
	return out
}
