package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpline/cardline/internal/domain"
)

type stubRecord struct {
	ID   string
	Note string
}

func testGames(n int) []domain.Game {
	games := make([]domain.Game, n)
	for i := range games {
		games[i] = domain.Game{ID: fmt.Sprintf("game_%d", i)}
	}
	return games
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func stubFallback(g domain.Game) stubRecord {
	return stubRecord{ID: g.ID, Note: "fallback"}
}

func TestRunBatchedHappyPath(t *testing.T) {
	games := testGames(12)
	var batchSizes []int

	out := RunBatched(context.Background(), discardLogger(), DefaultBatchConfig(), "test", games,
		func(ctx context.Context, batch []domain.Game) ([]stubRecord, error) {
			batchSizes = append(batchSizes, len(batch))
			records := make([]stubRecord, len(batch))
			for i, g := range batch {
				records[i] = stubRecord{ID: g.ID, Note: "ok"}
			}
			return records, nil
		},
		func(r stubRecord) string { return r.ID },
		stubFallback)

	require.Len(t, out, 12)
	assert.Equal(t, []int{5, 5, 2}, batchSizes)
	for i, rec := range out {
		assert.Equal(t, games[i].ID, rec.ID, "output preserves input order")
		assert.Equal(t, "ok", rec.Note)
	}
}

func TestRunBatchedRetriesThenFallsBack(t *testing.T) {
	games := testGames(3)
	calls := 0

	out := RunBatched(context.Background(), discardLogger(), BatchConfig{BatchSize: 5, MaxRetries: 2}, "test", games,
		func(ctx context.Context, batch []domain.Game) ([]stubRecord, error) {
			calls++
			return nil, fmt.Errorf("model unavailable")
		},
		func(r stubRecord) string { return r.ID },
		stubFallback)

	assert.Equal(t, 3, calls, "initial attempt plus two retries")
	require.Len(t, out, 3)
	for _, rec := range out {
		assert.Equal(t, "fallback", rec.Note)
	}
}

func TestRunBatchedRetrySucceeds(t *testing.T) {
	games := testGames(2)
	attempt := 0

	out := RunBatched(context.Background(), discardLogger(), DefaultBatchConfig(), "test", games,
		func(ctx context.Context, batch []domain.Game) ([]stubRecord, error) {
			attempt++
			if attempt == 1 {
				return nil, fmt.Errorf("transient")
			}
			return []stubRecord{{ID: "game_0", Note: "ok"}, {ID: "game_1", Note: "ok"}}, nil
		},
		func(r stubRecord) string { return r.ID },
		stubFallback)

	require.Len(t, out, 2)
	assert.Equal(t, "ok", out[0].Note)
	assert.Equal(t, "ok", out[1].Note)
}

func TestRunBatchedFiltersUnknownAndDuplicateIDs(t *testing.T) {
	games := testGames(2)

	out := RunBatched(context.Background(), discardLogger(), DefaultBatchConfig(), "test", games,
		func(ctx context.Context, batch []domain.Game) ([]stubRecord, error) {
			return []stubRecord{
				{ID: "game_0", Note: "first"},
				{ID: "game_0", Note: "duplicate"},
				{ID: "hallucinated_game", Note: "invented"},
				{ID: "", Note: "anonymous"},
			}, nil
		},
		func(r stubRecord) string { return r.ID },
		stubFallback)

	require.Len(t, out, 2)
	assert.Equal(t, "first", out[0].Note, "first record wins over duplicates")
	assert.Equal(t, "fallback", out[1].Note, "missing game gets a fallback")
}

func TestRunBatchedPartialBatchGetsFallbacks(t *testing.T) {
	games := testGames(5)

	out := RunBatched(context.Background(), discardLogger(), BatchConfig{BatchSize: 5, MaxRetries: 0}, "test", games,
		func(ctx context.Context, batch []domain.Game) ([]stubRecord, error) {
			// Only three of five come back.
			return []stubRecord{
				{ID: "game_0", Note: "ok"},
				{ID: "game_2", Note: "ok"},
				{ID: "game_4", Note: "ok"},
			}, nil
		},
		func(r stubRecord) string { return r.ID },
		stubFallback)

	require.Len(t, out, 5)
	assert.Equal(t, "ok", out[0].Note)
	assert.Equal(t, "fallback", out[1].Note)
	assert.Equal(t, "ok", out[2].Note)
	assert.Equal(t, "fallback", out[3].Note)
	assert.Equal(t, "ok", out[4].Note)
}
