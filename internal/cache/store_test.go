package cache

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "test_cache.json"), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestStoreRoundTrip(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put("k", "2026-02-01", payload{Name: "duke", Count: 3}))

	var got payload
	require.True(t, s.Get("k", &got, SameDate("2026-02-01")))
	assert.Equal(t, payload{Name: "duke", Count: 3}, got)
}

func TestStoreMiss(t *testing.T) {
	s := newTestStore(t)
	var got payload
	assert.False(t, s.Get("absent", &got, SameDate("2026-02-01")))
}

func TestStoreValidityPolicies(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put("k", "2026-02-01", payload{Name: "x"}))

	var got payload
	assert.True(t, s.Get("k", &got, WithinTTL(time.Hour)))
	assert.False(t, s.Get("k", &got, WithinTTL(-time.Second)), "expired entry is a miss")
	assert.False(t, s.Get("k", &got, SameDate("2026-02-02")), "wrong date is a miss")
	assert.True(t, s.Get("k", &got, SameDateWithinTTL("2026-02-01", time.Hour)))
	assert.False(t, s.Get("k", &got, SameDateWithinTTL("2026-02-02", time.Hour)))
}

func TestStorePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	first := NewStore(path, logger)
	require.NoError(t, first.Put("k", "2026-02-01", payload{Name: "persisted"}))

	second := NewStore(path, logger)
	var got payload
	require.True(t, second.Get("k", &got, SameDate("2026-02-01")))
	assert.Equal(t, "persisted", got.Name)
}

func TestStoreCorruptFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := NewStore(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	var got payload
	assert.False(t, s.Get("k", &got, SameDate("2026-02-01")))

	// The store recovers: writes work after the corrupt read.
	require.NoError(t, s.Put("k", "2026-02-01", payload{Name: "fresh"}))
	require.True(t, s.Get("k", &got, SameDate("2026-02-01")))
}

func TestGameSetKeyOrderIndependent(t *testing.T) {
	a := GameSetKey([]string{"g1", "g2", "g3"}, "2026-02-01")
	b := GameSetKey([]string{"g3", "g1", "g2"}, "2026-02-01")
	assert.Equal(t, a, b)

	c := GameSetKey([]string{"g1", "g2"}, "2026-02-01")
	assert.NotEqual(t, a, c, "different game sets get different keys")

	d := GameSetKey([]string{"g1", "g2", "g3"}, "2026-02-02")
	assert.NotEqual(t, a, d, "different dates get different keys")
	assert.Len(t, a, 32)
}
