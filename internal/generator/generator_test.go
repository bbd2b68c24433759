package generator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/S0me0neR0man/quadstash/internal/index"
	"github.com/S0me0neR0man/quadstash/internal/quadkey"
	"github.com/S0me0neR0man/quadstash/internal/storage"
)

func TestGenerator_Run(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	path := filepath.Join(t.TempDir(), "gen.snapshot")

	store, err := storage.Open(storage.Options{Path: path, Compression: storage.CompressionLZ4}, logger)
	require.NoError(t, err)
	ins := index.NewInserter(store, logger)

	gen := New(ins, Options{
		Entities:      2000,
		MaxSizeMeters: 100,
		Workers:       4,
		Seed:          1,
		FlushInterval: 10 * time.Millisecond,
	}, logger)

	report, err := gen.Run(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2000, report.Entities)
	require.Zero(t, report.Exhausted)
	require.Equal(t, 2000, store.Len())
	require.Equal(t, ins.Stats().Duplicates, report.Duplicates)

	maxSize := quadkey.UnitsForMeters(100)
	err = store.Scan(ctx, nil, func(k, v []byte) bool {
		key, err := quadkey.ParseDbKey(k)
		require.NoError(t, err)
		value, err := quadkey.ParseDbValue(v)
		require.NoError(t, err)
		require.LessOrEqual(t, value.BBox.W, maxSize)
		require.LessOrEqual(t, value.BBox.H, maxSize)
		require.True(t, key.Cell().Contains(value.BBox))
		return true
	})
	require.NoError(t, err)

	restored, err := storage.Open(storage.Options{Path: path, Restore: true}, logger)
	require.NoError(t, err)
	require.Equal(t, 2000, restored.Len())
}

func TestGenerator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	logger := zaptest.NewLogger(t)
	store := storage.NewMemStore(logger)
	gen := New(index.NewInserter(store, logger), Options{Entities: 1000, MaxSizeMeters: 10}, logger)

	report, err := gen.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, report.Entities)
	require.Zero(t, store.Len())
}

func TestGenerator_RunTwice(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	store := storage.NewMemStore(logger)
	gen := New(index.NewInserter(store, logger), Options{Entities: 500, MaxSizeMeters: 100, Seed: 7}, logger)

	first, err := gen.Run(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 500, first.Entities)

	second, err := gen.Run(ctx)
	require.NoError(t, err)
	require.NotEqual(t, first.RunID, second.RunID)
	require.EqualValues(t, 500, second.Entities)
	// same seed, same boxes: every one collides with the first run
	require.EqualValues(t, 500, second.Duplicates)
	require.Equal(t, 1000, store.Len())
}
