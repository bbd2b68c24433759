// Package generator fills the index with random bounding boxes
package generator

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/S0me0neR0man/quadstash/internal/index"
	"github.com/S0me0neR0man/quadstash/internal/quadkey"
)

const progressInterval = time.Second

type Options struct {
	Entities      int
	MaxSizeMeters float64
	Workers       int
	Seed          int64
	FlushInterval time.Duration // 0 - flush only at the end
}

// Report of one Run
type Report struct {
	RunID      uuid.UUID
	Entities   uint64
	Duplicates uint64
	Exhausted  uint64
	Elapsed    time.Duration
}

type Generator struct {
	ins   *index.Inserter
	opts  Options
	sugar *zap.SugaredLogger

	next       atomic.Int64
	inserted   atomic.Uint64
	duplicates atomic.Uint64
	exhausted  atomic.Uint64
}

func New(ins *index.Inserter, opts Options, logger *zap.Logger) *Generator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Generator{
		ins:   ins,
		opts:  opts,
		sugar: logger.Sugar(),
	}
}

// Run inserts opts.Entities random boxes, flushing the store periodically and once at the end.
// Every call is a fresh run; calls must not overlap.
func (g *Generator) Run(ctx context.Context) (Report, error) {
	g.next.Store(0)
	g.inserted.Store(0)
	g.duplicates.Store(0)
	g.exhausted.Store(0)

	start := time.Now()
	report := Report{RunID: uuid.New()}
	maxSize := quadkey.UnitsForMeters(g.opts.MaxSizeMeters)

	g.sugar.Infow("generating random entities",
		"run", report.RunID, "entities", g.opts.Entities, "max_size_meters", g.opts.MaxSizeMeters,
		"max_size_units", maxSize, "workers", g.opts.Workers)

	workers, wctx := errgroup.WithContext(ctx)
	for w := 0; w < g.opts.Workers; w++ {
		rng := rand.New(rand.NewSource(g.opts.Seed + int64(w)))
		workers.Go(func() error {
			return g.work(wctx, rng, maxSize)
		})
	}

	stop := make(chan struct{})
	var background errgroup.Group
	background.Go(func() error {
		return g.tick(wctx, stop, start)
	})

	err := workers.Wait()
	close(stop)
	if berr := background.Wait(); err == nil {
		err = berr
	}

	if ferr := g.ins.Flush(context.WithoutCancel(ctx)); err == nil {
		err = ferr
	}

	report.Entities = g.inserted.Load()
	report.Duplicates = g.duplicates.Load()
	report.Exhausted = g.exhausted.Load()
	report.Elapsed = time.Since(start)

	g.sugar.Infow("done",
		"run", report.RunID, "entities", report.Entities, "duplicates", report.Duplicates,
		"exhausted", report.Exhausted, "elapsed", report.Elapsed, "err", err)
	return report, err
}

func (g *Generator) work(ctx context.Context, rng *rand.Rand, maxSize uint32) error {
	total := int64(g.opts.Entities)
	for g.next.Add(1) <= total {
		if err := ctx.Err(); err != nil {
			return err
		}

		bbox := quadkey.RandomBoundingBox(rng, maxSize)
		key, err := g.ins.Insert(ctx, bbox)
		switch {
		case errors.Is(err, index.ErrEntityExhausted):
			g.exhausted.Add(1)
			continue
		case err != nil:
			return err
		}

		g.inserted.Add(1)
		if key.Entity > 0 {
			g.duplicates.Add(1)
		}
	}
	return nil
}

// tick logs progress and flushes the store until stop is closed.
func (g *Generator) tick(ctx context.Context, stop <-chan struct{}, start time.Time) error {
	interval := g.opts.FlushInterval
	if interval <= 0 {
		interval = progressInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return nil
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			g.sugar.Infow("progress",
				"entities", g.inserted.Load(), "duplicates", g.duplicates.Load(),
				"elapsed", time.Since(start).Round(time.Second))
			if g.opts.FlushInterval > 0 {
				if err := g.ins.Flush(ctx); err != nil {
					return err
				}
			}
		}
	}
}
