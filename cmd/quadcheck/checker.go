package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/S0me0neR0man/quadstash/internal/client"
	"github.com/S0me0neR0man/quadstash/internal/quadkey"
)

const (
	displayCounter = 100
)

type simpleRecord struct {
	bbox quadkey.BoundingBox
	key  quadkey.DbKey
}

func (s simpleRecord) String() string {
	return fmt.Sprintf("key=%s bbox=%s", s.key, s.bbox)
}

// Checker inserts random boxes through the server and reads every one back.
type Checker struct {
	toDisplay chan string

	toGet    chan simpleRecord
	toDecode chan simpleRecord

	maxSize uint32
	seed    int64
	failed  atomic.Uint64
	checked atomic.Uint64

	wg     sync.WaitGroup
	cancel context.CancelFunc

	client *client.GRPCClient
	sugar  *zap.SugaredLogger
}

func NewChecker(c *client.GRPCClient, maxSize uint32, seed int64, logger *zap.Logger) *Checker {
	return &Checker{
		client:    c,
		maxSize:   maxSize,
		seed:      seed,
		sugar:     logger.Sugar(),
		toDisplay: make(chan string),
		toGet:     make(chan simpleRecord),
		toDecode:  make(chan simpleRecord),
	}
}

// Go starts the pipeline. A failed insert stops the whole run.
func (c *Checker) Go(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(7)

	go c.display(ctx)

	go c.insert(ctx, rand.New(rand.NewSource(c.seed)))
	go c.insert(ctx, rand.New(rand.NewSource(c.seed+1)))
	go c.get(ctx)
	go c.get(ctx)
	go c.decode(ctx)
	go c.decode(ctx)
}

// Wait returns the number of checked and failed records.
func (c *Checker) Wait() (uint64, uint64) {
	c.wg.Wait()
	c.cancel()
	return c.checked.Load(), c.failed.Load()
}

func send[T any](ctx context.Context, ch chan T, v T) bool {
	select {
	case <-ctx.Done():
		return false
	case ch <- v:
		return true
	}
}

func (c *Checker) tick(ctx context.Context, count *int, mark string) {
	*count++
	if *count == displayCounter {
		*count = 0
		send(ctx, c.toDisplay, mark)
	}
}

func (c *Checker) fail(msg string, rec simpleRecord, keysAndValues ...interface{}) {
	c.failed.Add(1)
	c.sugar.Errorw(msg, append([]interface{}{"rec", rec}, keysAndValues...)...)
}

func (c *Checker) display(ctx context.Context) {
	defer c.wg.Done()
	c.sugar.Infow("display start")

	for {
		select {
		case <-ctx.Done():
			c.sugar.Infow("display done")
			return
		case s := <-c.toDisplay:
			if _, err := fmt.Fprint(os.Stdout, s); err != nil {
				c.sugar.Errorw("fprint stdout", "err", err)
			}
		}
	}
}

func (c *Checker) insert(ctx context.Context, rng *rand.Rand) {
	defer c.wg.Done()
	c.sugar.Infow("insert start")
	count := 0

	for ctx.Err() == nil {
		rec := simpleRecord{bbox: quadkey.RandomBoundingBox(rng, c.maxSize)}
		var err error
		rec.key, err = c.client.Insert(ctx, rec.bbox)
		if err != nil {
			if ctx.Err() == nil {
				c.fail("insert", rec, "error", err)
				c.cancel()
			}
			break
		}
		c.sugar.Debugw("insert ok", "rec", rec)
		c.tick(ctx, &count, "I")

		if !send(ctx, c.toGet, rec) {
			break
		}
	}
	c.sugar.Infow("insert done")
}

func (c *Checker) get(ctx context.Context) {
	defer c.wg.Done()
	c.sugar.Infow("get start")
	count := 0

	for {
		select {
		case <-ctx.Done():
			c.sugar.Infow("get done")
			return
		case rec := <-c.toGet:
			value, err := c.client.Get(ctx, rec.key)
			if err != nil {
				if ctx.Err() == nil {
					c.fail("get", rec, "error", err)
				}
				continue
			}
			if value.BBox != rec.bbox {
				c.fail("get compare", rec, "stored", value.BBox)
				continue
			}
			c.tick(ctx, &count, "G")
			send(ctx, c.toDecode, rec)
		}
	}
}

func (c *Checker) decode(ctx context.Context) {
	defer c.wg.Done()
	c.sugar.Infow("decode start")
	count := 0

	for {
		select {
		case <-ctx.Done():
			c.sugar.Infow("decode done")
			return
		case rec := <-c.toDecode:
			q, err := c.client.Encode(ctx, rec.bbox)
			if err != nil {
				if ctx.Err() == nil {
					c.fail("encode", rec, "error", err)
				}
				continue
			}
			if q != rec.key.Quadkey {
				c.fail("encode compare", rec, "quadkey", q)
				continue
			}

			cell, err := c.client.Decode(ctx, q)
			if err != nil {
				if ctx.Err() == nil {
					c.fail("decode", rec, "error", err)
				}
				continue
			}
			if !cell.Contains(rec.bbox) {
				c.fail("decode contains", rec, "cell", cell)
				continue
			}
			c.checked.Add(1)
			c.tick(ctx, &count, "D")
		}
	}
}
