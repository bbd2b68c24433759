// Package index stores bounding boxes under unique quadkey based keys
package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/S0me0neR0man/quadstash/internal/quadkey"
	"github.com/S0me0neR0man/quadstash/internal/storage"
)

var (
	ErrEntityExhausted   = errors.New("entity disambiguator exhausted")
	ErrLookupUnsupported = errors.New("store does not support reads")
)

// StoreError a failed call to the backing store.
type StoreError struct {
	Op  string
	Key quadkey.DbKey
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Stats counters of an Inserter. Duplicates counts inserts that met at least
// one occupied slot.
type Stats struct {
	Inserted   uint64
	Duplicates uint64
	Probes     uint64
}

// Inserter assigns each bounding box a free DbKey and writes it to the store.
//
// When the store implements storage.ConditionalStore slots are claimed atomically
// and the Inserter is safe for any number of concurrent writers. Otherwise probe
// and insert are serialised by the Inserter, so only one Inserter (and one process)
// may write to that store.
type Inserter struct {
	store storage.Store
	cond  storage.ConditionalStore
	mu    sync.Mutex
	chain *PutChain

	inserted   atomic.Uint64
	duplicates atomic.Uint64
	probes     atomic.Uint64

	sugar *zap.SugaredLogger
}

// NewInserter makes an Inserter over store, mws wrap every slot claim.
func NewInserter(store storage.Store, logger *zap.Logger, mws ...MiddlewarePutFunc) *Inserter {
	i := &Inserter{
		store: store,
		sugar: logger.Sugar(),
	}
	if cond, ok := store.(storage.ConditionalStore); ok {
		i.cond = cond
	}
	i.chain = NewPutChain(PutHandlerFunc(i.claim)).Attach(mws...)
	return i
}

// Insert stores bbox and returns its key. Entity numbers are taken in probe
// order starting from 0. bbox must lie inside the grid.
func (i *Inserter) Insert(ctx context.Context, bbox quadkey.BoundingBox) (quadkey.DbKey, error) {
	key := quadkey.NewDbKey(bbox)
	value := quadkey.DbValue{BBox: bbox}

	probes := 0
	for {
		probes++
		ok, err := i.chain.put(ctx, Claim{Key: key, Value: value})
		if err != nil {
			i.finish(resultError, probes)
			return key, err
		}
		if ok {
			i.inserted.Add(1)
			if key.Entity > 0 {
				i.duplicates.Add(1)
			}
			i.finish(resultOK, probes)
			return key, nil
		}

		if key.Entity == quadkey.MaxEntity {
			i.finish(resultExhausted, probes)
			i.sugar.Warnw("entity exhausted", "quadkey", key.Quadkey, "bbox", bbox)
			return key, fmt.Errorf("%w: quadkey %s", ErrEntityExhausted, key.Quadkey)
		}
		key.Entity++
	}
}

func (i *Inserter) finish(result string, probes int) {
	i.probes.Add(uint64(probes))
	instrumentInsert(result, probes)
}

// claim is the last PutHandler of the chain.
func (i *Inserter) claim(ctx context.Context, c Claim) (bool, error) {
	k := c.Key.Bytes()

	if i.cond != nil {
		ok, err := i.cond.InsertIfAbsent(ctx, k, c.Value.Bytes())
		if err != nil {
			return false, &StoreError{Op: "insert_if_absent", Key: c.Key, Err: err}
		}
		return ok, nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	exists, err := i.store.ContainsKey(ctx, k)
	if err != nil {
		return false, &StoreError{Op: "contains_key", Key: c.Key, Err: err}
	}
	if exists {
		return false, nil
	}
	if err := i.store.Insert(ctx, k, c.Value.Bytes()); err != nil {
		return false, &StoreError{Op: "insert", Key: c.Key, Err: err}
	}
	return true, nil
}

// Flush asks the store to persist what has been inserted.
func (i *Inserter) Flush(ctx context.Context) error {
	if err := i.store.Flush(ctx); err != nil {
		return &StoreError{Op: "flush", Err: err}
	}
	return nil
}

// Lookup reads the value stored under key.
func (i *Inserter) Lookup(ctx context.Context, key quadkey.DbKey) (quadkey.DbValue, error) {
	r, ok := i.store.(storage.Reader)
	if !ok {
		return quadkey.DbValue{}, ErrLookupUnsupported
	}

	data, err := r.Get(ctx, key.Bytes())
	if err != nil {
		return quadkey.DbValue{}, &StoreError{Op: "get", Key: key, Err: err}
	}
	return quadkey.ParseDbValue(data)
}

// Entities calls fn for every entity stored under q in entity order.
// fn runs while the store is locked for reading and must not call back
// into the store or this Inserter.
func (i *Inserter) Entities(ctx context.Context, q quadkey.Quadkey, fn func(quadkey.DbKey, quadkey.DbValue) bool) error {
	r, ok := i.store.(storage.Reader)
	if !ok {
		return ErrLookupUnsupported
	}

	prefix := quadkey.DbKey{Quadkey: q}.PrefixBytes()
	var parseErr error
	err := r.Scan(ctx, prefix, func(k, v []byte) bool {
		key, err := quadkey.ParseDbKey(k)
		if err != nil {
			parseErr = err
			return false
		}
		value, err := quadkey.ParseDbValue(v)
		if err != nil {
			parseErr = err
			return false
		}
		return fn(key, value)
	})
	if err != nil {
		return &StoreError{Op: "scan", Key: quadkey.DbKey{Quadkey: q}, Err: err}
	}
	return parseErr
}

// Stats returns a snapshot of the counters.
func (i *Inserter) Stats() Stats {
	return Stats{
		Inserted:   i.inserted.Load(),
		Duplicates: i.duplicates.Load(),
		Probes:     i.probes.Load(),
	}
}
