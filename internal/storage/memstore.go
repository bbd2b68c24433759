package storage

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Options of MemStore persistence. Empty Path keeps the store in memory only.
type Options struct {
	Path        string
	Restore     bool
	Compression Compression
}

// MemStore the in-memory ordered key-value thread safe storage.
// Keys are kept in a red-black tree so iteration follows byte order.
type MemStore struct {
	mu   sync.RWMutex
	tree redBlackTree

	id        uuid.UUID
	opts      Options
	recovered bool
	closed    bool

	version        uint64
	flushedVersion uint64
	flushSFG       singleflight.Group

	sugar *zap.SugaredLogger
}

// NewMemStore makes a store without persistence.
func NewMemStore(logger *zap.Logger) *MemStore {
	return &MemStore{
		id:    uuid.New(),
		sugar: logger.Sugar(),
	}
}

// Open makes a store bound to opts.Path and restores the snapshot if asked to.
// A missing snapshot file is not an error.
func Open(opts Options, logger *zap.Logger) (*MemStore, error) {
	s := NewMemStore(logger)
	s.opts = opts

	if opts.Path == "" || !opts.Restore {
		return s, nil
	}

	snap, err := readSnapshot(opts.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.sugar.Infow("no snapshot to restore", "path", opts.Path)
			return s, nil
		}
		return nil, err
	}

	err = snap.entries(func(key, value []byte) {
		s.tree.put(key, value)
	})
	if err != nil {
		return nil, err
	}

	s.id = snap.id
	s.recovered = true
	s.sugar.Infow("snapshot restored",
		"path", opts.Path, "id", s.id, "entries", s.tree.size, "compression", snap.compression)
	return s, nil
}

// ID identifies the store across snapshots.
func (s *MemStore) ID() uuid.UUID {
	return s.id
}

// Recovered reports whether the contents came from a snapshot.
func (s *MemStore) Recovered() bool {
	return s.recovered
}

// Len number of keys
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.size
}

func (s *MemStore) ContainsKey(ctx context.Context, key []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, ErrClosed
	}
	return s.tree.get(key) != nil, nil
}

// Insert stores value under key, replacing a previous value.
func (s *MemStore) Insert(ctx context.Context, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(key) == 0 {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.tree.put(bytes.Clone(key), bytes.Clone(value))
	s.version++
	return nil
}

// InsertIfAbsent stores value only when key is free.
func (s *MemStore) InsertIfAbsent(ctx context.Context, key, value []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if len(key) == 0 {
		return false, ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}
	if s.tree.get(key) != nil {
		return false, nil
	}
	s.tree.put(bytes.Clone(key), bytes.Clone(value))
	s.version++
	return true, nil
}

// Get returns a copy of the value, ErrKeyNotFound if there is none.
func (s *MemStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	node := s.tree.get(key)
	if node == nil {
		return nil, ErrKeyNotFound
	}
	return bytes.Clone(node.value), nil
}

// Remove deletes key, ErrKeyNotFound if there is none.
func (s *MemStore) Remove(ctx context.Context, key []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if !s.tree.remove(key) {
		return ErrKeyNotFound
	}
	s.version++
	return nil
}

// Scan walks keys starting with prefix in ascending byte order.
// fn gets copies and must not call back into the store.
func (s *MemStore) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	for it := s.tree.seek(prefix); it.valid(); it.next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !bytes.HasPrefix(it.key(), prefix) {
			break
		}
		if !fn(bytes.Clone(it.key()), bytes.Clone(it.value())) {
			break
		}
	}
	return nil
}

// Flush writes a snapshot when the store has changed since the last one.
// Concurrent calls share one write.
func (s *MemStore) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.opts.Path == "" {
		return nil
	}

	_, err, shared := s.flushSFG.Do("flush", func() (interface{}, error) {
		return nil, s.flush()
	})
	if err != nil {
		s.sugar.Errorw("flush", "path", s.opts.Path, "err", err, "shared", shared)
	}
	return err
}

func (s *MemStore) flush() error {
	start := time.Now()

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	if s.version == s.flushedVersion {
		s.mu.RUnlock()
		return nil
	}
	snap := snapshot{
		id:          s.id,
		compression: s.opts.Compression,
		count:       uint64(s.tree.size),
	}
	for it := s.tree.iterator(); it.next(); {
		snap.payload = appendEntry(snap.payload, it.key(), it.value())
	}
	version := s.version
	s.mu.RUnlock()

	used, err := writeSnapshot(s.opts.Path, snap)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if version > s.flushedVersion {
		s.flushedVersion = version
	}
	s.mu.Unlock()

	s.sugar.Debugw("snapshot written",
		"path", s.opts.Path, "entries", snap.count, "compression", used, "elapsed", time.Since(start))
	return nil
}

// Close flushes and releases the store, later calls return ErrClosed.
func (s *MemStore) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	if errors.Is(err, ErrClosed) {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	s.tree.clear()
	return err
}
