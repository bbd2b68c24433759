// Package storage ordered byte key-value storage with snapshot persistence
package storage

import (
	"context"
	"errors"
)

var (
	ErrKeyNotFound = errors.New("key not found")
	ErrClosed      = errors.New("store closed")
	ErrEmptyKey    = errors.New("empty key")
)

// Store is the minimal contract the index needs from a key-value backend.
type Store interface {
	ContainsKey(ctx context.Context, key []byte) (bool, error)
	Insert(ctx context.Context, key, value []byte) error
	Flush(ctx context.Context) error
}

// ConditionalStore can claim a key atomically.
// InsertIfAbsent returns false when the key is already taken.
type ConditionalStore interface {
	Store
	InsertIfAbsent(ctx context.Context, key, value []byte) (bool, error)
}

// Reader read side of a store
type Reader interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	// Scan calls fn for every key with the prefix in ascending order,
	// stops when fn returns false.
	Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error
}
