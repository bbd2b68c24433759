package index

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/S0me0neR0man/quadstash/internal/quadkey"
	"github.com/S0me0neR0man/quadstash/internal/storage"
)

// mapStore is a Store without conditional put or reads.
type mapStore struct {
	mu       sync.Mutex
	m        map[string][]byte
	failOn   string
	err      error
	flushErr error
	flushes  int
}

func newMapStore() *mapStore {
	return &mapStore{m: make(map[string][]byte)}
}

func (s *mapStore) ContainsKey(_ context.Context, key []byte) (bool, error) {
	if s.failOn == "contains_key" {
		return false, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[string(key)]
	return ok, nil
}

func (s *mapStore) Insert(_ context.Context, key, value []byte) error {
	if s.failOn == "insert" {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[string(key)] = value
	return nil
}

func (s *mapStore) Flush(context.Context) error {
	s.flushes++
	return s.flushErr
}

// fullStore reports every slot as taken.
type fullStore struct{}

func (fullStore) ContainsKey(context.Context, []byte) (bool, error) {
	return true, nil
}

func (fullStore) Insert(context.Context, []byte, []byte) error {
	return nil
}

func (fullStore) Flush(context.Context) error {
	return nil
}

func (fullStore) InsertIfAbsent(context.Context, []byte, []byte) (bool, error) {
	return false, nil
}

func TestInserter_Collision(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore(zaptest.NewLogger(t))
	ins := NewInserter(store, zaptest.NewLogger(t))

	bbox := quadkey.BoundingBox{X: 10, Y: 10}
	first, err := ins.Insert(ctx, bbox)
	require.NoError(t, err)
	require.Zero(t, first.Entity)

	second, err := ins.Insert(ctx, bbox)
	require.NoError(t, err)
	require.EqualValues(t, 1, second.Entity)
	require.Equal(t, first.Quadkey, second.Quadkey)
	require.Equal(t, 2, store.Len())

	for _, k := range []quadkey.DbKey{first, second} {
		v, err := ins.Lookup(ctx, k)
		require.NoError(t, err)
		require.Equal(t, bbox, v.BBox)
		require.Zero(t, v.IsBlack)
	}

	require.Equal(t, Stats{Inserted: 2, Duplicates: 1, Probes: 3}, ins.Stats())
}

func TestInserter_ProbeThenInsert(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	ins := NewInserter(store, zaptest.NewLogger(t))

	bbox := quadkey.BoundingBox{X: 10, Y: 10}
	for want := uint16(0); want < 5; want++ {
		key, err := ins.Insert(ctx, bbox)
		require.NoError(t, err)
		require.Equal(t, want, key.Entity)
		require.Contains(t, store.m, string(key.Bytes()))
		require.Equal(t, quadkey.DbValue{BBox: bbox}.Bytes(), store.m[string(key.Bytes())])
	}

	_, err := ins.Lookup(ctx, quadkey.DbKey{})
	require.ErrorIs(t, err, ErrLookupUnsupported)

	require.NoError(t, ins.Flush(ctx))
	require.Equal(t, 1, store.flushes)
}

func TestInserter_StoreError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk on fire")

	for _, op := range []string{"contains_key", "insert"} {
		t.Run(op, func(t *testing.T) {
			store := newMapStore()
			store.failOn = op
			store.err = boom
			ins := NewInserter(store, zaptest.NewLogger(t))

			_, err := ins.Insert(ctx, quadkey.BoundingBox{X: 1, Y: 1})
			require.ErrorIs(t, err, boom)

			var se *StoreError
			require.ErrorAs(t, err, &se)
			require.Equal(t, op, se.Op)
			require.Zero(t, se.Key.Entity)
			require.Empty(t, store.m)
		})
	}

	store := newMapStore()
	store.flushErr = boom
	ins := NewInserter(store, zaptest.NewLogger(t))
	require.ErrorIs(t, ins.Flush(ctx), boom)
}

func TestInserter_Exhausted(t *testing.T) {
	ins := NewInserter(fullStore{}, zaptest.NewLogger(t))

	key, err := ins.Insert(context.Background(), quadkey.BoundingBox{X: 3, Y: 4, W: 5, H: 6})
	require.ErrorIs(t, err, ErrEntityExhausted)
	require.Equal(t, quadkey.MaxEntity, key.Entity)
	require.EqualValues(t, 1<<16, ins.Stats().Probes)
	require.Zero(t, ins.Stats().Inserted)
}

func TestInserter_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore(zaptest.NewLogger(t))
	ins := NewInserter(store, zaptest.NewLogger(t), InstrumentPuts)

	const n = 64
	bbox := quadkey.BoundingBox{X: 100, Y: 200, W: 7, H: 7}

	keys := make(chan quadkey.DbKey, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key, err := ins.Insert(ctx, bbox)
			if err == nil {
				keys <- key
			}
		}()
	}
	wg.Wait()
	close(keys)

	seen := make(map[uint16]bool)
	for k := range keys {
		require.False(t, seen[k.Entity], "entity %d taken twice", k.Entity)
		seen[k.Entity] = true
	}
	require.Len(t, seen, n)
	require.Equal(t, n, store.Len())
	for e := 0; e < n; e++ {
		require.True(t, seen[uint16(e)])
	}
}

func TestInserter_Entities(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore(zaptest.NewLogger(t))
	ins := NewInserter(store, zaptest.NewLogger(t))

	a := quadkey.BoundingBox{X: 10, Y: 10}
	b := quadkey.BoundingBox{X: 1 << 28, Y: 1 << 28}
	for i := 0; i < 3; i++ {
		_, err := ins.Insert(ctx, a)
		require.NoError(t, err)
	}
	kb, err := ins.Insert(ctx, b)
	require.NoError(t, err)

	var entities []uint16
	err = ins.Entities(ctx, quadkey.Encode(a), func(k quadkey.DbKey, v quadkey.DbValue) bool {
		require.Equal(t, a, v.BBox)
		entities = append(entities, k.Entity)
		return true
	})
	require.NoError(t, err)
	require.Equal(t, []uint16{0, 1, 2}, entities)

	_, err = ins.Lookup(ctx, quadkey.DbKey{Quadkey: kb.Quadkey, Entity: 1})
	require.ErrorIs(t, err, storage.ErrKeyNotFound)

	require.ErrorIs(t, NewInserter(newMapStore(), zaptest.NewLogger(t)).
		Entities(ctx, 0, func(quadkey.DbKey, quadkey.DbValue) bool { return true }), ErrLookupUnsupported)
}

func TestInserter_EntitiesThenInsert(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore(zaptest.NewLogger(t))
	ins := NewInserter(store, zaptest.NewLogger(t))

	a := quadkey.BoundingBox{X: 10, Y: 10}
	for i := 0; i < 3; i++ {
		_, err := ins.Insert(ctx, a)
		require.NoError(t, err)
	}

	// collect under the scan, write after it returns
	var boxes []quadkey.BoundingBox
	require.NoError(t, ins.Entities(ctx, quadkey.Encode(a), func(_ quadkey.DbKey, v quadkey.DbValue) bool {
		boxes = append(boxes, v.BBox)
		return true
	}))
	require.Len(t, boxes, 3)

	for i, bbox := range boxes {
		key, err := ins.Insert(ctx, bbox)
		require.NoError(t, err)
		require.EqualValues(t, 3+i, key.Entity)
	}
	require.Equal(t, 6, store.Len())
}

func TestInserter_PanicsOutsideGrid(t *testing.T) {
	ins := NewInserter(newMapStore(), zaptest.NewLogger(t))
	require.Panics(t, func() {
		_, _ = ins.Insert(context.Background(), quadkey.BoundingBox{X: quadkey.MaxCoord, W: 1})
	})
}
