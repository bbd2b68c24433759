package index

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/S0me0neR0man/quadstash/internal/quadkey"
)

// Claim is one attempt to take a key slot.
type Claim struct {
	Key   quadkey.DbKey
	Value quadkey.DbValue
}

// PutHandler put PutMiddleware handle. Put reports whether the slot was taken by this claim.
type PutHandler interface {
	Put(context.Context, Claim) (bool, error)
}

// The PutHandlerFunc type is an adapter to allow the use of
// ordinary functions as handlers. If f is a function
// with the appropriate signature, PutHandlerFunc(f) is a
// PutHandler that calls f.
type PutHandlerFunc func(context.Context, Claim) (bool, error)

// Put calls f(ctx, c).
func (f PutHandlerFunc) Put(ctx context.Context, c Claim) (bool, error) {
	return f(ctx, c)
}

// MiddlewarePutFunc is a function which receives an PutHandler and returns another PutHandler
type MiddlewarePutFunc func(PutHandler) PutHandler

// putMiddlewarer interface is anything which implements a MiddlewarePutFunc named PutMiddleware
type putMiddlewarer interface {
	PutMiddleware(PutHandler) PutHandler
}

// PutMiddleware allows MiddlewarePutFunc to implement the putMiddlewarer interface
func (mw MiddlewarePutFunc) PutMiddleware(h PutHandler) PutHandler {
	return mw(h)
}

// PutChain use pattern chain of responsibility to claim a slot
type PutChain struct {
	final          PutHandler
	putMiddlewares []putMiddlewarer
	handler        PutHandler
}

// NewPutChain make new chain ending with final
func NewPutChain(final PutHandler) *PutChain {
	return &PutChain{final: final, handler: final}
}

// Attach appends a MiddlewarePutFunc to the put chain.
// Middlewares run in the order they were attached.
func (p *PutChain) Attach(mwf ...MiddlewarePutFunc) *PutChain {
	for _, fn := range mwf {
		p.putMiddlewares = append(p.putMiddlewares, fn)
	}

	h := p.final
	for i := len(p.putMiddlewares) - 1; i >= 0; i-- {
		h = p.putMiddlewares[i].PutMiddleware(h)
	}
	p.handler = h
	return p
}

func (p *PutChain) put(ctx context.Context, c Claim) (bool, error) {
	return p.handler.Put(ctx, c)
}

// LogPuts logs every claim attempt at debug level.
func LogPuts(logger *zap.Logger) MiddlewarePutFunc {
	sugar := logger.Sugar()
	return func(next PutHandler) PutHandler {
		return PutHandlerFunc(func(ctx context.Context, c Claim) (bool, error) {
			ok, err := next.Put(ctx, c)
			if err != nil {
				sugar.Errorw("claim", "key", c.Key, "bbox", c.Value.BBox, "err", err)
				return ok, err
			}
			sugar.Debugw("claim", "key", c.Key, "bbox", c.Value.BBox, "taken", ok)
			return ok, nil
		})
	}
}

// InstrumentPuts records claim latency and collisions.
func InstrumentPuts(next PutHandler) PutHandler {
	return PutHandlerFunc(func(ctx context.Context, c Claim) (bool, error) {
		start := time.Now()
		ok, err := next.Put(ctx, c)
		instrumentClaimLatency(start)
		if err == nil && !ok {
			instrumentCollision()
		}
		return ok, err
	})
}
