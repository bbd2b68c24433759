package server

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/S0me0neR0man/quadstash/internal/config"
	"github.com/S0me0neR0man/quadstash/internal/grpcproto"
	"github.com/S0me0neR0man/quadstash/internal/index"
	"github.com/S0me0neR0man/quadstash/internal/quadkey"
	"github.com/S0me0neR0man/quadstash/internal/storage"
)

var (
	errMissingMetadata = status.Errorf(codes.InvalidArgument, "missing metadata")
	errInvalidToken    = status.Errorf(codes.Unauthenticated, "invalid token")
)

const shutdownTimeout = 5 * time.Second

type GRPCServer struct {
	ins   *index.Inserter
	sugar *zap.SugaredLogger
	gserv *grpc.Server
	conf  *config.Config
}

func NewIndexServer(ins *index.Inserter, conf *config.Config, logger *zap.Logger) *GRPCServer {
	ss := &GRPCServer{
		ins:   ins,
		conf:  conf,
		sugar: logger.Sugar(),
	}

	ss.gserv = grpc.NewServer(grpc.ChainUnaryInterceptor(ss.instrument, ss.ensureValidToken))
	grpcproto.RegisterIndexServer(ss.gserv, ss)
	return ss
}

// Start listens on conf.Addr and serves until ctx is done.
func (ss *GRPCServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", ss.conf.Addr)
	if err != nil {
		return err
	}
	return ss.Serve(ctx, lis)
}

// Serve serves gRPC on lis, the metrics endpoint and the flush loop.
// When ctx is done the server stops gracefully and the store is flushed once more.
func (ss *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ss.sugar.Infow("grpcserver start", "addr", lis.Addr().String())
		return ss.gserv.Serve(lis)
	})

	if ss.conf.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		hs := &http.Server{Addr: ss.conf.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			ss.sugar.Infow("metrics start", "addr", ss.conf.MetricsAddr)
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return hs.Shutdown(sctx)
		})
	}

	g.Go(func() error {
		ss.saveToDisk(gctx)
		return nil
	})

	g.Go(func() error {
		return ss.gracefulStop(gctx)
	})

	return g.Wait()
}

func (ss *GRPCServer) saveToDisk(ctx context.Context) {
	if ss.conf.FlushInterval == 0 {
		return
	}

	ticker := time.NewTicker(ss.conf.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := ss.ins.Flush(ctx); err != nil {
				ss.sugar.Errorw("ins.Flush", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (ss *GRPCServer) gracefulStop(ctx context.Context) error {
	<-ctx.Done()
	ss.gserv.GracefulStop()
	ss.sugar.Infow("grpcserver stopped")

	if err := ss.ins.Flush(context.WithoutCancel(ctx)); err != nil {
		ss.sugar.Errorw("final flush", "error", err)
		return err
	}
	return nil
}

func (ss *GRPCServer) ensureValidToken(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if ss.conf.AuthToken == "" {
		return handler(ctx, req)
	}

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, errMissingMetadata
	}
	// The keys within metadata.MD are normalized to lowercase.
	if !ss.valid(md["authorization"]) {
		ss.sugar.Debugw("ensureValidToken", "method", info.FullMethod, "error", errInvalidToken)
		return nil, errInvalidToken
	}
	return handler(ctx, req)
}

func (ss *GRPCServer) valid(authorization []string) bool {
	if len(authorization) < 1 {
		return false
	}
	return strings.TrimPrefix(authorization[0], "Bearer ") == ss.conf.AuthToken
}

func (ss *GRPCServer) instrument(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	instrumentRequest(info.FullMethod, status.Code(err), start)
	return resp, err
}

func (ss *GRPCServer) Insert(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	bbox, err := parseBBox(in.GetValue())
	if err != nil {
		return nil, err
	}

	key, err := ss.ins.Insert(ctx, bbox)
	if err != nil {
		ss.sugar.Errorw("insert", "bbox", bbox, "error", err)
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(key.Bytes()), nil
}

func (ss *GRPCServer) Encode(_ context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	bbox, err := parseBBox(in.GetValue())
	if err != nil {
		return nil, err
	}
	q := quadkey.Encode(bbox)
	return wrapperspb.Bytes(binary.BigEndian.AppendUint64(nil, uint64(q))), nil
}

func (ss *GRPCServer) Decode(_ context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	data := in.GetValue()
	if len(data) != 8 {
		return nil, status.Errorf(codes.InvalidArgument, "quadkey must be 8 bytes, got %d", len(data))
	}
	q := quadkey.Quadkey(binary.BigEndian.Uint64(data))
	if !q.Valid() {
		return nil, status.Errorf(codes.InvalidArgument, "%v: %x", quadkey.ErrInvalidQuadkey, data)
	}

	cell, err := q.Cell().MarshalBinary()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return wrapperspb.Bytes(cell), nil
}

func (ss *GRPCServer) Get(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	key, err := quadkey.ParseDbKey(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	value, err := ss.ins.Lookup(ctx, key)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(value.Bytes()), nil
}

func parseBBox(data []byte) (quadkey.BoundingBox, error) {
	var bbox quadkey.BoundingBox
	if err := bbox.UnmarshalBinary(data); err != nil {
		return bbox, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := bbox.Validate(); err != nil {
		return bbox, status.Error(codes.InvalidArgument, err.Error())
	}
	return bbox, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, index.ErrEntityExhausted):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, storage.ErrKeyNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, index.ErrLookupUnsupported):
		return status.Error(codes.Unimplemented, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
