package client

import (
	"context"
	"encoding/binary"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/S0me0neR0man/quadstash/internal/grpcproto"
	"github.com/S0me0neR0man/quadstash/internal/quadkey"
	"github.com/S0me0neR0man/quadstash/internal/token"
)

type GRPCClient struct {
	conn   *grpc.ClientConn
	client grpcproto.IndexClient
}

// NewGRPClient connects to addr, extra opts are appended to the defaults.
func NewGRPClient(addr, authToken string, extra ...grpc.DialOption) (*GRPCClient, error) {
	c := GRPCClient{}

	opts := []grpc.DialOption{
		grpc.WithPerRPCCredentials(&token.Tokens{Token: authToken}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	opts = append(opts, extra...)

	var err error
	c.conn, err = grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	c.client = grpcproto.NewIndexClient(c.conn)

	return &c, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// Conn the underlying connection
func (c *GRPCClient) Conn() *grpc.ClientConn {
	return c.conn
}

// Insert stores bbox and returns the key it was given.
func (c *GRPCClient) Insert(ctx context.Context, bbox quadkey.BoundingBox) (quadkey.DbKey, error) {
	data, err := bbox.MarshalBinary()
	if err != nil {
		return quadkey.DbKey{}, err
	}
	resp, err := c.client.Insert(ctx, wrapperspb.Bytes(data))
	if err != nil {
		return quadkey.DbKey{}, err
	}
	return quadkey.ParseDbKey(resp.GetValue())
}

func (c *GRPCClient) Encode(ctx context.Context, bbox quadkey.BoundingBox) (quadkey.Quadkey, error) {
	data, err := bbox.MarshalBinary()
	if err != nil {
		return 0, err
	}
	resp, err := c.client.Encode(ctx, wrapperspb.Bytes(data))
	if err != nil {
		return 0, err
	}
	if len(resp.GetValue()) != 8 {
		return 0, fmt.Errorf("encode: unexpected response of %d bytes", len(resp.GetValue()))
	}
	return quadkey.Quadkey(binary.BigEndian.Uint64(resp.GetValue())), nil
}

func (c *GRPCClient) Decode(ctx context.Context, q quadkey.Quadkey) (quadkey.BoundingBox, error) {
	var bbox quadkey.BoundingBox
	resp, err := c.client.Decode(ctx, wrapperspb.Bytes(binary.BigEndian.AppendUint64(nil, uint64(q))))
	if err != nil {
		return bbox, err
	}
	err = bbox.UnmarshalBinary(resp.GetValue())
	return bbox, err
}

func (c *GRPCClient) Get(ctx context.Context, key quadkey.DbKey) (quadkey.DbValue, error) {
	resp, err := c.client.Get(ctx, wrapperspb.Bytes(key.Bytes()))
	if err != nil {
		return quadkey.DbValue{}, err
	}
	return quadkey.ParseDbValue(resp.GetValue())
}
