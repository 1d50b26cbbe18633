// Package plugin runs template converters out of process over gRPC. A
// remote converter is registered like a built-in one: a name bound to a
// function, whose calls go to the plugin.
package plugin

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	pb "eosearch/api/proto/v1"
)

// Descriptor names a converter a plugin serves and its argument bounds.
type Descriptor struct {
	Name    string
	MinArgs int
	// MaxArgs < 0 means unbounded.
	MaxArgs int
}

// Client reaches a plugin (over gRPC or in-process) through one API.
type Client interface {
	Describe(ctx context.Context) ([]Descriptor, error)
	Convert(ctx context.Context, name string, value any, args []any) (any, error)
	Close() error
}

// GRPCClient talks to a plugin over gRPC.
type GRPCClient struct {
	target string
	conn   *grpc.ClientConn
	svc    pb.ConverterServiceClient
}

// NewGRPCClient prepares a connection to target. The connection is made
// lazily, on the first call.
func NewGRPCClient(target string, opts ...grpc.DialOption) (*GRPCClient, error) {
	if len(opts) == 0 {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &GRPCClient{target: target, conn: conn, svc: pb.NewConverterServiceClient(conn)}, nil
}

func (c *GRPCClient) Describe(ctx context.Context) ([]Descriptor, error) {
	out, err := c.svc.Describe(ctx, &structpb.Struct{})
	if err != nil {
		return nil, fmt.Errorf("plugin %s: describe: %w", c.target, err)
	}
	return decodeDescriptors(out)
}

func (c *GRPCClient) Convert(ctx context.Context, name string, value any, args []any) (any, error) {
	req, err := encodeConvert(name, value, args)
	if err != nil {
		return nil, err
	}
	out, err := c.svc.Convert(ctx, req)
	if err != nil {
		// the status message is the plugin's own error text
		return nil, fmt.Errorf("plugin %s: %s", c.target, status.Convert(err).Message())
	}
	return out.GetFields()[fieldValue].AsInterface(), nil
}

func (c *GRPCClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// InProcessClient adapts a converter service compiled into the process.
type InProcessClient struct {
	impl pb.ConverterServiceServer
}

func NewInProcessClient(impl pb.ConverterServiceServer) *InProcessClient {
	return &InProcessClient{impl: impl}
}

func (c *InProcessClient) Describe(ctx context.Context) ([]Descriptor, error) {
	out, err := c.impl.Describe(ctx, &structpb.Struct{})
	if err != nil {
		return nil, err
	}
	return decodeDescriptors(out)
}

func (c *InProcessClient) Convert(ctx context.Context, name string, value any, args []any) (any, error) {
	req, err := encodeConvert(name, value, args)
	if err != nil {
		return nil, err
	}
	out, err := c.impl.Convert(ctx, req)
	if err != nil {
		return nil, errors.New(status.Convert(err).Message())
	}
	return out.GetFields()[fieldValue].AsInterface(), nil
}

func (c *InProcessClient) Close() error { return nil }
