package kafka

import (
	"context"

	"eosearch/internal/spec"
)

// Checkpoint locates the message a Request was read from.
type Checkpoint struct {
	Topic     string
	Partition int32
	Offset    int64
}

// Request is one search request read from the stream.
type Request struct {
	Search     spec.SearchSpec
	Checkpoint Checkpoint
}

// EmitFunc hands a request to the pipeline. It returns once the request has
// been run and its entries pushed.
type EmitFunc func(context.Context, Request) error

// Adapter is a stream of search requests.
type Adapter interface {
	Configure(Config) error
	Run(context.Context, EmitFunc) error
	Close() error
}

// AckAware adapters are told when a request's entries reached the sinks.
type AckAware interface {
	OnAck(Checkpoint)
}
