package engine

import (
	"context"
	"errors"
	"time"

	"eosearch/internal/pipeline"
	"eosearch/internal/transport"
)

const shutdownTimeout = 5 * time.Second

type Engine struct {
	metrics *transport.Server
	runner  *pipeline.Runner
}

// Run runs the pipeline until it finishes or ctx is done, then releases
// the runner and stops the metrics server. Without a pipeline it serves
// metrics until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	var err error
	if e.runner != nil {
		err = e.runner.Run(ctx)
		err = errors.Join(err, e.runner.Close())
	} else {
		<-ctx.Done()
	}

	if e.metrics != nil {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		err = errors.Join(err, e.metrics.Stop(stopCtx))
	}
	return err
}
