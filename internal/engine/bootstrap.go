package engine

import (
	"fmt"

	"eosearch/internal/pipeline"
	"eosearch/internal/telemetry"
	"eosearch/internal/transport"
)

func Bootstrap(cfg Config) (*Engine, error) {
	// 1. pipeline runner
	var runner *pipeline.Runner
	if cfg.PipelineYml != "" {
		var err error
		runner, err = pipeline.Compile(cfg.PipelineYml)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
	}

	// 2. metrics
	port := cfg.MetricsPort
	if port == 0 && runner != nil {
		port = runner.MetricsPort()
	}
	var metrics *transport.Server
	if port > 0 {
		var err error
		if metrics, err = telemetry.Expose(port); err != nil {
			if runner != nil {
				_ = runner.Close()
			}
			return nil, fmt.Errorf("metrics: %w", err)
		}
	}

	return &Engine{metrics: metrics, runner: runner}, nil
}
