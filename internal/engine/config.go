package engine

// Config tells Bootstrap what to run.
type Config struct {
	// PipelineYml is the pipeline file; empty runs the metrics server only.
	PipelineYml string
	// MetricsPort overrides the pipeline's metrics_port; 0 keeps it, and
	// -1 disables the metrics server.
	MetricsPort int
}
