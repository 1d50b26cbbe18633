package main

import (
	"github.com/spf13/cobra"

	"eosearch/internal/engine"
)

func newRunCmd() *cobra.Command {
	var cfg engine.Config
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a pipeline file",
		Long: `Run the searches of a pipeline file, pushing their entries to the
  configured sinks. A pipeline with a request source keeps serving requests
  until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := engine.Bootstrap(cfg)
			if err != nil {
				return err
			}
			return e.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&cfg.PipelineYml, "pipeline", "p", "pipeline.yml", "pipeline file")
	cmd.Flags().IntVar(&cfg.MetricsPort, "metrics-port", 0, "metrics port, overriding the pipeline's metrics_port (-1 disables)")
	return cmd
}
