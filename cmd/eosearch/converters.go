package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"eosearch/internal/plugin"
	"eosearch/internal/transform"
)

func newConvertersCmd() *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "converters",
		Short: "List the template converters",
		Long: `List the built-in template converters, or with --plugin the converters
  a plugin serves.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names := transform.Default().Names()
			if target != "" {
				c, err := plugin.NewGRPCClient(target)
				if err != nil {
					return err
				}
				defer c.Close()
				ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
				defer cancel()
				reg := transform.NewRegistry()
				if names, err = plugin.Attach(ctx, reg, c, 0); err != nil {
					return err
				}
			}
			for _, name := range names {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "plugin", "", "gRPC address of a converter plugin")
	cmd.AddCommand(newServeConvertersCmd())
	return cmd
}

func newServeConvertersCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the built-in converters over gRPC",
		Long: `Serve the built-in converters as a converter plugin, so that another
  process can attach them with a pipeline "plugins" entry.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := plugin.StartServer(port, plugin.NewRegistryServer(transform.Default()))
			if err != nil {
				return err
			}
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(s.Serve)
			g.Go(func() error {
				<-ctx.Done()
				s.Stop()
				return nil
			})
			return g.Wait()
		},
	}
	cmd.Flags().IntVar(&port, "port", 9400, "listen port")
	return cmd
}
