package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"eosearch/internal/config"
	"eosearch/internal/logging"
	"eosearch/internal/pipeline"
	"eosearch/internal/search"
	"eosearch/internal/spec"
	"eosearch/sink/stdout"
)

type searchOptions struct {
	providers   []string
	productType string
	args        []string
	pages       int
	pretty      bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search one or more providers",
		Long: `Search runs the same search against every given provider in parallel and
  prints the entries as JSON lines.`,
		Example: `  eosearch search --providers providers.yml --provider cds \
    --product-type ERA5_SL --arg startTimeFromAscendingNode=2020-01-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSearch(cmd, opts)
		},
	}
	cmd.Flags().String(providersFlag, "providers.yml", "provider catalog")
	cmd.Flags().StringSliceVar(&opts.providers, "provider", nil, "provider to search (repeatable)")
	cmd.Flags().StringVar(&opts.productType, "product-type", "", "product type")
	cmd.Flags().StringArrayVar(&opts.args, "arg", nil, "search argument as key=value (repeatable)")
	cmd.Flags().IntVar(&opts.pages, "pages", 1, "number of result pages to fetch")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "indent JSON output")
	_ = cmd.MarkFlagRequired("provider")
	return cmd
}

func runSearch(cmd *cobra.Command, opts searchOptions) error {
	args, err := parseKeyValues(opts.args)
	if err != nil {
		return err
	}
	path, err := cmd.Flags().GetString(providersFlag)
	if err != nil {
		return err
	}
	catalog, err := config.LoadProviders(path)
	if err != nil {
		return err
	}

	r := pipeline.NewRunner()
	r.AddSink(stdout.New(cmd.OutOrStdout(), stdout.Config{Pretty: opts.pretty}))
	defer r.Close()
	for _, name := range opts.providers {
		p, ok := catalog.Providers[name]
		if !ok {
			return fmt.Errorf("provider %q is not in %s", name, path)
		}
		o, err := search.New(name, p)
		if err != nil {
			return err
		}
		r.AddSearcher(o)
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	for _, name := range opts.providers {
		g.Go(func() error {
			n, err := r.Search(ctx, spec.SearchSpec{
				Provider:    name,
				ProductType: opts.productType,
				Args:        args,
				Pages:       opts.pages,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			logging.L().Info("search done", "provider", name, "entries", n)
			return nil
		})
	}
	return g.Wait()
}
