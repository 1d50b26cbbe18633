package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"eosearch/internal/pathquery"
	"eosearch/internal/search"
)

func newExtractCmd() *cobra.Command {
	var provider, productType string
	cmd := &cobra.Command{
		Use:   "extract FILE",
		Short: "Extract the properties of a provider document",
		Long: `Extract applies a provider's metadata mapping to one JSON or XML result
  document and prints the properties as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProvider(cmd, provider)
			if err != nil {
				return err
			}
			ex, err := search.NewExtractor(provider, p, productType, nil)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			dialect := pathquery.Dialect(p.Dialect)
			if dialect == "" {
				dialect = pathquery.JSON
			}
			doc, err := pathquery.Decode(dialect, raw)
			if err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}
			bag, err := ex.Extract(doc, p.ProductTypeConfig[productType])
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(bag)
		},
	}
	cmd.Flags().String(providersFlag, "providers.yml", "provider catalog")
	cmd.Flags().StringVar(&provider, "provider", "", "provider whose mapping applies")
	cmd.Flags().StringVar(&productType, "product-type", "", "product type of the document")
	_ = cmd.MarkFlagRequired("provider")
	return cmd
}
