package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"eosearch/internal/template"
	"eosearch/internal/transform"
)

func newFormatCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "format TEMPLATE [key=value...]",
		Short:   "Evaluate a template",
		Example: `  eosearch format '{startTime#to_iso_date}' startTime=2020-01-01T10:00:00Z`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := parseKeyValues(args[1:])
			if err != nil {
				return err
			}
			t, err := template.Parse(args[0], transform.Default())
			if err != nil {
				return err
			}
			out, err := t.Execute(vars)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
}
