package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func searchCmd(a *app) *cobra.Command {
	var (
		qf  queryFlags
		all bool
	)

	cmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Search GOV.UK",
		Long: "Prints the first page of results, or every result with --all.\n" +
			"--all fetches the pages concurrently within the rate limit.",
		Example: `  govuk search "VAT rates"
  govuk search Potato --filter format=employment_tribunal_decision --fields title,link --all
  govuk search --query-file tribunal.yaml --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := qf.build(cmd, args)
			if err != nil {
				return err
			}

			if !all {
				results, err := a.search.Get(cmd.Context(), q)
				if err != nil {
					return err
				}
				return printJSON(a.out, results)
			}

			results, err := a.search.GetAll(cmd.Context(), q)
			if err != nil {
				return err
			}
			a.logger.Info().Int("results", len(results)).Msg("Fetched all search results")
			return printJSON(a.out, results)
		},
	}
	qf.register(cmd)
	cmd.Flags().BoolVar(&all, "all", false, "fetch every page")

	return cmd
}

func totalCmd(a *app) *cobra.Command {
	var qf queryFlags

	cmd := &cobra.Command{
		Use:   "total [text]",
		Short: "Print the number of matching search results",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := qf.build(cmd, args)
			if err != nil {
				return err
			}
			total, err := a.search.Total(cmd.Context(), q)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, total)
			return err
		},
	}
	qf.register(cmd)

	return cmd
}

func facetsCmd(a *app) *cobra.Command {
	var (
		qf    queryFlags
		limit int
	)

	cmd := &cobra.Command{
		Use:   "facets <field> [text]",
		Short: "Print the values of a field across matching results",
		Example: `  govuk facets format
  govuk facets organisations "climate change" --limit 20`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := qf.build(cmd, args[1:])
			if err != nil {
				return err
			}
			facet, err := a.search.Facets(cmd.Context(), q, args[0], limit)
			if err != nil {
				return err
			}
			return printJSON(a.out, facet)
		},
	}
	qf.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of values")

	return cmd
}
