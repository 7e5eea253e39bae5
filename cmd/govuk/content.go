package main

import (
	"github.com/spf13/cobra"
)

func contentCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "content <path>",
		Short: "Fetch a content item",
		Example: `  govuk content /vat-rates
  govuk content employment-tribunal-decisions/mr-a-v-b-ltd-1234567-2023`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := a.content.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(a.out, item)
		},
	}
}

func infoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <path>",
		Short: "Show the search metadata of a content item",
		Long:  "Prints the search index entry whose link is <path>, or null when search does not know it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.search.Info(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(a.out, result)
		},
	}
}
