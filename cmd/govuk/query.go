package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/govuk-api-client/pkg/search"
)

// queryFlags are the search parameters shared by search, total, facets and
// export.
type queryFlags struct {
	file    string
	count   int
	start   int
	total   int
	order   string
	fields  []string
	filters []string
	rejects []string
}

func (f *queryFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.file, "query-file", "", "YAML file of search options (q, count, fields, filter_<field>, ...)")
	flags.IntVar(&f.count, "count", 0, "results per page")
	flags.IntVar(&f.start, "start", 0, "offset of the first result")
	flags.IntVar(&f.total, "total", 0, "known result total, skips the count request of --all")
	flags.StringVar(&f.order, "order", "", "sort order, e.g. -public_timestamp")
	flags.StringSliceVar(&f.fields, "fields", nil, "document fields to return")
	flags.StringArrayVar(&f.filters, "filter", nil, "filter as field=value (repeatable)")
	flags.StringArrayVar(&f.rejects, "reject", nil, "reject as field=value (repeatable)")
}

// build returns the query described by the query file, then the flags, then
// the optional text argument, later sources winning.
func (f *queryFlags) build(cmd *cobra.Command, args []string) (search.Query, error) {
	var q search.Query

	if f.file != "" {
		fromFile, err := loadQueryFile(f.file)
		if err != nil {
			return search.Query{}, err
		}
		q = fromFile
	}

	var flagQuery search.Query
	if len(args) > 0 {
		flagQuery.Text = args[0]
	}
	if cmd.Flags().Changed("count") {
		flagQuery.Count = search.Int(f.count)
	}
	if cmd.Flags().Changed("start") {
		flagQuery.Start = search.Int(f.start)
	}
	flagQuery.Total = f.total
	flagQuery.Order = f.order
	flagQuery.Fields = f.fields

	for _, facet := range []struct {
		kind  search.FacetKind
		pairs []string
	}{
		{search.FacetFilter, f.filters},
		{search.FacetReject, f.rejects},
	} {
		for _, pair := range facet.pairs {
			field, value, ok := strings.Cut(pair, "=")
			if !ok || field == "" {
				return search.Query{}, fmt.Errorf("--%s %q: expected field=value", facet.kind, pair)
			}
			flagQuery = flagQuery.WithFacet(facet.kind, field, value)
		}
	}

	q = q.Merge(flagQuery)
	if err := q.Validate(); err != nil {
		return search.Query{}, err
	}
	return q, nil
}

func loadQueryFile(path string) (search.Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return search.Query{}, fmt.Errorf("reading query file: %w", err)
	}

	var options map[string]any
	if err := yaml.Unmarshal(data, &options); err != nil {
		return search.Query{}, fmt.Errorf("parsing query file %s: %w", path, err)
	}

	q, err := search.QueryFromMap(options)
	if err != nil {
		return search.Query{}, fmt.Errorf("query file %s: %w", path, err)
	}
	return q, nil
}
