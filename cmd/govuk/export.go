package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/govuk-api-client/pkg/client"
	"github.com/Sternrassler/govuk-api-client/pkg/content"
	"github.com/Sternrassler/govuk-api-client/pkg/search"
)

func exportCmd(a *app) *cobra.Command {
	var (
		qf          queryFlags
		output      string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "export [text]",
		Short: "Write the content item of every search result to a JSON file",
		Long: "Fetches every search result, then the content item behind each\n" +
			"result's link, and writes the items as a JSON array as they arrive.",
		Example: `  govuk export Potato --filter format=employment_tribunal_decision -o data.json`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := qf.build(cmd, args)
			if err != nil {
				return err
			}
			if len(q.Fields) == 0 {
				q.Fields = []string{"title", "link"}
			}
			return a.export(cmd.Context(), q, output, concurrency)
		},
	}
	qf.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "data.json", "file to write")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "maximum content requests in flight (0 leaves pacing to the rate limit)")

	return cmd
}

func (a *app) export(ctx context.Context, q search.Query, path string, concurrency int) error {
	total, err := a.search.Total(ctx, q)
	if err != nil {
		return err
	}
	a.logger.Info().Int("total", total).Msg("Getting search results")

	var results []search.Result
	if total > 0 {
		q.Total = total
		results, err = a.search.GetAll(ctx, q)
		if err != nil {
			return err
		}
	}
	links := resultLinks(results)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	defer f.Close()

	// Every item is buffered so the emitter never drops one.
	emitter := client.NewEmitter()
	events, unsubscribe := emitter.Subscribe(len(links))
	items := content.New(a.exec, content.WithObserver(emitter))

	writer := newJSONArrayWriter(f)
	written := make(chan error, 1)
	go func() {
		var werr error
		for ev := range events {
			if werr != nil {
				continue
			}
			werr = writer.Write(ev.Content)
			a.logger.Info().
				Int("n", writer.n).
				Interface("title", ev.Content["title"]).
				Msg("Exported content item")
		}
		written <- werr
	}()

	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for _, link := range links {
		g.Go(func() error {
			_, err := items.Get(gctx, link)
			return err
		})
	}
	fetchErr := g.Wait()
	unsubscribe()

	if err := <-written; err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	if fetchErr != nil {
		return fetchErr
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	a.logger.Info().Str("path", path).Int("items", writer.n).Msg("Wrote results")
	return f.Close()
}

// resultLinks returns the link of every result that has one.
func resultLinks(results []search.Result) []string {
	links := make([]string, 0, len(results))
	for _, r := range results {
		if link, ok := r["link"].(string); ok && link != "" {
			links = append(links, link)
		}
	}
	return links
}
