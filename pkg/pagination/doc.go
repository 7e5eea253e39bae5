// Package pagination fetches every page of an offset-paginated endpoint in
// parallel and returns the results as one slice in offset order.
//
// The search API reports the total number of matches and returns at most
// one page (start, count) per call. A BatchFetcher asks its PageFetcher for
// the total once, plans the start offsets with PlanOffsets and fetches all
// pages concurrently. Results are assembled by page index, so the order of
// the output never depends on which page answered first.
//
// Example usage:
//
//	fetcher := pagination.NewBatchFetcher[search.Result](pages, pagination.DefaultConfig())
//	results, err := fetcher.FetchAll(ctx, 1000, 0)
//
// A failed page fails the whole call; partial result sets are never returned.
package pagination
