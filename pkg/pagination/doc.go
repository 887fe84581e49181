// Package pagination drives paged queries against the media service.
//
// The service caps the number of rows addressable by page arithmetic within
// one query (ResultWindowCeiling, 10,000 rows) no matter how many rows match.
// CursorPager escapes that window by ordering on creation time and, whenever
// the next page would cross the ceiling, re-anchoring the query on the largest
// creation time seen so far and restarting at page 1. Records sharing the
// boundary creation time reappear in the new window; OverlapDeduplicator
// suppresses them.
//
// Example usage:
//
//	pager, err := pagination.NewCursorPager[kaltura.Entry](pagination.BatchConfig{BatchSize: 500})
//	stats, err := pager.Run(ctx, func(ctx context.Context, w pagination.Window) ([]kaltura.Entry, error) {
//		return listPage(ctx, w)
//	}, sink)
//
// The pager:
//   - Emits records in non-decreasing creation-time order
//   - Flushes the sink after every page so completed pages are durable
//   - Aborts on the first failed page (no silent gaps)
//   - Stops when a page comes back shorter than the batch size
//
// BatchFetcher is the companion for identifier lists: it splits the ids into
// batches and fetches them with a bounded worker pool.
package pagination
