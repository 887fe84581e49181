package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Sternrassler/kaltura-client/pkg/kaltura"
	"github.com/Sternrassler/kaltura-client/pkg/pagination"
)

// Entry services that support list and count.
const (
	ServiceMedia     = "media"
	ServiceBaseEntry = "baseEntry"
)

// ExportRequest selects the entries of an export.
type ExportRequest struct {
	// Service is ServiceMedia (default) or ServiceBaseEntry.
	Service string

	// Filter narrows the query. Ordering and the createdAt lower bound are
	// managed by the export and overwritten.
	Filter kaltura.Filter

	// LowerBound is the initial createdAt lower bound (unix seconds). Zero
	// exports from the beginning.
	LowerBound int64
}

func (r ExportRequest) normalized() (ExportRequest, error) {
	switch r.Service {
	case "", ServiceMedia:
		r.Service = ServiceMedia
		if r.Filter == nil {
			r.Filter = kaltura.MediaEntryFilter()
		}
	case ServiceBaseEntry:
		if r.Filter == nil {
			r.Filter = kaltura.BaseEntryFilter()
		}
	default:
		return r, fmt.Errorf("%w: unsupported export service %q", kaltura.ErrConfiguration, r.Service)
	}
	return r, nil
}

// Count returns the number of entries matching filter.
func (c *Client) Count(ctx context.Context, service string, filter kaltura.Filter) (int, error) {
	req, err := ExportRequest{Service: service, Filter: filter}.normalized()
	if err != nil {
		return 0, err
	}
	call := kaltura.NewCall(req.Service, "count", map[string]any{"filter": req.Filter})
	return do[int](ctx, c, call)
}

// ExportEntries streams every entry matching the request to sink in
// ascending creation order, each at most once. The result window ceiling is
// escaped by re-anchoring on the last seen creation time.
func (c *Client) ExportEntries(ctx context.Context, req ExportRequest, sink pagination.Sink[kaltura.Entry]) (pagination.Stats, error) {
	req, err := req.normalized()
	if err != nil {
		return pagination.Stats{}, err
	}

	opts := []pagination.Option{
		pagination.WithCeiling(c.ceiling),
		pagination.WithLogger(c.logger),
		pagination.WithName(req.Service),
	}
	if req.LowerBound > 0 {
		opts = append(opts, pagination.WithLowerBound(req.LowerBound))
	}

	pager, err := pagination.NewCursorPager[kaltura.Entry](c.Batch(), opts...)
	if err != nil {
		return pagination.Stats{}, err
	}

	stats, err := pager.Run(ctx, c.listPage(req.Service, req.Filter), sink)
	if err != nil {
		return stats, fmt.Errorf("export %s: %w", req.Service, err)
	}
	return stats, nil
}

// listPage fetches one window of an ordered list query.
func (c *Client) listPage(service string, filter kaltura.Filter) pagination.PageFunc[kaltura.Entry] {
	return func(ctx context.Context, w pagination.Window) (pagination.Page[kaltura.Entry], error) {
		f := filter.WithOrderBy(kaltura.OrderCreatedAtAsc)
		if w.LowerBound != nil {
			f = f.WithCreatedAtGreaterThanOrEqual(*w.LowerBound)
		}

		call := kaltura.NewCall(service, "list", map[string]any{
			"filter": f,
			"pager":  kaltura.Pager{PageSize: w.PageSize, PageIndex: w.PageIndex}.Params(),
		})
		resp, err := do[kaltura.ListResponse[kaltura.Entry]](ctx, c, call)
		if err != nil {
			return pagination.Page[kaltura.Entry]{}, err
		}
		return pagination.Page[kaltura.Entry]{Records: resp.Objects, TotalCount: resp.TotalCount}, nil
	}
}

// ListEntriesByIDs fetches the entries with the given ids in batches.
// Ids that did not resolve are reported as warnings, not errors.
func (c *Client) ListEntriesByIDs(ctx context.Context, ids []string) ([]kaltura.Entry, []kaltura.IntegrityWarning, error) {
	ids = uniqueNonEmpty(ids)
	if len(ids) == 0 {
		return nil, nil, nil
	}

	fetcher := pagination.NewBatchFetcher[kaltura.Entry](func(ctx context.Context, batch []string) ([]kaltura.Entry, error) {
		call := kaltura.NewCall(ServiceMedia, "list", map[string]any{
			"filter": kaltura.MediaEntryFilter().WithIDIn(batch),
			"pager":  kaltura.Pager{PageSize: len(batch), PageIndex: 1}.Params(),
		})
		resp, err := do[kaltura.ListResponse[kaltura.Entry]](ctx, c, call)
		if err != nil {
			return nil, err
		}
		return resp.Objects, nil
	}, c.fetcherConfig(c.Batch().BatchSize))

	entries, err := fetcher.FetchAll(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	found := make(map[string]bool, len(entries))
	for _, e := range entries {
		found[e.ID] = true
	}
	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}

	var warnings []kaltura.IntegrityWarning
	if len(missing) > 0 || len(entries) != len(ids) {
		w := kaltura.IntegrityWarning{
			Kind:    kaltura.WarningCountMismatch,
			Subject: "media.list",
			Detail: fmt.Sprintf("requested %d ids, received %d entries, unresolved: %s",
				len(ids), len(entries), strings.Join(missing, ",")),
		}
		c.warn(w)
		warnings = append(warnings, w)
	}
	return entries, warnings, nil
}

// SearchTerm runs a free text search and returns the ids of the first page
// of matches.
func (c *Client) SearchTerm(ctx context.Context, term string) ([]string, error) {
	if strings.TrimSpace(term) == "" {
		return nil, fmt.Errorf("%w: search term is empty", kaltura.ErrConfiguration)
	}

	resp, err := c.search(ctx, []map[string]any{unifiedItem(term)}, c.Batch().BatchSize)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.Objects))
	for _, e := range resp.Entries() {
		ids = append(ids, e.ID)
	}
	return ids, nil
}

// DeleteEntry deletes an entry. It returns false when the entry does not exist.
func (c *Client) DeleteEntry(ctx context.Context, entryID string) (bool, error) {
	return c.entryAction(ctx, "delete", entryID)
}

// BlockEntry rejects an entry in moderation so it can no longer be played.
// It returns false when the entry does not exist.
func (c *Client) BlockEntry(ctx context.Context, entryID string) (bool, error) {
	return c.entryAction(ctx, "reject", entryID)
}

func (c *Client) entryAction(ctx context.Context, action, entryID string) (bool, error) {
	if entryID == "" {
		return false, fmt.Errorf("%w: entry id is required", kaltura.ErrConfiguration)
	}
	call := kaltura.NewCall(ServiceMedia, action, map[string]any{"entryId": entryID})
	if _, err := c.executor.Do(ctx, call, true); err != nil {
		if isNotFound(err) {
			c.logger.Warn().Str("entry_id", entryID).Str("action", action).Msg("Entry not found")
			return false, nil
		}
		return false, err
	}
	c.logger.Info().Str("entry_id", entryID).Str("action", action).Msg("Entry updated")
	return true, nil
}

func (c *Client) fetcherConfig(batchSize int) pagination.Config {
	cfg := pagination.DefaultConfig()
	if c.config.MaxConcurrency > 0 {
		cfg.MaxConcurrency = c.config.MaxConcurrency
	}
	cfg.BatchSize = batchSize
	cfg.Logger = &c.logger
	return cfg
}

func isNotFound(err error) bool {
	var remoteErr *kaltura.RemoteError
	if !errors.As(err, &remoteErr) {
		return false
	}
	return remoteErr.Code == kaltura.CodeEntryNotFound || remoteErr.Code == kaltura.CodeInvalidObjectID
}

// uniqueNonEmpty drops blanks and duplicates, keeping the first occurrence.
func uniqueNonEmpty(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
