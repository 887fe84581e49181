package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Sternrassler/kaltura-client/pkg/cache"
	"github.com/Sternrassler/kaltura-client/pkg/kaltura"
	"github.com/Sternrassler/kaltura-client/pkg/pagination"
)

// eSearch enumerations.
const (
	esearchOperatorOR  = 2
	esearchExactMatch  = 1
	esearchFieldRefID  = "reference_id"
	esearchFieldID     = "id"
	esearchItemType    = "KalturaESearchEntryItem"
	esearchUnifiedType = "KalturaESearchUnifiedItem"
)

// Resolution maps requested identifiers to resolved ones. Identifiers that
// did not resolve are listed in Missing.
type Resolution struct {
	Mapping  map[string]string
	Missing  []string
	Warnings []kaltura.IntegrityWarning
}

// LookupReferenceID returns the entry id of the entry uploaded with
// referenceID. It fails with ErrNotFound when there is none and with an
// ErrRemoteRejected error when several entries share the referenceId.
func (c *Client) LookupReferenceID(ctx context.Context, referenceID string) (string, error) {
	if referenceID == "" {
		return "", fmt.Errorf("%w: reference id is required", kaltura.ErrConfiguration)
	}

	if c.refs != nil {
		id, err := c.refs.Get(ctx, referenceID)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("reference_id", referenceID).Msg("Reference cache get error")
		}
	}

	call := kaltura.NewCall(ServiceMedia, "list", map[string]any{
		"filter": kaltura.MediaEntryFilter().WithReferenceIDEqual(referenceID),
		"pager":  kaltura.Pager{PageSize: c.Batch().BatchSize, PageIndex: 1}.Params(),
	})
	resp, err := do[kaltura.ListResponse[kaltura.Entry]](ctx, c, call)
	if err != nil {
		return "", err
	}

	switch len(resp.Objects) {
	case 0:
		c.logger.Warn().Str("reference_id", referenceID).Msg("No entry found for reference id")
		return "", fmt.Errorf("reference id %q: %w", referenceID, kaltura.ErrNotFound)
	case 1:
	default:
		ids := make([]string, 0, len(resp.Objects))
		for _, e := range resp.Objects {
			ids = append(ids, e.ID)
		}
		c.warn(kaltura.IntegrityWarning{
			Kind:    kaltura.WarningDuplicateReference,
			Subject: referenceID,
			Detail:  "resolved to " + strings.Join(ids, ","),
		})
		return "", fmt.Errorf("%w: reference id %q resolved to %d entries",
			kaltura.ErrRemoteRejected, referenceID, len(resp.Objects))
	}

	id := resp.Objects[0].ID
	if c.refs != nil {
		if err := c.refs.Set(ctx, referenceID, id); err != nil {
			c.logger.Warn().Err(err).Str("reference_id", referenceID).Msg("Reference cache set error")
		}
	}
	return id, nil
}

// ResolveReferenceIDs maps referenceIds to entry ids. A referenceId shared
// by several entries keeps its first entry id and produces a warning.
func (c *Client) ResolveReferenceIDs(ctx context.Context, referenceIDs []string) (Resolution, error) {
	refs := uniqueNonEmpty(referenceIDs)
	entries, err := c.searchBatches(ctx, refs, esearchFieldRefID)
	if err != nil {
		return Resolution{}, err
	}

	res := Resolution{Mapping: make(map[string]string, len(refs))}
	for _, e := range entries {
		if e.ReferenceID == "" {
			continue
		}
		if prev, ok := res.Mapping[e.ReferenceID]; ok {
			if prev != e.ID {
				res.Warnings = append(res.Warnings, kaltura.IntegrityWarning{
					Kind:    kaltura.WarningDuplicateReference,
					Subject: e.ReferenceID,
					Detail:  fmt.Sprintf("resolved to multiple entry ids [%s, %s]", prev, e.ID),
				})
			}
			continue
		}
		res.Mapping[e.ReferenceID] = e.ID
	}

	if c.refs != nil {
		for ref, id := range res.Mapping {
			if err := c.refs.Set(ctx, ref, id); err != nil {
				c.logger.Warn().Err(err).Str("reference_id", ref).Msg("Reference cache set error")
				break
			}
		}
	}

	c.finish(&res, refs, "referenceId")
	return res, nil
}

// ResolveEntryIDs maps entry ids to their referenceIds.
func (c *Client) ResolveEntryIDs(ctx context.Context, entryIDs []string) (Resolution, error) {
	ids := uniqueNonEmpty(entryIDs)
	entries, err := c.searchBatches(ctx, ids, esearchFieldID)
	if err != nil {
		return Resolution{}, err
	}

	res := Resolution{Mapping: make(map[string]string, len(ids))}
	for _, e := range entries {
		res.Mapping[e.ID] = e.ReferenceID
	}

	c.finish(&res, ids, "entryId")
	return res, nil
}

// finish records unresolved identifiers and logs every warning.
func (c *Client) finish(res *Resolution, requested []string, subject string) {
	for _, id := range requested {
		if _, ok := res.Mapping[id]; !ok {
			res.Missing = append(res.Missing, id)
		}
	}
	if len(res.Missing) > 0 {
		res.Warnings = append(res.Warnings, kaltura.IntegrityWarning{
			Kind:    kaltura.WarningCountMismatch,
			Subject: subject,
			Detail:  fmt.Sprintf("resolved %d of %d identifiers", len(res.Mapping), len(requested)),
		})
	}
	for _, w := range res.Warnings {
		c.warn(w)
	}
}

// searchBatches runs an OR query of exact matches on field per batch of ids.
func (c *Client) searchBatches(ctx context.Context, ids []string, field string) ([]kaltura.Entry, error) {
	if len(ids) == 0 {
		c.logger.Info().Str("field", field).Msg("Resolve called with empty list of ids")
		return nil, nil
	}

	size := c.Batch().BatchSize
	fetcher := pagination.NewBatchFetcher[kaltura.Entry](func(ctx context.Context, batch []string) ([]kaltura.Entry, error) {
		items := make([]map[string]any, 0, len(batch))
		for _, id := range batch {
			items = append(items, fieldItem(field, id))
		}
		resp, err := c.search(ctx, items, size)
		if err != nil {
			return nil, err
		}
		return resp.Entries(), nil
	}, c.fetcherConfig(size))

	return fetcher.FetchAll(ctx, ids)
}

// search runs eSearch.searchEntry with the items joined by OR.
func (c *Client) search(ctx context.Context, items []map[string]any, pageSize int) (kaltura.ESearchResponse, error) {
	call := kaltura.NewCall("elasticsearch_esearch", "searchEntry", map[string]any{
		"searchParams": map[string]any{
			"objectType": "KalturaESearchEntryParams",
			"searchOperator": map[string]any{
				"objectType":  "KalturaESearchEntryOperator",
				"operator":    esearchOperatorOR,
				"searchItems": items,
			},
		},
		"pager": kaltura.Pager{PageSize: pageSize, PageIndex: 1}.Params(),
	})
	return do[kaltura.ESearchResponse](ctx, c, call)
}

func fieldItem(field, term string) map[string]any {
	return map[string]any{
		"objectType": esearchItemType,
		"fieldName":  field,
		"searchTerm": term,
		"itemType":   esearchExactMatch,
	}
}

func unifiedItem(term string) map[string]any {
	return map[string]any{
		"objectType": esearchUnifiedType,
		"searchTerm": term,
		"itemType":   esearchExactMatch,
	}
}
