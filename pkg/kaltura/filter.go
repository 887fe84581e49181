package kaltura

import (
	"maps"
	"strings"
)

// Ordering values for list filters.
const (
	OrderCreatedAtAsc  = "+createdAt"
	OrderCreatedAtDesc = "-createdAt"
)

// Entry status values used by filters.
const (
	EntryStatusReady   = "2"
	EntryStatusDeleted = "3"
)

// Filter is a list filter as sent to the service. Every filter carries its
// objectType; the remaining keys are filter properties.
type Filter map[string]any

// NewFilter creates a filter of the given object type.
func NewFilter(objectType string) Filter {
	return Filter{"objectType": objectType}
}

// MediaEntryFilter returns an empty KalturaMediaEntryFilter.
func MediaEntryFilter() Filter {
	return NewFilter("KalturaMediaEntryFilter")
}

// BaseEntryFilter returns an empty KalturaBaseEntryFilter.
func BaseEntryFilter() Filter {
	return NewFilter("KalturaBaseEntryFilter")
}

// Clone returns an independent copy of the filter.
func (f Filter) Clone() Filter {
	if f == nil {
		return nil
	}
	return maps.Clone(f)
}

// With returns a copy of the filter with key set to value.
func (f Filter) With(key string, value any) Filter {
	out := f.Clone()
	if out == nil {
		out = Filter{}
	}
	out[key] = value
	return out
}

// WithOrderBy sets the result ordering.
func (f Filter) WithOrderBy(order string) Filter {
	return f.With("orderBy", order)
}

// WithCreatedAtGreaterThanOrEqual restricts results to createdAt >= ts.
func (f Filter) WithCreatedAtGreaterThanOrEqual(ts int64) Filter {
	return f.With("createdAtGreaterThanOrEqual", ts)
}

// WithIDIn restricts results to the given entry ids.
func (f Filter) WithIDIn(ids []string) Filter {
	return f.With("idIn", strings.Join(ids, ","))
}

// WithReferenceIDEqual restricts results to one referenceId.
func (f Filter) WithReferenceIDEqual(ref string) Filter {
	return f.With("referenceIdEqual", ref)
}

// WithStatusIn restricts results to the given entry statuses.
func (f Filter) WithStatusIn(statuses ...string) Filter {
	return f.With("statusIn", strings.Join(statuses, ","))
}

// WithModerationStatusEqual restricts results to one moderation status.
func (f Filter) WithModerationStatusEqual(status int) Filter {
	return f.With("moderationStatusEqual", status)
}

// ObjectType returns the filter's object type.
func (f Filter) ObjectType() string {
	s, _ := f["objectType"].(string)
	return s
}
