package pagination

import (
	"context"
	"fmt"

	"github.com/Sternrassler/kaltura-client/pkg/kaltura"
)

// Service limits.
const (
	MinBatchSize = 1
	MaxBatchSize = 500

	// ResultWindowCeiling is the number of rows one query can address by paging.
	ResultWindowCeiling = 10000
)

// BatchConfig sets the page size of every paginated call.
type BatchConfig struct {
	BatchSize int
}

// DefaultBatchConfig returns the largest page size the service accepts.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{BatchSize: MaxBatchSize}
}

// Validate checks the batch size bounds.
func (c BatchConfig) Validate() error {
	if c.BatchSize < MinBatchSize || c.BatchSize > MaxBatchSize {
		return fmt.Errorf("%w: batch size must be between %d and %d (got %d)",
			kaltura.ErrConfiguration, MinBatchSize, MaxBatchSize, c.BatchSize)
	}
	return nil
}

// Record is an item that can be paginated by cursor.
type Record interface {
	RecordID() string
	OrderingKey() int64
}

// Sink receives emitted records. Flush is called after every page.
type Sink[T any] interface {
	Write(record T) error
	Flush() error
}

// Window selects one page of a query.
type Window struct {
	PageIndex int
	PageSize  int

	// LowerBound restricts the query to ordering keys >= *LowerBound.
	// Nil for the first window.
	LowerBound *int64
}

// Page is one fetched page.
type Page[T any] struct {
	Records []T

	// TotalCount is the number of rows matching the window's query, as
	// reported by the service. Zero means unknown.
	TotalCount int
}

// PageFunc fetches one page of an ordered (ascending ordering key) query.
type PageFunc[T any] func(ctx context.Context, w Window) (Page[T], error)

// SinkFunc adapts a function to the Sink interface; Flush is a no-op.
type SinkFunc[T any] func(record T) error

// Write implements Sink.
func (f SinkFunc[T]) Write(record T) error { return f(record) }

// Flush implements Sink.
func (f SinkFunc[T]) Flush() error { return nil }
