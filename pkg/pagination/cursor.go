package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/kaltura-client/pkg/kaltura"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State is the pager state.
type State int

const (
	StatePaging State = iota
	StateReanchoring
	StateDone
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StatePaging:
		return "paging"
	case StateReanchoring:
		return "reanchoring"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// PageCursor is the position of a running export. It lives for one Run call.
type PageCursor struct {
	PageIndex  int
	LowerBound *int64

	// LastSeen is the largest ordering key received so far.
	LastSeen    int64
	hasLastSeen bool
}

// Window returns the query window for the cursor's position.
func (c PageCursor) Window(pageSize int) Window {
	return Window{PageIndex: c.PageIndex, PageSize: pageSize, LowerBound: c.LowerBound}
}

// Stats summarizes a finished (or aborted) run.
type Stats struct {
	Pages      int
	Received   int
	Emitted    int
	Suppressed int

	// Anchors lists the lower bounds used by each re-anchor, in order.
	Anchors []int64

	Duration time.Duration
}

// Option configures a CursorPager.
type Option func(*pagerOptions)

type pagerOptions struct {
	ceiling    int
	lowerBound *int64
	logger     zerolog.Logger
	name       string
}

// WithCeiling overrides the result window ceiling. Only useful against
// stubs that emulate a smaller window.
func WithCeiling(ceiling int) Option {
	return func(o *pagerOptions) { o.ceiling = ceiling }
}

// WithLowerBound sets the initial ordering-key lower bound.
func WithLowerBound(ts int64) Option {
	return func(o *pagerOptions) { o.lowerBound = &ts }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *pagerOptions) { o.logger = logger }
}

// WithName labels log lines and metrics.
func WithName(name string) Option {
	return func(o *pagerOptions) { o.name = name }
}

// CursorPager exports a complete ordered query across the result window
// ceiling.
type CursorPager[T Record] struct {
	batchSize  int
	ceiling    int
	lowerBound *int64
	logger     zerolog.Logger
	name       string
}

// NewCursorPager validates the batch configuration and creates a pager.
func NewCursorPager[T Record](cfg BatchConfig, opts ...Option) (*CursorPager[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := pagerOptions{
		ceiling: ResultWindowCeiling,
		logger:  log.Logger,
		name:    "export",
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ceiling < cfg.BatchSize {
		return nil, fmt.Errorf("%w: window ceiling %d is smaller than batch size %d",
			kaltura.ErrConfiguration, o.ceiling, cfg.BatchSize)
	}

	return &CursorPager[T]{
		batchSize:  cfg.BatchSize,
		ceiling:    o.ceiling,
		lowerBound: o.lowerBound,
		logger:     o.logger.With().Str("export", o.name).Logger(),
		name:       o.name,
	}, nil
}

// Run pages through the query and feeds every new record to sink. The sink
// is flushed after each page. Any page failure, sink failure or context
// cancellation aborts the run; records of completed pages stay flushed.
func (p *CursorPager[T]) Run(ctx context.Context, fetch PageFunc[T], sink Sink[T]) (Stats, error) {
	start := time.Now()
	stats := Stats{}
	dedup := NewOverlapDeduplicator()
	cursor := PageCursor{PageIndex: 1, LowerBound: p.lowerBound}
	state := StatePaging

	finish := func(err error) (Stats, error) {
		stats.Suppressed = dedup.Suppressed()
		stats.Duration = time.Since(start)
		pagerRuns.WithLabelValues(p.name, runResult(err)).Inc()
		return stats, err
	}

	for state != StateDone {
		if err := ctx.Err(); err != nil {
			return finish(fmt.Errorf("export cancelled after %d pages: %w", stats.Pages, err))
		}

		if state == StateReanchoring {
			if !cursor.hasLastSeen {
				return finish(fmt.Errorf("%w: window ceiling reached without records", kaltura.ErrNoProgress))
			}
			if cursor.LowerBound != nil && cursor.LastSeen <= *cursor.LowerBound {
				return finish(fmt.Errorf("%w: a full window shares ordering key %d", kaltura.ErrNoProgress, cursor.LastSeen))
			}

			anchor := cursor.LastSeen
			cursor.LowerBound = &anchor
			cursor.PageIndex = 1
			stats.Anchors = append(stats.Anchors, anchor)
			pagerReanchors.WithLabelValues(p.name).Inc()

			p.logger.Info().
				Int64("lower_bound", anchor).
				Int("emitted", stats.Emitted).
				Msg("Result window ceiling reached, re-anchoring")

			state = StatePaging
		}

		result, err := fetch(ctx, cursor.Window(p.batchSize))
		if err != nil {
			p.logger.Error().
				Err(err).
				Int("page", cursor.PageIndex).
				Int("emitted", stats.Emitted).
				Msg("Page fetch failed, aborting export")
			return finish(fmt.Errorf("fetch page %d: %w", cursor.PageIndex, err))
		}
		page := result.Records
		stats.Pages++
		stats.Received += len(page)
		pagerPages.WithLabelValues(p.name).Inc()

		for _, record := range page {
			key := record.OrderingKey()
			if !cursor.hasLastSeen || key > cursor.LastSeen {
				cursor.LastSeen = key
				cursor.hasLastSeen = true
			}

			if !dedup.Accept(record.RecordID(), key) {
				continue
			}
			if err := sink.Write(record); err != nil {
				return finish(fmt.Errorf("write record %s: %w", record.RecordID(), err))
			}
			stats.Emitted++
		}
		dedup.EndPage()
		pagerRecords.WithLabelValues(p.name).Add(float64(len(page)))

		if err := sink.Flush(); err != nil {
			return finish(fmt.Errorf("flush after page %d: %w", cursor.PageIndex, err))
		}

		p.logger.Debug().
			Int("page", cursor.PageIndex).
			Int("records", len(page)).
			Int("emitted", stats.Emitted).
			Msg("Page exported")

		switch {
		case len(page) < p.batchSize:
			state = StateDone
		case p.windowExhausted(cursor.PageIndex, result.TotalCount):
			state = StateDone
		case (cursor.PageIndex+1)*p.batchSize > p.ceiling:
			state = StateReanchoring
		default:
			cursor.PageIndex++
		}
	}

	p.logger.Info().
		Int("pages", stats.Pages).
		Int("emitted", stats.Emitted).
		Int("suppressed", dedup.Suppressed()).
		Int("anchors", len(stats.Anchors)).
		Dur("duration", time.Since(start)).
		Msg("Export complete")

	return finish(nil)
}

// windowExhausted reports whether pageIndex pages cover the reported total
// of the window. A total at or above the ceiling may be capped by the
// service, so it never ends the run.
func (p *CursorPager[T]) windowExhausted(pageIndex, total int) bool {
	if total <= 0 || total >= p.ceiling {
		return false
	}
	return pageIndex*p.batchSize >= total
}

func runResult(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
