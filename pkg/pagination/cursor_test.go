package pagination

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/Sternrassler/kaltura-client/pkg/kaltura"
	"github.com/rs/zerolog"
)

type testRecord struct {
	id  string
	key int64
}

func (r testRecord) RecordID() string   { return r.id }
func (r testRecord) OrderingKey() int64 { return r.key }

// windowedService emulates a listing endpoint ordered by ascending key that
// refuses to page past its result window ceiling.
type windowedService struct {
	records     []testRecord
	ceiling     int
	reportTotal bool
	// totalCap caps the reported total like a service that never counts
	// past its window. Zero reports the real total.
	totalCap int

	windows []Window
}

func newWindowedService(keys []int64, ceiling int) *windowedService {
	records := make([]testRecord, len(keys))
	for i, k := range keys {
		records[i] = testRecord{id: fmt.Sprintf("r%03d", i), key: k}
	}
	return &windowedService{records: records, ceiling: ceiling, reportTotal: true}
}

func (s *windowedService) fetch(ctx context.Context, w Window) (Page[testRecord], error) {
	s.windows = append(s.windows, w)

	if w.PageIndex*w.PageSize > s.ceiling {
		return Page[testRecord]{}, fmt.Errorf("page %d beyond result window", w.PageIndex)
	}

	var matching []testRecord
	for _, r := range s.records {
		if w.LowerBound == nil || r.key >= *w.LowerBound {
			matching = append(matching, r)
		}
	}

	start := (w.PageIndex - 1) * w.PageSize
	if start >= len(matching) {
		return Page[testRecord]{TotalCount: s.total(matching)}, nil
	}
	end := min(start+w.PageSize, len(matching))
	return Page[testRecord]{Records: matching[start:end], TotalCount: s.total(matching)}, nil
}

func (s *windowedService) total(matching []testRecord) int {
	if !s.reportTotal {
		return 0
	}
	if s.totalCap > 0 {
		return min(len(matching), s.totalCap)
	}
	return len(matching)
}

// recordingSink collects emitted ids and counts flushes.
type recordingSink struct {
	ids      []string
	flushes  int
	writeErr error
}

func (s *recordingSink) Write(r testRecord) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.ids = append(s.ids, r.id)
	return nil
}

func (s *recordingSink) Flush() error {
	s.flushes++
	return nil
}

func newTestPager(t *testing.T, batch, ceiling int) *CursorPager[testRecord] {
	t.Helper()
	p, err := NewCursorPager[testRecord](BatchConfig{BatchSize: batch}, WithCeiling(ceiling), WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("NewCursorPager() error = %v", err)
	}
	return p
}

func assertUniqueComplete(t *testing.T, got []string, service *windowedService) {
	t.Helper()

	seen := make(map[string]bool, len(got))
	for _, id := range got {
		if seen[id] {
			t.Errorf("duplicate id %s", id)
		}
		seen[id] = true
	}
	for _, r := range service.records {
		if !seen[r.id] {
			t.Errorf("missing id %s (key %d)", r.id, r.key)
		}
	}
	if len(got) != len(service.records) {
		t.Errorf("emitted %d records, want %d", len(got), len(service.records))
	}
}

func TestNewCursorPager_Validation(t *testing.T) {
	tests := []struct {
		name    string
		batch   int
		opts    []Option
		wantErr bool
	}{
		{name: "min batch", batch: 1},
		{name: "max batch", batch: 500},
		{name: "zero batch", batch: 0, wantErr: true},
		{name: "batch too large", batch: 501, wantErr: true},
		{name: "ceiling below batch", batch: 10, opts: []Option{WithCeiling(5)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCursorPager[testRecord](BatchConfig{BatchSize: tt.batch}, tt.opts...)
			if tt.wantErr {
				if !errors.Is(err, kaltura.ErrConfiguration) {
					t.Errorf("expected ErrConfiguration, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestCursorPager_BoundaryOverlapScenario(t *testing.T) {
	service := newWindowedService([]int64{1, 2, 3, 4, 4, 5, 6}, 4)
	sink := &recordingSink{}

	stats, err := newTestPager(t, 2, 4).Run(context.Background(), service.fetch, sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	assertUniqueComplete(t, sink.ids, service)

	// The window anchored at 4 holds exactly the ceiling, so its total
	// cannot prove the end and one more re-anchor at 6 confirms it.
	if !slices.Equal(stats.Anchors, []int64{4, 6}) {
		t.Errorf("Anchors = %v, want [4 6]", stats.Anchors)
	}
	if stats.Suppressed != 2 {
		t.Errorf("Suppressed = %d, want 2", stats.Suppressed)
	}
	if stats.Emitted != 7 || stats.Received != 9 {
		t.Errorf("Emitted = %d, Received = %d", stats.Emitted, stats.Received)
	}
	if sink.flushes != stats.Pages {
		t.Errorf("flushes = %d, pages = %d", sink.flushes, stats.Pages)
	}

	// Emission order follows the ordering key.
	for i := 1; i < len(sink.ids); i++ {
		if sink.ids[i] < sink.ids[i-1] {
			t.Errorf("out of order emission: %v", sink.ids)
			break
		}
	}
}

func TestCursorPager_BoundaryOverlapWithoutTotals(t *testing.T) {
	service := newWindowedService([]int64{1, 2, 3, 4, 4, 5, 6}, 4)
	service.reportTotal = false
	sink := &recordingSink{}

	stats, err := newTestPager(t, 2, 4).Run(context.Background(), service.fetch, sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	assertUniqueComplete(t, sink.ids, service)

	// A full last page cannot be told apart from more data, so the pager
	// re-anchors once more and finds only the already emitted record.
	if len(stats.Anchors) == 0 || stats.Anchors[0] != 4 {
		t.Errorf("Anchors = %v, want first anchor at 4", stats.Anchors)
	}
}

func TestCursorPager_CappedTotalCount(t *testing.T) {
	service := newWindowedService([]int64{1, 2, 3, 4, 4, 5, 6}, 4)
	service.totalCap = 4
	sink := &recordingSink{}

	stats, err := newTestPager(t, 2, 4).Run(context.Background(), service.fetch, sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	assertUniqueComplete(t, sink.ids, service)
	if len(stats.Anchors) == 0 || stats.Anchors[0] != 4 {
		t.Errorf("Anchors = %v, want first anchor at 4", stats.Anchors)
	}
}

func TestCursorPager_TotalCountBelowCeilingEndsRun(t *testing.T) {
	service := newWindowedService([]int64{1, 2, 3, 4}, 100)
	sink := &recordingSink{}

	stats, err := newTestPager(t, 2, 100).Run(context.Background(), service.fetch, sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	assertUniqueComplete(t, sink.ids, service)
	if stats.Pages != 2 || len(service.windows) != 2 {
		t.Errorf("Pages = %d, requests = %d, want 2 without a trailing empty page", stats.Pages, len(service.windows))
	}
}

func TestCursorPager_ServiceCeiling(t *testing.T) {
	tests := []struct {
		name        string
		reportTotal bool
	}{
		{name: "with totals", reportTotal: true},
		{name: "without totals", reportTotal: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Keys are shared by three consecutive records, so ties straddle
			// the 10,000 row cut.
			keys := make([]int64, 25000)
			for i := range keys {
				keys[i] = int64(i / 3)
			}
			service := newWindowedService(keys, ResultWindowCeiling)
			service.reportTotal = tt.reportTotal
			sink := &recordingSink{}

			pager, err := NewCursorPager[testRecord](BatchConfig{BatchSize: 500}, WithLogger(zerolog.Nop()))
			if err != nil {
				t.Fatalf("NewCursorPager() error = %v", err)
			}

			stats, err := pager.Run(context.Background(), service.fetch, sink)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			assertUniqueComplete(t, sink.ids, service)
			if len(stats.Anchors) < 2 {
				t.Errorf("expected at least two re-anchors, got %v", stats.Anchors)
			}
			for _, w := range service.windows {
				if w.PageIndex*w.PageSize > ResultWindowCeiling {
					t.Errorf("requested page %d beyond the window", w.PageIndex)
				}
			}
			for i := 1; i < len(stats.Anchors); i++ {
				if stats.Anchors[i] < stats.Anchors[i-1] {
					t.Errorf("anchors decreased: %v", stats.Anchors)
				}
			}
		})
	}
}

func TestCursorPager_ShortPageTerminates(t *testing.T) {
	service := newWindowedService([]int64{1, 2, 3, 4, 5}, 100)
	service.reportTotal = false
	sink := &recordingSink{}

	stats, err := newTestPager(t, 2, 100).Run(context.Background(), service.fetch, sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(stats.Anchors) != 0 {
		t.Errorf("expected no re-anchor, got %v", stats.Anchors)
	}
	if stats.Pages != 3 {
		t.Errorf("Pages = %d, want 3", stats.Pages)
	}
	assertUniqueComplete(t, sink.ids, service)
}

func TestCursorPager_EmptyResult(t *testing.T) {
	service := newWindowedService(nil, 100)
	sink := &recordingSink{}

	stats, err := newTestPager(t, 10, 100).Run(context.Background(), service.fetch, sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Pages != 1 || stats.Emitted != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestCursorPager_TieSpanningPages(t *testing.T) {
	// Four records share key 4; after re-anchoring at 4 the first of them
	// is no longer in the previous page and must still be suppressed.
	service := newWindowedService([]int64{1, 2, 3, 4, 4, 4, 4, 5, 6}, 6)
	sink := &recordingSink{}

	stats, err := newTestPager(t, 2, 6).Run(context.Background(), service.fetch, sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	assertUniqueComplete(t, sink.ids, service)
	if !slices.Equal(stats.Anchors, []int64{4, 6}) {
		t.Errorf("Anchors = %v, want [4 6]", stats.Anchors)
	}
	// Three of the key 4 tie group plus the last record at the second anchor.
	if stats.Suppressed != 4 {
		t.Errorf("Suppressed = %d, want 4", stats.Suppressed)
	}
}

func TestCursorPager_NoProgress(t *testing.T) {
	keys := make([]int64, 10)
	service := newWindowedService(keys, 4)
	sink := &recordingSink{}

	_, err := newTestPager(t, 2, 4).Run(context.Background(), service.fetch, sink)
	if !errors.Is(err, kaltura.ErrNoProgress) {
		t.Fatalf("expected ErrNoProgress, got %v", err)
	}

	seen := make(map[string]bool)
	for _, id := range sink.ids {
		if seen[id] {
			t.Errorf("duplicate id %s emitted before failing", id)
		}
		seen[id] = true
	}
}

func TestCursorPager_InitialLowerBound(t *testing.T) {
	service := newWindowedService([]int64{1, 2, 3, 4, 5}, 100)
	sink := &recordingSink{}

	pager, err := NewCursorPager[testRecord](BatchConfig{BatchSize: 10}, WithLowerBound(3), WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("NewCursorPager() error = %v", err)
	}
	if _, err := pager.Run(context.Background(), service.fetch, sink); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !slices.Equal(sink.ids, []string{"r002", "r003", "r004"}) {
		t.Errorf("ids = %v", sink.ids)
	}
	if service.windows[0].LowerBound == nil || *service.windows[0].LowerBound != 3 {
		t.Errorf("first window lower bound = %v", service.windows[0].LowerBound)
	}
}

func TestCursorPager_PageFailureAborts(t *testing.T) {
	service := newWindowedService([]int64{1, 2, 3, 4, 5, 6}, 100)
	sink := &recordingSink{}
	boom := errors.New("boom")

	fetch := func(ctx context.Context, w Window) (Page[testRecord], error) {
		if w.PageIndex == 2 {
			return Page[testRecord]{}, boom
		}
		return service.fetch(ctx, w)
	}

	stats, err := newTestPager(t, 2, 100).Run(context.Background(), fetch, sink)
	if !errors.Is(err, boom) {
		t.Fatalf("expected page error, got %v", err)
	}
	if !slices.Equal(sink.ids, []string{"r000", "r001"}) {
		t.Errorf("ids = %v", sink.ids)
	}
	if sink.flushes != 1 || stats.Pages != 1 {
		t.Errorf("flushes = %d, pages = %d", sink.flushes, stats.Pages)
	}
}

func TestCursorPager_SinkFailureAborts(t *testing.T) {
	service := newWindowedService([]int64{1, 2, 3}, 100)
	sink := &recordingSink{writeErr: errors.New("disk full")}

	_, err := newTestPager(t, 2, 100).Run(context.Background(), service.fetch, sink)
	if err == nil || !errors.Is(err, sink.writeErr) {
		t.Fatalf("expected sink error, got %v", err)
	}
}

func TestCursorPager_Cancellation(t *testing.T) {
	service := newWindowedService([]int64{1, 2, 3, 4, 5, 6}, 100)
	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())

	fetch := func(ctx context.Context, w Window) (Page[testRecord], error) {
		page, err := service.fetch(ctx, w)
		if w.PageIndex == 1 {
			cancel()
		}
		return page, err
	}

	stats, err := newTestPager(t, 2, 100).Run(ctx, fetch, sink)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if stats.Pages != 1 || sink.flushes != 1 {
		t.Errorf("pages = %d, flushes = %d", stats.Pages, sink.flushes)
	}
}

func TestState_String(t *testing.T) {
	if StateReanchoring.String() != "reanchoring" || StateDone.String() != "done" {
		t.Error("unexpected state names")
	}
}
