package pagination

// OverlapDeduplicator suppresses records that reappear across a page or
// re-anchor boundary.
//
// It remembers the ids of the previous page and the ids of every emitted
// record sharing the largest ordering key seen so far (the tie group). The
// tie group is what a re-anchored query (ordering key >= boundary) returns
// again, so it is suppressed even when it spans more than one page. Memory
// is bounded by the batch size plus the size of the tie group.
type OverlapDeduplicator struct {
	previous map[string]struct{}
	current  map[string]struct{}

	tie      map[string]struct{}
	tieKey   int64
	hasTie   bool
	maxKey   int64
	hasMax   bool
	rejected int
}

// NewOverlapDeduplicator creates an empty deduplicator.
func NewOverlapDeduplicator() *OverlapDeduplicator {
	return &OverlapDeduplicator{
		previous: make(map[string]struct{}),
		current:  make(map[string]struct{}),
		tie:      make(map[string]struct{}),
	}
}

// Accept reports whether the record should be emitted and remembers it.
func (d *OverlapDeduplicator) Accept(id string, key int64) bool {
	if d.Seen(id) {
		d.rejected++
		return false
	}

	d.current[id] = struct{}{}

	switch {
	case !d.hasTie || key > d.tieKey:
		clear(d.tie)
		d.tie[id] = struct{}{}
		d.tieKey = key
		d.hasTie = true
	case key == d.tieKey:
		d.tie[id] = struct{}{}
	}

	if !d.hasMax || key > d.maxKey {
		d.maxKey = key
		d.hasMax = true
	}
	return true
}

// Seen reports whether id was emitted in the previous or current page or
// belongs to the current tie group.
func (d *OverlapDeduplicator) Seen(id string) bool {
	if _, ok := d.current[id]; ok {
		return true
	}
	if _, ok := d.previous[id]; ok {
		return true
	}
	_, ok := d.tie[id]
	return ok
}

// EndPage rotates the current page into the previous-page slot.
func (d *OverlapDeduplicator) EndPage() {
	d.previous, d.current = d.current, d.previous
	clear(d.current)
}

// MaxKey returns the largest ordering key accepted so far.
func (d *OverlapDeduplicator) MaxKey() (int64, bool) {
	return d.maxKey, d.hasMax
}

// Suppressed returns the number of rejected records.
func (d *OverlapDeduplicator) Suppressed() int {
	return d.rejected
}
