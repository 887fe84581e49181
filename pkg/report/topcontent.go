package report

import (
	"fmt"
	"strconv"
	"strings"
)

// TopContentColumns is the documented header of the top content report.
var TopContentColumns = []string{
	"object_id",
	"entry_name",
	"count_plays",
	"sum_time_viewed",
	"avg_time_viewed",
	"count_loads",
	"load_play_ratio",
	"avg_view_drop_off",
	"unique_known_users",
}

// TopContent is one row of the top content report.
type TopContent struct {
	ObjectID         string  `json:"object_id"`
	EntryName        string  `json:"entry_name"`
	CountPlays       int     `json:"count_plays"`
	SumTimeViewed    float64 `json:"sum_time_viewed"`
	AvgTimeViewed    float64 `json:"avg_time_viewed"`
	CountLoads       int     `json:"count_loads"`
	LoadPlayRatio    float64 `json:"load_play_ratio"`
	AvgViewDropOff   float64 `json:"avg_view_drop_off"`
	UniqueKnownUsers int     `json:"unique_known_users"`
}

// DecodeTopContent decodes a top content table. The header must contain
// exactly the documented columns, in any order.
func DecodeTopContent(t Table) ([]TopContent, error) {
	if t.Empty() {
		return []TopContent{}, nil
	}

	index, err := columnIndex(t.Header, TopContentColumns)
	if err != nil {
		return nil, fmt.Errorf("decode top content: %w", err)
	}

	out := make([]TopContent, 0, len(t.Rows))
	for n, row := range t.Rows {
		if len(row) != len(t.Header) {
			return nil, fmt.Errorf("decode top content: row %d has %d columns, want %d", n+1, len(row), len(t.Header))
		}
		d := rowDecoder{row: row, index: index}
		tc := TopContent{
			ObjectID:         d.str("object_id"),
			EntryName:        d.str("entry_name"),
			CountPlays:       d.integer("count_plays"),
			SumTimeViewed:    d.number("sum_time_viewed"),
			AvgTimeViewed:    d.number("avg_time_viewed"),
			CountLoads:       d.integer("count_loads"),
			LoadPlayRatio:    d.number("load_play_ratio"),
			AvgViewDropOff:   d.number("avg_view_drop_off"),
			UniqueKnownUsers: d.integer("unique_known_users"),
		}
		if d.err != nil {
			return nil, fmt.Errorf("decode top content: row %d: %w", n+1, d.err)
		}
		out = append(out, tc)
	}
	return out, nil
}

// rowDecoder reads typed cells and keeps the first conversion error.
type rowDecoder struct {
	row   []string
	index map[string]int
	err   error
}

func (d *rowDecoder) str(col string) string {
	return strings.TrimSpace(d.row[d.index[col]])
}

func (d *rowDecoder) integer(col string) int {
	s := d.str(col)
	if s == "" || d.err != nil {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		// Counts are occasionally rendered as floats.
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			d.err = fmt.Errorf("column %s: %w", col, err)
			return 0
		}
		return int(f)
	}
	return v
}

func (d *rowDecoder) number(col string) float64 {
	s := d.str(col)
	if s == "" || d.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		d.err = fmt.Errorf("column %s: %w", col, err)
		return 0
	}
	return v
}
