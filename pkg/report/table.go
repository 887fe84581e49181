// Package report decodes analytics report tables and writes them as CSV.
//
// The service returns report tables as a header line of comma separated
// column names and a data string of rows separated by ';'. Decoding is
// schema validated: a table whose header does not match the expected
// columns is rejected instead of being mapped by position.
package report

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/kaltura-client/pkg/kaltura"
)

// Type identifies a report (KalturaReportType).
type Type string

// Report types and orderings used by this client.
const (
	TypeTopContent Type = "1"

	OrderCreatedAtAsc = "+created_at"
)

const (
	rowSeparator    = ";"
	columnSeparator = ","
)

// Table is a parsed report table.
type Table struct {
	Header     []string
	Rows       [][]string
	TotalCount int
}

// ParseTable splits a raw report table into header and rows. Empty rows are
// dropped.
func ParseTable(raw kaltura.ReportTable) Table {
	t := Table{TotalCount: raw.TotalCount}
	if h := strings.TrimSpace(raw.Header); h != "" {
		t.Header = strings.Split(h, columnSeparator)
	}
	t.Rows = splitRows(raw.Data)
	return t
}

// Append adds the rows of a later page of the same report.
func (t *Table) Append(raw kaltura.ReportTable) {
	if len(t.Header) == 0 && strings.TrimSpace(raw.Header) != "" {
		t.Header = strings.Split(strings.TrimSpace(raw.Header), columnSeparator)
	}
	t.Rows = append(t.Rows, splitRows(raw.Data)...)
	t.TotalCount = raw.TotalCount
}

// Empty reports whether the table has no rows.
func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

func splitRows(data string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(data, rowSeparator) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, strings.Split(line, columnSeparator))
	}
	return rows
}

// columnIndex maps each expected column to its position in header.
func columnIndex(header []string, expected []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("duplicate report column %q", name)
		}
		index[name] = i
	}

	known := make(map[string]bool, len(expected))
	for _, name := range expected {
		known[name] = true
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("missing report column %q", name)
		}
	}
	for name := range index {
		if !known[name] {
			return nil, fmt.Errorf("unknown report column %q", name)
		}
	}
	return index, nil
}
