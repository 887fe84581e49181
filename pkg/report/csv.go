package report

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
)

// CSVWriter writes report tables as CSV. The header is written once, before
// the first row.
type CSVWriter struct {
	w             *csv.Writer
	headerWritten bool
	rows          int
}

// NewCSVWriter creates a CSV writer.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// WriteTable writes the rows of t, preceded by its header on first use.
func (c *CSVWriter) WriteTable(t Table) error {
	if !c.headerWritten && len(t.Header) > 0 {
		if err := c.w.Write(t.Header); err != nil {
			return fmt.Errorf("write report header: %w", err)
		}
		c.headerWritten = true
	}
	for _, row := range t.Rows {
		if err := c.w.Write(row); err != nil {
			return fmt.Errorf("write report row: %w", err)
		}
		c.rows++
	}
	return nil
}

// Rows returns the number of data rows written.
func (c *CSVWriter) Rows() int {
	return c.rows
}

// Flush flushes buffered rows.
func (c *CSVWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

// ReadExportIDs reads the id of every record of a JSON lines export.
func ReadExportIDs(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var ids []string
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var record struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal([]byte(text), &record); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if record.ID == "" {
			return nil, fmt.Errorf("line %d: record has no id", line)
		}
		ids = append(ids, record.ID)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	return ids, nil
}
