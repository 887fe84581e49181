package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/kaltura-client/pkg/kaltura"
	"github.com/Sternrassler/kaltura-client/pkg/report"
)

// ReportRequest selects one analytics report.
type ReportRequest struct {
	Type      report.Type
	Filter    ReportFilter
	Order     string
	ObjectIDs []string
}

// ReportFilter is the report input filter.
type ReportFilter struct {
	From time.Time
	To   time.Time

	// Domain restricts plays to one referring domain. Optional.
	Domain string
}

func (f ReportFilter) params() map[string]any {
	p := map[string]any{"objectType": "KalturaReportInputFilter"}
	if !f.From.IsZero() {
		p["fromDay"] = f.From.Format("20060102")
	}
	if !f.To.IsZero() {
		p["toDay"] = f.To.Format("20060102")
	}
	if f.Domain != "" {
		p["domainIn"] = f.Domain
	}
	return p
}

// ReportTable pages through report.getTable until every row is read or the
// result window ceiling is reached.
func (c *Client) ReportTable(ctx context.Context, req ReportRequest) (report.Table, error) {
	if req.Type == "" {
		return report.Table{}, fmt.Errorf("%w: report type is required", kaltura.ErrConfiguration)
	}
	order := req.Order
	if order == "" {
		order = report.OrderCreatedAtAsc
	}

	batch := c.Batch().BatchSize
	var table report.Table
	totalCount := batch
	index := 0

	for totalCount > batch*index && c.ceiling > batch*index {
		index++
		params := map[string]any{
			"reportType":        string(req.Type),
			"reportInputFilter": req.Filter.params(),
			"pager":             kaltura.Pager{PageSize: batch, PageIndex: index}.Params(),
			"order":             order,
		}
		if len(req.ObjectIDs) > 0 {
			params["objectIds"] = strings.Join(req.ObjectIDs, ",")
		}

		raw, err := do[kaltura.ReportTable](ctx, c, kaltura.NewCall("report", "getTable", params))
		if err != nil {
			return report.Table{}, fmt.Errorf("report page %d: %w", index, err)
		}
		if raw.Data == "" {
			break
		}
		table.Append(raw)
		totalCount = raw.TotalCount
	}

	c.logger.Debug().
		Str("report_type", string(req.Type)).
		Int("rows", len(table.Rows)).
		Int("pages", index).
		Msg("Report table read")
	return table, nil
}

// TopContent returns the top content report for the given entries.
func (c *Client) TopContent(ctx context.Context, filter ReportFilter, entryIDs []string) ([]report.TopContent, error) {
	table, err := c.ReportTable(ctx, ReportRequest{
		Type:      report.TypeTopContent,
		Filter:    filter,
		ObjectIDs: uniqueNonEmpty(entryIDs),
	})
	if err != nil {
		return nil, err
	}
	return report.DecodeTopContent(table)
}

// ReportFromIDs writes the top content report of every id to w, querying
// the ids in batches of the result window ceiling. It returns the number of
// rows written.
func (c *Client) ReportFromIDs(ctx context.Context, ids []string, filter ReportFilter, w *report.CSVWriter) (int, error) {
	ids = uniqueNonEmpty(ids)
	c.logger.Info().Int("ids", len(ids)).Msg("Starting report from object ids")

	for start := 0; start < len(ids); start += c.ceiling {
		end := min(start+c.ceiling, len(ids))
		table, err := c.ReportTable(ctx, ReportRequest{
			Type:      report.TypeTopContent,
			Filter:    filter,
			ObjectIDs: ids[start:end],
		})
		if err != nil {
			return w.Rows(), err
		}
		if err := w.WriteTable(table); err != nil {
			return w.Rows(), err
		}
		if err := w.Flush(); err != nil {
			return w.Rows(), err
		}
		c.logger.Info().
			Int("queried", end).
			Int("rows", w.Rows()).
			Msg("Report batch written")
	}

	c.logger.Info().Int("rows", w.Rows()).Msg("Finished report from object ids")
	return w.Rows(), nil
}
