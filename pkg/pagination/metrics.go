package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// pagerPages tracks fetched pages per export
	pagerPages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kaltura_export_pages_total",
			Help: "Total number of pages fetched by cursor exports",
		},
		[]string{"export"},
	)

	// pagerRecords tracks received records (including suppressed duplicates)
	pagerRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kaltura_export_records_total",
			Help: "Total number of records received by cursor exports",
		},
		[]string{"export"},
	)

	// pagerReanchors tracks result window re-anchors
	pagerReanchors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kaltura_export_reanchors_total",
			Help: "Total number of result window re-anchors",
		},
		[]string{"export"},
	)

	// pagerRuns tracks finished exports by result
	pagerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kaltura_export_runs_total",
			Help: "Total number of cursor exports by result",
		},
		[]string{"export", "result"}, // "success", "failure"
	)

	// batchFetches tracks id batches fetched by BatchFetcher
	batchFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kaltura_batch_fetches_total",
			Help: "Total number of id batches fetched",
		},
		[]string{"result"},
	)
)
