package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel requests
	MaxConcurrency int
	// Timeout per batch fetch
	Timeout time.Duration
	// BatchSize is the number of ids per request
	BatchSize int
	// Logger defaults to the global logger
	Logger *zerolog.Logger
}

// DefaultConfig returns safe default configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        2 * time.Minute,
		BatchSize:      MaxBatchSize,
	}
}

// BatchFunc fetches the records for one batch of ids
type BatchFunc[T any] func(ctx context.Context, ids []string) ([]T, error)

// batchResult represents the result of fetching a single batch
type batchResult[T any] struct {
	Index   int
	Records []T
	Error   error
}

// BatchFetcher handles parallel fetching of id batches
type BatchFetcher[T any] struct {
	fetch  BatchFunc[T]
	config Config
	logger zerolog.Logger
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher[T any](fetch BatchFunc[T], config Config) *BatchFetcher[T] {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Minute
	}
	if config.BatchSize <= 0 {
		config.BatchSize = MaxBatchSize
	}

	logger := log.Logger
	if config.Logger != nil {
		logger = *config.Logger
	}

	return &BatchFetcher[T]{
		fetch:  fetch,
		config: config,
		logger: logger,
	}
}

// Split cuts ids into consecutive batches of at most size ids
func Split(ids []string, size int) [][]string {
	if size <= 0 || len(ids) == 0 {
		return nil
	}
	batches := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end])
	}
	return batches
}

// FetchAll fetches the records of all ids in parallel using a worker pool.
// Records are returned in batch order. The first failed batch cancels the
// remaining work and fails the whole call; no partial results are returned.
func (bf *BatchFetcher[T]) FetchAll(ctx context.Context, ids []string) ([]T, error) {
	start := time.Now()
	batches := Split(ids, bf.config.BatchSize)
	if len(batches) == 0 {
		return nil, nil
	}

	bf.logger.Info().
		Int("ids", len(ids)).
		Int("batches", len(batches)).
		Msg("Starting parallel batch fetch")

	// Single batch optimization
	if len(batches) == 1 {
		records, err := bf.fetchOne(ctx, batches[0])
		if err != nil {
			batchFetches.WithLabelValues("failure").Inc()
			return nil, fmt.Errorf("fetch batch 1/1: %w", err)
		}
		batchFetches.WithLabelValues("success").Inc()
		return records, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Create channels
	batchQueue := make(chan int, len(batches))
	results := make(chan batchResult[T], len(batches))

	for i := range batches {
		batchQueue <- i
	}
	close(batchQueue)

	// Start worker pool
	workers := min(bf.config.MaxConcurrency, len(batches))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go bf.worker(ctx, batches, batchQueue, results, &wg, i)
	}

	// Close results channel when all workers done
	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect results
	collected := make([][]T, len(batches))
	fetched := 0
	var firstErr error
	for result := range results {
		if result.Error != nil {
			batchFetches.WithLabelValues("failure").Inc()
			if firstErr == nil {
				firstErr = fmt.Errorf("fetch batch %d/%d: %w", result.Index+1, len(batches), result.Error)
				cancel()
			}
			continue
		}
		batchFetches.WithLabelValues("success").Inc()
		collected[result.Index] = result.Records
		fetched++

		// Progress logging every 10 batches
		if fetched%10 == 0 {
			bf.logger.Info().
				Int("fetched", fetched).
				Int("total", len(batches)).
				Float64("progress_pct", float64(fetched)/float64(len(batches))*100).
				Msg("Fetch progress")
		}
	}

	if firstErr != nil {
		bf.logger.Warn().
			Err(firstErr).
			Int("fetched_batches", fetched).
			Int("total_batches", len(batches)).
			Msg("Batch fetch failed")
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil && fetched < len(batches) {
		return nil, fmt.Errorf("batch fetch cancelled (%d/%d batches): %w", fetched, len(batches), err)
	}

	var out []T
	for _, records := range collected {
		out = append(out, records...)
	}

	bf.logger.Info().
		Int("batches", fetched).
		Int("records", len(out)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return out, nil
}

func (bf *BatchFetcher[T]) fetchOne(ctx context.Context, ids []string) ([]T, error) {
	batchCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
	defer cancel()
	return bf.fetch(batchCtx, ids)
}

// worker processes batches from the queue
func (bf *BatchFetcher[T]) worker(ctx context.Context, batches [][]string, queue <-chan int, results chan<- batchResult[T], wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for index := range queue {
		// Check context cancellation
		select {
		case <-ctx.Done():
			bf.logger.Debug().
				Int("worker_id", workerID).
				Int("batches_processed", processed).
				Msg("Worker stopping (context cancelled)")
			return
		default:
		}

		records, err := bf.fetchOne(ctx, batches[index])
		// results is buffered for every batch, so the send never blocks
		results <- batchResult[T]{Index: index, Records: records, Error: err}
		if err != nil {
			bf.logger.Warn().
				Err(err).
				Int("worker_id", workerID).
				Int("batch", index+1).
				Msg("Batch fetch failed")
			return
		}
		processed++
	}

	if processed > 0 {
		bf.logger.Debug().
			Int("worker_id", workerID).
			Int("batches_processed", processed).
			Msg("Worker completed")
	}
}
