package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/mimir-go/internal/domain/container"
	"github.com/mimir-go/internal/storage"
	"github.com/mimir-go/pkg/metrics"
)

func (b *Backend) BulkInsert(ctx context.Context, index, pipeline string, items <-chan storage.BulkItem) (container.InsertStats, error) {
	return b.bulkSubmit(ctx, "bulk_insert", "index", index, pipeline, items)
}

func (b *Backend) BulkUpdate(ctx context.Context, index string, items <-chan storage.BulkItem) (container.InsertStats, error) {
	return b.bulkSubmit(ctx, "bulk_update", "update", index, "", items)
}

// bulkSubmit streams items through an esutil.BulkIndexer. Items rejected by
// the cluster are counted as failed; a failed flush is returned as an error.
func (b *Backend) bulkSubmit(ctx context.Context, operation, action, index, pipeline string, items <-chan storage.BulkItem) (container.InsertStats, error) {
	var stats container.InsertStats

	err := b.breaker.Do(ctx, func(ctx context.Context) error {
		var (
			mu       sync.Mutex
			flushErr error
		)

		indexer, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
			Client:        b.client,
			Index:         index,
			Pipeline:      pipeline,
			NumWorkers:    b.bulk.workers,
			FlushBytes:    b.bulk.flushBytes,
			FlushInterval: b.bulk.flushInterval,
			OnError: func(ctx context.Context, err error) {
				mu.Lock()
				defer mu.Unlock()
				if flushErr == nil {
					flushErr = err
				}
			},
		})
		if err != nil {
			return fmt.Errorf("failed to create bulk indexer: %w", err)
		}

		addErr := b.feed(ctx, indexer, action, items)

		// Close flushes what was added, even when feeding stopped early.
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		defer cancel()
		closeErr := indexer.Close(closeCtx)

		s := indexer.Stats()
		stats = container.InsertStats{
			Inserted: s.NumIndexed + s.NumCreated,
			Updated:  s.NumUpdated,
			Failed:   s.NumFailed,
		}

		mu.Lock()
		defer mu.Unlock()
		switch {
		case addErr != nil:
			return addErr
		case flushErr != nil:
			return flushErr
		default:
			return closeErr
		}
	})

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.BackendRequestsTotal.WithLabelValues(operation, status).Inc()

	if stats.Failed > 0 {
		b.logger.Warn("Bulk items rejected", "operation", operation, "index", index, "failed", stats.Failed)
	}
	return stats, err
}

func (b *Backend) feed(ctx context.Context, indexer esutil.BulkIndexer, action string, items <-chan storage.BulkItem) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item, ok := <-items:
			if !ok {
				return nil
			}
			body, err := json.Marshal(item.Body)
			if err != nil {
				return fmt.Errorf("failed to encode document %s: %w", item.ID, err)
			}
			err = indexer.Add(ctx, esutil.BulkIndexerItem{
				Action:     action,
				DocumentID: item.ID,
				Body:       bytes.NewReader(body),
			})
			if err != nil {
				return err
			}
		}
	}
}
