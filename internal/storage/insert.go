package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mimir-go/internal/domain/container"
	"github.com/mimir-go/pkg/metrics"
)

var ErrMissingDocumentID = errors.New("document has no id")

// InsertDocuments streams documents into index.
//
// The ingest pipeline is (re)installed on every call, before any document is
// read; if that fails nothing is submitted. Documents are pulled from the
// channel only as fast as the backend's bulk submission accepts them. Items
// already handed to the backend stay submitted if the call later fails.
func (s *Storage) InsertDocuments(ctx context.Context, index string, documents <-chan container.Document) (container.InsertStats, error) {
	if err := s.backend.PutPipeline(ctx, s.pipeline.Name, s.pipeline.Body); err != nil {
		return container.InsertStats{}, wrap(ErrDocumentInsertion, fmt.Errorf("failed to install pipeline %s: %w", s.pipeline.Name, err))
	}

	start := time.Now()
	bulkCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	st := mapItems(bulkCtx, documents, func(doc container.Document) (BulkItem, error) {
		id := doc.ID()
		if id == "" {
			return BulkItem{}, ErrMissingDocumentID
		}
		return BulkItem{ID: id, Body: doc}, nil
	})

	stats, err := s.backend.BulkInsert(bulkCtx, index, s.pipeline.Name, st.items)
	cancel()
	mapErr := st.wait()
	if err == nil && mapErr == nil {
		// A cancelled source truncates the stream; report it.
		err = ctx.Err()
	}

	metrics.BulkDuration.WithLabelValues("insert").Observe(time.Since(start).Seconds())
	recordStats("insert", stats)

	if err != nil {
		return stats, wrap(ErrDocumentInsertion, err)
	}
	if mapErr != nil {
		return stats, wrap(ErrDocumentInsertion, mapErr)
	}

	s.logger.Info("Documents inserted", "index", index,
		"inserted", stats.Inserted, "updated", stats.Updated, "failed", stats.Failed,
		"duration", time.Since(start))
	return stats, nil
}

func recordStats(operation string, stats container.InsertStats) {
	metrics.DocumentsTotal.WithLabelValues(operation, "inserted").Add(float64(stats.Inserted))
	metrics.DocumentsTotal.WithLabelValues(operation, "updated").Add(float64(stats.Updated))
	metrics.DocumentsTotal.WithLabelValues(operation, "failed").Add(float64(stats.Failed))
}
