package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/mimir-go/internal/domain/container"
	"github.com/mimir-go/pkg/metrics"
)

// UpdateScript is the body of a scripted partial update.
type UpdateScript struct {
	Script Script `json:"script"`
}

type Script struct {
	Source string         `json:"source"`
	Lang   string         `json:"lang"`
	Params map[string]any `json:"params"`
}

// ScriptFor translates an update operation into a backend script. The field
// name is part of the script source and must pass policy; values only ever
// travel as script parameters.
func ScriptFor(op container.UpdateOperation, policy container.FieldPolicy) (UpdateScript, error) {
	switch op := op.(type) {
	case container.Set:
		if err := policy.Check(op.Field); err != nil {
			return UpdateScript{}, err
		}
		return UpdateScript{
			Script: Script{
				Source: "ctx._source." + op.Field + " = params.value",
				Lang:   "painless",
				Params: map[string]any{"value": op.Value},
			},
		}, nil
	default:
		return UpdateScript{}, fmt.Errorf("unsupported update operation %T", op)
	}
}

// UpdateDocuments applies partial updates to documents of index, translating
// each operation as it is pulled from the channel.
//
// The first operation that cannot be translated stops the stream: operations
// before it have been submitted, none after it are.
func (s *Storage) UpdateDocuments(ctx context.Context, index string, operations <-chan container.UpdateItem) (container.InsertStats, error) {
	start := time.Now()
	bulkCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	st := mapItems(bulkCtx, operations, func(item container.UpdateItem) (BulkItem, error) {
		if item.ID == "" {
			return BulkItem{}, ErrMissingDocumentID
		}
		script, err := ScriptFor(item.Operation, s.fields)
		if err != nil {
			return BulkItem{}, fmt.Errorf("document %s: %w", item.ID, err)
		}
		return BulkItem{ID: item.ID, Body: script}, nil
	})

	stats, err := s.backend.BulkUpdate(bulkCtx, index, st.items)
	cancel()
	mapErr := st.wait()
	if err == nil && mapErr == nil {
		// A cancelled source truncates the stream; report it.
		err = ctx.Err()
	}

	metrics.BulkDuration.WithLabelValues("update").Observe(time.Since(start).Seconds())
	recordStats("update", stats)

	if err != nil {
		return stats, wrap(ErrDocumentUpdate, err)
	}
	if mapErr != nil {
		return stats, wrap(ErrDocumentUpdate, mapErr)
	}

	s.logger.Info("Documents updated", "index", index,
		"updated", stats.Updated, "failed", stats.Failed, "duration", time.Since(start))
	return stats, nil
}
