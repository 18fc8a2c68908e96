package storage

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/mimir-go/pkg/events"
)

// PruneOrphans deletes containers that no alias references and that were
// created more than minAge ago. The age guard keeps containers still being
// built. It returns the names it deleted and stops at the first failure.
func (s *Storage) PruneOrphans(ctx context.Context, minAge time.Duration) ([]string, error) {
	indices, err := s.backend.ListIndices(ctx, s.naming.ContainerPattern())
	if err != nil {
		return nil, wrap(ErrContainerSearch, err)
	}

	names := make([]string, 0, len(indices))
	for name := range indices {
		names = append(names, name)
	}
	sort.Strings(names)

	now := s.now()
	var pruned []string
	for _, name := range names {
		if len(indices[name]) > 0 {
			continue
		}
		docType, dataset, createdAt, err := s.naming.Parse(name)
		if err != nil || now.Sub(createdAt) < minAge {
			continue
		}

		if err := s.DeleteContainer(ctx, name); err != nil && !errors.Is(err, ErrIndexNotFound) {
			return pruned, err
		}
		pruned = append(pruned, name)
		s.emit(ctx, events.Event{
			Type:      events.ContainerPruned,
			Container: name,
			DocType:   docType,
			Dataset:   dataset,
		})
	}

	if len(pruned) > 0 {
		s.logger.Info("Orphaned containers pruned", "count", len(pruned), "containers", pruned)
	}
	return pruned, nil
}
