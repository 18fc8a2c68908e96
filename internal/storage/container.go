package storage

import (
	"context"
	"fmt"

	"github.com/mimir-go/internal/domain/container"
	"github.com/mimir-go/pkg/metrics"
)

// CreateContainer creates an empty, unaliased container for cfg and returns
// the record the backend reports for it.
//
// The backend only acknowledges creation, so the record is read back by name.
// A miss on read-back is reported as ErrUnknownContainer: creation succeeded
// but the container vanished before it could be observed.
func (s *Storage) CreateContainer(ctx context.Context, cfg container.Config) (*container.Index, error) {
	if err := container.ValidateSegment(cfg.DocType); err != nil {
		return nil, wrap(ErrContainerCreation, fmt.Errorf("doc type: %w", err))
	}
	if err := container.ValidateSegment(cfg.Dataset); err != nil {
		return nil, wrap(ErrContainerCreation, fmt.Errorf("dataset: %w", err))
	}

	name := s.naming.ContainerName(cfg.DocType, cfg.Dataset, s.now())

	if err := s.backend.CreateIndex(ctx, name); err != nil {
		metrics.ContainersTotal.WithLabelValues("create", "failure").Inc()
		return nil, wrap(ErrContainerCreation, err)
	}

	index, err := s.backend.FindIndex(ctx, name)
	if err != nil {
		metrics.ContainersTotal.WithLabelValues("create", "failure").Inc()
		return nil, wrap(ErrContainerCreation, fmt.Errorf("failed to read back %s: %w", name, err))
	}
	if index == nil {
		metrics.ContainersTotal.WithLabelValues("create", "unknown").Inc()
		return nil, wrap(ErrUnknownContainer, fmt.Errorf("%s not found after creation", name))
	}

	metrics.ContainersTotal.WithLabelValues("create", "success").Inc()
	s.logger.Info("Container created", "index", name, "doc_type", cfg.DocType, "dataset", cfg.Dataset)
	return s.describe(index), nil
}

// DeleteContainer removes a container. A missing container yields an error
// matching ErrIndexNotFound, which callers that know it is gone may ignore.
func (s *Storage) DeleteContainer(ctx context.Context, name string) error {
	if err := s.backend.DeleteIndex(ctx, name); err != nil {
		metrics.ContainersTotal.WithLabelValues("delete", "failure").Inc()
		return wrap(ErrContainerDeletion, err)
	}
	metrics.ContainersTotal.WithLabelValues("delete", "success").Inc()
	s.logger.Info("Container deleted", "index", name)
	return nil
}

// FindContainer returns nil, nil when no container has that name.
func (s *Storage) FindContainer(ctx context.Context, name string) (*container.Index, error) {
	index, err := s.backend.FindIndex(ctx, name)
	if err != nil {
		return nil, wrap(ErrContainerSearch, err)
	}
	if index == nil {
		return nil, nil
	}
	return s.describe(index), nil
}

// describe fills doc type, dataset and creation time from the name when the
// backend did not report them.
func (s *Storage) describe(index *container.Index) *container.Index {
	out := *index
	docType, dataset, createdAt, err := s.naming.Parse(out.Name)
	if err != nil {
		return &out
	}
	if out.DocType == "" {
		out.DocType = docType
	}
	if out.Dataset == "" {
		out.Dataset = dataset
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = createdAt
	}
	return &out
}
