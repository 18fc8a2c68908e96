package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mimir-go/internal/domain/container"
	"github.com/mimir-go/pkg/events"
	"github.com/mimir-go/pkg/metrics"
	"github.com/mimir-go/pkg/saga"
	"github.com/mimir-go/pkg/telemetry"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const publishSaga = "publish"

// PublishIndex makes index the current container of its dataset and, when
// public, of its doc type and of the global alias; then deletes the
// containers it replaces.
//
// Each alias repoint is atomic on its own but the sequence is not: a failure
// midway leaves aliases on different generations and nothing is rolled back.
// Calling PublishIndex again converges, since the replaced containers are
// recomputed on every call. Deletion stops at the first failure, leaving
// unaliased orphans behind. A compaction failure is returned as ErrCompaction
// after the container is already live.
func (s *Storage) PublishIndex(ctx context.Context, index container.Index, visibility container.Visibility) (err error) {
	if err := container.ValidateSegment(index.DocType); err != nil {
		return wrap(ErrIndexPublication, fmt.Errorf("doc type: %w", err))
	}
	if err := container.ValidateSegment(index.Dataset); err != nil {
		return wrap(ErrIndexPublication, fmt.Errorf("dataset: %w", err))
	}

	ctx, span := s.tracer.Start(ctx, "PublishIndex",
		trace.WithAttributes(telemetry.IndexAttribute(index.Name), telemetry.VisibilityAttribute(visibility.String())))
	defer span.End()

	defer func() {
		status := "success"
		switch {
		case errors.Is(err, ErrCompaction):
			status = "compaction_failure"
		case err != nil:
			status = "failure"
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.PublicationsTotal.WithLabelValues(visibility.String(), status).Inc()
	}()

	datasetAlias := s.naming.DatasetAlias(index.DocType, index.Dataset)

	if s.locker != nil {
		release, err := s.locker.Lock(ctx, datasetAlias)
		if err != nil {
			return wrap(ErrIndexPublication, err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("Failed to release publication lock", "alias", datasetAlias, "error", err)
			}
		}()
	}

	run := saga.Begin(publishSaga, s.logger, "index", index.Name, "visibility", visibility.String())

	if err := run.Step(ctx, "refresh", func(ctx context.Context) error {
		return s.backend.RefreshIndex(ctx, index.Name)
	}); err != nil {
		return wrap(ErrIndexPublication, err)
	}

	aliases := []string{datasetAlias}
	if visibility == container.Public {
		aliases = append(aliases, s.naming.TypeAlias(index.DocType), s.naming.GlobalAlias())
	}

	var previous []string
	if err := run.Step(ctx, "snapshot", func(ctx context.Context) error {
		var err error
		previous, err = s.previousIndices(ctx, index, aliases)
		return err
	}); err != nil {
		return wrap(ErrIndexPublication, err)
	}

	for _, alias := range aliases {
		if err := run.Step(ctx, "repoint "+alias, func(ctx context.Context) error {
			return s.repoint(ctx, alias, index.Name, previous)
		}); err != nil {
			return wrap(ErrIndexPublication, err)
		}
	}

	if err := run.Step(ctx, "delete previous", func(ctx context.Context) error {
		return s.deletePrevious(ctx, previous)
	}); err != nil {
		return wrap(ErrIndexPublication, err)
	}

	s.logger.Info("Container published", "index", index.Name, "visibility", visibility.String(),
		"aliases", aliases, "replaced", previous)
	s.emit(ctx, events.Event{
		Type:      events.ContainerPublished,
		Container: index.Name,
		DocType:   index.DocType,
		Dataset:   index.Dataset,
		Payload: map[string]interface{}{
			"visibility": visibility.String(),
			"aliases":    aliases,
			"replaced":   previous,
		},
	})

	if s.forceMerge.Enabled {
		if err := run.Step(ctx, "force merge", func(ctx context.Context) error {
			return s.backend.ForceMerge(ctx, []string{index.Name}, s.forceMerge.MaxNumberSegments)
		}); err != nil {
			return wrap(ErrCompaction, err)
		}
	}

	return nil
}

// previousIndices snapshots, before any repoint, the containers of index's
// dataset that the aliases currently reference: everything behind the dataset
// alias, plus the dataset's own containers behind the wider aliases, which
// only differ after a torn publish. index itself is excluded so a republish
// never deletes it.
func (s *Storage) previousIndices(ctx context.Context, index container.Index, aliases []string) ([]string, error) {
	prefix := s.naming.DatasetAlias(index.DocType, index.Dataset) + "_"

	var previous []string
	for i, alias := range aliases {
		current, err := s.backend.AliasedIndices(ctx, alias)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve alias %s: %w", alias, err)
		}
		for _, name := range current {
			if name == index.Name || (i > 0 && !strings.HasPrefix(name, prefix)) {
				continue
			}
			previous = append(previous, name)
		}
	}

	slices.Sort(previous)
	return slices.Compact(previous), nil
}

func (s *Storage) repoint(ctx context.Context, alias, index string, previous []string) error {
	if err := s.backend.UpdateAlias(ctx, alias, []string{index}, previous); err != nil {
		return fmt.Errorf("failed to repoint alias %s to %s: %w", alias, index, err)
	}
	return nil
}

// deletePrevious deletes containers one by one and stops at the first
// failure. Containers that are already gone count as deleted.
func (s *Storage) deletePrevious(ctx context.Context, previous []string) error {
	for _, name := range previous {
		err := s.DeleteContainer(ctx, name)
		if err != nil && !errors.Is(err, ErrIndexNotFound) {
			return err
		}
	}
	return nil
}
