// Package storage manages search containers on a document search backend:
// their lifecycle, the documents streamed into them, the schema templates
// they are created from, and the alias cutover that makes a freshly built
// container the one served to queries.
package storage

import (
	"context"
	_ "embed"
	"time"

	"github.com/mimir-go/internal/domain/container"
	"github.com/mimir-go/pkg/events"
	"github.com/mimir-go/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/mimir-go/internal/storage"

//go:embed pipeline/indexed_at.json
var indexedAtPipeline []byte

// Pipeline is the ingest pipeline installed before every insertion.
type Pipeline struct {
	Name string
	Body []byte
}

// DefaultPipeline stamps documents with the time they were ingested.
func DefaultPipeline() Pipeline {
	return Pipeline{Name: "indexed_at", Body: indexedAtPipeline}
}

type ForceMergeConfig struct {
	Enabled           bool
	MaxNumberSegments int
}

// Storage implements the container operations on top of a Backend. It holds no
// mutable state; concurrent use is safe as far as the backend allows.
type Storage struct {
	backend    Backend
	naming     container.Naming
	fields     container.FieldPolicy
	pipeline   Pipeline
	forceMerge ForceMergeConfig
	locker     Locker
	eventBus   events.EventBus
	logger     logger.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

type Option func(*Storage)

func WithNaming(naming container.Naming) Option {
	return func(s *Storage) { s.naming = naming }
}

// WithFieldPolicy restricts the fields update operations may target.
func WithFieldPolicy(policy container.FieldPolicy) Option {
	return func(s *Storage) { s.fields = policy }
}

func WithPipeline(pipeline Pipeline) Option {
	return func(s *Storage) { s.pipeline = pipeline }
}

func WithForceMerge(cfg ForceMergeConfig) Option {
	return func(s *Storage) { s.forceMerge = cfg }
}

// WithLocker makes publications of a dataset mutually exclusive. Without it,
// concurrent publications of one dataset race.
func WithLocker(locker Locker) Option {
	return func(s *Storage) { s.locker = locker }
}

func WithEventBus(bus events.EventBus) Option {
	return func(s *Storage) { s.eventBus = bus }
}

func WithLogger(log logger.Logger) Option {
	return func(s *Storage) { s.logger = log }
}

// WithTracerProvider traces publications on tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Storage) { s.tracer = tp.Tracer(tracerName) }
}

func WithClock(now func() time.Time) Option {
	return func(s *Storage) { s.now = now }
}

func New(backend Backend, opts ...Option) *Storage {
	s := &Storage{
		backend:  backend,
		naming:   container.Naming{Root: container.DefaultRoot},
		pipeline: DefaultPipeline(),
		logger:   logger.NewNop(),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Naming exposes the alias and container naming in use.
func (s *Storage) Naming() container.Naming {
	return s.naming
}

func (s *Storage) emit(ctx context.Context, event events.Event) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish event", "type", event.Type, "container", event.Container, "error", err)
	}
}
