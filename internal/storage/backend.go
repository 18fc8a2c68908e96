package storage

import (
	"context"
	"errors"

	"github.com/mimir-go/internal/domain/container"
)

// ErrIndexNotFound is returned by a Backend when the named index does not
// exist.
var ErrIndexNotFound = errors.New("index not found")

// BulkItem is one document handed to a bulk submission. Body is serialized
// by the backend.
type BulkItem struct {
	ID   string
	Body any
}

// Backend is the search engine as seen by the storage layer. Every method is a
// single remote call with its own atomicity; nothing spans calls.
type Backend interface {
	CreateIndex(ctx context.Context, name string) error
	DeleteIndex(ctx context.Context, name string) error
	// FindIndex returns nil without error when the index does not exist.
	FindIndex(ctx context.Context, name string) (*container.Index, error)
	// ListIndices lists indices matching pattern together with the aliases
	// pointing at each of them.
	ListIndices(ctx context.Context, pattern string) (map[string][]string, error)
	RefreshIndex(ctx context.Context, name string) error
	ForceMerge(ctx context.Context, indices []string, maxSegments int) error

	PutPipeline(ctx context.Context, name string, body []byte) error
	// BulkInsert and BulkUpdate consume items until the channel is closed or
	// ctx is done, batching them on their own terms.
	BulkInsert(ctx context.Context, index, pipeline string, items <-chan BulkItem) (container.InsertStats, error)
	BulkUpdate(ctx context.Context, index string, items <-chan BulkItem) (container.InsertStats, error)

	// AliasedIndices returns the indices the alias points at, empty when the
	// alias does not exist.
	AliasedIndices(ctx context.Context, alias string) ([]string, error)
	// UpdateAlias adds and removes alias targets in one atomic request.
	UpdateAlias(ctx context.Context, alias string, add, remove []string) error

	PutComponentTemplate(ctx context.Context, name string, body []byte) error
	PutIndexTemplate(ctx context.Context, name string, body []byte) error
}

// Locker serializes publications of one dataset across processes.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(context.Context) error, err error)
}
