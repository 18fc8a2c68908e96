package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mimir-go/internal/domain/container"
	"github.com/mimir-go/internal/storage"
	"github.com/mimir-go/pkg/lock"
	"github.com/mimir-go/pkg/logger"
)

// Storage is the part of the storage layer the admin API drives.
type Storage interface {
	CreateContainer(ctx context.Context, cfg container.Config) (*container.Index, error)
	DeleteContainer(ctx context.Context, name string) error
	FindContainer(ctx context.Context, name string) (*container.Index, error)
	InsertDocuments(ctx context.Context, index string, documents <-chan container.Document) (container.InsertStats, error)
	UpdateDocuments(ctx context.Context, index string, operations <-chan container.UpdateItem) (container.InsertStats, error)
	PublishIndex(ctx context.Context, index container.Index, visibility container.Visibility) error
	Configure(ctx context.Context, directive string, cfg map[string]any) error
}

type IndexerHandlers struct {
	storage Storage
	ready   func(ctx context.Context) error
	logger  logger.Logger
}

// NewIndexerHandlers builds the handlers. ready backs the readiness check and
// may be nil.
func NewIndexerHandlers(storage Storage, ready func(ctx context.Context) error, logger logger.Logger) *IndexerHandlers {
	return &IndexerHandlers{
		storage: storage,
		ready:   ready,
		logger:  logger,
	}
}

type CreateContainerRequest struct {
	DocType    string `json:"doc_type" binding:"required"`
	Dataset    string `json:"dataset" binding:"required"`
	Visibility string `json:"visibility"`
}

type PublishRequest struct {
	Visibility string `json:"visibility" binding:"required"`
}

type ConfigureRequest struct {
	Directive string         `json:"directive" binding:"required"`
	Config    map[string]any `json:"config" binding:"required"`
}

func (h *IndexerHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *IndexerHandlers) Ready(c *gin.Context) {
	if h.ready != nil {
		if err := h.ready(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (h *IndexerHandlers) CreateContainer(c *gin.Context) {
	var req CreateContainerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	visibility := container.Private
	if req.Visibility != "" {
		v, err := container.ParseVisibility(req.Visibility)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		visibility = v
	}

	index, err := h.storage.CreateContainer(c.Request.Context(), container.Config{
		DocType:    req.DocType,
		Dataset:    req.Dataset,
		Visibility: visibility,
	})
	if err != nil {
		h.fail(c, "Failed to create container", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"container": index})
}

func (h *IndexerHandlers) GetContainer(c *gin.Context) {
	index, err := h.storage.FindContainer(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, "Failed to find container", err)
		return
	}
	if index == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Container not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"container": index})
}

func (h *IndexerHandlers) DeleteContainer(c *gin.Context) {
	if err := h.storage.DeleteContainer(c.Request.Context(), c.Param("name")); err != nil {
		h.fail(c, "Failed to delete container", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// InsertDocuments streams an NDJSON body into the container. Each line is a
// JSON object carrying its identifier in "id".
func (h *IndexerHandlers) InsertDocuments(c *gin.Context) {
	name := c.Param("name")
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	docs, decodeErr := decodeDocuments(ctx, c.Request.Body)
	stats, err := h.storage.InsertDocuments(ctx, name, docs)
	cancel()
	h.respondStream(c, "Failed to insert documents", stats, err, decodeErr)
}

// UpdateDocuments streams NDJSON update operations into the container.
func (h *IndexerHandlers) UpdateDocuments(c *gin.Context) {
	name := c.Param("name")
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	ops, decodeErr := decodeUpdates(ctx, c.Request.Body)
	stats, err := h.storage.UpdateDocuments(ctx, name, ops)
	cancel()
	h.respondStream(c, "Failed to update documents", stats, err, decodeErr)
}

// respondStream reports the outcome of a streamed submission. A storage
// failure wins over a decoding failure; the decoder has only finished when
// the storage layer drained the stream, so it is waited for only then.
func (h *IndexerHandlers) respondStream(c *gin.Context, msg string, stats container.InsertStats, err error, decodeErr <-chan error) {
	if err == nil {
		if derr := <-decodeErr; derr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": derr.Error(), "stats": stats})
			return
		}
	}
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error(msg, "error", err)
		}
		c.JSON(status, gin.H{"error": err.Error(), "stats": stats})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (h *IndexerHandlers) PublishContainer(c *gin.Context) {
	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	visibility, err := container.ParseVisibility(req.Visibility)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	index, err := h.storage.FindContainer(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, "Failed to find container", err)
		return
	}
	if index == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Container not found"})
		return
	}

	if err := h.storage.PublishIndex(c.Request.Context(), *index, visibility); err != nil {
		h.fail(c, "Failed to publish container", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"container": index, "visibility": visibility.String()})
}

func (h *IndexerHandlers) Configure(c *gin.Context) {
	var req ConfigureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.storage.Configure(c.Request.Context(), req.Directive, req.Config); err != nil {
		h.fail(c, "Failed to configure template", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Template registered"})
}

func (h *IndexerHandlers) fail(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrUnrecognizedDirective),
		errors.Is(err, container.ErrInvalidTemplate),
		errors.Is(err, container.ErrInvalidSegment),
		errors.Is(err, container.ErrInvalidField),
		errors.Is(err, storage.ErrMissingDocumentID):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrIndexNotFound):
		return http.StatusNotFound
	case errors.Is(err, lock.ErrLockHeld):
		return http.StatusConflict
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}
