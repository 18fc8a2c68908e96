package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mimir-go/internal/domain/container"
	"github.com/mimir-go/internal/services/indexer/handlers"
	"github.com/mimir-go/pkg/config"
	"github.com/mimir-go/pkg/logger"
	"github.com/mimir-go/pkg/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// drainingStorage consumes document streams to the end, like the storage
// layer does.
type drainingStorage struct {
	mu       sync.Mutex
	consumed int
}

func (s *drainingStorage) CreateContainer(ctx context.Context, cfg container.Config) (*container.Index, error) {
	return &container.Index{}, nil
}

func (s *drainingStorage) DeleteContainer(ctx context.Context, name string) error { return nil }

func (s *drainingStorage) FindContainer(ctx context.Context, name string) (*container.Index, error) {
	return nil, nil
}

func (s *drainingStorage) InsertDocuments(ctx context.Context, index string, documents <-chan container.Document) (container.InsertStats, error) {
	var stats container.InsertStats
	for range documents {
		s.mu.Lock()
		s.consumed++
		s.mu.Unlock()
		stats.Inserted++
	}
	return stats, nil
}

func (s *drainingStorage) UpdateDocuments(ctx context.Context, index string, operations <-chan container.UpdateItem) (container.InsertStats, error) {
	var stats container.InsertStats
	for range operations {
		stats.Updated++
	}
	return stats, nil
}

func (s *drainingStorage) PublishIndex(ctx context.Context, index container.Index, visibility container.Visibility) error {
	return nil
}

func (s *drainingStorage) Configure(ctx context.Context, directive string, cfg map[string]any) error {
	return nil
}

var _ handlers.Storage = (*drainingStorage)(nil)

func TestSlowDocumentStreamOutlivesHeaderTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &drainingStorage{}
	router := setupRouter(handlers.NewIndexerHandlers(store, nil, logger.NewNop()), telemetry.NewNop(), logger.NewNop())

	srv := httptest.NewUnstartedServer(router)
	srv.Config = newHTTPServer(config.ServerConfig{ReadHeaderTimeout: 1}, router)
	srv.Start()
	defer srv.Close()

	const lines = 20
	body, writer := io.Pipe()
	go func() {
		for i := 0; i < lines; i++ {
			fmt.Fprintf(writer, "{\"id\":\"poi:%d\"}\n", i)
			time.Sleep(100 * time.Millisecond)
		}
		writer.Close()
	}()

	resp, err := http.Post(srv.URL+"/api/v1/containers/idx/documents", "application/x-ndjson", body)
	require.NoError(t, err)
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(out))
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, lines, store.consumed)
}

func TestNewServerHeaderTimeoutOnly(t *testing.T) {
	srv := newHTTPServer(config.ServerConfig{Host: "127.0.0.1", Port: 8080, ReadHeaderTimeout: 30}, http.NewServeMux())

	assert.Equal(t, "127.0.0.1:8080", srv.Addr)
	assert.Equal(t, 30*time.Second, srv.ReadHeaderTimeout)
	assert.Zero(t, srv.ReadTimeout)
}

func TestNewLeavesNoTracerProviderOnFailure(t *testing.T) {
	before := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(before) })

	cfg := &config.Config{
		Elasticsearch: config.ElasticsearchConfig{Addresses: []string{"http://127.0.0.1:9200"}},
		Container:     config.ContainerConfig{Root: "Bad_Root"},
		Bulk:          config.BulkConfig{Workers: 1},
		Telemetry: config.TelemetryConfig{
			Enabled:      true,
			JaegerURL:    "http://127.0.0.1:14268/api/traces",
			ServiceName:  "mimir-test",
			SamplingRate: 1,
		},
	}

	_, err := New(cfg, logger.NewNop())
	require.Error(t, err)

	_, installed := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.False(t, installed)
}
