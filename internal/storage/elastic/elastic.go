// Package elastic implements storage.Backend over the Elasticsearch REST API.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/mimir-go/internal/domain/container"
	"github.com/mimir-go/internal/storage"
	"github.com/mimir-go/pkg/logger"
	"github.com/mimir-go/pkg/metrics"
	"github.com/mimir-go/pkg/resilience"
)

type Config struct {
	Addresses []string
	Username  string
	Password  string
	APIKey    string
	// Transport replaces the default HTTP transport, mostly for tests.
	Transport http.RoundTripper

	BulkWorkers       int
	BulkFlushBytes    int
	BulkFlushInterval time.Duration

	CircuitBreaker resilience.CircuitBreakerConfig
}

// Backend talks to one Elasticsearch cluster. Every request but the bulk
// submissions goes through the circuit breaker; bulk submissions go through
// it as a whole.
type Backend struct {
	client  *elasticsearch.Client
	breaker *resilience.CircuitBreaker
	bulk    bulkConfig
	logger  logger.Logger
}

type bulkConfig struct {
	workers       int
	flushBytes    int
	flushInterval time.Duration
}

var _ storage.Backend = (*Backend)(nil)

func New(cfg Config, log logger.Logger) (*Backend, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	breakerCfg := cfg.CircuitBreaker
	if breakerCfg.Name == "" {
		breakerCfg.Name = "elasticsearch"
	}
	// A missing index is an answer, not a sign of an unhealthy cluster.
	breakerCfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, storage.ErrIndexNotFound)
	}

	return &Backend{
		client:  client,
		breaker: resilience.NewCircuitBreaker(breakerCfg),
		bulk: bulkConfig{
			workers:       cfg.BulkWorkers,
			flushBytes:    cfg.BulkFlushBytes,
			flushInterval: cfg.BulkFlushInterval,
		},
		logger: log.Named("elasticsearch"),
	}, nil
}

// Ping checks the cluster answers.
func (b *Backend) Ping(ctx context.Context) error {
	return b.do(ctx, "ping", esapi.PingRequest{}, nil)
}

func (b *Backend) CreateIndex(ctx context.Context, name string) error {
	return b.do(ctx, "create_index", esapi.IndicesCreateRequest{Index: name}, nil)
}

func (b *Backend) DeleteIndex(ctx context.Context, name string) error {
	return b.do(ctx, "delete_index", esapi.IndicesDeleteRequest{Index: []string{name}}, nil)
}

type catIndex struct {
	Index     string `json:"index"`
	Status    string `json:"status"`
	DocsCount string `json:"docs.count"`
}

func (b *Backend) FindIndex(ctx context.Context, name string) (*container.Index, error) {
	var rows []catIndex
	err := b.do(ctx, "find_index", esapi.CatIndicesRequest{
		Index:  []string{name},
		Format: "json",
		H:      []string{"index", "status", "docs.count"},
	}, &rows)
	if errors.Is(err, storage.ErrIndexNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		if row.Index != name {
			continue
		}
		index := &container.Index{Name: row.Index, Status: row.Status}
		// docs.count is empty for closed indices.
		if row.DocsCount != "" {
			count, err := strconv.ParseInt(row.DocsCount, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("unexpected docs.count %q for %s: %w", row.DocsCount, name, err)
			}
			index.DocsCount = count
		}
		return index, nil
	}
	return nil, nil
}

type aliasesResponse map[string]struct {
	Aliases map[string]json.RawMessage `json:"aliases"`
}

func (b *Backend) ListIndices(ctx context.Context, pattern string) (map[string][]string, error) {
	var resp aliasesResponse
	err := b.do(ctx, "list_indices", esapi.IndicesGetAliasRequest{Index: []string{pattern}}, &resp)
	if errors.Is(err, storage.ErrIndexNotFound) {
		return map[string][]string{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := make(map[string][]string, len(resp))
	for index, entry := range resp {
		aliases := make([]string, 0, len(entry.Aliases))
		for alias := range entry.Aliases {
			aliases = append(aliases, alias)
		}
		out[index] = aliases
	}
	return out, nil
}

func (b *Backend) RefreshIndex(ctx context.Context, name string) error {
	return b.do(ctx, "refresh", esapi.IndicesRefreshRequest{Index: []string{name}}, nil)
}

// ForceMerge starts the merge and returns without waiting for it.
func (b *Backend) ForceMerge(ctx context.Context, indices []string, maxSegments int) error {
	wait := false
	req := esapi.IndicesForcemergeRequest{
		Index:             indices,
		WaitForCompletion: &wait,
	}
	if maxSegments > 0 {
		req.MaxNumSegments = &maxSegments
	}
	return b.do(ctx, "force_merge", req, nil)
}

func (b *Backend) PutPipeline(ctx context.Context, name string, body []byte) error {
	return b.do(ctx, "put_pipeline", esapi.IngestPutPipelineRequest{
		PipelineID: name,
		Body:       bytes.NewReader(body),
	}, nil)
}

func (b *Backend) AliasedIndices(ctx context.Context, alias string) ([]string, error) {
	var resp aliasesResponse
	err := b.do(ctx, "get_alias", esapi.IndicesGetAliasRequest{Name: []string{alias}}, &resp)
	if errors.Is(err, storage.ErrIndexNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	indices := make([]string, 0, len(resp))
	for index := range resp {
		indices = append(indices, index)
	}
	return indices, nil
}

type aliasAction map[string]aliasTarget

type aliasTarget struct {
	Index     string `json:"index"`
	Alias     string `json:"alias"`
	MustExist *bool  `json:"must_exist,omitempty"`
}

// UpdateAlias sends every change in a single _aliases request. Removing an
// index that no longer carries the alias is not an error.
func (b *Backend) UpdateAlias(ctx context.Context, alias string, add, remove []string) error {
	actions := make([]aliasAction, 0, len(add)+len(remove))
	mustExist := false
	for _, index := range add {
		actions = append(actions, aliasAction{"add": {Index: index, Alias: alias}})
	}
	for _, index := range remove {
		actions = append(actions, aliasAction{"remove": {Index: index, Alias: alias, MustExist: &mustExist}})
	}
	if len(actions) == 0 {
		return nil
	}

	body, err := json.Marshal(map[string]any{"actions": actions})
	if err != nil {
		return err
	}
	return b.do(ctx, "update_aliases", esapi.IndicesUpdateAliasesRequest{Body: bytes.NewReader(body)}, nil)
}

func (b *Backend) PutComponentTemplate(ctx context.Context, name string, body []byte) error {
	return b.do(ctx, "put_component_template", esapi.ClusterPutComponentTemplateRequest{
		Name: name,
		Body: bytes.NewReader(body),
	}, nil)
}

func (b *Backend) PutIndexTemplate(ctx context.Context, name string, body []byte) error {
	return b.do(ctx, "put_index_template", esapi.IndicesPutIndexTemplateRequest{
		Name: name,
		Body: bytes.NewReader(body),
	}, nil)
}

type request interface {
	Do(ctx context.Context, transport esapi.Transport) (*esapi.Response, error)
}

// do performs req under the breaker and decodes a successful body into out
// when out is not nil.
func (b *Backend) do(ctx context.Context, operation string, req request, out any) error {
	err := b.breaker.Do(ctx, func(ctx context.Context) error {
		res, err := req.Do(ctx, b.client)
		if err != nil {
			return err
		}
		defer res.Body.Close()

		if res.IsError() {
			return decodeError(res)
		}
		if out == nil {
			_, _ = io.Copy(io.Discard, res.Body)
			return nil
		}
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", operation, err)
		}
		return nil
	})

	status := "success"
	switch {
	case errors.Is(err, storage.ErrIndexNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
		b.logger.Debug("Elasticsearch request failed", "operation", operation, "error", err)
	}
	metrics.BackendRequestsTotal.WithLabelValues(operation, status).Inc()
	return err
}
