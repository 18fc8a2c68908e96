package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mimir-go/internal/domain/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// MockBackend is a mock implementation of Backend
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) CreateIndex(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockBackend) DeleteIndex(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockBackend) FindIndex(ctx context.Context, name string) (*container.Index, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*container.Index), args.Error(1)
}

func (m *MockBackend) ListIndices(ctx context.Context, pattern string) (map[string][]string, error) {
	args := m.Called(ctx, pattern)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]string), args.Error(1)
}

func (m *MockBackend) RefreshIndex(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockBackend) ForceMerge(ctx context.Context, indices []string, maxSegments int) error {
	return m.Called(ctx, indices, maxSegments).Error(0)
}

func (m *MockBackend) PutPipeline(ctx context.Context, name string, body []byte) error {
	return m.Called(ctx, name, body).Error(0)
}

func (m *MockBackend) BulkInsert(ctx context.Context, index, pipeline string, items <-chan BulkItem) (container.InsertStats, error) {
	args := m.Called(ctx, index, pipeline, items)
	return args.Get(0).(container.InsertStats), args.Error(1)
}

func (m *MockBackend) BulkUpdate(ctx context.Context, index string, items <-chan BulkItem) (container.InsertStats, error) {
	args := m.Called(ctx, index, items)
	return args.Get(0).(container.InsertStats), args.Error(1)
}

func (m *MockBackend) AliasedIndices(ctx context.Context, alias string) ([]string, error) {
	args := m.Called(ctx, alias)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockBackend) UpdateAlias(ctx context.Context, alias string, add, remove []string) error {
	return m.Called(ctx, alias, add, remove).Error(0)
}

func (m *MockBackend) PutComponentTemplate(ctx context.Context, name string, body []byte) error {
	return m.Called(ctx, name, body).Error(0)
}

func (m *MockBackend) PutIndexTemplate(ctx context.Context, name string, body []byte) error {
	return m.Called(ctx, name, body).Error(0)
}

func yamlConfig(t *testing.T, content string) map[string]any {
	t.Helper()
	var cfg map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(content), &cfg))
	return cfg
}

func TestParseDirective(t *testing.T) {
	d, err := ParseDirective("create component template")
	require.NoError(t, err)
	assert.Equal(t, DirectiveComponentTemplate, d)

	d, err = ParseDirective("create index template")
	require.NoError(t, err)
	assert.Equal(t, DirectiveIndexTemplate, d)
	assert.Equal(t, "create index template", d.String())

	_, err = ParseDirective("Create Index Template")
	assert.ErrorIs(t, err, ErrUnrecognizedDirective)
}

func TestConfigure(t *testing.T) {
	ctx := context.Background()

	t.Run("UnknownDirectiveNeverReachesBackend", func(t *testing.T) {
		backend := new(MockBackend)
		s := New(backend)

		err := s.Configure(ctx, "unknown-directive", map[string]any{})

		var storageErr *Error
		require.ErrorAs(t, err, &storageErr)
		assert.ErrorIs(t, err, ErrUnrecognizedDirective)
		assert.Equal(t, "unknown-directive", storageErr.Directive)
		assert.Nil(t, storageErr.Cause)
		backend.AssertExpectations(t)
		assert.Empty(t, backend.Calls)
	})

	t.Run("ComponentTemplate", func(t *testing.T) {
		backend := new(MockBackend)
		s := New(backend)

		cfg := yamlConfig(t, `
name: mimir-base
version: 2
template:
  settings:
    number_of_replicas: 0
    refresh_interval: 60s
`)
		var body []byte
		backend.On("PutComponentTemplate", mock.Anything, "mimir-base", mock.AnythingOfType("[]uint8")).
			Run(func(args mock.Arguments) { body = args.Get(2).([]byte) }).
			Return(nil).Once()

		require.NoError(t, s.Configure(ctx, "create component template", cfg))
		backend.AssertExpectations(t)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(body, &decoded))
		assert.EqualValues(t, 2, decoded["version"])
		settings := decoded["template"].(map[string]any)["settings"].(map[string]any)
		assert.Equal(t, "60s", settings["refresh_interval"])
	})

	t.Run("IndexTemplate", func(t *testing.T) {
		backend := new(MockBackend)
		s := New(backend)

		cfg := yamlConfig(t, `
name: mimir-poi
index_patterns: [munin_poi_*]
composed_of: [mimir-base, mimir-poi-mappings]
priority: 10
`)
		backend.On("PutIndexTemplate", mock.Anything, "mimir-poi", mock.Anything).Return(nil).Once()

		require.NoError(t, s.Configure(ctx, "create index template", cfg))
		backend.AssertExpectations(t)
		backend.AssertNotCalled(t, "PutComponentTemplate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("MappingKeysKeepTheirCase", func(t *testing.T) {
		backend := new(MockBackend)
		s := New(backend)

		cfg := yamlConfig(t, `
name: mimir-addr
template:
  mappings:
    properties:
      zipCode:
        type: keyword
      streetName:
        type: text
`)
		var body []byte
		backend.On("PutComponentTemplate", mock.Anything, "mimir-addr", mock.AnythingOfType("[]uint8")).
			Run(func(args mock.Arguments) { body = args.Get(2).([]byte) }).
			Return(nil).Once()

		require.NoError(t, s.Configure(ctx, "create component template", cfg))
		backend.AssertExpectations(t)

		assert.Contains(t, string(body), `"zipCode"`)
		assert.Contains(t, string(body), `"streetName"`)
		assert.NotContains(t, string(body), `"zipcode"`)
	})

	t.Run("UnknownKeysAreRejected", func(t *testing.T) {
		backend := new(MockBackend)
		s := New(backend)

		err := s.Configure(ctx, "create index template", yamlConfig(t, `
name: mimir-poi
index_patterns: [munin_poi_*]
indexPatterns: [munin_addr_*]
`))

		var storageErr *Error
		require.ErrorAs(t, err, &storageErr)
		assert.ErrorIs(t, err, container.ErrInvalidTemplate)
		assert.Equal(t, "mimir-poi", storageErr.Template)
		assert.Empty(t, backend.Calls)
	})

	t.Run("MissingConfigIsInvalid", func(t *testing.T) {
		backend := new(MockBackend)
		s := New(backend)

		err := s.Configure(ctx, "create component template", nil)
		assert.ErrorIs(t, err, ErrTemplateCreation)
		assert.ErrorIs(t, err, container.ErrInvalidTemplate)
		assert.Empty(t, backend.Calls)
	})

	t.Run("InvalidConfigNeverReachesBackend", func(t *testing.T) {
		backend := new(MockBackend)
		s := New(backend)

		err := s.Configure(ctx, "create index template", yamlConfig(t, "name: no-patterns\n"))

		var storageErr *Error
		require.ErrorAs(t, err, &storageErr)
		assert.ErrorIs(t, err, ErrTemplateCreation)
		assert.ErrorIs(t, err, container.ErrInvalidTemplate)
		assert.Equal(t, "no-patterns", storageErr.Template)
		assert.Empty(t, backend.Calls)
	})

	t.Run("BackendFailureNamesTemplate", func(t *testing.T) {
		backend := new(MockBackend)
		s := New(backend)
		boom := errors.New("illegal_argument_exception")
		backend.On("PutComponentTemplate", mock.Anything, "mimir-base", mock.Anything).Return(boom).Once()

		err := s.ApplyTemplate(ctx, container.ComponentTemplate{
			Name:     "mimir-base",
			Template: map[string]any{"settings": map[string]any{}},
		})

		var storageErr *Error
		require.ErrorAs(t, err, &storageErr)
		assert.ErrorIs(t, err, ErrTemplateCreation)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, "mimir-base", storageErr.Template)
		assert.Contains(t, err.Error(), "template mimir-base")
	})
}
