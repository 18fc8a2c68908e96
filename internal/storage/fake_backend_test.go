package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mimir-go/internal/domain/container"
)

// fakeBackend is an in-memory search backend with alias semantics close to
// Elasticsearch: deleting an index drops it from every alias.
type fakeBackend struct {
	mu sync.Mutex

	indices   map[string]*container.Index
	aliases   map[string]map[string]struct{}
	docs      map[string]map[string]any
	pipelines map[string][]byte
	templates map[string][]byte
	refreshed map[string]bool
	merged    map[string]int
	calls     []string

	// fail maps a call, as recorded in calls, to the error it returns.
	fail map[string]error
	// vanish makes FindIndex miss right after creation.
	vanish bool
	// bulkFailAfter makes bulk calls fail after consuming that many items.
	bulkFailAfter int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		indices:   make(map[string]*container.Index),
		aliases:   make(map[string]map[string]struct{}),
		docs:      make(map[string]map[string]any),
		pipelines: make(map[string][]byte),
		templates: make(map[string][]byte),
		refreshed: make(map[string]bool),
		merged:    make(map[string]int),
		fail:      make(map[string]error),
	}
}

func (f *fakeBackend) record(call string) error {
	f.calls = append(f.calls, call)
	return f.fail[call]
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) CreateIndex(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateIndex " + name); err != nil {
		return err
	}
	if _, ok := f.indices[name]; ok {
		return fmt.Errorf("resource_already_exists_exception: %s", name)
	}
	f.indices[name] = &container.Index{Name: name, Status: "open"}
	f.docs[name] = make(map[string]any)
	return nil
}

func (f *fakeBackend) DeleteIndex(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteIndex " + name); err != nil {
		return err
	}
	if _, ok := f.indices[name]; !ok {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}
	delete(f.indices, name)
	delete(f.docs, name)
	for _, targets := range f.aliases {
		delete(targets, name)
	}
	return nil
}

func (f *fakeBackend) FindIndex(ctx context.Context, name string) (*container.Index, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("FindIndex " + name); err != nil {
		return nil, err
	}
	index, ok := f.indices[name]
	if !ok || f.vanish {
		return nil, nil
	}
	out := *index
	out.DocsCount = int64(len(f.docs[name]))
	return &out, nil
}

func (f *fakeBackend) ListIndices(ctx context.Context, pattern string) (map[string][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListIndices " + pattern); err != nil {
		return nil, err
	}
	prefix := strings.TrimSuffix(pattern, "*")
	out := make(map[string][]string)
	for name := range f.indices {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		out[name] = nil
		for alias, targets := range f.aliases {
			if _, ok := targets[name]; ok {
				out[name] = append(out[name], alias)
			}
		}
	}
	return out, nil
}

func (f *fakeBackend) RefreshIndex(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("RefreshIndex " + name); err != nil {
		return err
	}
	f.refreshed[name] = true
	return nil
}

func (f *fakeBackend) ForceMerge(ctx context.Context, indices []string, maxSegments int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ForceMerge " + strings.Join(indices, ",")); err != nil {
		return err
	}
	for _, name := range indices {
		f.merged[name] = maxSegments
	}
	return nil
}

func (f *fakeBackend) PutPipeline(ctx context.Context, name string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("PutPipeline " + name); err != nil {
		return err
	}
	f.pipelines[name] = body
	return nil
}

func (f *fakeBackend) BulkInsert(ctx context.Context, index, pipeline string, items <-chan BulkItem) (container.InsertStats, error) {
	return f.bulk(ctx, "BulkInsert "+index, index, items, func(docs map[string]any, item BulkItem) (container.InsertStats, bool) {
		_, existed := docs[item.ID]
		docs[item.ID] = item.Body
		if existed {
			return container.InsertStats{Updated: 1}, true
		}
		return container.InsertStats{Inserted: 1}, true
	})
}

func (f *fakeBackend) BulkUpdate(ctx context.Context, index string, items <-chan BulkItem) (container.InsertStats, error) {
	return f.bulk(ctx, "BulkUpdate "+index, index, items, func(docs map[string]any, item BulkItem) (container.InsertStats, bool) {
		if _, ok := docs[item.ID]; !ok {
			return container.InsertStats{Failed: 1}, false
		}
		docs[item.ID] = item.Body
		return container.InsertStats{Updated: 1}, true
	})
}

func (f *fakeBackend) bulk(ctx context.Context, call, index string, items <-chan BulkItem, apply func(map[string]any, BulkItem) (container.InsertStats, bool)) (container.InsertStats, error) {
	f.mu.Lock()
	err := f.record(call)
	failAfter := f.bulkFailAfter
	f.mu.Unlock()
	if err != nil {
		return container.InsertStats{}, err
	}

	var stats container.InsertStats
	consumed := 0
	for {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case item, ok := <-items:
			if !ok {
				return stats, nil
			}
			f.mu.Lock()
			docs, exists := f.docs[index]
			if !exists {
				f.mu.Unlock()
				return stats, fmt.Errorf("%w: %s", ErrIndexNotFound, index)
			}
			s, _ := apply(docs, item)
			f.mu.Unlock()
			stats = stats.Add(s)

			consumed++
			if failAfter > 0 && consumed >= failAfter {
				return stats, fmt.Errorf("bulk request rejected after %d items", consumed)
			}
		}
	}
}

func (f *fakeBackend) AliasedIndices(ctx context.Context, alias string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AliasedIndices " + alias); err != nil {
		return nil, err
	}
	return f.targetsLocked(alias), nil
}

func (f *fakeBackend) UpdateAlias(ctx context.Context, alias string, add, remove []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateAlias " + alias); err != nil {
		return err
	}
	for _, name := range add {
		if _, ok := f.indices[name]; !ok {
			return fmt.Errorf("%w: %s", ErrIndexNotFound, name)
		}
	}
	targets, ok := f.aliases[alias]
	if !ok {
		targets = make(map[string]struct{})
		f.aliases[alias] = targets
	}
	for _, name := range remove {
		delete(targets, name)
	}
	for _, name := range add {
		targets[name] = struct{}{}
	}
	return nil
}

func (f *fakeBackend) PutComponentTemplate(ctx context.Context, name string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("PutComponentTemplate " + name); err != nil {
		return err
	}
	f.templates["component/"+name] = body
	return nil
}

func (f *fakeBackend) PutIndexTemplate(ctx context.Context, name string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("PutIndexTemplate " + name); err != nil {
		return err
	}
	f.templates["index/"+name] = body
	return nil
}

// Targets returns the sorted indices behind alias.
func (f *fakeBackend) Targets(alias string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.targetsLocked(alias)
}

func (f *fakeBackend) targetsLocked(alias string) []string {
	out := make([]string, 0, len(f.aliases[alias]))
	for name := range f.aliases[alias] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (f *fakeBackend) Exists(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.indices[name]
	return ok
}

// stepClock advances one second per reading so container names never collide.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type place struct {
	PlaceID string `json:"id"`
	Name    string `json:"name"`
}

func (p place) ID() string { return p.PlaceID }

func documents(docs ...container.Document) <-chan container.Document {
	ch := make(chan container.Document, len(docs))
	for _, d := range docs {
		ch <- d
	}
	close(ch)
	return ch
}

func places(prefix string, n int) []container.Document {
	docs := make([]container.Document, n)
	for i := range docs {
		docs[i] = place{PlaceID: fmt.Sprintf("%s:%d", prefix, i), Name: fmt.Sprintf("%s %d", prefix, i)}
	}
	return docs
}

func newTestStorage(backend Backend, opts ...Option) *Storage {
	return New(backend, append([]Option{WithClock(newStepClock().Now)}, opts...)...)
}
