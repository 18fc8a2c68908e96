package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mimir-go/internal/domain/container"
)

// rawDocument is a document passed through to the backend untouched.
type rawDocument struct {
	id   string
	body json.RawMessage
}

func (d rawDocument) ID() string { return d.id }

func (d rawDocument) MarshalJSON() ([]byte, error) { return d.body, nil }

type updateLine struct {
	ID    string `json:"id"`
	Op    string `json:"op"`
	Field string `json:"field"`
	Value any    `json:"value"`
}

// decodeDocuments decodes r lazily as a sequence of JSON objects. The error
// channel yields exactly one value once decoding stops: nil at end of input.
func decodeDocuments(ctx context.Context, r io.Reader) (<-chan container.Document, <-chan error) {
	return decodeStream(ctx, r, func(raw json.RawMessage) (container.Document, error) {
		var head struct {
			ID json.RawMessage `json:"id"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return nil, err
		}
		id, err := documentID(head.ID)
		if err != nil {
			return nil, err
		}
		return rawDocument{id: id, body: raw}, nil
	})
}

func decodeUpdates(ctx context.Context, r io.Reader) (<-chan container.UpdateItem, <-chan error) {
	return decodeStream(ctx, r, func(raw json.RawMessage) (container.UpdateItem, error) {
		var line updateLine
		if err := json.Unmarshal(raw, &line); err != nil {
			return container.UpdateItem{}, err
		}
		switch line.Op {
		case "set":
			return container.UpdateItem{
				ID:        line.ID,
				Operation: container.Set{Field: line.Field, Value: line.Value},
			}, nil
		default:
			return container.UpdateItem{}, fmt.Errorf("document %s: unsupported operation %q", line.ID, line.Op)
		}
	})
}

func decodeStream[T any](ctx context.Context, r io.Reader, parse func(json.RawMessage) (T, error)) (<-chan T, <-chan error) {
	out := make(chan T)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		dec := json.NewDecoder(r)
		for line := 1; ; line++ {
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				if errors.Is(err, io.EOF) {
					errc <- nil
				} else {
					errc <- fmt.Errorf("line %d: %w", line, err)
				}
				return
			}
			item, err := parse(raw)
			if err != nil {
				errc <- fmt.Errorf("line %d: %w", line, err)
				return
			}
			select {
			case out <- item:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
	}()

	return out, errc
}

// documentID accepts string and numeric identifiers. A missing id yields
// an empty string, which the storage layer rejects.
func documentID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("id must be a string or a number, got %s", raw)
}
