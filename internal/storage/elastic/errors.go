package elastic

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/mimir-go/internal/storage"
)

// ResponseError is an error answer from the cluster.
type ResponseError struct {
	StatusCode int
	Type       string
	Reason     string
}

func (e *ResponseError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("elasticsearch: status %d: %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("elasticsearch: status %d: %s: %s", e.StatusCode, e.Type, e.Reason)
}

// Unwrap reports 404 answers as storage.ErrIndexNotFound. Elasticsearch
// answers 404 for missing indices and for missing aliases alike.
func (e *ResponseError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return storage.ErrIndexNotFound
	}
	return nil
}

func decodeError(res *esapi.Response) error {
	respErr := &ResponseError{StatusCode: res.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err != nil {
		respErr.Reason = err.Error()
		return respErr
	}

	// "error" is an object for most failures and a bare string for a few,
	// missing aliases among them.
	var body struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Error) == 0 {
		respErr.Reason = string(raw)
		return respErr
	}

	var cause struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(body.Error, &cause); err == nil {
		respErr.Type = cause.Type
		respErr.Reason = cause.Reason
		return respErr
	}
	var reason string
	if err := json.Unmarshal(body.Error, &reason); err == nil {
		respErr.Reason = reason
		return respErr
	}
	respErr.Reason = string(body.Error)
	return respErr
}
