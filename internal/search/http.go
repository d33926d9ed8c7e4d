package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/opencatalog/search-indexer/internal/model"
	"github.com/opencatalog/search-indexer/pkg/config"
)

// HTTPEngine talks to an OpenSearch-compatible engine over its REST API.
type HTTPEngine struct {
	base   string
	client *http.Client
	logger *slog.Logger
}

// NewHTTPEngine creates an HTTPEngine for the configured endpoint.
func NewHTTPEngine(cfg config.EngineConfig) *HTTPEngine {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPEngine{
		base:   cfg.URL,
		client: &http.Client{Timeout: timeout},
		logger: slog.Default().With("component", "search-engine", "url", cfg.URL),
	}
}

func (e *HTTPEngine) IndexExists(ctx context.Context, index string) (bool, error) {
	resp, err := e.do(ctx, http.MethodHead, "/"+index, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("checking index %s: unexpected status %d", index, resp.StatusCode)
	}
}

func (e *HTTPEngine) CreateIndex(ctx context.Context, index, settingsJSON, mappingsJSON string) error {
	body := map[string]json.RawMessage{}
	if settingsJSON != "" {
		body["settings"] = json.RawMessage(settingsJSON)
	}
	if mappingsJSON != "" {
		body["mappings"] = json.RawMessage(mappingsJSON)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("building create-index payload: %w", err)
	}
	return e.expectOK(ctx, http.MethodPut, "/"+index, payload, "creating index "+index)
}

func (e *HTTPEngine) DropIndex(ctx context.Context, index string) error {
	return e.expectOK(ctx, http.MethodDelete, "/"+index, nil, "dropping index "+index)
}

func (e *HTTPEngine) UpdateMappings(ctx context.Context, index, mappingsJSON string) error {
	return e.expectOK(ctx, http.MethodPut, "/"+index+"/_mapping", []byte(mappingsJSON), "updating mappings for "+index)
}

func (e *HTTPEngine) UpdateIndexSettings(ctx context.Context, index, settingsJSON string) error {
	return e.expectOK(ctx, http.MethodPut, "/"+index+"/_settings", []byte(settingsJSON), "updating settings for "+index)
}

func (e *HTTPEngine) BulkWrite(ctx context.Context, writes []model.DocumentWrite) model.OperationResult {
	if len(writes) == 0 {
		return model.SuccessResult()
	}
	var buf bytes.Buffer
	for _, w := range writes {
		meta := map[string]map[string]string{
			string(w.Action): {"_index": w.Index, "_id": w.ID},
		}
		line, err := json.Marshal(meta)
		if err != nil {
			return model.ErrorResult(fmt.Sprintf("building bulk payload: %v", err))
		}
		buf.Write(line)
		buf.WriteByte('\n')
		if w.Action == model.ActionIndex {
			buf.Write(w.Body)
			buf.WriteByte('\n')
		}
	}

	resp, err := e.do(ctx, http.MethodPost, "/_bulk", buf.Bytes())
	if err != nil {
		return model.ErrorResult(err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return model.ErrorResult(fmt.Sprintf("bulk write returned status %d: %s", resp.StatusCode, msg))
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Error *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&bulkResp); err != nil {
		return model.ErrorResult(fmt.Sprintf("decoding bulk response: %v", err))
	}
	if bulkResp.Errors {
		for _, item := range bulkResp.Items {
			for _, op := range item {
				if op.Error != nil {
					return model.ErrorResult(fmt.Sprintf("bulk write failed: %s: %s", op.Error.Type, op.Error.Reason))
				}
			}
		}
		return model.ErrorResult("bulk write reported item failures")
	}
	e.logger.Debug("bulk write applied", "operations", len(writes))
	return model.SuccessResult()
}

func (e *HTTPEngine) CountDocuments(ctx context.Context, index string) (int, error) {
	resp, err := e.do(ctx, http.MethodGet, "/"+index+"/_count", nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("counting documents in %s: unexpected status %d", index, resp.StatusCode)
	}
	var countResp struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&countResp); err != nil {
		return 0, fmt.Errorf("decoding count response: %w", err)
	}
	return countResp.Count, nil
}

func (e *HTTPEngine) IndexUUID(ctx context.Context, index string) (string, error) {
	resp, err := e.do(ctx, http.MethodGet, "/"+index+"/_settings", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reading settings for %s: unexpected status %d", index, resp.StatusCode)
	}
	var settings map[string]struct {
		Settings struct {
			Index struct {
				UUID string `json:"uuid"`
			} `json:"index"`
		} `json:"settings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&settings); err != nil {
		return "", fmt.Errorf("decoding settings response: %w", err)
	}
	for _, s := range settings {
		return s.Settings.Index.UUID, nil
	}
	return "", fmt.Errorf("no settings returned for index %s", index)
}

func (e *HTTPEngine) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, e.base+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building %s %s request: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func (e *HTTPEngine) expectOK(ctx context.Context, method, path string, body []byte, op string) error {
	resp, err := e.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, msg)
	}
	return nil
}
