package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/roach88/opsync/internal/model"
)

// envelope is the backend's JSON response shape: { success, data, error }.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *envelopeError  `json:"error,omitempty"`
}

type envelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTPClient implements Client over the backend's REST surface for one
// entity kind. Stateless; safe for concurrent use if the underlying
// http.Client is.
type HTTPClient struct {
	baseURL string
	kind    model.Kind
	hc      *http.Client
}

// NewHTTPClient creates a client for one entity kind. baseURL must not
// end with a slash. If hc is nil, http.DefaultClient is used; callers
// wanting timeouts set them on hc or on the request context.
func NewHTTPClient(baseURL string, kind model.Kind, hc *http.Client) *HTTPClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &HTTPClient{baseURL: baseURL, kind: kind, hc: hc}
}

// List implements Client.
func (c *HTTPClient) List(ctx context.Context, filter model.Filter) (model.Page, error) {
	u := c.collectionURL()
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Cursor != "" {
		q.Set("cursor", filter.Cursor)
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var page model.Page
	if err := c.do(ctx, "list", http.MethodGet, u, nil, &page); err != nil {
		return model.Page{}, err
	}
	return page, nil
}

// GetByID implements Client.
func (c *HTTPClient) GetByID(ctx context.Context, id string) (model.Entity, error) {
	u := c.collectionURL() + "/" + url.PathEscape(id)

	var entity model.Entity
	if err := c.do(ctx, "get", http.MethodGet, u, nil, &entity); err != nil {
		return model.Entity{}, err
	}
	return entity, nil
}

// Mutate implements Client.
func (c *HTTPClient) Mutate(ctx context.Context, id string, action model.Action, metadata map[string]string) (model.Entity, error) {
	u := c.collectionURL() + "/" + url.PathEscape(id) + "/actions"

	body := struct {
		Action   model.Action      `json:"action"`
		Metadata map[string]string `json:"metadata,omitempty"`
	}{Action: action, Metadata: metadata}

	var entity model.Entity
	if err := c.do(ctx, "mutate", http.MethodPost, u, body, &entity); err != nil {
		return model.Entity{}, err
	}
	return entity, nil
}

func (c *HTTPClient) collectionURL() string {
	return fmt.Sprintf("%s/api/v1/%ss", c.baseURL, c.kind)
}

// do runs one request and decodes the envelope into out.
//
// Error classification:
//   - request build/send failure, unreadable body, or a non-2xx with no
//     parseable envelope -> *TransportError
//   - an envelope with success=false -> *SemanticError from its error
//     field (any HTTP status)
func (c *HTTPClient) do(ctx context.Context, op, method, u string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &TransportError{Op: op, URL: u, Err: fmt.Errorf("encode request: %w", err)}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return &TransportError{Op: op, URL: u, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return &TransportError{Op: op, URL: u, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, URL: u, Err: fmt.Errorf("read response: %w", err)}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &TransportError{Op: op, URL: u,
			Err: fmt.Errorf("status %d with unparseable body: %w", resp.StatusCode, err)}
	}

	if !env.Success {
		se := &SemanticError{Code: "rejected"}
		if env.Error != nil {
			se.Code = env.Error.Code
			se.Reason = env.Error.Message
		}
		return se
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &TransportError{Op: op, URL: u, Err: fmt.Errorf("decode data: %w", err)}
		}
	}
	return nil
}
