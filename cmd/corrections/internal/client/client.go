// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package client is the HTTP client the terminal UI uses to talk to the
// corrections API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/demidovbig/Corrections-System/services/corrections/datatypes"
)

// DefaultTimeout bounds a single API call.
const DefaultTimeout = 10 * time.Second

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 4096

// -----------------------------------------------------------------------------
// Error Types
// -----------------------------------------------------------------------------

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("api error: %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

// Client calls the corrections REST API.
//
// # Thread Safety
//
// Safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sends "Authorization: Bearer token" on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a client for the API at baseURL, e.g. "http://localhost:5001".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// ListCorrections fetches corrections matching filter, newest first.
func (c *Client) ListCorrections(ctx context.Context, filter datatypes.CorrectionFilter) ([]datatypes.Correction, error) {
	q := url.Values{}
	if len(filter.Statuses) > 0 {
		parts := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			parts[i] = strconv.Itoa(int(s))
		}
		q.Set("status", strings.Join(parts, ","))
	}
	if filter.ScopeID != nil {
		q.Set("scopeId", strconv.FormatInt(*filter.ScopeID, 10))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		q.Set("search", s)
	}

	path := "/api/corrections"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Corrections []datatypes.Correction `json:"corrections"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Corrections, nil
}

// GetCorrection fetches one correction.
func (c *Client) GetCorrection(ctx context.Context, id int64) (*datatypes.Correction, error) {
	var resp struct {
		Correction datatypes.Correction `json:"correction"`
	}
	if err := c.do(ctx, http.MethodGet, correctionPath(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Correction, nil
}

// CreateCorrection creates a correction and returns its id.
func (c *Client) CreateCorrection(ctx context.Context, req datatypes.CreateCorrectionRequest) (int64, error) {
	var resp struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/corrections", req, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// UpdateCorrection applies req to correction id.
func (c *Client) UpdateCorrection(ctx context.Context, id int64, req datatypes.UpdateCorrectionRequest) error {
	return c.do(ctx, http.MethodPut, correctionPath(id), req, nil)
}

// UpdateStatus sets only the status of correction id.
func (c *Client) UpdateStatus(ctx context.Context, id int64, status datatypes.Status) error {
	body := datatypes.UpdateStatusRequest{Status: &status}
	return c.do(ctx, http.MethodPatch, correctionPath(id)+"/status", body, nil)
}

// DeleteCorrection removes correction id.
func (c *Client) DeleteCorrection(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, correctionPath(id), nil, nil)
}

// ListScopes fetches every scope ordered by name.
func (c *Client) ListScopes(ctx context.Context) ([]datatypes.Scope, error) {
	var resp struct {
		Scopes []datatypes.Scope `json:"scopes"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/scopes", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Scopes, nil
}

// Health checks GET /health.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func correctionPath(id int64) string {
	return "/api/corrections/" + strconv.FormatInt(id, 10)
}

// do sends one request and decodes a 2xx JSON body into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil {
		apiErr.Message = body.Message
	}
	return apiErr
}
