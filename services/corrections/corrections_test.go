// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package corrections

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demidovbig/Corrections-System/pkg/extensions"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestService(t *testing.T, cfg Config, opts *extensions.ServiceOptions) Service {
	t.Helper()
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(t.TempDir(), "svc.db")
	}
	svc, err := New(cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

// =============================================================================
// Config Tests
// =============================================================================

// TestApplyConfigDefaults_AllDefaults verifies default values are applied.
func TestApplyConfigDefaults_AllDefaults(t *testing.T) {
	result := applyConfigDefaults(Config{})

	assert.Equal(t, 5001, result.Port, "default port should be 5001")
	assert.Equal(t, "./data/corrections.db", result.DBPath)
	assert.Equal(t, 10, result.MaxOpenConns)
	assert.Equal(t, 10, result.MaxIdleConns)
	assert.Equal(t, 5*time.Second, result.BusyTimeout)
	assert.Equal(t, ExporterNone, result.TracingExporter)
	assert.Equal(t, "localhost:4317", result.OTelEndpoint)
	assert.Equal(t, 10*time.Second, result.ShutdownTimeout)
	assert.NotNil(t, result.Logger)
	assert.Zero(t, result.RateLimitRPS, "rate limiting is off by default")
}

// TestApplyConfigDefaults_PreservesCustomValues verifies custom values are not overwritten.
func TestApplyConfigDefaults_PreservesCustomValues(t *testing.T) {
	cfg := Config{
		Port:            8080,
		DBPath:          "/tmp/x.db",
		MaxOpenConns:    4,
		TracingExporter: ExporterStdout,
		OTelEndpoint:    "collector:4317",
	}

	result := applyConfigDefaults(cfg)

	assert.Equal(t, 8080, result.Port)
	assert.Equal(t, "/tmp/x.db", result.DBPath)
	assert.Equal(t, 4, result.MaxOpenConns)
	assert.Equal(t, 4, result.MaxIdleConns, "idle follows open when unset")
	assert.Equal(t, ExporterStdout, result.TracingExporter)
	assert.Equal(t, "collector:4317", result.OTelEndpoint)
}

func TestCorsConfig(t *testing.T) {
	all := corsConfig(nil)
	assert.True(t, all.AllowAllOrigins)
	assert.NoError(t, all.Validate())

	some := corsConfig([]string{"http://localhost:3000"})
	assert.False(t, some.AllowAllOrigins)
	assert.Equal(t, []string{"http://localhost:3000"}, some.AllowOrigins)
	assert.Contains(t, some.AllowHeaders, "Authorization")
	assert.NoError(t, some.Validate())
}

// =============================================================================
// New Tests
// =============================================================================

func TestNew_UnknownExporter(t *testing.T) {
	_, err := New(Config{DBPath: filepath.Join(t.TempDir(), "x.db"), TracingExporter: "zipkin"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownExporter)
}

func TestNew_BadDBPath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := New(Config{DBPath: filepath.Join(blocker, "sub", "x.db")}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open store")
}

func TestNew_SeedsScopesAndServes(t *testing.T) {
	svc := newTestService(t, Config{Scopes: []string{"General", "Legal", " "}}, nil)

	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, httptest.NewRequest("GET", "/api/scopes", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Scopes []struct {
			Name string `json:"name"`
		} `json:"scopes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Scopes, 2)
	assert.Equal(t, "General", resp.Scopes[0].Name)
	assert.Equal(t, "Legal", resp.Scopes[1].Name)

	scopes, err := svc.Repository().ListScopes(context.Background())
	require.NoError(t, err)
	assert.Len(t, scopes, 2)
}

func TestNew_MiddlewareChain(t *testing.T) {
	svc := newTestService(t, Config{}, nil)

	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest("OPTIONS", "/api/corrections", nil)
	// httptest requests target example.com, so the origin must differ
	// for the request to count as cross-origin.
	req.Header.Set("Origin", "http://reviewer.local:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w = httptest.NewRecorder()
	svc.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "http://reviewer.local:3000")
	w = httptest.NewRecorder()
	svc.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	svc.Router().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "corrections_http_requests_total")
}

func TestNew_RateLimited(t *testing.T) {
	svc := newTestService(t, Config{RateLimitRPS: 1, RateLimitBurst: 1}, nil)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		svc.Router().ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, http.StatusOK, codes[0])
	assert.Contains(t, codes[1:], http.StatusTooManyRequests)
}

func TestNew_StaticTokens(t *testing.T) {
	opts := extensions.DefaultOptions().
		WithAuth(extensions.NewStaticTokenAuthProvider(map[string]string{"alice": "s3cret"}))
	svc := newTestService(t, Config{}, &opts)

	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, httptest.NewRequest("GET", "/api/corrections", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest("POST", "/api/corrections", strings.NewReader(`{"subjectValue":"teh"}`))
	req.Header.Set("Authorization", "Bearer s3cret")
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	svc.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestClose_Idempotent(t *testing.T) {
	svc, err := New(Config{DBPath: filepath.Join(t.TempDir(), "c.db")}, nil)
	require.NoError(t, err)
	assert.NoError(t, svc.Close())
	assert.NoError(t, svc.Close())
}

// =============================================================================
// Run Tests
// =============================================================================

func TestRun_GracefulShutdown(t *testing.T) {
	port := freePort(t)
	svc := newTestService(t, Config{Host: "127.0.0.1", Port: port}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_PortInUse(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	svc := newTestService(t, Config{Host: "127.0.0.1", Port: l.Addr().(*net.TCPAddr).Port}, nil)
	err = svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen on")
}
