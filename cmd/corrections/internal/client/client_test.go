// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demidovbig/Corrections-System/pkg/extensions"
	"github.com/demidovbig/Corrections-System/services/corrections/datatypes"
	"github.com/demidovbig/Corrections-System/services/corrections/routes"
	"github.com/demidovbig/Corrections-System/services/corrections/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newAPI serves the real routes over a temp store.
func newAPI(t *testing.T, opts extensions.ServiceOptions) *httptest.Server {
	t.Helper()
	s, err := store.Open(store.Config{Path: filepath.Join(t.TempDir(), "client.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.EnsureScopes(context.Background(), []string{"General", "Medical"}))

	router := gin.New()
	routes.SetupRoutes(router, s, nil, opts)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_CRUD(t *testing.T) {
	srv := newAPI(t, extensions.DefaultOptions())
	c := New(srv.URL + "/")
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))

	scope := int64(2)
	id, err := c.CreateCorrection(ctx, datatypes.CreateCorrectionRequest{
		SubjectValue: "teh",
		ScopeID:      &scope,
		Hypotheses:   []datatypes.HypothesisInput{{Value: "the", Score: 0.9, Approved: true}},
		Context:      []datatypes.ContextInput{{Key: "sentence", Value: "teh cat"}},
	})
	require.NoError(t, err)
	require.Positive(t, id)

	got, err := c.GetCorrection(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "teh", got.SubjectValue)
	assert.Equal(t, "Medical", got.ScopeName)
	require.Len(t, got.Hypotheses, 1)
	assert.Equal(t, 0.9, got.Hypotheses[0].Score)

	subject := "tehh"
	hyps := []datatypes.HypothesisInput{{Value: "the"}, {Value: "then"}}
	require.NoError(t, c.UpdateCorrection(ctx, id, datatypes.UpdateCorrectionRequest{
		SubjectValue: &subject,
		Hypotheses:   &hyps,
	}))
	got, err = c.GetCorrection(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "tehh", got.SubjectValue)
	assert.Len(t, got.Hypotheses, 2)
	assert.Len(t, got.Context, 1, "nil context must not be sent as a replacement")

	require.NoError(t, c.UpdateStatus(ctx, id, datatypes.StatusConfirmed))

	list, err := c.ListCorrections(ctx, datatypes.CorrectionFilter{
		Statuses: []datatypes.Status{datatypes.StatusConfirmed},
		ScopeID:  &scope,
		Search:   "EH",
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	list, err = c.ListCorrections(ctx, datatypes.CorrectionFilter{Statuses: []datatypes.Status{datatypes.StatusPending}})
	require.NoError(t, err)
	assert.Empty(t, list)

	scopes, err := c.ListScopes(ctx)
	require.NoError(t, err)
	assert.Len(t, scopes, 2)

	require.NoError(t, c.DeleteCorrection(ctx, id))
	_, err = c.GetCorrection(ctx, id)
	assert.True(t, IsNotFound(err))
}

func TestClient_APIErrors(t *testing.T) {
	srv := newAPI(t, extensions.DefaultOptions())
	c := New(srv.URL)
	ctx := context.Background()

	_, err := c.CreateCorrection(ctx, datatypes.CreateCorrectionRequest{SubjectValue: " "})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "subjectValue is required", apiErr.Message)
	assert.False(t, IsNotFound(err))

	err = c.DeleteCorrection(ctx, 42)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "Correction not found")
}

func TestClient_Token(t *testing.T) {
	opts := extensions.DefaultOptions().
		WithAuth(extensions.NewStaticTokenAuthProvider(map[string]string{"alice": "tok-a"}))
	srv := newAPI(t, opts)
	ctx := context.Background()

	_, err := New(srv.URL).ListScopes(ctx)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	scopes, err := New(srv.URL, WithToken("tok-a")).ListScopes(ctx)
	require.NoError(t, err)
	assert.Len(t, scopes, 2)
}

func TestClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := New(srv.URL).Health(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "api error: 502 Bad Gateway", apiErr.Error())
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := New(url).Health(context.Background())
	require.Error(t, err)
	assert.NotErrorAs(t, err, new(*APIError))
}
