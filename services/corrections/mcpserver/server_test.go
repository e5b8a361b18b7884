// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/demidovbig/Corrections-System/pkg/extensions"
	"github.com/demidovbig/Corrections-System/services/corrections/datatypes"
	"github.com/demidovbig/Corrections-System/services/corrections/store"
)

type recordingAudit struct {
	mu     sync.Mutex
	events []extensions.AuditEvent
}

func (r *recordingAudit) Log(_ context.Context, e extensions.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingAudit) Flush(context.Context) error { return nil }

func openStore(t *testing.T) *store.SqlStore {
	t.Helper()
	s, err := store.Open(store.Config{Path: filepath.Join(t.TempDir(), "mcp.db")})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func connect(t *testing.T, ctx context.Context, srv *Server) *sdkmcp.ClientSession {
	t.Helper()
	t1, t2 := sdkmcp.NewInMemoryTransports()
	serverSession, err := srv.MCPServer.Connect(ctx, t1, nil)
	if err != nil {
		t.Fatalf("server.Connect: %v", err)
	}
	t.Cleanup(func() { serverSession.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any, out any) {
	t.Helper()
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if res.IsError {
		t.Fatalf("CallTool(%s) returned error: %s", name, toolText(res))
	}
	if err := json.Unmarshal([]byte(toolText(res)), out); err != nil {
		t.Fatalf("unmarshal %s result: %v (text: %s)", name, err, toolText(res))
	}
}

// callToolErr returns the error text of a failing tool call.
func callToolErr(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any) string {
	t.Helper()
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return err.Error()
	}
	if !res.IsError {
		t.Fatalf("CallTool(%s) succeeded, want error", name)
	}
	return toolText(res)
}

func toolText(res *sdkmcp.CallToolResult) string {
	for _, c := range res.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func seed(t *testing.T, s *store.SqlStore) (pending, confirmed int64) {
	t.Helper()
	ctx := context.Background()
	if err := s.EnsureScopes(ctx, []string{"General", "Medical"}); err != nil {
		t.Fatalf("EnsureScopes: %v", err)
	}
	confirmedStatus := datatypes.StatusConfirmed
	scope := int64(1)

	var err error
	pending, err = s.Create(ctx, datatypes.CreateCorrectionRequest{
		SubjectValue: "teh",
		ScopeID:      &scope,
		Hypotheses: []datatypes.HypothesisInput{
			{Value: "ten", Score: 0.2},
			{Value: "the", Score: 0.9, Approved: true},
		},
		Context: []datatypes.ContextInput{{Key: "sentence", Value: "teh cat", Important: true}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	confirmed, err = s.Create(ctx, datatypes.CreateCorrectionRequest{
		SubjectValue: "recieve",
		Status:       &confirmedStatus,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return pending, confirmed
}

// =============================================================================
// Tool Tests
// =============================================================================

func TestTools_Registered(t *testing.T) {
	ctx := context.Background()
	session := connect(t, ctx, NewServer(openStore(t), Options{}))

	res, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	got := map[string]bool{}
	for _, tool := range res.Tools {
		got[tool.Name] = true
	}
	for _, name := range []string{"list_corrections", "get_correction", "set_correction_status", "list_scopes"} {
		if !got[name] {
			t.Errorf("tool %q not registered", name)
		}
	}
}

func TestListCorrections(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	pending, confirmed := seed(t, s)
	session := connect(t, ctx, NewServer(s, Options{}))

	var all listCorrectionsOutput
	callTool(t, ctx, session, "list_corrections", map[string]any{}, &all)
	if all.Count != 2 || len(all.Corrections) != 2 {
		t.Fatalf("count = %d, want 2", all.Count)
	}
	if all.Corrections[0].ID != confirmed || all.Corrections[1].ID != pending {
		t.Errorf("order = [%d %d], want newest first", all.Corrections[0].ID, all.Corrections[1].ID)
	}

	var onlyConfirmed listCorrectionsOutput
	callTool(t, ctx, session, "list_corrections", map[string]any{"statuses": []int{1}}, &onlyConfirmed)
	if onlyConfirmed.Count != 1 || onlyConfirmed.Corrections[0].StatusName != "Confirmed" {
		t.Errorf("status filter = %+v", onlyConfirmed)
	}

	var scoped listCorrectionsOutput
	callTool(t, ctx, session, "list_corrections", map[string]any{"scope_id": 1, "search": "TE"}, &scoped)
	if scoped.Count != 1 || scoped.Corrections[0].SubjectValue != "teh" {
		t.Errorf("scope+search filter = %+v", scoped)
	}
	if scoped.Corrections[0].ScopeName != "General" {
		t.Errorf("scope_name = %q, want General", scoped.Corrections[0].ScopeName)
	}

	msg := callToolErr(t, ctx, session, "list_corrections", map[string]any{"statuses": []int{5}})
	if !strings.Contains(msg, "invalid status") {
		t.Errorf("error = %q", msg)
	}
}

func TestGetCorrection(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	pending, _ := seed(t, s)
	session := connect(t, ctx, NewServer(s, Options{}))

	var got correctionOutput
	callTool(t, ctx, session, "get_correction", map[string]any{"id": pending}, &got)

	if got.SubjectValue != "teh" || got.StatusName != "Pending" {
		t.Errorf("got %+v", got)
	}
	if len(got.Hypotheses) != 2 || got.Hypotheses[0].Value != "the" {
		t.Errorf("hypotheses = %+v, want best score first", got.Hypotheses)
	}
	if len(got.Context) != 1 || got.Context[0].Key != "sentence" || !got.Context[0].Important {
		t.Errorf("context = %+v", got.Context)
	}
	if got.CreatedAt == "" || got.UpdatedAt == "" {
		t.Error("timestamps missing")
	}

	if msg := callToolErr(t, ctx, session, "get_correction", map[string]any{"id": 9999}); !strings.Contains(msg, "not found") {
		t.Errorf("missing id error = %q", msg)
	}
	if msg := callToolErr(t, ctx, session, "get_correction", map[string]any{"id": 0}); !strings.Contains(msg, "positive") {
		t.Errorf("zero id error = %q", msg)
	}
}

func TestSetCorrectionStatus(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	pending, _ := seed(t, s)
	audit := &recordingAudit{}
	session := connect(t, ctx, NewServer(s, Options{Audit: audit}))

	var out setStatusOutput
	callTool(t, ctx, session, "set_correction_status", map[string]any{"id": pending, "status": 2}, &out)
	if out.StatusName != "Annulled" {
		t.Errorf("status_name = %q, want Annulled", out.StatusName)
	}

	c, err := s.Get(ctx, pending)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c.Status != datatypes.StatusAnnulled || c.SubjectValue != "teh" || len(c.Hypotheses) != 2 {
		t.Errorf("after status change: %+v", c)
	}

	audit.mu.Lock()
	events := append([]extensions.AuditEvent(nil), audit.events...)
	audit.mu.Unlock()
	if len(events) != 1 || events[0].UserID != AgentReviewer || events[0].EventType != "correction.status" {
		t.Errorf("audit events = %+v", events)
	}

	if msg := callToolErr(t, ctx, session, "set_correction_status", map[string]any{"id": pending, "status": 3}); !strings.Contains(msg, "status must be one of") {
		t.Errorf("bad status error = %q", msg)
	}
	if msg := callToolErr(t, ctx, session, "set_correction_status", map[string]any{"id": 4242, "status": 1}); !strings.Contains(msg, "not found") {
		t.Errorf("missing id error = %q", msg)
	}
}

func TestListScopes(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	seed(t, s)
	session := connect(t, ctx, NewServer(s, Options{}))

	var out listScopesOutput
	callTool(t, ctx, session, "list_scopes", map[string]any{}, &out)
	if len(out.Scopes) != 2 || out.Scopes[0].Name != "General" || out.Scopes[1].Name != "Medical" {
		t.Errorf("scopes = %+v", out.Scopes)
	}
}
