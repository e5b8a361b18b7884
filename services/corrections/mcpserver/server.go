// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mcpserver exposes the corrections store to agents over the Model
// Context Protocol.
//
// Agents can list and read corrections, move a correction between statuses
// and list scopes. Creating, editing and deleting stay with the HTTP API.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/demidovbig/Corrections-System/pkg/extensions"
	"github.com/demidovbig/Corrections-System/services/corrections/datatypes"
	"github.com/demidovbig/Corrections-System/services/corrections/store"
)

// AgentReviewer is the reviewer recorded on audit events from MCP calls.
const AgentReviewer = "mcp-agent"

// Options configures a Server. Zero values are replaced with defaults.
type Options struct {
	// Version is reported in the MCP implementation info. Default: "dev"
	Version string

	// Audit receives status changes made through the server.
	// Default: extensions.NopAuditLogger
	Audit extensions.AuditLogger

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server wraps the MCP SDK server around a corrections repository.
type Server struct {
	MCPServer *sdkmcp.Server

	repo   store.Repository
	audit  extensions.AuditLogger
	logger *slog.Logger
}

// NewServer creates an MCP server with the corrections tools registered.
func NewServer(repo store.Repository, opts Options) *Server {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Audit == nil {
		opts.Audit = &extensions.NopAuditLogger{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		repo:   repo,
		audit:  opts.Audit,
		logger: opts.Logger.With("component", "mcp"),
	}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "corrections", Version: opts.Version},
		nil,
	)
	s.registerTools()
	return s
}

// Run serves MCP over stdin/stdout until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting corrections MCP server over stdio")
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_corrections",
		Description: "List corrections newest first. Optional filters: statuses (0=Pending, 1=Confirmed, 2=Annulled), scope_id and a case-insensitive subject search.",
	}, s.handleListCorrections)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_correction",
		Description: "Get one correction with its hypotheses (best score first) and context elements.",
	}, s.handleGetCorrection)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "set_correction_status",
		Description: "Set the status of a correction: 0=Pending, 1=Confirmed, 2=Annulled. Other fields are left untouched.",
	}, s.handleSetStatus)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_scopes",
		Description: "List the scopes corrections can belong to, ordered by name.",
	}, s.handleListScopes)
}

// --- Tool input/output types ---

type listCorrectionsInput struct {
	Statuses []int  `json:"statuses,omitempty" jsonschema:"status codes to include (0=Pending, 1=Confirmed, 2=Annulled); empty means all"`
	ScopeID  *int64 `json:"scope_id,omitempty" jsonschema:"only corrections in this scope"`
	Search   string `json:"search,omitempty" jsonschema:"case-insensitive substring of the subject"`
}

type listCorrectionsOutput struct {
	Count       int                `json:"count"`
	Corrections []correctionOutput `json:"corrections"`
}

type getCorrectionInput struct {
	ID int64 `json:"id" jsonschema:"correction id"`
}

type setStatusInput struct {
	ID     int64 `json:"id" jsonschema:"correction id"`
	Status int   `json:"status" jsonschema:"new status (0=Pending, 1=Confirmed, 2=Annulled)"`
}

type setStatusOutput struct {
	ID         int64  `json:"id"`
	Status     int    `json:"status"`
	StatusName string `json:"status_name"`
}

type listScopesOutput struct {
	Scopes []scopeOutput `json:"scopes"`
}

type scopeOutput struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type hypothesisOutput struct {
	ID                  int64   `json:"id"`
	Value               string  `json:"value"`
	Score               float64 `json:"score"`
	Approved            bool    `json:"approved"`
	SuggestedByReviewer bool    `json:"suggested_by_reviewer"`
}

type contextOutput struct {
	ID        int64  `json:"id"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Important bool   `json:"important"`
}

type correctionOutput struct {
	ID           int64              `json:"id"`
	SubjectValue string             `json:"subject_value"`
	Status       int                `json:"status"`
	StatusName   string             `json:"status_name"`
	ScopeID      int64              `json:"scope_id"`
	ScopeName    string             `json:"scope_name,omitempty"`
	CreatedAt    string             `json:"created_at"`
	UpdatedAt    string             `json:"updated_at"`
	Hypotheses   []hypothesisOutput `json:"hypotheses"`
	Context      []contextOutput    `json:"context"`
}

// --- Tool handlers ---

func (s *Server) handleListCorrections(ctx context.Context, _ *sdkmcp.CallToolRequest, input listCorrectionsInput) (*sdkmcp.CallToolResult, listCorrectionsOutput, error) {
	filter := datatypes.CorrectionFilter{ScopeID: input.ScopeID, Search: input.Search}
	for _, raw := range input.Statuses {
		st := datatypes.Status(raw)
		if !st.Valid() {
			return nil, listCorrectionsOutput{}, fmt.Errorf("statuses: invalid status %d", raw)
		}
		filter.Statuses = append(filter.Statuses, st)
	}

	list, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("list_corrections failed", "error", err)
		return nil, listCorrectionsOutput{}, errors.New("failed to fetch corrections")
	}

	out := listCorrectionsOutput{Count: len(list), Corrections: make([]correctionOutput, 0, len(list))}
	for i := range list {
		out.Corrections = append(out.Corrections, toCorrectionOutput(&list[i]))
	}
	return nil, out, nil
}

func (s *Server) handleGetCorrection(ctx context.Context, _ *sdkmcp.CallToolRequest, input getCorrectionInput) (*sdkmcp.CallToolResult, correctionOutput, error) {
	if input.ID <= 0 {
		return nil, correctionOutput{}, errors.New("id must be a positive integer")
	}
	c, err := s.repo.Get(ctx, input.ID)
	if err != nil {
		return nil, correctionOutput{}, s.toolError("get_correction", input.ID, err)
	}
	return nil, toCorrectionOutput(c), nil
}

func (s *Server) handleSetStatus(ctx context.Context, _ *sdkmcp.CallToolRequest, input setStatusInput) (*sdkmcp.CallToolResult, setStatusOutput, error) {
	if input.ID <= 0 {
		return nil, setStatusOutput{}, errors.New("id must be a positive integer")
	}
	st := datatypes.Status(input.Status)
	if !st.Valid() {
		return nil, setStatusOutput{}, fmt.Errorf("status must be one of [0 1 2], got %d", input.Status)
	}

	if err := s.repo.UpdateStatus(ctx, input.ID, st); err != nil {
		return nil, setStatusOutput{}, s.toolError("set_correction_status", input.ID, err)
	}

	event := extensions.AuditEvent{
		EventType:    "correction.status",
		Timestamp:    time.Now().UTC(),
		UserID:       AgentReviewer,
		Action:       "status",
		ResourceType: "correction",
		ResourceID:   fmt.Sprintf("%d", input.ID),
		Outcome:      "success",
		Metadata:     map[string]any{"status": input.Status, "via": "mcp"},
	}
	if err := s.audit.Log(ctx, event); err != nil {
		s.logger.Warn("audit log failed", "error", err, "event_type", event.EventType)
	}

	return nil, setStatusOutput{ID: input.ID, Status: int(st), StatusName: st.String()}, nil
}

func (s *Server) handleListScopes(ctx context.Context, _ *sdkmcp.CallToolRequest, _ struct{}) (*sdkmcp.CallToolResult, listScopesOutput, error) {
	scopes, err := s.repo.ListScopes(ctx)
	if err != nil {
		s.logger.Error("list_scopes failed", "error", err)
		return nil, listScopesOutput{}, errors.New("failed to fetch scopes")
	}
	out := listScopesOutput{Scopes: make([]scopeOutput, 0, len(scopes))}
	for _, sc := range scopes {
		out.Scopes = append(out.Scopes, scopeOutput{ID: sc.ID, Name: sc.Name})
	}
	return nil, out, nil
}

// toolError hides store failures behind a fixed message; not-found and
// invalid input pass through so the agent can correct its call.
func (s *Server) toolError(tool string, id int64, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("correction %d not found", id)
	case errors.Is(err, store.ErrInvalidInput):
		return err
	default:
		s.logger.Error(tool+" failed", "id", id, "error", err)
		return fmt.Errorf("%s failed", tool)
	}
}

func toCorrectionOutput(c *datatypes.Correction) correctionOutput {
	out := correctionOutput{
		ID:           c.ID,
		SubjectValue: c.SubjectValue,
		Status:       int(c.Status),
		StatusName:   c.Status.String(),
		ScopeID:      c.ScopeID,
		ScopeName:    c.ScopeName,
		CreatedAt:    c.CreatedAt.String(),
		UpdatedAt:    c.UpdatedAt.String(),
		Hypotheses:   make([]hypothesisOutput, 0, len(c.Hypotheses)),
		Context:      make([]contextOutput, 0, len(c.Context)),
	}
	for _, h := range c.Hypotheses {
		out.Hypotheses = append(out.Hypotheses, hypothesisOutput{
			ID:                  h.ID,
			Value:               h.Value,
			Score:               h.Score,
			Approved:            h.Approved,
			SuggestedByReviewer: h.SuggestedByReviewer,
		})
	}
	for _, e := range c.Context {
		out.Context = append(out.Context, contextOutput{
			ID:        e.ID,
			Key:       e.Key,
			Value:     e.Value,
			Important: e.Important,
		})
	}
	return out
}
