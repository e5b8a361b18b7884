// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/demidovbig/Corrections-System/cmd/corrections/internal/client"
	"github.com/demidovbig/Corrections-System/services/corrections/datatypes"
)

// API is the subset of the corrections API the UI needs.
type API interface {
	ListCorrections(ctx context.Context, filter datatypes.CorrectionFilter) ([]datatypes.Correction, error)
	CreateCorrection(ctx context.Context, req datatypes.CreateCorrectionRequest) (int64, error)
	UpdateCorrection(ctx context.Context, id int64, req datatypes.UpdateCorrectionRequest) error
	UpdateStatus(ctx context.Context, id int64, status datatypes.Status) error
	DeleteCorrection(ctx context.Context, id int64) error
	ListScopes(ctx context.Context) ([]datatypes.Scope, error)
}

var _ API = (*client.Client)(nil)

// =============================================================================
// Messages
// =============================================================================

type correctionsLoadedMsg struct {
	items []datatypes.Correction
	err   error
}

type scopesLoadedMsg struct {
	scopes []datatypes.Scope
	err    error
}

// actionDoneMsg reports a finished mutation. A successful one triggers a
// reload of the list.
type actionDoneMsg struct {
	status string
	err    error
}

// =============================================================================
// Commands
// =============================================================================

func loadCorrectionsCmd(api API, timeout time.Duration, filter datatypes.CorrectionFilter) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		items, err := api.ListCorrections(ctx, filter)
		return correctionsLoadedMsg{items: items, err: err}
	}
}

func loadScopesCmd(api API, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		scopes, err := api.ListScopes(ctx)
		return scopesLoadedMsg{scopes: scopes, err: err}
	}
}

// actionCmd runs one mutation and reports done (or the error) afterwards.
func actionCmd(timeout time.Duration, done string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: done}
	}
}
