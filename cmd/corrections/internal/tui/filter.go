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
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/huh"

	"github.com/demidovbig/Corrections-System/services/corrections/datatypes"
)

// allScopes is the scope selection meaning "do not filter by scope".
const allScopes int64 = -1

// filterState is the transient list filter. It is never persisted.
type filterState struct {
	Statuses []datatypes.Status
	ScopeID  int64
	Search   string
}

// defaultFilter selects every status and every scope.
func defaultFilter() *filterState {
	return &filterState{
		Statuses: append([]datatypes.Status(nil), datatypes.AllStatuses...),
		ScopeID:  allScopes,
	}
}

func (f *filterState) clone() *filterState {
	c := *f
	c.Statuses = append([]datatypes.Status(nil), f.Statuses...)
	return &c
}

// toFilter converts the UI state to a repository filter.
func (f *filterState) toFilter() datatypes.CorrectionFilter {
	out := datatypes.CorrectionFilter{
		Statuses: append([]datatypes.Status(nil), f.Statuses...),
		Search:   strings.TrimSpace(f.Search),
	}
	if f.ScopeID != allScopes {
		id := f.ScopeID
		out.ScopeID = &id
	}
	return out
}

// describe renders a one-line summary for the list header.
func (f *filterState) describe(scopes []datatypes.Scope) string {
	statuses := "all"
	if len(f.Statuses) > 0 && len(f.Statuses) < len(datatypes.AllStatuses) {
		names := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			names[i] = s.String()
		}
		statuses = strings.Join(names, ", ")
	}

	scope := "all"
	if f.ScopeID != allScopes {
		scope = scopeName(f.ScopeID, "", scopes)
	}

	out := fmt.Sprintf("status: %s  scope: %s", statuses, scope)
	if s := strings.TrimSpace(f.Search); s != "" {
		out += fmt.Sprintf("  search: %q", s)
	}
	return out
}

// =============================================================================
// Forms
// =============================================================================

// newForm builds a huh form that reports completion through its State
// instead of quitting the program. esc cancels.
func newForm(groups ...*huh.Group) *huh.Form {
	km := huh.NewDefaultKeyMap()
	km.Quit = key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "cancel"))

	form := huh.NewForm(groups...).
		WithKeyMap(km).
		WithTheme(huh.ThemeBase16()).
		WithShowHelp(true)
	form.SubmitCmd = nil
	form.CancelCmd = nil
	return form
}

func newFilterForm(draft *filterState, scopes []datatypes.Scope) *huh.Form {
	return newForm(huh.NewGroup(
		huh.NewMultiSelect[datatypes.Status]().
			Title("Status").
			Options(statusOptions()...).
			Value(&draft.Statuses),
		huh.NewSelect[int64]().
			Title("Scope").
			Options(scopeOptions(scopes, true, draft.ScopeID, "")...).
			Value(&draft.ScopeID),
		huh.NewInput().
			Title("Subject contains").
			Value(&draft.Search),
	))
}

func newConfirmForm(title string, ok *bool) *huh.Form {
	return newForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Affirmative("Delete").
			Negative("Cancel").
			Value(ok),
	))
}

func statusOptions() []huh.Option[datatypes.Status] {
	opts := make([]huh.Option[datatypes.Status], len(datatypes.AllStatuses))
	for i, s := range datatypes.AllStatuses {
		opts[i] = huh.NewOption(s.String(), s)
	}
	return opts
}

// scopeOptions lists the known scopes after the unscoped entry, optionally
// preceded by an "all scopes" entry. current is always offered: a huh Select
// whose value matches no option overwrites it with the first one.
func scopeOptions(scopes []datatypes.Scope, includeAll bool, current int64, currentName string) []huh.Option[int64] {
	opts := make([]huh.Option[int64], 0, len(scopes)+3)
	if includeAll {
		opts = append(opts, huh.NewOption("All scopes", allScopes))
	}
	opts = append(opts, huh.NewOption("(none)", datatypes.DefaultScopeID))
	found := current == datatypes.DefaultScopeID || (includeAll && current == allScopes)
	for _, s := range scopes {
		opts = append(opts, huh.NewOption(s.Name, s.ID))
		if s.ID == current {
			found = true
		}
	}
	if !found {
		opts = append(opts, huh.NewOption(scopeName(current, currentName, scopes), current))
	}
	return opts
}

// scopeName prefers the name the API resolved, then the loaded scope list.
func scopeName(id int64, resolved string, scopes []datatypes.Scope) string {
	if resolved != "" {
		return resolved
	}
	if id == datatypes.DefaultScopeID {
		return "-"
	}
	for _, s := range scopes {
		if s.ID == id {
			return s.Name
		}
	}
	return fmt.Sprintf("#%d", id)
}
