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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/demidovbig/Corrections-System/services/corrections/datatypes"
)

// DefaultTimeout bounds each API call made by the UI.
const DefaultTimeout = 10 * time.Second

type viewMode int

const (
	modeList viewMode = iota
	modeSearch
	modeFilter
	modeConfirmDelete
	modeEditor
)

// =============================================================================
// Model
// =============================================================================

// Model is the bubbletea model for the corrections browser.
//
// # Description
//
// Shows the filtered corrections in a table and hosts the filter, delete
// confirmation and editor overlays. All API traffic runs in tea.Cmds; the
// results come back as messages.
//
// # Thread Safety
//
// Not safe for concurrent use. bubbletea drives it from a single goroutine.
type Model struct {
	api     API
	timeout time.Duration

	mode   viewMode
	table  table.Model
	search textinput.Model

	filter      *filterState
	filterDraft *filterState
	form        *huh.Form

	deleteID int64
	deleteOK *bool

	editor *editor

	items  []datatypes.Correction
	scopes []datatypes.Scope

	status string
	err    error

	width    int
	height   int
	quitting bool
}

// NewModel creates the list view. A non-positive timeout uses DefaultTimeout.
func NewModel(api API, timeout time.Duration) *Model {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	t := table.New(
		table.WithColumns(columns()),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	t.SetStyles(tableStyles())

	search := textinput.New()
	search.Placeholder = "subject contains..."
	search.Prompt = "/ "
	search.CharLimit = 200

	return &Model{
		api:     api,
		timeout: timeout,
		table:   t,
		search:  search,
		filter:  defaultFilter(),
	}
}

func columns() []table.Column {
	return []table.Column{
		{Title: "ID", Width: 6},
		{Title: "Subject", Width: 24},
		{Title: "Status", Width: 10},
		{Title: "Scope", Width: 12},
		{Title: "#Hyp", Width: 5},
		{Title: "Top hypothesis", Width: 24},
		{Title: "Updated", Width: 16},
	}
}

func toRow(c datatypes.Correction, scopes []datatypes.Scope) table.Row {
	top := ""
	if h, ok := c.TopHypothesis(); ok {
		top = fmt.Sprintf("%s (%.2f)", h.Value, h.Score)
	}
	return table.Row{
		strconv.FormatInt(c.ID, 10),
		c.SubjectValue,
		c.Status.String(),
		scopeName(c.ScopeID, c.ScopeName, scopes),
		strconv.Itoa(len(c.Hypotheses)),
		top,
		time.Time(c.UpdatedAt).Local().Format("2006-01-02 15:04"),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(loadScopesCmd(m.api, m.timeout), m.reload())
}

func (m *Model) reload() tea.Cmd {
	return loadCorrectionsCmd(m.api, m.timeout, m.filter.toFilter())
}

// selected returns the correction under the table cursor.
func (m *Model) selected() (*datatypes.Correction, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.items) {
		return nil, false
	}
	return &m.items[i], true
}

func (m *Model) setRows() {
	rows := make([]table.Row, len(m.items))
	for i, c := range m.items {
		rows[i] = toRow(c, m.scopes)
	}
	m.table.SetRows(rows)
	// SetRows on an empty table leaves the cursor at -1.
	switch {
	case len(rows) > 0 && m.table.Cursor() < 0:
		m.table.SetCursor(0)
	case m.table.Cursor() >= len(rows):
		m.table.SetCursor(max(len(rows)-1, 0))
	}
}

func (m *Model) fail(err error) {
	m.err = err
	m.status = ""
}

func (m *Model) info(s string) {
	m.err = nil
	m.status = s
}

// =============================================================================
// Update
// =============================================================================

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(max(msg.Height-8, 3))
		m.table.SetWidth(msg.Width)

	case correctionsLoadedMsg:
		if msg.err != nil {
			m.fail(fmt.Errorf("load corrections: %w", msg.err))
			return m, nil
		}
		m.items = msg.items
		m.setRows()
		return m, nil

	case scopesLoadedMsg:
		if msg.err != nil {
			m.fail(fmt.Errorf("load scopes: %w", msg.err))
			return m, nil
		}
		m.scopes = msg.scopes
		m.setRows()
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.fail(msg.err)
			return m, nil
		}
		m.info(msg.status)
		return m, m.reload()
	}

	switch m.mode {
	case modeSearch:
		return m.updateSearch(msg)
	case modeFilter:
		return m.updateFilter(msg)
	case modeConfirmDelete:
		return m.updateConfirmDelete(msg)
	case modeEditor:
		return m.updateEditor(msg)
	}

	if k, ok := msg.(tea.KeyMsg); ok {
		return m.handleListKey(k)
	}
	return m, nil
}

func (m *Model) handleListKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "r":
		m.info("refreshing")
		return m, tea.Batch(loadScopesCmd(m.api, m.timeout), m.reload())

	case "/":
		m.mode = modeSearch
		m.search.SetValue(m.filter.Search)
		m.search.CursorEnd()
		return m, m.search.Focus()

	case "f":
		m.mode = modeFilter
		m.filterDraft = m.filter.clone()
		m.form = newFilterForm(m.filterDraft, m.scopes)
		return m, m.form.Init()

	case "n":
		m.mode = modeEditor
		m.editor = newEditor(nil, m.scopes)
		return m, m.editor.Init()

	case "e":
		c, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.mode = modeEditor
		m.editor = newEditor(c, m.scopes)
		return m, m.editor.Init()

	case " ":
		c, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, m.setStatus(c.ID, toggledStatus(c.Status))

	case "a":
		c, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, m.setStatus(c.ID, datatypes.StatusAnnulled)

	case "d":
		c, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.mode = modeConfirmDelete
		m.deleteID = c.ID
		m.deleteOK = new(bool)
		m.form = newConfirmForm(fmt.Sprintf("Delete correction #%d %q?", c.ID, c.SubjectValue), m.deleteOK)
		return m, m.form.Init()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(k)
	return m, cmd
}

// toggledStatus flips Pending and Confirmed. Annulled goes back to Pending.
func toggledStatus(s datatypes.Status) datatypes.Status {
	if s == datatypes.StatusPending {
		return datatypes.StatusConfirmed
	}
	return datatypes.StatusPending
}

func (m *Model) setStatus(id int64, status datatypes.Status) tea.Cmd {
	done := fmt.Sprintf("correction #%d is now %s", id, status)
	return actionCmd(m.timeout, done, func(ctx context.Context) error {
		return m.api.UpdateStatus(ctx, id, status)
	})
}

func (m *Model) updateSearch(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "enter":
			m.filter.Search = strings.TrimSpace(m.search.Value())
			m.search.Blur()
			m.mode = modeList
			return m, m.reload()
		case "esc", "ctrl+c":
			m.search.Blur()
			m.mode = modeList
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

// updateForm feeds msg to the active huh form.
func (m *Model) updateForm(msg tea.Msg) tea.Cmd {
	model, cmd := m.form.Update(msg)
	if f, ok := model.(*huh.Form); ok {
		m.form = f
	}
	return cmd
}

func (m *Model) updateFilter(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd := m.updateForm(msg)
	switch m.form.State {
	case huh.StateCompleted:
		m.filter = m.filterDraft
		m.closeForm()
		return m, m.reload()
	case huh.StateAborted:
		m.closeForm()
		return m, nil
	}
	return m, cmd
}

func (m *Model) updateConfirmDelete(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd := m.updateForm(msg)
	switch m.form.State {
	case huh.StateCompleted:
		id, ok := m.deleteID, *m.deleteOK
		m.closeForm()
		if !ok {
			return m, nil
		}
		return m, m.deleteCmd(id)
	case huh.StateAborted:
		m.closeForm()
		return m, nil
	}
	return m, cmd
}

func (m *Model) deleteCmd(id int64) tea.Cmd {
	return actionCmd(m.timeout, fmt.Sprintf("correction #%d deleted", id), func(ctx context.Context) error {
		return m.api.DeleteCorrection(ctx, id)
	})
}

func (m *Model) closeForm() {
	m.form = nil
	m.filterDraft = nil
	m.deleteID = 0
	m.deleteOK = nil
	m.mode = modeList
}

func (m *Model) updateEditor(msg tea.Msg) (tea.Model, tea.Cmd) {
	result, cmd := m.editor.Update(msg)
	switch result {
	case editorCancelled:
		m.editor = nil
		m.mode = modeList
		return m, nil
	case editorSubmitted:
		e := m.editor
		m.editor = nil
		m.mode = modeList
		return m, m.saveCmd(e)
	}
	return m, cmd
}

// saveCmd posts a new correction or replaces an existing one.
func (m *Model) saveCmd(e *editor) tea.Cmd {
	if e.isNew() {
		req, err := e.createRequest()
		if err != nil {
			return func() tea.Msg { return actionDoneMsg{err: err} }
		}
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
			defer cancel()
			id, err := m.api.CreateCorrection(ctx, req)
			if err != nil {
				return actionDoneMsg{err: err}
			}
			return actionDoneMsg{status: fmt.Sprintf("correction #%d created", id)}
		}
	}

	req, err := e.updateRequest()
	if err != nil {
		return func() tea.Msg { return actionDoneMsg{err: err} }
	}
	id := e.id
	return actionCmd(m.timeout, fmt.Sprintf("correction #%d updated", id), func(ctx context.Context) error {
		return m.api.UpdateCorrection(ctx, id, req)
	})
}

// =============================================================================
// View
// =============================================================================

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	switch m.mode {
	case modeEditor:
		return styles.Box.Render(m.editor.View())
	case modeFilter:
		return styles.Box.Render(styles.Title.Render("Filter") + "\n\n" + m.form.View())
	case modeConfirmDelete:
		return styles.Box.Render(m.form.View())
	}

	var b strings.Builder
	b.WriteString(styles.Title.Render("Corrections"))
	b.WriteString("  ")
	b.WriteString(styles.Muted.Render(m.filter.describe(m.scopes)))
	b.WriteString("\n\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")

	if m.mode == modeSearch {
		b.WriteString(m.search.View())
		b.WriteString("\n")
	}

	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(styles.Muted.Render("space toggle  a annul  e edit  n new  d delete  / search  f filter  r refresh  q quit"))
	return b.String()
}

func (m *Model) statusLine() string {
	switch {
	case m.err != nil:
		return styles.Error.Render(m.err.Error())
	case m.status != "":
		return styles.Success.Render(m.status)
	default:
		return styles.Muted.Render(fmt.Sprintf("%d corrections", len(m.items)))
	}
}
