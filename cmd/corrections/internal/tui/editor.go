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
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/demidovbig/Corrections-System/services/corrections/datatypes"
)

// =============================================================================
// Drafts
// =============================================================================

// Form-bound values live behind pointers so huh fields keep writing to the
// same memory while the model is copied around.

type correctionDraft struct {
	Subject string
	Status  datatypes.Status
	ScopeID int64
}

type hypothesisDraft struct {
	Value     string
	Score     string
	Approved  bool
	Suggested bool
}

type contextDraft struct {
	Key       string
	Value     string
	Important bool
}

type rowKind int

const (
	rowHypothesis rowKind = iota
	rowContext
)

type editorStage int

const (
	stageFields editorStage = iota
	stageRows
	stageRow
)

// editorResult tells the list view what the editor did with a message.
type editorResult int

const (
	editorActive editorResult = iota
	editorCancelled
	editorSubmitted
)

// =============================================================================
// Validators
// =============================================================================

func validateSubject(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("subject is required")
	}
	return nil
}

func validateKey(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("key is required")
	}
	return nil
}

func validateHypothesisValue(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("value is required")
	}
	return nil
}

// parseScore accepts an empty string as the default score.
func parseScore(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return datatypes.DefaultScore, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("score %q is not a number", s)
	}
	if !(v >= datatypes.MinScore && v <= datatypes.MaxScore) {
		return 0, fmt.Errorf("score must be between %g and %g", datatypes.MinScore, datatypes.MaxScore)
	}
	return v, nil
}

func validateScore(s string) error {
	_, err := parseScore(s)
	return err
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// =============================================================================
// Editor
// =============================================================================

// editor creates or edits one correction together with its hypotheses and
// context elements. Children are collected locally and sent in one request.
type editor struct {
	id     int64
	scopes []datatypes.Scope

	// Scope of the row as loaded and the name the API resolved for it.
	origScopeID int64
	scopeLabel  string

	draft      *correctionDraft
	hypotheses []*hypothesisDraft
	context    []*contextDraft

	stage  editorStage
	form   *huh.Form
	cursor int

	// Row being edited in stageRow. rowIndex -1 appends.
	rowKind  rowKind
	rowIndex int
	hypEdit  *hypothesisDraft
	ctxEdit  *contextDraft

	err error
}

// newEditor starts an editor for c, or for a new correction when c is nil.
func newEditor(c *datatypes.Correction, scopes []datatypes.Scope) *editor {
	e := &editor{
		scopes: scopes,
		draft: &correctionDraft{
			Status:  datatypes.DefaultStatus,
			ScopeID: datatypes.DefaultScopeID,
		},
	}
	if c != nil {
		e.id = c.ID
		e.draft.Subject = c.SubjectValue
		e.draft.Status = c.Status
		e.draft.ScopeID = c.ScopeID
		e.origScopeID = c.ScopeID
		e.scopeLabel = c.ScopeName
		for _, h := range c.Hypotheses {
			e.hypotheses = append(e.hypotheses, &hypothesisDraft{
				Value:     h.Value,
				Score:     formatScore(h.Score),
				Approved:  h.Approved,
				Suggested: h.SuggestedByReviewer,
			})
		}
		for _, el := range c.Context {
			e.context = append(e.context, &contextDraft{
				Key:       el.Key,
				Value:     el.Value,
				Important: el.Important,
			})
		}
	}
	e.form = e.fieldsForm()
	return e
}

func (e *editor) isNew() bool { return e.id == 0 }

func (e *editor) Init() tea.Cmd {
	if e.form == nil {
		return nil
	}
	return e.form.Init()
}

func (e *editor) fieldsForm() *huh.Form {
	return newForm(huh.NewGroup(
		huh.NewInput().
			Title("Subject").
			Value(&e.draft.Subject).
			Validate(validateSubject),
		huh.NewSelect[datatypes.Status]().
			Title("Status").
			Options(statusOptions()...).
			Value(&e.draft.Status),
		huh.NewSelect[int64]().
			Title("Scope").
			Options(scopeOptions(e.scopes, false, e.draft.ScopeID, e.currentScopeLabel())...).
			Value(&e.draft.ScopeID),
	))
}

func (e *editor) hypothesisForm(h *hypothesisDraft) *huh.Form {
	return newForm(huh.NewGroup(
		huh.NewInput().
			Title("Hypothesis").
			Value(&h.Value).
			Validate(validateHypothesisValue),
		huh.NewInput().
			Title("Score (0..1)").
			Value(&h.Score).
			Validate(validateScore),
		huh.NewConfirm().
			Title("Approved").
			Value(&h.Approved),
		huh.NewConfirm().
			Title("Suggested by reviewer").
			Value(&h.Suggested),
	))
}

func (e *editor) contextForm(c *contextDraft) *huh.Form {
	return newForm(huh.NewGroup(
		huh.NewInput().
			Title("Key").
			Value(&c.Key).
			Validate(validateKey),
		huh.NewInput().
			Title("Value").
			Value(&c.Value),
		huh.NewConfirm().
			Title("Important").
			Value(&c.Important),
	))
}

// Update routes msg to the active stage.
func (e *editor) Update(msg tea.Msg) (editorResult, tea.Cmd) {
	switch e.stage {
	case stageFields:
		cmd := e.updateForm(msg)
		switch e.form.State {
		case huh.StateCompleted:
			e.form = nil
			e.stage = stageRows
			return editorActive, nil
		case huh.StateAborted:
			return editorCancelled, nil
		}
		return editorActive, cmd

	case stageRow:
		cmd := e.updateForm(msg)
		switch e.form.State {
		case huh.StateCompleted:
			e.commitRow()
			return editorActive, nil
		case huh.StateAborted:
			e.discardRow()
			return editorActive, nil
		}
		return editorActive, cmd

	default:
		if k, ok := msg.(tea.KeyMsg); ok {
			return e.handleRowsKey(k)
		}
		return editorActive, nil
	}
}

func (e *editor) updateForm(msg tea.Msg) tea.Cmd {
	model, cmd := e.form.Update(msg)
	if f, ok := model.(*huh.Form); ok {
		e.form = f
	}
	return cmd
}

func (e *editor) handleRowsKey(k tea.KeyMsg) (editorResult, tea.Cmd) {
	e.err = nil
	switch k.String() {
	case "esc", "ctrl+c":
		return editorCancelled, nil

	case "up", "k":
		if e.cursor > 0 {
			e.cursor--
		}

	case "down", "j":
		if e.cursor < e.rowCount()-1 {
			e.cursor++
		}

	case "h":
		return editorActive, e.openRow(rowHypothesis, -1)

	case "c":
		return editorActive, e.openRow(rowContext, -1)

	case "enter":
		kind, idx, ok := e.rowAt(e.cursor)
		if ok {
			return editorActive, e.openRow(kind, idx)
		}

	case "x", "delete":
		e.removeRow(e.cursor)

	case "b":
		e.stage = stageFields
		e.form = e.fieldsForm()
		return editorActive, e.form.Init()

	case "S", "ctrl+s":
		if err := e.validate(); err != nil {
			e.err = err
			return editorActive, nil
		}
		return editorSubmitted, nil
	}
	return editorActive, nil
}

func (e *editor) rowCount() int { return len(e.hypotheses) + len(e.context) }

// rowAt maps a flat cursor over hypotheses then context to a row.
func (e *editor) rowAt(i int) (rowKind, int, bool) {
	switch {
	case i < 0 || i >= e.rowCount():
		return 0, 0, false
	case i < len(e.hypotheses):
		return rowHypothesis, i, true
	default:
		return rowContext, i - len(e.hypotheses), true
	}
}

// openRow edits a copy of row idx, or a blank row when idx is -1.
func (e *editor) openRow(kind rowKind, idx int) tea.Cmd {
	e.rowKind = kind
	e.rowIndex = idx
	e.stage = stageRow

	switch kind {
	case rowHypothesis:
		h := &hypothesisDraft{Score: formatScore(datatypes.DefaultScore)}
		if idx >= 0 {
			cp := *e.hypotheses[idx]
			h = &cp
		}
		e.hypEdit = h
		e.form = e.hypothesisForm(h)
	default:
		c := &contextDraft{}
		if idx >= 0 {
			cp := *e.context[idx]
			c = &cp
		}
		e.ctxEdit = c
		e.form = e.contextForm(c)
	}
	return e.form.Init()
}

func (e *editor) commitRow() {
	switch e.rowKind {
	case rowHypothesis:
		if e.rowIndex >= 0 {
			e.hypotheses[e.rowIndex] = e.hypEdit
		} else {
			e.hypotheses = append(e.hypotheses, e.hypEdit)
			e.cursor = len(e.hypotheses) - 1
		}
	default:
		if e.rowIndex >= 0 {
			e.context[e.rowIndex] = e.ctxEdit
		} else {
			e.context = append(e.context, e.ctxEdit)
			e.cursor = e.rowCount() - 1
		}
	}
	e.discardRow()
}

func (e *editor) discardRow() {
	e.hypEdit = nil
	e.ctxEdit = nil
	e.form = nil
	e.stage = stageRows
}

func (e *editor) removeRow(i int) {
	kind, idx, ok := e.rowAt(i)
	if !ok {
		return
	}
	if kind == rowHypothesis {
		e.hypotheses = append(e.hypotheses[:idx], e.hypotheses[idx+1:]...)
	} else {
		e.context = append(e.context[:idx], e.context[idx+1:]...)
	}
	if e.cursor >= e.rowCount() && e.cursor > 0 {
		e.cursor--
	}
}

// =============================================================================
// Requests
// =============================================================================

func (e *editor) children() ([]datatypes.HypothesisInput, []datatypes.ContextInput, error) {
	hyps := make([]datatypes.HypothesisInput, 0, len(e.hypotheses))
	for i, h := range e.hypotheses {
		score, err := parseScore(h.Score)
		if err != nil {
			return nil, nil, fmt.Errorf("hypothesis %d: %w", i+1, err)
		}
		hyps = append(hyps, datatypes.HypothesisInput{
			Value:               strings.TrimSpace(h.Value),
			Score:               score,
			Approved:            h.Approved,
			SuggestedByReviewer: h.Suggested,
		})
	}
	ctxs := make([]datatypes.ContextInput, 0, len(e.context))
	for _, c := range e.context {
		ctxs = append(ctxs, datatypes.ContextInput{
			Key:       strings.TrimSpace(c.Key),
			Value:     c.Value,
			Important: c.Important,
		})
	}
	return hyps, ctxs, nil
}

func (e *editor) createRequest() (datatypes.CreateCorrectionRequest, error) {
	hyps, ctxs, err := e.children()
	if err != nil {
		return datatypes.CreateCorrectionRequest{}, err
	}
	status := e.draft.Status
	scope := e.draft.ScopeID
	req := datatypes.CreateCorrectionRequest{
		SubjectValue: strings.TrimSpace(e.draft.Subject),
		Status:       &status,
		ScopeID:      &scope,
		Hypotheses:   hyps,
		Context:      ctxs,
	}
	return req, req.Validate()
}

// updateRequest always carries both child lists so the stored sets are
// replaced by what the editor shows.
func (e *editor) updateRequest() (datatypes.UpdateCorrectionRequest, error) {
	hyps, ctxs, err := e.children()
	if err != nil {
		return datatypes.UpdateCorrectionRequest{}, err
	}
	subject := strings.TrimSpace(e.draft.Subject)
	status := e.draft.Status
	scope := e.draft.ScopeID
	req := datatypes.UpdateCorrectionRequest{
		SubjectValue: &subject,
		Status:       &status,
		ScopeID:      &scope,
		Hypotheses:   &hyps,
		Context:      &ctxs,
	}
	return req, req.Validate()
}

func (e *editor) validate() error {
	if e.isNew() {
		_, err := e.createRequest()
		return err
	}
	_, err := e.updateRequest()
	return err
}

// =============================================================================
// View
// =============================================================================

func (e *editor) View() string {
	var b strings.Builder

	title := "New correction"
	if !e.isNew() {
		title = fmt.Sprintf("Edit correction #%d", e.id)
	}
	b.WriteString(styles.Title.Render(title))
	b.WriteString("\n\n")

	if e.stage != stageRows && e.form != nil {
		b.WriteString(e.form.View())
		return b.String()
	}

	fmt.Fprintf(&b, "%s %s\n", styles.Subtitle.Render("Subject:"), e.draft.Subject)
	fmt.Fprintf(&b, "%s %s\n", styles.Subtitle.Render("Status: "), statusStyle(e.draft.Status).Render(e.draft.Status.String()))
	fmt.Fprintf(&b, "%s %s\n\n", styles.Subtitle.Render("Scope:  "), e.scopeDisplay())

	b.WriteString(styles.Subtitle.Render("Hypotheses"))
	b.WriteString("\n")
	if len(e.hypotheses) == 0 {
		b.WriteString(styles.Muted.Render("  none"))
		b.WriteString("\n")
	}
	for i, h := range e.hypotheses {
		flags := ""
		if h.Approved {
			flags += " approved"
		}
		if h.Suggested {
			flags += " suggested"
		}
		b.WriteString(e.renderRow(i, fmt.Sprintf("%s (%s)%s", h.Value, h.Score, flags)))
	}

	b.WriteString("\n")
	b.WriteString(styles.Subtitle.Render("Context"))
	b.WriteString("\n")
	if len(e.context) == 0 {
		b.WriteString(styles.Muted.Render("  none"))
		b.WriteString("\n")
	}
	for i, c := range e.context {
		line := fmt.Sprintf("%s = %s", c.Key, c.Value)
		if c.Important {
			line += " !"
		}
		b.WriteString(e.renderRow(len(e.hypotheses)+i, line))
	}

	if e.err != nil {
		b.WriteString("\n")
		b.WriteString(styles.Error.Render(e.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(styles.Muted.Render("h add hypothesis  c add context  enter edit  x remove  b back  S save  esc cancel"))
	return b.String()
}

// currentScopeLabel returns the resolved name while the scope is unchanged.
func (e *editor) currentScopeLabel() string {
	if e.draft.ScopeID == e.origScopeID {
		return e.scopeLabel
	}
	return ""
}

func (e *editor) scopeDisplay() string {
	return scopeName(e.draft.ScopeID, e.currentScopeLabel(), e.scopes)
}

func (e *editor) renderRow(i int, text string) string {
	if i == e.cursor {
		return styles.Selected.Render("> "+text) + "\n"
	}
	return "  " + text + "\n"
}
