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
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/demidovbig/Corrections-System/services/corrections/datatypes"
)

// rowsEditor returns an editor already past the fields form.
func rowsEditor(c *datatypes.Correction) *editor {
	e := newEditor(c, []datatypes.Scope{{ID: 1, Name: "General"}})
	e.stage = stageRows
	e.form = nil
	return e
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"", 0, false},
		{" 0.5 ", 0.5, false},
		{"0", 0, false},
		{"1", 1, false},
		{"1.5", 0, true},
		{"-0.1", 0, true},
		{"abc", 0, true},
		{"NaN", 0, true},
	}
	for _, tt := range tests {
		got, err := parseScore(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseScore(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseScore(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidators(t *testing.T) {
	if err := validateSubject("   "); err == nil {
		t.Error("blank subject should fail")
	}
	if err := validateSubject("teh"); err != nil {
		t.Errorf("subject: %v", err)
	}
	if err := validateKey(""); err == nil {
		t.Error("blank key should fail")
	}
	if err := validateHypothesisValue(" "); err == nil {
		t.Error("blank hypothesis should fail")
	}
	if err := validateScore("2"); err == nil || !strings.Contains(err.Error(), "between 0 and 1") {
		t.Errorf("validateScore(2) = %v", err)
	}
}

func TestNewEditor_FromCorrection(t *testing.T) {
	c := testItems()[0]
	e := newEditor(&c, nil)

	if e.isNew() || e.id != 2 {
		t.Errorf("id = %d, want 2", e.id)
	}
	if e.draft.Subject != "teh" || e.draft.ScopeID != 1 {
		t.Errorf("draft = %+v", e.draft)
	}
	if len(e.hypotheses) != 2 || e.hypotheses[1].Score != "0.9" || !e.hypotheses[1].Approved {
		t.Errorf("hypotheses = %+v", e.hypotheses)
	}
	if len(e.context) != 1 || e.context[0].Key != "source" {
		t.Errorf("context = %+v", e.context)
	}
	if e.stage != stageFields || e.form == nil {
		t.Error("editor should start on the fields form")
	}
}

func TestEditor_KeepsScopeMissingFromOptions(t *testing.T) {
	tests := []struct {
		name   string
		scope  int64
		label  string
		scopes []datatypes.Scope
	}{
		{"unknown scope id", 7, "", []datatypes.Scope{{ID: 1, Name: "General"}}},
		{"scopes not loaded", 1, "General", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testItems()[0]
			c.ScopeID = tt.scope
			c.ScopeName = tt.label
			e := newEditor(&c, tt.scopes)

			req, err := e.updateRequest()
			if err != nil {
				t.Fatalf("updateRequest: %v", err)
			}
			if req.ScopeID == nil || *req.ScopeID != tt.scope {
				t.Errorf("scopeId = %v, want %d", req.ScopeID, tt.scope)
			}

			// Reopening the fields form must not reset it either.
			e.stage = stageRows
			e.form = nil
			e.Update(keyRunes("b"))
			if e.draft.ScopeID != tt.scope {
				t.Errorf("after reopening fields, scope = %d, want %d", e.draft.ScopeID, tt.scope)
			}
		})
	}
}

func TestEditor_ScopeDisplay(t *testing.T) {
	c := testItems()[0]
	c.ScopeID = 9
	c.ScopeName = "Archive"
	e := rowsEditor(&c)

	if got := e.scopeDisplay(); got != "Archive" {
		t.Errorf("scopeDisplay = %q, want Archive", got)
	}
	e.draft.ScopeID = 1
	if got := e.scopeDisplay(); got != "General" {
		t.Errorf("scopeDisplay after change = %q, want General", got)
	}
}

func TestNewEditor_Defaults(t *testing.T) {
	e := newEditor(nil, nil)

	if !e.isNew() {
		t.Error("nil correction should create")
	}
	if e.draft.Status != datatypes.DefaultStatus || e.draft.ScopeID != datatypes.DefaultScopeID {
		t.Errorf("draft = %+v", e.draft)
	}
}

func TestEditor_RowAt(t *testing.T) {
	c := testItems()[0]
	e := rowsEditor(&c)

	tests := []struct {
		i        int
		wantKind rowKind
		wantIdx  int
		wantOK   bool
	}{
		{0, rowHypothesis, 0, true},
		{1, rowHypothesis, 1, true},
		{2, rowContext, 0, true},
		{3, 0, 0, false},
		{-1, 0, 0, false},
	}
	for _, tt := range tests {
		kind, idx, ok := e.rowAt(tt.i)
		if ok != tt.wantOK || (ok && (kind != tt.wantKind || idx != tt.wantIdx)) {
			t.Errorf("rowAt(%d) = %v, %d, %v", tt.i, kind, idx, ok)
		}
	}
}

func TestEditor_AddHypothesisRow(t *testing.T) {
	e := rowsEditor(nil)

	res, _ := e.Update(keyRunes("h"))
	if res != editorActive || e.stage != stageRow || e.hypEdit == nil {
		t.Fatalf("res = %v, stage = %v", res, e.stage)
	}
	if e.hypEdit.Score != "0" {
		t.Errorf("new row score = %q, want 0", e.hypEdit.Score)
	}

	e.hypEdit.Value = "the"
	e.hypEdit.Score = "0.7"
	e.commitRow()

	if e.stage != stageRows || len(e.hypotheses) != 1 || e.hypotheses[0].Value != "the" {
		t.Errorf("stage = %v, hypotheses = %+v", e.stage, e.hypotheses)
	}
}

func TestEditor_AddContextRowMovesCursor(t *testing.T) {
	c := testItems()[0]
	e := rowsEditor(&c)

	e.Update(keyRunes("c"))
	e.ctxEdit.Key = "page"
	e.commitRow()

	if len(e.context) != 2 || e.cursor != 3 {
		t.Errorf("context = %d, cursor = %d", len(e.context), e.cursor)
	}
}

func TestEditor_EditRowDiscardKeepsOriginal(t *testing.T) {
	c := testItems()[0]
	e := rowsEditor(&c)

	e.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if e.stage != stageRow || e.rowIndex != 0 {
		t.Fatalf("stage = %v, rowIndex = %d", e.stage, e.rowIndex)
	}
	e.hypEdit.Value = "changed"
	e.discardRow()

	if e.hypotheses[0].Value != "ten" {
		t.Errorf("discarded edit leaked: %q", e.hypotheses[0].Value)
	}

	e.Update(tea.KeyMsg{Type: tea.KeyEnter})
	e.hypEdit.Value = "tan"
	e.commitRow()
	if e.hypotheses[0].Value != "tan" {
		t.Errorf("committed edit = %q, want tan", e.hypotheses[0].Value)
	}
}

func TestEditor_RemoveRowAndCursor(t *testing.T) {
	c := testItems()[0]
	e := rowsEditor(&c)

	e.Update(tea.KeyMsg{Type: tea.KeyDown})
	e.Update(tea.KeyMsg{Type: tea.KeyDown})
	e.Update(tea.KeyMsg{Type: tea.KeyDown})
	if e.cursor != 2 {
		t.Fatalf("cursor = %d, want 2 (clamped)", e.cursor)
	}

	e.Update(keyRunes("x"))
	if len(e.context) != 0 || e.cursor != 1 {
		t.Errorf("context = %d, cursor = %d", len(e.context), e.cursor)
	}

	e.Update(keyRunes("x"))
	e.Update(keyRunes("x"))
	e.Update(keyRunes("x"))
	if e.rowCount() != 0 || e.cursor != 0 {
		t.Errorf("rows = %d, cursor = %d", e.rowCount(), e.cursor)
	}
}

func TestEditor_SubmitValidates(t *testing.T) {
	e := rowsEditor(nil)

	res, _ := e.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if res != editorActive || e.err == nil {
		t.Fatalf("blank subject: res = %v, err = %v", res, e.err)
	}
	if !strings.Contains(e.View(), "subjectValue is required") {
		t.Errorf("view should show the error:\n%s", e.View())
	}

	e.draft.Subject = "teh"
	e.hypotheses = []*hypothesisDraft{{Value: "the", Score: "1.5"}}
	res, _ = e.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if res != editorActive || e.err == nil || !strings.Contains(e.err.Error(), "hypothesis 1") {
		t.Fatalf("bad score: res = %v, err = %v", res, e.err)
	}

	e.hypotheses[0].Score = "1"
	res, _ = e.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if res != editorSubmitted {
		t.Errorf("res = %v, want editorSubmitted (err %v)", res, e.err)
	}
}

func TestEditor_UpdateRequestSendsEmptyLists(t *testing.T) {
	c := testItems()[1]
	e := rowsEditor(&c)

	req, err := e.updateRequest()
	if err != nil {
		t.Fatalf("updateRequest: %v", err)
	}
	if req.Hypotheses == nil || req.Context == nil {
		t.Fatal("update must carry both child lists")
	}
	if len(*req.Hypotheses) != 0 || len(*req.Context) != 0 {
		t.Errorf("lists = %v / %v, want empty", *req.Hypotheses, *req.Context)
	}
	if *req.SubjectValue != "recieve" || *req.Status != datatypes.StatusConfirmed {
		t.Errorf("request = %+v", req)
	}
}

func TestEditor_CreateRequestTrims(t *testing.T) {
	e := rowsEditor(nil)
	e.draft.Subject = " teh "
	e.draft.Status = datatypes.StatusAnnulled
	e.hypotheses = []*hypothesisDraft{{Value: " the ", Score: "", Suggested: true}}
	e.context = []*contextDraft{{Key: " src ", Value: " ocr ", Important: true}}

	req, err := e.createRequest()
	if err != nil {
		t.Fatalf("createRequest: %v", err)
	}
	if req.SubjectValue != "teh" || *req.Status != datatypes.StatusAnnulled {
		t.Errorf("request = %+v", req)
	}
	h := req.Hypotheses[0]
	if h.Value != "the" || h.Score != datatypes.DefaultScore || !h.SuggestedByReviewer {
		t.Errorf("hypothesis = %+v", h)
	}
	ctx := req.Context[0]
	if ctx.Key != "src" || ctx.Value != " ocr " || !ctx.Important {
		t.Errorf("context = %+v", ctx)
	}
}

func TestEditor_EscapeCancels(t *testing.T) {
	e := rowsEditor(nil)
	if res, _ := e.Update(tea.KeyMsg{Type: tea.KeyEscape}); res != editorCancelled {
		t.Errorf("res = %v, want editorCancelled", res)
	}
}

func TestEditor_BackReopensFields(t *testing.T) {
	e := rowsEditor(nil)
	e.Update(keyRunes("b"))
	if e.stage != stageFields || e.form == nil {
		t.Errorf("stage = %v, form = %v", e.stage, e.form)
	}
}
