// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusPtr(s Status) *Status { return &s }

// =============================================================================
// Status Parsing Tests
// =============================================================================

func TestParseStatusList(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []Status
		wantErr bool
	}{
		{name: "empty", input: "", want: nil},
		{name: "blank entries", input: " , ,", want: nil},
		{name: "single", input: "1", want: []Status{StatusConfirmed}},
		{name: "all", input: "0,1,2", want: []Status{StatusPending, StatusConfirmed, StatusAnnulled}},
		{name: "duplicates collapsed", input: "2,2,0", want: []Status{StatusAnnulled, StatusPending}},
		{name: "spaces", input: " 0 , 2 ", want: []Status{StatusPending, StatusAnnulled}},
		{name: "out of range", input: "0,3", wantErr: true},
		{name: "negative", input: "-1", wantErr: true},
		{name: "not a number", input: "confirmed", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatusList(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "Pending", StatusPending.String())
	assert.Equal(t, "Confirmed", StatusConfirmed.String())
	assert.Equal(t, "Annulled", StatusAnnulled.String())
	assert.Equal(t, "Status(7)", Status(7).String())
}

// =============================================================================
// Create Request Tests
// =============================================================================

func TestCreateCorrectionRequest_Validate(t *testing.T) {
	tests := []struct {
		name      string
		req       CreateCorrectionRequest
		wantField string
	}{
		{
			name: "minimal",
			req:  CreateCorrectionRequest{SubjectValue: "teh"},
		},
		{
			name: "full",
			req: CreateCorrectionRequest{
				SubjectValue: "teh",
				Status:       statusPtr(StatusAnnulled),
				Hypotheses:   []HypothesisInput{{Value: "the", Score: 1}},
				Context:      []ContextInput{{Key: "source", Value: ""}},
			},
		},
		{
			name:      "missing subject",
			req:       CreateCorrectionRequest{},
			wantField: "subjectValue",
		},
		{
			name:      "blank subject",
			req:       CreateCorrectionRequest{SubjectValue: "   "},
			wantField: "subjectValue",
		},
		{
			name:      "status out of range",
			req:       CreateCorrectionRequest{SubjectValue: "x", Status: statusPtr(3)},
			wantField: "status",
		},
		{
			name: "score above one",
			req: CreateCorrectionRequest{
				SubjectValue: "x",
				Hypotheses:   []HypothesisInput{{Value: "a", Score: 0.5}, {Value: "b", Score: 1.5}},
			},
			wantField: "hypotheses[1].score",
		},
		{
			name: "negative score",
			req: CreateCorrectionRequest{
				SubjectValue: "x",
				Hypotheses:   []HypothesisInput{{Value: "a", Score: -0.1}},
			},
			wantField: "hypotheses[0].score",
		},
		{
			name: "blank hypothesis value",
			req: CreateCorrectionRequest{
				SubjectValue: "x",
				Hypotheses:   []HypothesisInput{{Value: " "}},
			},
			wantField: "hypotheses[0].value",
		},
		{
			name: "blank context key",
			req: CreateCorrectionRequest{
				SubjectValue: "x",
				Context:      []ContextInput{{Key: "", Value: "v"}},
			},
			wantField: "context[0].key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
			assert.Contains(t, ve.Message, tt.wantField)
		})
	}
}

func TestCreateCorrectionRequest_Defaults(t *testing.T) {
	req := CreateCorrectionRequest{SubjectValue: "x"}
	assert.Equal(t, DefaultStatus, req.StatusOrDefault())
	assert.Equal(t, DefaultScopeID, req.ScopeIDOrDefault())

	scope := int64(4)
	req = CreateCorrectionRequest{SubjectValue: "x", Status: statusPtr(StatusConfirmed), ScopeID: &scope}
	assert.Equal(t, StatusConfirmed, req.StatusOrDefault())
	assert.Equal(t, int64(4), req.ScopeIDOrDefault())
}

// =============================================================================
// Update Request Tests
// =============================================================================

func TestUpdateCorrectionRequest_NullChildrenAreAbsent(t *testing.T) {
	var req UpdateCorrectionRequest
	require.NoError(t, json.Unmarshal([]byte(`{"hypotheses":null,"context":[]}`), &req))

	assert.Nil(t, req.Hypotheses)
	require.NotNil(t, req.Context)
	assert.Empty(t, *req.Context)
	assert.NoError(t, req.Validate())
}

func TestUpdateCorrectionRequest_Validate(t *testing.T) {
	blank := " "
	subject := "ok"

	assert.NoError(t, (&UpdateCorrectionRequest{}).Validate())
	assert.NoError(t, (&UpdateCorrectionRequest{SubjectValue: &subject}).Validate())

	err := (&UpdateCorrectionRequest{SubjectValue: &blank}).Validate()
	assert.True(t, IsValidationError(err))

	err = (&UpdateCorrectionRequest{Status: statusPtr(9)}).Validate()
	assert.True(t, IsValidationError(err))

	hyps := []HypothesisInput{{Value: "v", Score: 2}}
	err = (&UpdateCorrectionRequest{Hypotheses: &hyps}).Validate()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "hypotheses[0].score", ve.Field)
}

// =============================================================================
// Status Request Tests
// =============================================================================

func TestUpdateStatusRequest_Validate(t *testing.T) {
	assert.NoError(t, (&UpdateStatusRequest{Status: statusPtr(StatusPending)}).Validate())
	assert.NoError(t, (&UpdateStatusRequest{Status: statusPtr(StatusAnnulled)}).Validate())

	err := (&UpdateStatusRequest{}).Validate()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "status", ve.Field)

	err = (&UpdateStatusRequest{Status: statusPtr(3)}).Validate()
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Message, "one of")
}

// =============================================================================
// Entity Tests
// =============================================================================

func TestCorrection_TopHypothesis(t *testing.T) {
	c := Correction{}
	_, ok := c.TopHypothesis()
	assert.False(t, ok)

	c.Hypotheses = []Hypothesis{{Value: "a", Score: 0.2}, {Value: "b", Score: 0.9}, {Value: "c", Score: 0.5}}
	top, ok := c.TopHypothesis()
	require.True(t, ok)
	assert.Equal(t, "b", top.Value)
}
