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
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// correctionValidate is the validator instance for correction requests.
// Initialized in init() with custom validators.
var correctionValidate *validator.Validate

func init() {
	correctionValidate = validator.New()

	// Report fields by their JSON name so messages match the request body.
	correctionValidate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = correctionValidate.RegisterValidation("notblank", validateNotBlank)
}

// validateNotBlank rejects strings that are empty after trimming whitespace.
func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// =============================================================================
// Validation Error
// =============================================================================

// ValidationError describes the first field that failed request validation.
//
// Handlers translate it to HTTP 400 with Message as the response body.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// newValidationError converts a validator error into a *ValidationError for
// the first failing field. prefix is prepended to the field path for nested
// rows, e.g. "hypotheses[2]".
func newValidationError(err error, prefix string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	field := fe.Field()
	if prefix != "" {
		field = prefix + "." + field
	}
	return &ValidationError{Field: field, Message: describeFieldError(field, fe)}
}

func describeFieldError(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be > %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// =============================================================================
// Child Inputs
// =============================================================================

// HypothesisInput is a hypothesis row as submitted by a client.
// Omitted score, approved and suggested_by_reviewer take their zero defaults.
type HypothesisInput struct {
	Value               string  `json:"value" validate:"required,notblank"`
	Score               float64 `json:"score" validate:"gte=0,lte=1"`
	Approved            bool    `json:"approved"`
	SuggestedByReviewer bool    `json:"suggested_by_reviewer"`
}

// ContextInput is a context element as submitted by a client.
// The value may be empty; the key may not.
type ContextInput struct {
	Key       string `json:"key" validate:"required,notblank"`
	Value     string `json:"value"`
	Important bool   `json:"important"`
}

// validateChildren validates every hypothesis and context row, reporting the
// first failure with its index.
func validateChildren(hyps []HypothesisInput, ctxs []ContextInput) error {
	for i := range hyps {
		if err := correctionValidate.Struct(&hyps[i]); err != nil {
			return newValidationError(err, fmt.Sprintf("hypotheses[%d]", i))
		}
	}
	for i := range ctxs {
		if err := correctionValidate.Struct(&ctxs[i]); err != nil {
			return newValidationError(err, fmt.Sprintf("context[%d]", i))
		}
	}
	return nil
}

// =============================================================================
// Request Types
// =============================================================================

// CreateCorrectionRequest is the body of POST /api/corrections.
//
// # Description
//
// Carries a new correction with its optional children. Absent Status and
// ScopeID take DefaultStatus and DefaultScopeID when the repository persists
// the request. Hypotheses and Context default to empty.
//
// # Validation
//
//   - subjectValue: required, not blank
//   - status: optional, one of 0, 1, 2
//   - hypotheses[].value: required, not blank
//   - hypotheses[].score: 0..1
//   - context[].key: required, not blank
type CreateCorrectionRequest struct {
	SubjectValue string            `json:"subjectValue" validate:"required,notblank"`
	Status       *Status           `json:"status" validate:"omitempty,oneof=0 1 2"`
	ScopeID      *int64            `json:"scopeId"`
	Hypotheses   []HypothesisInput `json:"hypotheses"`
	Context      []ContextInput    `json:"context"`
}

// Validate checks the request against its tags and each child row.
func (r *CreateCorrectionRequest) Validate() error {
	if err := correctionValidate.Struct(r); err != nil {
		return newValidationError(err, "")
	}
	return validateChildren(r.Hypotheses, r.Context)
}

// StatusOrDefault returns the requested status or DefaultStatus.
func (r *CreateCorrectionRequest) StatusOrDefault() Status {
	if r.Status == nil {
		return DefaultStatus
	}
	return *r.Status
}

// ScopeIDOrDefault returns the requested scope or DefaultScopeID.
func (r *CreateCorrectionRequest) ScopeIDOrDefault() int64 {
	if r.ScopeID == nil {
		return DefaultScopeID
	}
	return *r.ScopeID
}

// UpdateCorrectionRequest is the body of PUT /api/corrections/:id.
//
// # Description
//
// Every field is optional. A nil field leaves the stored value untouched.
// A non-nil Hypotheses or Context replaces the whole child set, so a pointer
// to an empty slice clears it. JSON null decodes to nil and counts as absent.
type UpdateCorrectionRequest struct {
	SubjectValue *string            `json:"subjectValue" validate:"omitempty,notblank"`
	Status       *Status            `json:"status" validate:"omitempty,oneof=0 1 2"`
	ScopeID      *int64             `json:"scopeId"`
	Hypotheses   *[]HypothesisInput `json:"hypotheses"`
	Context      *[]ContextInput    `json:"context"`
}

// Validate checks the present fields and each child row.
func (r *UpdateCorrectionRequest) Validate() error {
	if r.SubjectValue != nil && strings.TrimSpace(*r.SubjectValue) == "" {
		return &ValidationError{Field: "subjectValue", Message: "subjectValue is required"}
	}
	if err := correctionValidate.Struct(r); err != nil {
		return newValidationError(err, "")
	}
	var hyps []HypothesisInput
	var ctxs []ContextInput
	if r.Hypotheses != nil {
		hyps = *r.Hypotheses
	}
	if r.Context != nil {
		ctxs = *r.Context
	}
	return validateChildren(hyps, ctxs)
}

// UpdateStatusRequest is the body of PATCH /api/corrections/:id/status.
type UpdateStatusRequest struct {
	Status *Status `json:"status" validate:"required,oneof=0 1 2"`
}

// Validate checks that a status is present and in range.
func (r *UpdateStatusRequest) Validate() error {
	if err := correctionValidate.Struct(r); err != nil {
		return newValidationError(err, "")
	}
	return nil
}
