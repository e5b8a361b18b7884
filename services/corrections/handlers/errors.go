// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the HTTP handlers of the corrections API.
//
// Every handler is a factory returning a gin.HandlerFunc closed over its
// dependencies. Error bodies are always {"message": "..."}: validation
// failures map to 400, store.ErrNotFound to 404, and anything else to 500
// with a fixed message per endpoint. Store error text is logged, never
// returned to the client.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/demidovbig/Corrections-System/pkg/extensions"
	"github.com/demidovbig/Corrections-System/services/corrections/datatypes"
	"github.com/demidovbig/Corrections-System/services/corrections/middleware"
	"github.com/demidovbig/Corrections-System/services/corrections/observability"
	"github.com/demidovbig/Corrections-System/services/corrections/store"
)

// Response messages.
const (
	msgNotFound         = "Correction not found"
	msgInvalidBody      = "Invalid request body"
	msgListFailed       = "Failed to fetch corrections"
	msgGetFailed        = "Failed to fetch correction"
	msgCreated          = "Correction created"
	msgCreateFailed     = "Failed to create correction"
	msgUpdated          = "Correction updated"
	msgUpdateFailed     = "Failed to update correction"
	msgDeleted          = "Correction deleted"
	msgDeleteFailed     = "Failed to delete correction"
	msgStatusUpdated    = "Status updated"
	msgStatusFailed     = "Failed to update status"
	msgScopesFailed     = "Failed to fetch scopes"
	msgRootBanner       = "Corrections System API is running!"
	msgStoreUnavailable = "Store unavailable"
)

// =============================================================================
// Observer
// =============================================================================

// Observer carries the side channels of mutating handlers: the audit trail
// and the Prometheus collectors. A nil *Observer or nil fields disable them.
type Observer struct {
	Audit   extensions.AuditLogger
	Metrics *observability.Metrics
}

func (o *Observer) metrics() *observability.Metrics {
	if o == nil {
		return nil
	}
	return o.Metrics
}

// mutation records the outcome of one write and audits it on success.
func (o *Observer) mutation(c *gin.Context, action string, id int64, err error, meta map[string]any) {
	if o == nil {
		return
	}
	o.Metrics.RecordMutation(action, outcomeOf(err))
	if err != nil || o.Audit == nil {
		return
	}

	if meta == nil {
		meta = map[string]any{}
	}
	meta["request_id"] = middleware.GetRequestID(c)

	event := extensions.AuditEvent{
		EventType:    "correction." + action,
		Timestamp:    time.Now().UTC(),
		UserID:       middleware.ReviewerID(c),
		Action:       action,
		ResourceType: "correction",
		ResourceID:   strconv.FormatInt(id, 10),
		Outcome:      observability.OutcomeSuccess,
		Metadata:     meta,
	}
	if auditErr := o.Audit.Log(c.Request.Context(), event); auditErr != nil {
		middleware.Logger(c).Warn("audit log failed", "error", auditErr, "event_type", event.EventType)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeSuccess
	case errors.Is(err, store.ErrNotFound):
		return observability.OutcomeNotFound
	case isBadRequest(err):
		return observability.OutcomeInvalid
	default:
		return observability.OutcomeError
	}
}

// =============================================================================
// Error Translation
// =============================================================================

func isBadRequest(err error) bool {
	return datatypes.IsValidationError(err) || errors.Is(err, store.ErrInvalidInput)
}

// writeError maps err to a status code and a {message} body.
//
// # Inputs
//
//   - op: Operation label for logs and the store error counter.
//   - fallback: Message returned with 500 responses.
func writeError(c *gin.Context, span trace.Span, obs *Observer, op string, err error, fallback string) {
	span.RecordError(err)

	switch {
	case isBadRequest(err):
		span.SetStatus(codes.Error, "validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"message": badRequestMessage(err)})
	case errors.Is(err, store.ErrNotFound):
		span.SetStatus(codes.Error, "not found")
		c.JSON(http.StatusNotFound, gin.H{"message": msgNotFound})
	default:
		span.SetStatus(codes.Error, err.Error())
		obs.metrics().RecordStoreError(op)
		middleware.Logger(c).Error("store operation failed", "operation", op, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": fallback})
	}
}

func badRequestMessage(err error) string {
	var ve *datatypes.ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return err.Error()
}

// =============================================================================
// Parameter Parsing
// =============================================================================

// parseID reads the :id path parameter, which must be a positive integer.
func parseID(c *gin.Context) (int64, error) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &datatypes.ValidationError{Field: "id", Message: "id must be a positive integer"}
	}
	return id, nil
}

// parseFilter reads the status, scopeId and search query parameters.
//
// status is a comma-separated list of integers; blank entries are ignored
// and an empty list means no status filter. scopeId must be an integer when
// present. search is trimmed; empty means no search.
func parseFilter(c *gin.Context) (datatypes.CorrectionFilter, error) {
	var filter datatypes.CorrectionFilter

	statuses, err := datatypes.ParseStatusList(c.Query("status"))
	if err != nil {
		return filter, &datatypes.ValidationError{Field: "status", Message: "status: " + err.Error()}
	}
	filter.Statuses = statuses

	if raw := strings.TrimSpace(c.Query("scopeId")); raw != "" {
		scopeID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, &datatypes.ValidationError{Field: "scopeId", Message: "scopeId must be an integer"}
		}
		filter.ScopeID = &scopeID
	}

	filter.Search = strings.TrimSpace(c.Query("search"))
	return filter, nil
}
