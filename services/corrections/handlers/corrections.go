// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/demidovbig/Corrections-System/services/corrections/datatypes"
	"github.com/demidovbig/Corrections-System/services/corrections/observability"
	"github.com/demidovbig/Corrections-System/services/corrections/store"
)

var correctionsTracer = otel.Tracer("corrections.handlers")

// ListCorrections handles GET /api/corrections.
//
// # Description
//
// Accepts the optional query parameters status (CSV of 0/1/2), scopeId and
// search, and responds with {"corrections": [...]} ordered newest first.
// Malformed parameters yield 400.
func ListCorrections(repo store.Repository, obs *Observer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := correctionsTracer.Start(c.Request.Context(), "ListCorrections")
		defer span.End()

		filter, err := parseFilter(c)
		if err != nil {
			writeError(c, span, obs, "list", err, msgListFailed)
			return
		}

		list, err := repo.List(ctx, filter)
		if err != nil {
			writeError(c, span, obs, "list", err, msgListFailed)
			return
		}

		span.SetAttributes(attribute.Int("corrections.count", len(list)))
		c.JSON(http.StatusOK, gin.H{"corrections": list})
	}
}

// GetCorrection handles GET /api/corrections/:id.
func GetCorrection(repo store.Repository, obs *Observer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := correctionsTracer.Start(c.Request.Context(), "GetCorrection")
		defer span.End()

		id, err := parseID(c)
		if err != nil {
			writeError(c, span, obs, "get", err, msgGetFailed)
			return
		}
		span.SetAttributes(attribute.Int64("correction.id", id))

		correction, err := repo.Get(ctx, id)
		if err != nil {
			writeError(c, span, obs, "get", err, msgGetFailed)
			return
		}
		c.JSON(http.StatusOK, gin.H{"correction": correction})
	}
}

// CreateCorrection handles POST /api/corrections.
//
// # Description
//
// Validates the body, persists the correction with its children in one
// transaction and responds 201 with {"message", "id"}.
func CreateCorrection(repo store.Repository, obs *Observer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := correctionsTracer.Start(c.Request.Context(), "CreateCorrection")
		defer span.End()

		var req datatypes.CreateCorrectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			rejectBody(c, span, obs, observability.ActionCreate, err)
			return
		}
		if err := req.Validate(); err != nil {
			obs.mutation(c, observability.ActionCreate, 0, err, nil)
			writeError(c, span, obs, "create", err, msgCreateFailed)
			return
		}

		id, err := repo.Create(ctx, req)
		obs.mutation(c, observability.ActionCreate, id, err, nil)
		if err != nil {
			writeError(c, span, obs, "create", err, msgCreateFailed)
			return
		}

		span.SetAttributes(attribute.Int64("correction.id", id))
		c.JSON(http.StatusCreated, gin.H{"message": msgCreated, "id": id})
	}
}

// UpdateCorrection handles PUT /api/corrections/:id.
//
// # Description
//
// Only fields present in the body are written. A present hypotheses or
// context list (even empty) replaces the stored set; an absent or null
// list leaves it untouched.
func UpdateCorrection(repo store.Repository, obs *Observer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := correctionsTracer.Start(c.Request.Context(), "UpdateCorrection")
		defer span.End()

		id, err := parseID(c)
		if err != nil {
			obs.mutation(c, observability.ActionUpdate, 0, err, nil)
			writeError(c, span, obs, "update", err, msgUpdateFailed)
			return
		}
		span.SetAttributes(attribute.Int64("correction.id", id))

		var req datatypes.UpdateCorrectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			rejectBody(c, span, obs, observability.ActionUpdate, err)
			return
		}
		if err := req.Validate(); err != nil {
			obs.mutation(c, observability.ActionUpdate, id, err, nil)
			writeError(c, span, obs, "update", err, msgUpdateFailed)
			return
		}

		err = repo.Update(ctx, id, req)
		obs.mutation(c, observability.ActionUpdate, id, err, map[string]any{
			"replaced_hypotheses": req.Hypotheses != nil,
			"replaced_context":    req.Context != nil,
		})
		if err != nil {
			writeError(c, span, obs, "update", err, msgUpdateFailed)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": msgUpdated})
	}
}

// UpdateCorrectionStatus handles PATCH /api/corrections/:id/status.
func UpdateCorrectionStatus(repo store.Repository, obs *Observer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := correctionsTracer.Start(c.Request.Context(), "UpdateCorrectionStatus")
		defer span.End()

		id, err := parseID(c)
		if err != nil {
			obs.mutation(c, observability.ActionStatus, 0, err, nil)
			writeError(c, span, obs, "status", err, msgStatusFailed)
			return
		}
		span.SetAttributes(attribute.Int64("correction.id", id))

		var req datatypes.UpdateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			rejectBody(c, span, obs, observability.ActionStatus, err)
			return
		}
		if err := req.Validate(); err != nil {
			obs.mutation(c, observability.ActionStatus, id, err, nil)
			writeError(c, span, obs, "status", err, msgStatusFailed)
			return
		}

		err = repo.UpdateStatus(ctx, id, *req.Status)
		obs.mutation(c, observability.ActionStatus, id, err, map[string]any{"status": int(*req.Status)})
		if err != nil {
			writeError(c, span, obs, "status", err, msgStatusFailed)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": msgStatusUpdated})
	}
}

// DeleteCorrection handles DELETE /api/corrections/:id.
// Hypotheses and context elements are removed by cascade.
func DeleteCorrection(repo store.Repository, obs *Observer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := correctionsTracer.Start(c.Request.Context(), "DeleteCorrection")
		defer span.End()

		id, err := parseID(c)
		if err != nil {
			obs.mutation(c, observability.ActionDelete, 0, err, nil)
			writeError(c, span, obs, "delete", err, msgDeleteFailed)
			return
		}
		span.SetAttributes(attribute.Int64("correction.id", id))

		err = repo.Delete(ctx, id)
		obs.mutation(c, observability.ActionDelete, id, err, nil)
		if err != nil {
			writeError(c, span, obs, "delete", err, msgDeleteFailed)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": msgDeleted})
	}
}

// rejectBody answers 400 for a body that is not valid JSON for the request.
func rejectBody(c *gin.Context, span trace.Span, obs *Observer, action string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, "invalid request body")
	obs.metrics().RecordMutation(action, observability.OutcomeInvalid)
	c.JSON(http.StatusBadRequest, gin.H{"message": msgInvalidBody})
}
