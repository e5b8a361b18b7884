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
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/demidovbig/Corrections-System/services/corrections/store"
)

// healthTimeout bounds the store ping behind /health.
const healthTimeout = 2 * time.Second

// ListScopes handles GET /api/scopes and responds with {"scopes": [...]}
// ordered by name.
func ListScopes(repo store.Repository, obs *Observer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := correctionsTracer.Start(c.Request.Context(), "ListScopes")
		defer span.End()

		scopes, err := repo.ListScopes(ctx)
		if err != nil {
			writeError(c, span, obs, "list_scopes", err, msgScopesFailed)
			return
		}
		c.JSON(http.StatusOK, gin.H{"scopes": scopes})
	}
}

// Root handles GET / with a static banner.
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": msgRootBanner})
}

// HealthCheck handles GET /health by pinging the store.
// Responds 200 {"status":"ok"} or 503 when the store does not answer.
func HealthCheck(repo store.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		if err := repo.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unavailable",
				"message": msgStoreUnavailable,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
