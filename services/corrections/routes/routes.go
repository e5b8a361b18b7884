// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/demidovbig/Corrections-System/pkg/extensions"
	"github.com/demidovbig/Corrections-System/services/corrections/handlers"
	"github.com/demidovbig/Corrections-System/services/corrections/middleware"
	"github.com/demidovbig/Corrections-System/services/corrections/observability"
	"github.com/demidovbig/Corrections-System/services/corrections/store"
)

// SetupRoutes registers the corrections API on router.
//
// The root banner, /health and /metrics are public. Everything under /api
// passes through the AuthMiddleware of opts.AuthProvider. A nil metrics
// disables /metrics and the mutation counters.
func SetupRoutes(router *gin.Engine, repo store.Repository, metrics *observability.Metrics,
	opts extensions.ServiceOptions) {

	opts = opts.WithDefaults()
	obs := &handlers.Observer{Audit: opts.AuditLogger, Metrics: metrics}

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.HealthCheck(repo))
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(opts.AuthProvider))
	{
		corrections := api.Group("/corrections")
		{
			corrections.GET("", handlers.ListCorrections(repo, obs))
			corrections.POST("", handlers.CreateCorrection(repo, obs))
			corrections.GET("/:id", handlers.GetCorrection(repo, obs))
			corrections.PUT("/:id", handlers.UpdateCorrection(repo, obs))
			corrections.PATCH("/:id/status", handlers.UpdateCorrectionStatus(repo, obs))
			corrections.DELETE("/:id", handlers.DeleteCorrection(repo, obs))
		}
		api.GET("/scopes", handlers.ListScopes(repo, obs))
	}
}
