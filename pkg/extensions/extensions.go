// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extensions defines the pluggable identity and audit hooks of the
// corrections service.
//
// The service runs as a local single-team tool by default: every request is
// attributed to a fixed local reviewer and audit events are discarded.
// Deployments that need attribution inject concrete implementations through
// ServiceOptions.
//
// # Extension Categories
//
//   - auth.go: Reviewer identity (AuthProvider)
//   - audit.go: Mutation audit trail (AuditLogger)
//
// # Usage
//
//	opts := extensions.DefaultOptions()
//	svc, err := corrections.New(cfg, &opts)
//
//	// Token-mapped reviewers with audit events written to slog:
//	opts = extensions.DefaultOptions().
//	    WithAuth(extensions.NewStaticTokenAuthProvider(tokens)).
//	    WithAudit(extensions.NewSlogAuditLogger(logger))
//
// # Thread Safety
//
// All interface implementations must be safe for concurrent use.
package extensions

// ServiceOptions groups all extension points for service configuration.
//
// All fields are optional; nil values are replaced with no-op defaults by
// WithDefaults.
type ServiceOptions struct {
	// AuthProvider resolves bearer tokens to reviewers.
	// Default: NopAuthProvider (every request is the local reviewer)
	AuthProvider AuthProvider

	// AuditLogger records successful mutations.
	// Default: NopAuditLogger (discards all events)
	AuditLogger AuditLogger
}

// DefaultOptions returns ServiceOptions with no-op defaults.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuthProvider: &NopAuthProvider{},
		AuditLogger:  &NopAuditLogger{},
	}
}

// WithDefaults returns a copy of opts with nil fields set to no-op defaults.
func (opts ServiceOptions) WithDefaults() ServiceOptions {
	if opts.AuthProvider == nil {
		opts.AuthProvider = &NopAuthProvider{}
	}
	if opts.AuditLogger == nil {
		opts.AuditLogger = &NopAuditLogger{}
	}
	return opts
}

// WithAuth returns a copy of opts with the given AuthProvider.
func (opts ServiceOptions) WithAuth(provider AuthProvider) ServiceOptions {
	opts.AuthProvider = provider
	return opts
}

// WithAudit returns a copy of opts with the given AuditLogger.
func (opts ServiceOptions) WithAudit(logger AuditLogger) ServiceOptions {
	opts.AuditLogger = logger
	return opts
}
