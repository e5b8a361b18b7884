// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists corrections, their hypotheses and context elements,
// and the scope reference table.
//
// The only implementation is SqlStore, backed by SQLite through
// modernc.org/sqlite. Composite writes run in a single transaction, and
// child rows are removed by foreign-key cascade when their correction is
// deleted.
package store

import (
	"context"
	"errors"

	"github.com/demidovbig/Corrections-System/services/corrections/datatypes"
)

var (
	// ErrNotFound is returned when the requested correction does not exist.
	ErrNotFound = errors.New("correction not found")

	// ErrInvalidInput is returned when a write carries values the schema
	// cannot hold: a blank subject, an unknown status or a score outside [0,1].
	ErrInvalidInput = errors.New("invalid input")
)

// Repository is the persistence contract used by the API and MCP layers.
//
// # Description
//
// All methods take the caller's context and are safe for concurrent use.
// Returned corrections always carry non-nil Hypotheses and Context slices.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Repository interface {
	// List returns corrections matching filter, newest first, fully populated.
	List(ctx context.Context, filter datatypes.CorrectionFilter) ([]datatypes.Correction, error)

	// Get returns one populated correction or ErrNotFound.
	Get(ctx context.Context, id int64) (*datatypes.Correction, error)

	// Create persists a correction with its children and returns its id.
	Create(ctx context.Context, req datatypes.CreateCorrectionRequest) (int64, error)

	// Update applies the present fields of req. A non-nil child list
	// replaces the stored set. Returns ErrNotFound for unknown ids.
	Update(ctx context.Context, id int64, req datatypes.UpdateCorrectionRequest) error

	// UpdateStatus sets only the status. Returns ErrNotFound for unknown ids.
	UpdateStatus(ctx context.Context, id int64, status datatypes.Status) error

	// Delete removes a correction and, by cascade, its children.
	Delete(ctx context.Context, id int64) error

	// ListScopes returns every scope ordered by name.
	ListScopes(ctx context.Context) ([]datatypes.Scope, error)

	// EnsureScopes inserts each name that is not already present.
	EnsureScopes(ctx context.Context, names []string) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}
