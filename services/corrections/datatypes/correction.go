// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides the data structures shared by the corrections
// service layers: the stored aggregate (Correction with its Hypotheses and
// ContextElements), reference Scopes, request bodies and list filters.
//
// This file holds the persisted entity types. Request types and their
// validation live in requests.go.
package datatypes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-openapi/strfmt"
)

// =============================================================================
// Status
// =============================================================================

// Status is the tri-state review outcome of a correction.
type Status int

const (
	// StatusPending marks a correction that has not been reviewed yet.
	StatusPending Status = 0

	// StatusConfirmed marks a correction accepted by a reviewer.
	StatusConfirmed Status = 1

	// StatusAnnulled marks a correction rejected by a reviewer.
	StatusAnnulled Status = 2
)

// AllStatuses lists every valid status in ascending order.
var AllStatuses = []Status{StatusPending, StatusConfirmed, StatusAnnulled}

// =============================================================================
// Defaults
// =============================================================================

const (
	// DefaultStatus is applied when a create request omits the status.
	DefaultStatus = StatusPending

	// DefaultScopeID is applied when a create request omits the scope.
	// Zero is the "unscoped" convention; no scope row is required for it.
	DefaultScopeID int64 = 0

	// DefaultScore is applied when a hypothesis omits its score.
	DefaultScore = 0.0

	// MinScore and MaxScore bound a hypothesis confidence score.
	MinScore = 0.0
	MaxScore = 1.0
)

// Valid reports whether s is one of the three defined statuses.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusAnnulled
}

// String returns the human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusConfirmed:
		return "Confirmed"
	case StatusAnnulled:
		return "Annulled"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ParseStatus parses the integer form of a status ("0", "1", "2").
func ParseStatus(raw string) (Status, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("status %q is not an integer", raw)
	}
	s := Status(n)
	if !s.Valid() {
		return 0, fmt.Errorf("status %d is not one of 0, 1, 2", n)
	}
	return s, nil
}

// ParseStatusList parses a comma-separated list of statuses such as "0,2".
//
// Blank entries are skipped, so "" and "," yield an empty list, which callers
// treat as "no status filter". Duplicates are collapsed; order is preserved.
func ParseStatusList(csv string) ([]Status, error) {
	var out []Status
	seen := make(map[Status]bool, len(AllStatuses))
	for _, part := range strings.Split(csv, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		s, err := ParseStatus(part)
		if err != nil {
			return nil, err
		}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out, nil
}

// =============================================================================
// Entities
// =============================================================================

// Scope is a named domain a correction belongs to. Read-only reference data.
type Scope struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Hypothesis is one candidate replacement for a correction's subject text.
type Hypothesis struct {
	ID                  int64   `json:"id"`
	CorrectionID        int64   `json:"correction_id"`
	Value               string  `json:"value"`
	Score               float64 `json:"score"`
	Approved            bool    `json:"approved"`
	SuggestedByReviewer bool    `json:"suggested_by_reviewer"`
}

// ContextElement is a key/value annotation supporting a correction.
type ContextElement struct {
	ID           int64  `json:"id"`
	CorrectionID int64  `json:"correction_id"`
	Key          string `json:"element_key"`
	Value        string `json:"element_value"`
	Important    bool   `json:"important"`
}

// Correction is the root aggregate: a proposed text fix plus its children.
//
// Hypotheses are ordered by score descending. Context elements keep their
// insertion order. Both slices are non-nil on values returned by the store so
// they serialize as [] rather than null.
type Correction struct {
	ID           int64            `json:"id"`
	SubjectValue string           `json:"subject_value"`
	Status       Status           `json:"status"`
	ScopeID      int64            `json:"scope_id"`
	ScopeName    string           `json:"scope_name,omitempty"`
	CreatedAt    strfmt.DateTime  `json:"created_at"`
	UpdatedAt    strfmt.DateTime  `json:"updated_at"`
	Hypotheses   []Hypothesis     `json:"hypotheses"`
	Context      []ContextElement `json:"context"`
}

// TopHypothesis returns the highest scored hypothesis, if any.
func (c *Correction) TopHypothesis() (Hypothesis, bool) {
	if len(c.Hypotheses) == 0 {
		return Hypothesis{}, false
	}
	best := c.Hypotheses[0]
	for _, h := range c.Hypotheses[1:] {
		if h.Score > best.Score {
			best = h
		}
	}
	return best, true
}

// =============================================================================
// Filters
// =============================================================================

// CorrectionFilter narrows a list query. Zero values impose no constraint:
// an empty Statuses slice means every status, a nil ScopeID means every scope
// and an empty Search matches every subject.
type CorrectionFilter struct {
	Statuses []Status
	ScopeID  *int64
	Search   string
}
