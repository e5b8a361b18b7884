// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnauthorized indicates the token is missing, unknown or malformed.
var ErrUnauthorized = errors.New("unauthorized")

// LocalReviewer is the identity assigned when no authentication is configured.
const LocalReviewer = "local-reviewer"

// AuthInfo contains the authenticated reviewer's identity.
type AuthInfo struct {
	// UserID is the reviewer name recorded in audit events. Never empty.
	UserID string

	// Roles contains the reviewer's role memberships.
	Roles []string
}

// HasRole checks whether the reviewer holds the given role.
func (a *AuthInfo) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthProvider validates bearer tokens and returns reviewer identity.
//
// # Description
//
// Validate receives the raw token from the Authorization header, which may
// be empty. Implementations return ErrUnauthorized (or a wrapped form) when
// the token does not identify a reviewer.
type AuthProvider interface {
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// NopAuthProvider accepts every request as the local reviewer.
//
// Thread-safe: This implementation has no mutable state.
type NopAuthProvider struct{}

// Validate ignores the token and returns LocalReviewer.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID: LocalReviewer,
		Roles:  []string{"reviewer"},
	}, nil
}

// StaticTokenAuthProvider maps fixed API tokens to reviewer names.
//
// # Description
//
// Built from configuration, typically CORRECTIONS_API_TOKENS in the form
// "alice:tok1,bob:tok2". Tokens are compared in constant time.
//
// # Thread Safety
//
// Immutable after construction; safe for concurrent use.
type StaticTokenAuthProvider struct {
	entries []tokenEntry
}

type tokenEntry struct {
	token    []byte
	reviewer string
}

// NewStaticTokenAuthProvider builds a provider from a reviewer → token map.
// Entries with an empty reviewer or token are skipped.
func NewStaticTokenAuthProvider(reviewerTokens map[string]string) *StaticTokenAuthProvider {
	names := make([]string, 0, len(reviewerTokens))
	for name := range reviewerTokens {
		names = append(names, name)
	}
	sort.Strings(names)

	p := &StaticTokenAuthProvider{}
	for _, name := range names {
		tok := reviewerTokens[name]
		if strings.TrimSpace(name) == "" || tok == "" {
			continue
		}
		p.entries = append(p.entries, tokenEntry{token: []byte(tok), reviewer: name})
	}
	return p
}

// ParseReviewerTokens parses "reviewer:token" pairs separated by commas.
func ParseReviewerTokens(raw string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, tok, ok := strings.Cut(pair, ":")
		name, tok = strings.TrimSpace(name), strings.TrimSpace(tok)
		if !ok || name == "" || tok == "" {
			return nil, fmt.Errorf("invalid reviewer token pair %q, want reviewer:token", pair)
		}
		out[name] = tok
	}
	return out, nil
}

// Len returns the number of configured tokens.
func (p *StaticTokenAuthProvider) Len() int {
	return len(p.entries)
}

// Validate returns the reviewer owning token, or ErrUnauthorized.
func (p *StaticTokenAuthProvider) Validate(_ context.Context, token string) (*AuthInfo, error) {
	if token == "" {
		return nil, fmt.Errorf("missing bearer token: %w", ErrUnauthorized)
	}
	candidate := []byte(token)
	reviewer := ""
	for _, e := range p.entries {
		if subtle.ConstantTimeCompare(e.token, candidate) == 1 {
			reviewer = e.reviewer
		}
	}
	if reviewer == "" {
		return nil, fmt.Errorf("unknown token: %w", ErrUnauthorized)
	}
	return &AuthInfo{UserID: reviewer, Roles: []string{"reviewer"}}, nil
}

// Compile-time interface compliance checks.
var (
	_ AuthProvider = (*NopAuthProvider)(nil)
	_ AuthProvider = (*StaticTokenAuthProvider)(nil)
)
