// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

// schemaVersionV1 is the first and current schema version.
const schemaVersionV1 = 1

// currentSchemaVersion is the target schema version for this build.
const currentSchemaVersion = schemaVersionV1

// schemaV1 creates the four domain tables plus schema_version.
//
// scope_id on corrections is a convention-only reference: zero means
// "unscoped" and no scope row is required. Child tables cascade on delete,
// which requires the foreign_keys pragma on every connection.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS scopes (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS corrections (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	subject_value TEXT NOT NULL,
	status        INTEGER NOT NULL DEFAULT 0 CHECK (status IN (0, 1, 2)),
	scope_id      INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_corrections_created ON corrections(created_at);
CREATE INDEX IF NOT EXISTS idx_corrections_status ON corrections(status);
CREATE INDEX IF NOT EXISTS idx_corrections_scope ON corrections(scope_id);

CREATE TABLE IF NOT EXISTS hypotheses (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	correction_id         INTEGER NOT NULL REFERENCES corrections(id) ON DELETE CASCADE,
	value                 TEXT NOT NULL,
	score                 REAL NOT NULL DEFAULT 0 CHECK (score >= 0 AND score <= 1),
	approved              INTEGER NOT NULL DEFAULT 0,
	suggested_by_reviewer INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_hypotheses_correction ON hypotheses(correction_id);

CREATE TABLE IF NOT EXISTS context_elements (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	correction_id INTEGER NOT NULL REFERENCES corrections(id) ON DELETE CASCADE,
	element_key   TEXT NOT NULL,
	element_value TEXT NOT NULL DEFAULT '',
	important     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_context_correction ON context_elements(correction_id);
`
