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

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"

	"github.com/demidovbig/Corrections-System/services/corrections/datatypes"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width in UTC so lexical order equals time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// childBatchSize bounds the number of ids bound into one IN (...) clause.
const childBatchSize = 500

// Config controls how the SQLite database is opened.
type Config struct {
	// Path is the database file. Its parent directory is created if missing.
	Path string

	// MaxOpenConns bounds the connection pool. Zero means 10.
	MaxOpenConns int

	// MaxIdleConns bounds idle connections. Zero means MaxOpenConns.
	MaxIdleConns int

	// BusyTimeout is how long a connection waits on a locked database.
	// Zero means 5s.
	BusyTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 10
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = c.MaxOpenConns
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = 5 * time.Second
	}
}

// dsn appends the per-connection pragmas understood by modernc.org/sqlite.
// _txlock=immediate takes the write lock at BEGIN so concurrent writers wait
// on busy_timeout instead of failing on lock upgrade.
func (c Config) dsn() string {
	sep := "?"
	if strings.Contains(c.Path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)&_txlock=immediate",
		c.Path, sep, c.BusyTimeout.Milliseconds())
}

// querier is the read surface shared by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SqlStore implements Repository with SQLite.
type SqlStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Repository = (*SqlStore)(nil)

// Open opens or creates the database at cfg.Path and runs migrations.
//
// # Description
//
// Creates the parent directory, configures the pool, pings the database and
// verifies that foreign keys are enforced. The cascade contract depends on
// it, so Open fails rather than run with the pragma off.
//
// # Outputs
//
//   - *SqlStore: Ready store. Caller must Close it.
//   - error: Non-nil if the file cannot be opened, the pragma is not honoured
//     or migration fails.
func Open(cfg Config) (*SqlStore, error) {
	cfg.applyDefaults()
	if cfg.Path == "" {
		return nil, errors.New("store path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("read foreign_keys pragma: %w", err)
	}
	if fk != 1 {
		_ = db.Close()
		return nil, errors.New("sqlite foreign_keys pragma is not enabled")
	}

	s := &SqlStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqlStore) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableCount == 0 {
		return s.freshInstall()
	}

	var v int
	err = s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return s.freshInstall()
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != currentSchemaVersion {
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

func (s *SqlStore) freshInstall() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(schemaV1); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version(version) VALUES(?)", currentSchemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return tx.Commit()
}

// Close closes the connection pool.
func (s *SqlStore) Close() error {
	return s.db.Close()
}

// Ping checks that the database answers.
func (s *SqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SqlStore) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

// withTx runs fn in a transaction, committing only when fn succeeds.
func (s *SqlStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// =============================================================================
// Reads
// =============================================================================

const selectCorrection = `
SELECT c.id, c.subject_value, c.status, c.scope_id, s.name, c.created_at, c.updated_at
FROM corrections c
LEFT JOIN scopes s ON s.id = c.scope_id`

// List returns corrections matching filter ordered newest first.
//
// # Description
//
// Status, scope and search constraints are ANDed. Search is a substring
// match through LIKE with its wildcards escaped, so it is case-insensitive
// for ASCII letters only. Children are loaded with one query per child
// table for the whole page.
func (s *SqlStore) List(ctx context.Context, filter datatypes.CorrectionFilter) ([]datatypes.Correction, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.Statuses) > 0 {
		where = append(where, "c.status IN ("+placeholders(len(filter.Statuses))+")")
		for _, st := range filter.Statuses {
			args = append(args, int(st))
		}
	}
	if filter.ScopeID != nil {
		where = append(where, "c.scope_id = ?")
		args = append(args, *filter.ScopeID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		where = append(where, `c.subject_value LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(search)+"%")
	}

	query := selectCorrection
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY c.created_at DESC, c.id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list corrections: %w", err)
	}
	defer rows.Close()

	out := []datatypes.Correction{}
	for rows.Next() {
		c, err := scanCorrection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list corrections: %w", err)
	}
	if err := loadChildren(ctx, s.db, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one correction with its children, or ErrNotFound.
func (s *SqlStore) Get(ctx context.Context, id int64) (*datatypes.Correction, error) {
	rows, err := s.db.QueryContext(ctx, selectCorrection+"\nWHERE c.id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("get correction %d: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get correction %d: %w", id, err)
		}
		return nil, ErrNotFound
	}
	c, err := scanCorrection(rows)
	if err != nil {
		return nil, err
	}
	_ = rows.Close()

	list := []datatypes.Correction{c}
	if err := loadChildren(ctx, s.db, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func scanCorrection(rows *sql.Rows) (datatypes.Correction, error) {
	var (
		c                datatypes.Correction
		status           int
		scopeName        sql.NullString
		created, updated string
	)
	if err := rows.Scan(&c.ID, &c.SubjectValue, &status, &c.ScopeID, &scopeName, &created, &updated); err != nil {
		return c, fmt.Errorf("scan correction: %w", err)
	}
	c.Status = datatypes.Status(status)
	c.ScopeName = nullStr(scopeName)

	var err error
	if c.CreatedAt, err = parseTime(created); err != nil {
		return c, fmt.Errorf("correction %d created_at: %w", c.ID, err)
	}
	if c.UpdatedAt, err = parseTime(updated); err != nil {
		return c, fmt.Errorf("correction %d updated_at: %w", c.ID, err)
	}
	c.Hypotheses = []datatypes.Hypothesis{}
	c.Context = []datatypes.ContextElement{}
	return c, nil
}

// loadChildren fills Hypotheses and Context for every correction in list.
func loadChildren(ctx context.Context, q querier, list []datatypes.Correction) error {
	if len(list) == 0 {
		return nil
	}
	index := make(map[int64]int, len(list))
	ids := make([]any, 0, len(list))
	for i := range list {
		index[list[i].ID] = i
		ids = append(ids, list[i].ID)
	}

	for start := 0; start < len(ids); start += childBatchSize {
		end := start + childBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]
		in := placeholders(len(batch))

		if err := loadHypotheses(ctx, q, in, batch, list, index); err != nil {
			return err
		}
		if err := loadContext(ctx, q, in, batch, list, index); err != nil {
			return err
		}
	}
	return nil
}

func loadHypotheses(ctx context.Context, q querier, in string, ids []any, list []datatypes.Correction, index map[int64]int) error {
	rows, err := q.QueryContext(ctx, `
		SELECT id, correction_id, value, score, approved, suggested_by_reviewer
		FROM hypotheses WHERE correction_id IN (`+in+`)
		ORDER BY correction_id, score DESC, id ASC`, ids...)
	if err != nil {
		return fmt.Errorf("load hypotheses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h datatypes.Hypothesis
		if err := rows.Scan(&h.ID, &h.CorrectionID, &h.Value, &h.Score, &h.Approved, &h.SuggestedByReviewer); err != nil {
			return fmt.Errorf("scan hypothesis: %w", err)
		}
		i := index[h.CorrectionID]
		list[i].Hypotheses = append(list[i].Hypotheses, h)
	}
	return rows.Err()
}

func loadContext(ctx context.Context, q querier, in string, ids []any, list []datatypes.Correction, index map[int64]int) error {
	rows, err := q.QueryContext(ctx, `
		SELECT id, correction_id, element_key, element_value, important
		FROM context_elements WHERE correction_id IN (`+in+`)
		ORDER BY correction_id, id`, ids...)
	if err != nil {
		return fmt.Errorf("load context: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e datatypes.ContextElement
		if err := rows.Scan(&e.ID, &e.CorrectionID, &e.Key, &e.Value, &e.Important); err != nil {
			return fmt.Errorf("scan context element: %w", err)
		}
		i := index[e.CorrectionID]
		list[i].Context = append(list[i].Context, e)
	}
	return rows.Err()
}

// ListScopes returns every scope ordered by name.
func (s *SqlStore) ListScopes(ctx context.Context) ([]datatypes.Scope, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM scopes ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("list scopes: %w", err)
	}
	defer rows.Close()

	out := []datatypes.Scope{}
	for rows.Next() {
		var sc datatypes.Scope
		if err := rows.Scan(&sc.ID, &sc.Name); err != nil {
			return nil, fmt.Errorf("scan scope: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// =============================================================================
// Writes
// =============================================================================

// Create inserts the correction and its children in one transaction.
func (s *SqlStore) Create(ctx context.Context, req datatypes.CreateCorrectionRequest) (int64, error) {
	if err := checkCreate(req); err != nil {
		return 0, err
	}
	return s.create(ctx, req)
}

func (s *SqlStore) create(ctx context.Context, req datatypes.CreateCorrectionRequest) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.timestamp()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO corrections(subject_value, status, scope_id, created_at, updated_at)
			 VALUES(?, ?, ?, ?, ?)`,
			req.SubjectValue, int(req.StatusOrDefault()), req.ScopeIDOrDefault(), now, now)
		if err != nil {
			return fmt.Errorf("insert correction: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("insert correction id: %w", err)
		}
		if err := insertHypotheses(ctx, tx, id, req.Hypotheses); err != nil {
			return err
		}
		return insertContext(ctx, tx, id, req.Context)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Update writes the present fields of req and bumps updated_at.
//
// # Description
//
// Scalar fields are written with a single UPDATE. A non-nil Hypotheses or
// Context deletes the stored set and inserts the new one in the given
// order. Everything happens in one transaction; a failure leaves the row
// and both child sets as they were.
func (s *SqlStore) Update(ctx context.Context, id int64, req datatypes.UpdateCorrectionRequest) error {
	if err := checkUpdate(req); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		sets := []string{"updated_at = ?"}
		args := []any{s.timestamp()}
		if req.SubjectValue != nil {
			sets = append(sets, "subject_value = ?")
			args = append(args, *req.SubjectValue)
		}
		if req.Status != nil {
			sets = append(sets, "status = ?")
			args = append(args, int(*req.Status))
		}
		if req.ScopeID != nil {
			sets = append(sets, "scope_id = ?")
			args = append(args, *req.ScopeID)
		}
		args = append(args, id)

		res, err := tx.ExecContext(ctx,
			"UPDATE corrections SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if err != nil {
			return fmt.Errorf("update correction %d: %w", id, err)
		}
		if err := requireAffected(res); err != nil {
			return err
		}

		if req.Hypotheses != nil {
			if _, err := tx.ExecContext(ctx, "DELETE FROM hypotheses WHERE correction_id = ?", id); err != nil {
				return fmt.Errorf("clear hypotheses: %w", err)
			}
			if err := insertHypotheses(ctx, tx, id, *req.Hypotheses); err != nil {
				return err
			}
		}
		if req.Context != nil {
			if _, err := tx.ExecContext(ctx, "DELETE FROM context_elements WHERE correction_id = ?", id); err != nil {
				return fmt.Errorf("clear context: %w", err)
			}
			if err := insertContext(ctx, tx, id, *req.Context); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateStatus sets the status and updated_at of one correction.
func (s *SqlStore) UpdateStatus(ctx context.Context, id int64, status datatypes.Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: status %d", ErrInvalidInput, int(status))
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE corrections SET status = ?, updated_at = ? WHERE id = ?",
		int(status), s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("update status %d: %w", id, err)
	}
	return requireAffected(res)
}

// Delete removes a correction. Hypotheses and context go with it by cascade.
func (s *SqlStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM corrections WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete correction %d: %w", id, err)
	}
	return requireAffected(res)
}

// EnsureScopes inserts the given names, ignoring blanks and existing rows.
func (s *SqlStore) EnsureScopes(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, name := range names {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO scopes(name) VALUES(?)", name); err != nil {
				return fmt.Errorf("ensure scope %q: %w", name, err)
			}
		}
		return nil
	})
}

func insertHypotheses(ctx context.Context, tx *sql.Tx, correctionID int64, hyps []datatypes.HypothesisInput) error {
	for i, h := range hyps {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO hypotheses(correction_id, value, score, approved, suggested_by_reviewer)
			 VALUES(?, ?, ?, ?, ?)`,
			correctionID, h.Value, h.Score, h.Approved, h.SuggestedByReviewer)
		if err != nil {
			return fmt.Errorf("insert hypothesis %d: %w", i, err)
		}
	}
	return nil
}

func insertContext(ctx context.Context, tx *sql.Tx, correctionID int64, elems []datatypes.ContextInput) error {
	for i, e := range elems {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO context_elements(correction_id, element_key, element_value, important)
			 VALUES(?, ?, ?, ?)`,
			correctionID, e.Key, e.Value, e.Important)
		if err != nil {
			return fmt.Errorf("insert context element %d: %w", i, err)
		}
	}
	return nil
}

// =============================================================================
// Guards
// =============================================================================

func checkCreate(req datatypes.CreateCorrectionRequest) error {
	if strings.TrimSpace(req.SubjectValue) == "" {
		return fmt.Errorf("%w: subject value is empty", ErrInvalidInput)
	}
	if st := req.StatusOrDefault(); !st.Valid() {
		return fmt.Errorf("%w: status %d", ErrInvalidInput, int(st))
	}
	return checkScores(req.Hypotheses)
}

func checkUpdate(req datatypes.UpdateCorrectionRequest) error {
	if req.SubjectValue != nil && strings.TrimSpace(*req.SubjectValue) == "" {
		return fmt.Errorf("%w: subject value is empty", ErrInvalidInput)
	}
	if req.Status != nil && !req.Status.Valid() {
		return fmt.Errorf("%w: status %d", ErrInvalidInput, int(*req.Status))
	}
	if req.Hypotheses != nil {
		return checkScores(*req.Hypotheses)
	}
	return nil
}

func checkScores(hyps []datatypes.HypothesisInput) error {
	for i, h := range hyps {
		// Written as a range check so NaN is rejected too.
		if !(h.Score >= datatypes.MinScore && h.Score <= datatypes.MaxScore) {
			return fmt.Errorf("%w: hypothesis %d score %v", ErrInvalidInput, i, h.Score)
		}
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// escapeLike escapes the LIKE wildcards and the escape character itself.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func parseTime(s string) (strfmt.DateTime, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return strfmt.DateTime{}, err
	}
	return strfmt.DateTime(t.UTC()), nil
}

// nullStr converts a sql.NullString to a plain string (empty if null).
func nullStr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
