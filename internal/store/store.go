// Package store persists runs, issues, and fix records to sqlite so a
// report can be re-rendered after the fact and fixes keep a durable
// audit trail.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mtl-tools/mtlint/internal/lint"
	"github.com/mtl-tools/mtlint/internal/report"
)

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		mode TEXT NOT NULL,
		threshold REAL NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chapters (
		run_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		title TEXT,
		file TEXT NOT NULL,
		words INTEGER NOT NULL,
		dialogue_sentences INTEGER NOT NULL,
		narration_sentences INTEGER NOT NULL,
		entities_resolved INTEGER NOT NULL,
		entities_obfuscated INTEGER NOT NULL,
		segments INTEGER NOT NULL,
		segments_review INTEGER NOT NULL,
		PRIMARY KEY (run_id, idx),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE TABLE IF NOT EXISTS issues (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		chapter_idx INTEGER NOT NULL,
		kind TEXT NOT NULL,
		severity TEXT NOT NULL,
		confidence REAL NOT NULL,
		file TEXT NOT NULL,
		line INTEGER NOT NULL,
		span_start INTEGER NOT NULL,
		span_end INTEGER NOT NULL,
		original TEXT NOT NULL,
		suggested TEXT,
		source TEXT NOT NULL,
		reasoning TEXT,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE TABLE IF NOT EXISTS fixes (
		issue_id TEXT NOT NULL,
		run_id TEXT NOT NULL,
		chapter_idx INTEGER NOT NULL,
		file TEXT NOT NULL,
		original TEXT NOT NULL,
		fixed TEXT NOT NULL,
		confidence REAL NOT NULL,
		applied_at TIMESTAMP NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_issues_run ON issues(run_id, chapter_idx);
	CREATE INDEX IF NOT EXISTS idx_fixes_run ON fixes(run_id, chapter_idx);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Run is one recorded pipeline run.
type Run struct {
	ID         string
	Path       string
	Mode       string
	Threshold  float64
	StartedAt  time.Time
	FinishedAt time.Time
}

// SaveRun records the run header.
func (s *Store) SaveRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, path, mode, threshold, started_at, finished_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Path, run.Mode, run.Threshold, run.StartedAt, run.FinishedAt)
	return err
}

// SaveChapter records one chapter's stats with its issue and fix
// streams.
func (s *Store) SaveChapter(ctx context.Context, runID string, cs report.ChapterStats) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chapters (run_id, idx, title, file, words, dialogue_sentences, narration_sentences,
			entities_resolved, entities_obfuscated, segments, segments_review)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, cs.Index, cs.Title, cs.File, cs.Words, cs.DialogueSentences, cs.NarrationSentences,
		cs.EntitiesResolved, cs.EntitiesObfuscated, cs.Segments, cs.SegmentsNeedReview); err != nil {
		return err
	}

	issueStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO issues (id, run_id, chapter_idx, kind, severity, confidence, file, line,
			span_start, span_end, original, suggested, source, reasoning)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer issueStmt.Close()
	for _, iss := range cs.Issues {
		if _, err := issueStmt.ExecContext(ctx,
			iss.ID, runID, cs.Index, iss.Kind, iss.Severity.String(), iss.Confidence,
			iss.File, iss.Line, iss.Span.Start, iss.Span.End,
			iss.Original, iss.Suggested, string(iss.Source), iss.Reasoning); err != nil {
			return err
		}
	}

	fixStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fixes (issue_id, run_id, chapter_idx, file, original, fixed, confidence, applied_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer fixStmt.Close()
	for _, fix := range cs.Fixes {
		if _, err := fixStmt.ExecContext(ctx,
			fix.IssueID, runID, cs.Index, fix.File, fix.Original, fix.Fixed,
			fix.Confidence, fix.AppliedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListRuns returns recorded runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, mode, threshold, started_at, finished_at FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Path, &r.Mode, &r.Threshold, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recent run header.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx,
		`SELECT id, path, mode, threshold, started_at, finished_at FROM runs ORDER BY started_at DESC LIMIT 1`).
		Scan(&r.ID, &r.Path, &r.Mode, &r.Threshold, &r.StartedAt, &r.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no recorded runs")
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// LoadVolume rehydrates a run's volume report.
func (s *Store) LoadVolume(ctx context.Context, runID string) (*report.Volume, error) {
	var path string
	err := s.db.QueryRowContext(ctx, `SELECT path FROM runs WHERE id = ?`, runID).Scan(&path)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, err
	}

	vol := report.NewVolume(path)
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, title, file, words, dialogue_sentences, narration_sentences,
			entities_resolved, entities_obfuscated, segments, segments_review
		 FROM chapters WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chapters []report.ChapterStats
	for rows.Next() {
		var cs report.ChapterStats
		if err := rows.Scan(&cs.Index, &cs.Title, &cs.File, &cs.Words,
			&cs.DialogueSentences, &cs.NarrationSentences,
			&cs.EntitiesResolved, &cs.EntitiesObfuscated,
			&cs.Segments, &cs.SegmentsNeedReview); err != nil {
			return nil, err
		}
		chapters = append(chapters, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range chapters {
		cs := &chapters[i]
		cs.Issues, err = s.chapterIssues(ctx, runID, cs.Index)
		if err != nil {
			return nil, err
		}
		cs.Fixes, err = s.chapterFixes(ctx, runID, cs.Index)
		if err != nil {
			return nil, err
		}
		cs.Recompute(report.Options{})
		vol.Add(*cs)
	}
	return vol, nil
}

func (s *Store) chapterIssues(ctx context.Context, runID string, idx int) ([]lint.Issue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, severity, confidence, file, line, span_start, span_end,
			original, suggested, source, reasoning
		 FROM issues WHERE run_id = ? AND chapter_idx = ? ORDER BY span_start`, runID, idx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var issues []lint.Issue
	for rows.Next() {
		var (
			iss       lint.Issue
			sevName   string
			source    string
			suggested sql.NullString
			reasoning sql.NullString
		)
		if err := rows.Scan(&iss.ID, &iss.Kind, &sevName, &iss.Confidence, &iss.File, &iss.Line,
			&iss.Span.Start, &iss.Span.End, &iss.Original, &suggested, &source, &reasoning); err != nil {
			return nil, err
		}
		if sev, ok := lint.ParseSeverity(sevName); ok {
			iss.Severity = sev
		}
		iss.Suggested = suggested.String
		iss.Reasoning = reasoning.String
		iss.Source = lint.Source(source)
		issues = append(issues, iss)
	}
	return issues, rows.Err()
}

func (s *Store) chapterFixes(ctx context.Context, runID string, idx int) ([]lint.FixRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT issue_id, file, original, fixed, confidence, applied_at
		 FROM fixes WHERE run_id = ? AND chapter_idx = ? ORDER BY applied_at`, runID, idx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fixes []lint.FixRecord
	for rows.Next() {
		var fix lint.FixRecord
		if err := rows.Scan(&fix.IssueID, &fix.File, &fix.Original, &fix.Fixed,
			&fix.Confidence, &fix.AppliedAt); err != nil {
			return nil, err
		}
		fixes = append(fixes, fix)
	}
	return fixes, rows.Err()
}
