package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/mapchat/internal/apperror"
	"github.com/sakif/mapchat/internal/model"
	"github.com/sakif/mapchat/internal/repository"
)

var _ repository.RunRepository = (*DB)(nil)

const runColumns = `id, code, source, parent_id, status, output, artifact_path, duration_ms, created_at, finished_at`

// Create inserts a new run. The coordinator normally assigns the ID; an
// empty ID gets a fresh xid. An empty status means running.
func (db *DB) Create(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = xid.New().String()
	}
	if run.Status == "" {
		run.Status = model.RunRunning
	}
	if run.Source == "" {
		run.Source = model.SourceAPI
	}
	run.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO runs (id, code, source, parent_id, status, output, artifact_path, duration_ms, created_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Code,
		run.Source,
		run.ParentID,
		run.Status,
		run.Output,
		run.ArtifactPath,
		run.DurationMS,
		run.CreatedAt,
		nullTime(run.FinishedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperror.Conflict("run", run.ID, "already exists")
		}
		return fmt.Errorf("sqlite: creating run: %w", err)
	}

	return nil
}

// GetByID retrieves a single run by its ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Run, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`,
		id,
	)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("run", id)
		}
		return nil, fmt.Errorf("sqlite: getting run %s: %w", id, err)
	}
	return run, nil
}

// List returns runs newest first.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Run, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	args := make([]any, 0, 3)
	if opts.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, opts.Status)
	}
	// rowid breaks ties between runs created within the same clock tick.
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing runs: %w", err)
	}
	defer rows.Close()

	runs := make([]model.Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning run row: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating runs: %w", err)
	}

	return runs, nil
}

// Finish records the terminal status, output and artifact of a run.
// FinishedAt is set to now when the caller left it nil.
func (db *DB) Finish(ctx context.Context, run *model.Run) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}

	result, err := db.conn.ExecContext(ctx,
		`UPDATE runs
		 SET status = ?, output = ?, artifact_path = ?, duration_ms = ?, finished_at = ?
		 WHERE id = ?`,
		run.Status,
		run.Output,
		run.ArtifactPath,
		run.DurationMS,
		nullTime(run.FinishedAt),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: finishing run %s: %w", run.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("run", run.ID)
	}

	return nil
}

// Delete removes a run by its ID.
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM runs WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting run %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("run", id)
	}

	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*model.Run, error) {
	var (
		run      model.Run
		finished sql.NullTime
	)
	if err := s.Scan(
		&run.ID,
		&run.Code,
		&run.Source,
		&run.ParentID,
		&run.Status,
		&run.Output,
		&run.ArtifactPath,
		&run.DurationMS,
		&run.CreatedAt,
		&finished,
	); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
