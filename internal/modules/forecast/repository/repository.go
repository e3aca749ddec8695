package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"aquacast-server/internal/modules/forecast/types"
)

// createdAtLayout is fixed width so created_at sorts as text.
const createdAtLayout = "2006-01-02T15:04:05.000Z07:00"

//go:embed sql/insert-run.sql
var insertRunSQL string

//go:embed sql/list-runs.sql
var listRunsSQL string

type RunRepository interface {
	InsertRun(ctx context.Context, run types.ForecastRun) error
	ListRuns(ctx context.Context, limit int) ([]types.ForecastRun, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) RunRepository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) InsertRun(ctx context.Context, run types.ForecastRun) error {
	_, err := r.db.ExecContext(ctx, insertRunSQL,
		run.ID,
		run.Kind,
		run.District,
		run.Start,
		run.End,
		nullIfEmpty(run.Precip),
		nullIfEmpty(run.Temp),
		run.Outcome,
		run.Status,
		run.Cached,
		run.DurationMS,
		run.CreatedAt.UTC().Format(createdAtLayout),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (r *repositoryImpl) ListRuns(ctx context.Context, limit int) ([]types.ForecastRun, error) {
	rows, err := r.db.QueryContext(ctx, listRunsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close runs rows", "error", err)
		}
	}()

	out := []types.ForecastRun{}
	for rows.Next() {
		var (
			run          types.ForecastRun
			precip, temp sql.NullString
			created      string
		)
		if err := rows.Scan(
			&run.ID, &run.Kind, &run.District, &run.Start, &run.End,
			&precip, &temp, &run.Outcome, &run.Status, &run.Cached,
			&run.DurationMS, &created,
		); err != nil {
			return nil, err
		}
		run.Precip = precip.String
		run.Temp = temp.String
		run.CreatedAt, err = time.Parse(createdAtLayout, created)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", created, err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
