package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/timeweave/internal/merge"
)

// Run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one persisted merge call.
type Run struct {
	ID           uuid.UUID        `json:"id"`
	Source       string           `json:"source"`
	Status       string           `json:"status"`
	ErrorKind    string           `json:"error_kind,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Base         string           `json:"base,omitempty"`
	Sequences    []string         `json:"sequences"`
	Intervals    map[string]int64 `json:"intervals,omitempty"`
	InputRecords int              `json:"input_records"`
	OutputRows   int              `json:"output_rows"`
	Dropped      int              `json:"dropped"`
	CreatedAt    time.Time        `json:"created_at"`
}

// WriteRun inserts a run summary.
func (s *Store) WriteRun(ctx context.Context, r Run) error {
	var intervals any
	if len(r.Intervals) > 0 {
		intervals = r.Intervals
	}
	if r.Sequences == nil {
		r.Sequences = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO merge_runs (id, source, status, error_kind, error_message, base_sequence, sequences, intervals, input_records, output_rows, dropped)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10, $11)`,
		r.ID, r.Source, r.Status, r.ErrorKind, r.ErrorMessage, r.Base, r.Sequences, intervals, r.InputRecords, r.OutputRows, r.Dropped,
	)
	if err != nil {
		return fmt.Errorf("insert merge run: %w", err)
	}
	return nil
}

// WriteRows bulk-copies the merged rows of a run.
func (s *Store) WriteRows(ctx context.Context, runID uuid.UUID, rows []merge.Row) (int64, error) {
	n, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"merged_rows"},
		[]string{"run_id", "idx", "row"},
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			b, err := json.Marshal(rows[i])
			if err != nil {
				return nil, fmt.Errorf("marshal row %d: %w", i, err)
			}
			return []any{runID, i, string(b)}, nil
		}),
	)
	if err != nil {
		return n, fmt.Errorf("copy merged rows: %w", err)
	}
	return n, nil
}

const runColumns = `id, source, status, COALESCE(error_kind, ''), COALESCE(error_message, ''),
	COALESCE(base_sequence, ''), sequences, COALESCE(intervals, '{}'::jsonb), input_records, output_rows, dropped, created_at`

func scanRun(row pgx.Row) (*Run, error) {
	var r Run
	err := row.Scan(&r.ID, &r.Source, &r.Status, &r.ErrorKind, &r.ErrorMessage,
		&r.Base, &r.Sequences, &r.Intervals, &r.InputRecords, &r.OutputRows, &r.Dropped, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRun fetches a run by ID.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	r, err := scanRun(s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM merge_runs WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get merge run: %w", notFound(err))
	}
	return r, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+runColumns+` FROM merge_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list merge runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan merge run: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// GetRows returns the merged rows of a run in output order.
func (s *Store) GetRows(ctx context.Context, runID uuid.UUID) ([]merge.Row, error) {
	rows, err := s.pool.Query(ctx, `SELECT row FROM merged_rows WHERE run_id = $1 ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("get merged rows: %w", err)
	}
	defer rows.Close()

	var out []merge.Row
	for rows.Next() {
		var r merge.Row
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("scan merged row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
