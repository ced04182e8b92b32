package phoneline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresRepository is the production Repository backed by Postgres.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const lineColumns = `id, workspace_id, campaign_id, provider_line_id, number, status,
	daily_call_count, total_call_count, daily_cap, health_score,
	last_call_at, last_call_date, created_at, updated_at`

func (r *PostgresRepository) Get(ctx context.Context, workspaceID, id string) (PhoneLine, error) {
	query := fmt.Sprintf(`SELECT %s FROM phone_lines WHERE workspace_id = $1 AND id = $2`, lineColumns)
	return scanLine(r.db.QueryRowContext(ctx, query, workspaceID, id))
}

func (r *PostgresRepository) ListByCampaign(ctx context.Context, workspaceID, campaignID string) ([]PhoneLine, error) {
	query := fmt.Sprintf(`SELECT %s FROM phone_lines
		WHERE workspace_id = $1 AND campaign_id = $2
		ORDER BY created_at`, lineColumns)

	rows, err := r.db.QueryContext(ctx, query, workspaceID, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list phone lines: %w", err)
	}
	defer rows.Close()

	var out []PhoneLine
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) RecordDispatch(ctx context.Context, workspaceID, id string, at time.Time, localDate string) error {
	// The CASE restarts the daily counter on the first dispatch of a new
	// local day, so no midnight reset job is needed.
	const query = `UPDATE phone_lines SET
			daily_call_count = CASE WHEN last_call_date IS DISTINCT FROM $4 THEN 1 ELSE daily_call_count + 1 END,
			last_call_date = $4,
			total_call_count = total_call_count + 1,
			last_call_at = $3,
			updated_at = $3
		WHERE workspace_id = $1 AND id = $2`

	res, err := r.db.ExecContext(ctx, query, workspaceID, id, at, localDate)
	if err != nil {
		return fmt.Errorf("record line dispatch: %w", err)
	}
	return requireRow(res)
}

func (r *PostgresRepository) AdjustHealth(ctx context.Context, workspaceID, id string, delta int) error {
	const query = `UPDATE phone_lines
		SET health_score = LEAST(100, GREATEST(0, health_score + $3)), updated_at = NOW()
		WHERE workspace_id = $1 AND id = $2`

	res, err := r.db.ExecContext(ctx, query, workspaceID, id, delta)
	if err != nil {
		return fmt.Errorf("adjust line health: %w", err)
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLine(row rowScanner) (PhoneLine, error) {
	var l PhoneLine
	var providerID, lastDate sql.NullString
	var lastCall sql.NullTime
	err := row.Scan(
		&l.ID, &l.WorkspaceID, &l.CampaignID, &providerID, &l.Number, &l.Status,
		&l.DailyCallCount, &l.TotalCallCount, &l.DailyCap, &l.HealthScore,
		&lastCall, &lastDate, &l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return PhoneLine{}, ErrNotFound
	}
	if err != nil {
		return PhoneLine{}, fmt.Errorf("scan phone line: %w", err)
	}
	l.ProviderLineID = providerID.String
	l.LastCallDate = lastDate.String
	if lastCall.Valid {
		t := lastCall.Time
		l.LastCallAt = &t
	}
	return l, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
