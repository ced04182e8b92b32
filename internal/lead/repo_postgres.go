package lead

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

const leadColumns = `id, workspace_id, campaign_id, first_name, last_name, phone, email,
	timezone, status, dnc_status, attempt_count, priority_score,
	last_attempt_at, next_call_scheduled_at, created_at, updated_at`

func (r *PostgresRepository) Get(ctx context.Context, workspaceID, id string) (Lead, error) {
	query := fmt.Sprintf(`SELECT %s FROM leads WHERE workspace_id = $1 AND id = $2`, leadColumns)
	return scanLead(r.db.QueryRowContext(ctx, query, workspaceID, id))
}

func (r *PostgresRepository) ListCallable(ctx context.Context, workspaceID, campaignID string) ([]Lead, error) {
	query := fmt.Sprintf(`SELECT %s FROM leads
		WHERE workspace_id = $1 AND campaign_id = $2
		  AND status IN ('new', 'contacted', 'callback')
		  AND dnc_status = FALSE`, leadColumns)

	rows, err := r.db.QueryContext(ctx, query, workspaceID, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list callable leads: %w", err)
	}
	defer rows.Close()

	var out []Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, workspaceID, id string, to Status, at time.Time) error {
	const query = `UPDATE leads SET status = $3, updated_at = $4
		WHERE workspace_id = $1 AND id = $2`

	res, err := r.db.ExecContext(ctx, query, workspaceID, id, string(to), at)
	if err != nil {
		return fmt.Errorf("update lead status: %w", err)
	}
	return requireRow(res)
}

func (r *PostgresRepository) MarkAttempt(ctx context.Context, workspaceID, id string, at time.Time) error {
	const query = `UPDATE leads
		SET attempt_count = attempt_count + 1, last_attempt_at = $3, updated_at = $3
		WHERE workspace_id = $1 AND id = $2`

	res, err := r.db.ExecContext(ctx, query, workspaceID, id, at)
	if err != nil {
		return fmt.Errorf("mark lead attempt: %w", err)
	}
	return requireRow(res)
}

func (r *PostgresRepository) SetNextCall(ctx context.Context, workspaceID, id string, dueAt time.Time) error {
	const query = `UPDATE leads SET next_call_scheduled_at = $3, updated_at = $3
		WHERE workspace_id = $1 AND id = $2`

	res, err := r.db.ExecContext(ctx, query, workspaceID, id, dueAt)
	if err != nil {
		return fmt.Errorf("set lead next call: %w", err)
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (Lead, error) {
	var l Lead
	var email, tz sql.NullString
	var lastAttempt, nextCall sql.NullTime
	err := row.Scan(
		&l.ID, &l.WorkspaceID, &l.CampaignID, &l.FirstName, &l.LastName, &l.Phone, &email,
		&tz, &l.Status, &l.DNCStatus, &l.AttemptCount, &l.PriorityScore,
		&lastAttempt, &nextCall, &l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, fmt.Errorf("scan lead: %w", err)
	}
	l.Email = email.String
	l.Timezone = tz.String
	if lastAttempt.Valid {
		t := lastAttempt.Time
		l.LastAttemptAt = &t
	}
	if nextCall.Valid {
		t := nextCall.Time
		l.NextCallScheduledAt = &t
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
