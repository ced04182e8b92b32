package campaign

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PostgresRepo persists campaigns in the campaigns table.
//
// The retry policy is stored as a JSON document in retry_policy; the
// remaining fields are plain columns.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const campaignColumns = `
id, workspace_id, name, status, assistant_id, timezone,
call_window_start, call_window_end, working_days, daily_call_cap,
retry_policy, qualified_score_threshold,
scheduled_at, started_at, completed_at, created_at, updated_at
`

func (r *PostgresRepo) Get(ctx context.Context, workspaceID, id string) (Campaign, error) {
	q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE workspace_id = $1 AND id = $2`
	c, err := scanCampaign(r.db.QueryRowContext(ctx, q, workspaceID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		return Campaign{}, err
	}
	return c, nil
}

func (r *PostgresRepo) ListSchedulable(ctx context.Context) ([]Campaign, error) {
	q := `SELECT ` + campaignColumns + `
FROM campaigns
WHERE status IN ('scheduled', 'active')
ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Campaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, workspaceID, id string, from, to Status, at time.Time) error {
	if !from.CanTransition(to) {
		return ErrInvalidTransition
	}
	// Conditional write: only the holder of the expected current status wins.
	const q = `
UPDATE campaigns
SET status = $4,
    updated_at = $5,
    started_at = CASE WHEN $4 = 'active' AND started_at IS NULL THEN $5 ELSE started_at END,
    completed_at = CASE WHEN $4 = 'completed' THEN $5 ELSE completed_at END
WHERE workspace_id = $1 AND id = $2 AND status = $3
`
	res, err := r.db.ExecContext(ctx, q, workspaceID, id, from, to, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either missing or the status moved under us.
		return ErrInvalidTransition
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(s rowScanner) (Campaign, error) {
	var c Campaign
	var retryJSON []byte
	err := s.Scan(
		&c.ID,
		&c.WorkspaceID,
		&c.Name,
		&c.Status,
		&c.AssistantID,
		&c.Timezone,
		&c.CallWindowStart,
		&c.CallWindowEnd,
		&c.WorkingDays,
		&c.DailyCallCap,
		&retryJSON,
		&c.QualifiedScoreThreshold,
		&c.ScheduledAt,
		&c.StartedAt,
		&c.CompletedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return Campaign{}, err
	}
	if len(retryJSON) > 0 {
		if err := json.Unmarshal(retryJSON, &c.Retry); err != nil {
			return Campaign{}, err
		}
	}
	return c, nil
}
