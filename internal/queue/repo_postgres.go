package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PostgresRepository is the production Repository backed by Postgres.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const itemColumns = `id, workspace_id, campaign_id, lead_id, phone_line_id, attempt_number,
	status, scheduled_for, dispatched_at, completed_at, provider_call_id, last_outcome,
	created_at, updated_at`

func (r *PostgresRepository) Get(ctx context.Context, workspaceID, id string) (Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM queue_items WHERE workspace_id = $1 AND id = $2`, itemColumns)
	return scanItem(r.db.QueryRowContext(ctx, query, workspaceID, id))
}

func (r *PostgresRepository) GetByProviderCallID(ctx context.Context, workspaceID, providerCallID string) (Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM queue_items
		WHERE workspace_id = $1 AND provider_call_id = $2`, itemColumns)
	return scanItem(r.db.QueryRowContext(ctx, query, workspaceID, providerCallID))
}

func (r *PostgresRepository) Insert(ctx context.Context, item Item) (Item, error) {
	item = withDefaults(item)

	const query = `INSERT INTO queue_items
		(id, workspace_id, campaign_id, lead_id, phone_line_id, attempt_number,
		 status, scheduled_for, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`

	_, err := r.db.ExecContext(ctx, query,
		item.ID, item.WorkspaceID, item.CampaignID, item.LeadID, nullable(item.PhoneLineID),
		item.AttemptNumber, string(item.Status), item.ScheduledFor, item.CreatedAt)
	if err != nil {
		return Item{}, fmt.Errorf("insert queue item: %w", err)
	}
	return item, nil
}

func (r *PostgresRepository) BulkInsert(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`INSERT INTO queue_items
		(id, workspace_id, campaign_id, lead_id, phone_line_id, attempt_number,
		 status, scheduled_for, created_at, updated_at) VALUES `)
	for i, item := range items {
		item = withDefaults(item)
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 9
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+9)
		args = append(args,
			item.ID, item.WorkspaceID, item.CampaignID, item.LeadID, nullable(item.PhoneLineID),
			item.AttemptNumber, string(item.Status), item.ScheduledFor, item.CreatedAt)
	}

	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("bulk insert queue items: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DuePending(ctx context.Context, workspaceID, campaignID string, now time.Time, limit int) ([]Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM queue_items
		WHERE workspace_id = $1 AND campaign_id = $2
		  AND status = 'pending' AND scheduled_for <= $3
		ORDER BY scheduled_for, id
		LIMIT $4`, itemColumns)

	return r.queryItems(ctx, query, workspaceID, campaignID, now, limit)
}

func (r *PostgresRepository) MarkCalling(ctx context.Context, workspaceID, id string, at time.Time) error {
	const query = `UPDATE queue_items
		SET status = 'calling', dispatched_at = $3, updated_at = $3
		WHERE workspace_id = $1 AND id = $2 AND status = 'pending'`

	return r.conditional(ctx, workspaceID, id, query, at)
}

func (r *PostgresRepository) AttachProviderCall(ctx context.Context, workspaceID, id, providerCallID string) error {
	const query = `UPDATE queue_items SET provider_call_id = $3, updated_at = NOW()
		WHERE workspace_id = $1 AND id = $2`

	res, err := r.db.ExecContext(ctx, query, workspaceID, id, providerCallID)
	if err != nil {
		return fmt.Errorf("attach provider call: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Complete(ctx context.Context, workspaceID, id, outcome string, at time.Time) error {
	const query = `UPDATE queue_items
		SET status = 'completed', last_outcome = $4, completed_at = $3, updated_at = $3
		WHERE workspace_id = $1 AND id = $2 AND status = 'calling'`

	return r.conditional(ctx, workspaceID, id, query, at, outcome)
}

func (r *PostgresRepository) Fail(ctx context.Context, workspaceID, id, outcome string, at time.Time) error {
	const query = `UPDATE queue_items
		SET status = 'failed', last_outcome = $4, completed_at = $3, updated_at = $3
		WHERE workspace_id = $1 AND id = $2 AND status IN ('pending', 'calling')`

	return r.conditional(ctx, workspaceID, id, query, at, outcome)
}

func (r *PostgresRepository) conditional(ctx context.Context, workspaceID, id, query string, args ...any) error {
	all := append([]any{workspaceID, id}, args...)
	res, err := r.db.ExecContext(ctx, query, all...)
	if err != nil {
		return fmt.Errorf("queue item transition: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// distinguish missing from already-transitioned
		var exists bool
		check := `SELECT EXISTS (SELECT 1 FROM queue_items WHERE workspace_id = $1 AND id = $2)`
		if err := r.db.QueryRowContext(ctx, check, workspaceID, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrStaleTransition
	}
	return nil
}

func (r *PostgresRepository) CountPending(ctx context.Context, workspaceID, campaignID string) (int, error) {
	const query = `SELECT COUNT(*) FROM queue_items
		WHERE workspace_id = $1 AND campaign_id = $2 AND status = 'pending'`

	var n int
	if err := r.db.QueryRowContext(ctx, query, workspaceID, campaignID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) CountByCampaign(ctx context.Context, workspaceID, campaignID string) (int, error) {
	const query = `SELECT COUNT(*) FROM queue_items
		WHERE workspace_id = $1 AND campaign_id = $2`

	var n int
	if err := r.db.QueryRowContext(ctx, query, workspaceID, campaignID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count campaign items: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) CountDispatchedSince(ctx context.Context, workspaceID, campaignID string, cutoff time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM queue_items
		WHERE workspace_id = $1 AND campaign_id = $2 AND dispatched_at >= $3`

	var n int
	if err := r.db.QueryRowContext(ctx, query, workspaceID, campaignID, cutoff).Scan(&n); err != nil {
		return 0, fmt.Errorf("count dispatched: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) ListCallingLeadIDs(ctx context.Context, workspaceID, campaignID string) (map[string]bool, error) {
	const query = `SELECT lead_id FROM queue_items
		WHERE workspace_id = $1 AND campaign_id = $2 AND status = 'calling'`

	rows, err := r.db.QueryContext(ctx, query, workspaceID, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list calling leads: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

func (r *PostgresRepository) ExistsOpenAttempt(ctx context.Context, workspaceID, campaignID, leadID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM queue_items
		WHERE workspace_id = $1 AND campaign_id = $2 AND lead_id = $3
		  AND status IN ('pending', 'calling'))`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, workspaceID, campaignID, leadID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check open attempt: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) ListStaleCalling(ctx context.Context, cutoff time.Time, limit int) ([]Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM queue_items
		WHERE status = 'calling' AND dispatched_at < $1
		ORDER BY dispatched_at
		LIMIT $2`, itemColumns)

	return r.queryItems(ctx, query, cutoff, limit)
}

func (r *PostgresRepository) queryItems(ctx context.Context, query string, args ...any) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query queue items: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (Item, error) {
	var it Item
	var lineID, providerID, outcome sql.NullString
	var dispatched, completed sql.NullTime
	err := row.Scan(
		&it.ID, &it.WorkspaceID, &it.CampaignID, &it.LeadID, &lineID, &it.AttemptNumber,
		&it.Status, &it.ScheduledFor, &dispatched, &completed, &providerID, &outcome,
		&it.CreatedAt, &it.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, fmt.Errorf("scan queue item: %w", err)
	}
	it.PhoneLineID = lineID.String
	it.ProviderCallID = providerID.String
	it.LastOutcome = outcome.String
	if dispatched.Valid {
		t := dispatched.Time
		it.DispatchedAt = &t
	}
	if completed.Valid {
		t := completed.Time
		it.CompletedAt = &t
	}
	return it, nil
}

func withDefaults(item Item) Item {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Status == "" {
		item.Status = StatusPending
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	return item
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
