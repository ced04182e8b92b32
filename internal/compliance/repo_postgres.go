package compliance

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PostgresLogRepository is the production append-only log backed by
// Postgres. There is intentionally no UPDATE or DELETE path.
type PostgresLogRepository struct {
	db *sql.DB
}

func NewPostgresLogRepository(db *sql.DB) *PostgresLogRepository {
	return &PostgresLogRepository{db: db}
}

func (r *PostgresLogRepository) Append(ctx context.Context, entry LogEntry) (LogEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	const query = `INSERT INTO compliance_log
		(id, workspace_id, campaign_id, lead_id, phone_number, allowed, reason, score, blocked_until, violations, checked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.WorkspaceID, entry.CampaignID, entry.LeadID, entry.PhoneNumber,
		entry.Allowed, entry.Reason, entry.Score, entry.BlockedUntil, strings.Join(entry.Violations, ";"), entry.CheckedAt)
	if err != nil {
		return LogEntry{}, fmt.Errorf("append compliance entry: %w", err)
	}
	return entry, nil
}

func (r *PostgresLogRepository) CountByLeadSince(ctx context.Context, workspaceID, campaignID, leadID string, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM compliance_log
		WHERE workspace_id = $1 AND campaign_id = $2 AND lead_id = $3
		  AND allowed = TRUE AND checked_at >= $4`

	return r.count(ctx, query, workspaceID, campaignID, leadID, since)
}

func (r *PostgresLogRepository) CountByNumberSince(ctx context.Context, workspaceID, phoneNumber string, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM compliance_log
		WHERE workspace_id = $1 AND phone_number = $2
		  AND allowed = TRUE AND checked_at >= $3`

	return r.count(ctx, query, workspaceID, phoneNumber, since)
}

func (r *PostgresLogRepository) CountViolationsByNumber(ctx context.Context, workspaceID, phoneNumber string, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM compliance_log
		WHERE workspace_id = $1 AND phone_number = $2
		  AND allowed = FALSE AND checked_at >= $3`

	return r.count(ctx, query, workspaceID, phoneNumber, since)
}

func (r *PostgresLogRepository) ListByCampaign(ctx context.Context, workspaceID, campaignID string, limit int) ([]LogEntry, error) {
	const query = `SELECT id, workspace_id, campaign_id, lead_id, phone_number, allowed, reason, score, blocked_until, violations, checked_at
		FROM compliance_log
		WHERE workspace_id = $1 AND campaign_id = $2
		ORDER BY checked_at DESC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, workspaceID, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("list compliance log: %w", err)
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		var violations string
		if err := rows.Scan(&e.ID, &e.WorkspaceID, &e.CampaignID, &e.LeadID, &e.PhoneNumber,
			&e.Allowed, &e.Reason, &e.Score, &e.BlockedUntil, &violations, &e.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan compliance entry: %w", err)
		}
		if violations != "" {
			e.Violations = strings.Split(violations, ";")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresLogRepository) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count compliance entries: %w", err)
	}
	return n, nil
}

// PostgresDNCList is the persisted workspace-local suppression list. Inserts
// are idempotent so repeated opt-outs of the same number are harmless.
type PostgresDNCList struct {
	db *sql.DB
}

func NewPostgresDNCList(db *sql.DB) *PostgresDNCList {
	return &PostgresDNCList{db: db}
}

func (l *PostgresDNCList) Add(ctx context.Context, workspaceID, phoneNumber string, addedAt time.Time) error {
	const query = `INSERT INTO dnc_numbers (workspace_id, phone_number, added_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (workspace_id, phone_number) DO NOTHING`

	if _, err := l.db.ExecContext(ctx, query, workspaceID, phoneNumber, addedAt); err != nil {
		return fmt.Errorf("add dnc number: %w", err)
	}
	return nil
}

func (l *PostgresDNCList) Contains(ctx context.Context, workspaceID, phoneNumber string) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM dnc_numbers WHERE workspace_id = $1 AND phone_number = $2)`

	var listed bool
	if err := l.db.QueryRowContext(ctx, query, workspaceID, phoneNumber).Scan(&listed); err != nil {
		return false, fmt.Errorf("check dnc number: %w", err)
	}
	return listed, nil
}
