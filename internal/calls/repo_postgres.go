package calls

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepo persists call records in the call_records table.
//
// Assumed constraint: UNIQUE (workspace_id, provider_call_id). The upsert
// relies on it for idempotent event re-delivery.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Upsert(ctx context.Context, rec CallRecord) (CallRecord, error) {
	const q = `
INSERT INTO call_records (
  id, workspace_id, campaign_id, lead_id, queue_item_id, provider_call_id,
  phone_number, outcome, ended_reason, duration_seconds, cost_minor,
  transcript, recording_url, qualification_score, started_at, ended_at,
  created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18
)
ON CONFLICT (workspace_id, provider_call_id)
DO UPDATE SET campaign_id      = EXCLUDED.campaign_id,
              lead_id          = EXCLUDED.lead_id,
              queue_item_id    = EXCLUDED.queue_item_id,
              phone_number     = EXCLUDED.phone_number,
              outcome          = EXCLUDED.outcome,
              ended_reason     = EXCLUDED.ended_reason,
              duration_seconds = EXCLUDED.duration_seconds,
              cost_minor       = EXCLUDED.cost_minor,
              transcript       = EXCLUDED.transcript,
              recording_url    = EXCLUDED.recording_url,
              qualification_score = COALESCE(EXCLUDED.qualification_score, call_records.qualification_score),
              started_at       = EXCLUDED.started_at,
              ended_at         = EXCLUDED.ended_at,
              updated_at       = EXCLUDED.updated_at
RETURNING id, workspace_id, campaign_id, lead_id, queue_item_id, provider_call_id,
          phone_number, outcome, ended_reason, duration_seconds, cost_minor,
          transcript, recording_url, qualification_score, started_at, ended_at,
          created_at, updated_at
`
	row := r.db.QueryRowContext(ctx, q,
		rec.ID,
		rec.WorkspaceID,
		rec.CampaignID,
		rec.LeadID,
		rec.QueueItemID,
		rec.ProviderCallID,
		rec.PhoneNumber,
		rec.Outcome,
		rec.EndedReason,
		rec.DurationSeconds,
		rec.CostMinor,
		rec.Transcript,
		rec.RecordingURL,
		rec.QualificationScore,
		rec.StartedAt,
		rec.EndedAt,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	return scanRecord(row)
}

func (r *PostgresRepo) GetByProviderCallID(ctx context.Context, workspaceID, providerCallID string) (CallRecord, error) {
	const q = `
SELECT id, workspace_id, campaign_id, lead_id, queue_item_id, provider_call_id,
       phone_number, outcome, ended_reason, duration_seconds, cost_minor,
       transcript, recording_url, qualification_score, started_at, ended_at,
       created_at, updated_at
FROM call_records
WHERE workspace_id = $1 AND provider_call_id = $2
`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, q, workspaceID, providerCallID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallRecord{}, ErrNotFound
		}
		return CallRecord{}, err
	}
	return rec, nil
}

func (r *PostgresRepo) SetQualificationScore(ctx context.Context, workspaceID, providerCallID string, score int) error {
	const q = `
UPDATE call_records
SET qualification_score = $3, updated_at = now()
WHERE workspace_id = $1 AND provider_call_id = $2
`
	res, err := r.db.ExecContext(ctx, q, workspaceID, providerCallID, score)
	if err != nil {
		return err
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

func (r *PostgresRepo) ListByCampaign(ctx context.Context, workspaceID, campaignID string) ([]CallRecord, error) {
	const q = `
SELECT id, workspace_id, campaign_id, lead_id, queue_item_id, provider_call_id,
       phone_number, outcome, ended_reason, duration_seconds, cost_minor,
       transcript, recording_url, qualification_score, started_at, ended_at,
       created_at, updated_at
FROM call_records
WHERE workspace_id = $1 AND campaign_id = $2
ORDER BY created_at ASC
`
	rows, err := r.db.QueryContext(ctx, q, workspaceID, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CallRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(s rowScanner) (CallRecord, error) {
	var rec CallRecord
	err := s.Scan(
		&rec.ID,
		&rec.WorkspaceID,
		&rec.CampaignID,
		&rec.LeadID,
		&rec.QueueItemID,
		&rec.ProviderCallID,
		&rec.PhoneNumber,
		&rec.Outcome,
		&rec.EndedReason,
		&rec.DurationSeconds,
		&rec.CostMinor,
		&rec.Transcript,
		&rec.RecordingURL,
		&rec.QualificationScore,
		&rec.StartedAt,
		&rec.EndedAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	return rec, err
}
