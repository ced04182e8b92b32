package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepo is the production append-only audit store. There is
// intentionally no UPDATE or DELETE path.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const query = `INSERT INTO audit_events
		(id, workspace_id, type, actor_user_id, actor_role, ip_address, campaign_id, queue_item_id, message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.WorkspaceID, string(e.Type), e.ActorUserID, e.ActorRole, e.IPAddress,
		e.CampaignID, e.QueueItemID, e.Message, e.Metadata, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}
