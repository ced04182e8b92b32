package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresCredentialsRepository is the production CredentialsRepository
// backed by Postgres.
type PostgresCredentialsRepository struct {
	db *sql.DB
}

func NewPostgresCredentialsRepository(db *sql.DB) *PostgresCredentialsRepository {
	return &PostgresCredentialsRepository{db: db}
}

func (r *PostgresCredentialsRepository) Get(ctx context.Context, workspaceID string) (Credentials, error) {
	const query = `SELECT workspace_id, api_key, assistant_id, webhook_secret, updated_at
		FROM workspace_credentials WHERE workspace_id = $1`

	var c Credentials
	var apiKey, assistantID, secret sql.NullString
	err := r.db.QueryRowContext(ctx, query, workspaceID).Scan(
		&c.WorkspaceID, &apiKey, &assistantID, &secret, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Credentials{}, ErrNotFound
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("get workspace credentials: %w", err)
	}
	c.APIKey = apiKey.String
	c.AssistantID = assistantID.String
	c.WebhookSecret = secret.String
	return c, nil
}
