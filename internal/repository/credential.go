package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/clinicdesk/whatsapp-server-go/internal/model"
)

type CredentialRepository interface {
	FindConnected(ctx context.Context, channel, phoneNumberID string) (*model.ChannelCredential, error)
	ListConnectedByChannel(ctx context.Context, channel string) ([]model.ChannelCredential, error)
	FindConnectedByTenant(ctx context.Context, tenantID, channel string) (*model.ChannelCredential, error)
	MarkError(ctx context.Context, id string) error
}

type credentialRepo struct {
	db *sqlx.DB
}

func NewCredentialRepository(db *sqlx.DB) CredentialRepository {
	return &credentialRepo{db: db}
}

func (r *credentialRepo) FindConnected(ctx context.Context, channel, phoneNumberID string) (*model.ChannelCredential, error) {
	var cred model.ChannelCredential
	err := r.db.GetContext(ctx, &cred, `
		SELECT * FROM channel_credentials
		WHERE channel = $1 AND phone_number_id = $2 AND status = 'connected'
	`, channel, phoneNumberID)
	return HandleNotFound(&cred, err)
}

func (r *credentialRepo) ListConnectedByChannel(ctx context.Context, channel string) ([]model.ChannelCredential, error) {
	var creds []model.ChannelCredential
	err := r.db.SelectContext(ctx, &creds, `
		SELECT * FROM channel_credentials
		WHERE channel = $1 AND status = 'connected'
		ORDER BY created_at ASC
	`, channel)
	return creds, err
}

func (r *credentialRepo) FindConnectedByTenant(ctx context.Context, tenantID, channel string) (*model.ChannelCredential, error) {
	var cred model.ChannelCredential
	err := r.db.GetContext(ctx, &cred, `
		SELECT * FROM channel_credentials
		WHERE tenant_id = $1 AND channel = $2 AND status = 'connected'
	`, tenantID, channel)
	return HandleNotFound(&cred, err)
}

// MarkError flags a credential after an authentication failure. The status
// never auto-heals; reconnection creates a fresh handshake.
func (r *credentialRepo) MarkError(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE channel_credentials SET
			status = 'error',
			updated_at = NOW()
		WHERE id = $1
	`, id)
	return err
}
