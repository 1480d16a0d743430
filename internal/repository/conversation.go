package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/clinicdesk/whatsapp-server-go/internal/model"
)

type ConversationRepository interface {
	FindByID(ctx context.Context, id string) (*model.Conversation, error)
	FindByAddress(ctx context.Context, tenantID, address string) (*model.Conversation, error)
	ListByTenant(ctx context.Context, tenantID string) ([]model.Conversation, error)
	ResolveOrCreate(ctx context.Context, params model.ResolveConversationParams) (*model.Conversation, bool, error)
	Claim(ctx context.Context, id, operatorID string) (bool, error)
	SetAssignee(ctx context.Context, id string, operatorID *string) error
	SetChatbotStep(ctx context.Context, id string, step *model.ChatbotStep) error
	SetStatus(ctx context.Context, id string, status model.ConversationStatus) error
	SetPatientRecord(ctx context.Context, id, recordID string) error
	CloseIdle(ctx context.Context, before time.Time) (int64, error)
	Delete(ctx context.Context, id string) error
}

type conversationRepo struct {
	db *sqlx.DB
}

func NewConversationRepository(db *sqlx.DB) ConversationRepository {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `
		SELECT * FROM conversations WHERE id = $1 AND deleted_at IS NULL
	`, id)
	return HandleNotFound(&conv, err)
}

func (r *conversationRepo) FindByAddress(ctx context.Context, tenantID, address string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `
		SELECT * FROM conversations
		WHERE tenant_id = $1 AND address = $2 AND deleted_at IS NULL
	`, tenantID, address)
	return HandleNotFound(&conv, err)
}

func (r *conversationRepo) ListByTenant(ctx context.Context, tenantID string) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := r.db.SelectContext(ctx, &convs, `
		SELECT * FROM conversations
		WHERE tenant_id = $1 AND deleted_at IS NULL
		ORDER BY last_inbound_at DESC NULLS LAST
	`, tenantID)
	return convs, err
}

type resolvedConversation struct {
	model.Conversation
	IsNew bool `db:"is_new"`
}

// ResolveOrCreate inserts a conversation for (tenant, address) or converges
// on the existing row under concurrent writers. Every inbound delivery lands
// here: the row's last-inbound timestamp advances, status is forced open,
// and a display name is backfilled when none is stored. The caller never
// sees a duplicate-key error.
func (r *conversationRepo) ResolveOrCreate(ctx context.Context, params model.ResolveConversationParams) (*model.Conversation, bool, error) {
	var row resolvedConversation
	err := r.db.GetContext(ctx, &row, `
		INSERT INTO conversations (tenant_id, address, display_name, status, last_inbound_at)
		VALUES ($1, $2, $3, 'open', NOW())
		ON CONFLICT (tenant_id, address) WHERE deleted_at IS NULL DO UPDATE SET
			status = 'open',
			last_inbound_at = NOW(),
			display_name = COALESCE(conversations.display_name, EXCLUDED.display_name)
		RETURNING *, (xmax = 0) AS is_new
	`, params.TenantID, params.Address, params.DisplayName)
	if err != nil {
		return nil, false, err
	}
	return &row.Conversation, row.IsNew, nil
}

// Claim is a compare-and-set: it succeeds only while the assignee is still
// null, so exactly one of N racing operators wins.
func (r *conversationRepo) Claim(ctx context.Context, id, operatorID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET assigned_operator_id = $2
		WHERE id = $1 AND assigned_operator_id IS NULL AND deleted_at IS NULL
	`, id, operatorID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	return affected == 1, err
}

func (r *conversationRepo) SetAssignee(ctx context.Context, id string, operatorID *string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET assigned_operator_id = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, id, operatorID)
	return err
}

func (r *conversationRepo) SetChatbotStep(ctx context.Context, id string, step *model.ChatbotStep) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET chatbot_step = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, id, step)
	return err
}

func (r *conversationRepo) SetStatus(ctx context.Context, id string, status model.ConversationStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET status = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, id, status)
	return err
}

func (r *conversationRepo) SetPatientRecord(ctx context.Context, id, recordID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET patient_record_id = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, id, recordID)
	return err
}

// CloseIdle transitions open conversations with no inbound activity since
// the cutoff to closed. Idempotent; safe to run repeatedly.
func (r *conversationRepo) CloseIdle(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET status = 'closed'
		WHERE status = 'open'
		AND deleted_at IS NULL
		AND COALESCE(last_inbound_at, created_at) < $1
	`, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Delete is the data-erasure path; message rows cascade at the schema level.
func (r *conversationRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	return err
}
