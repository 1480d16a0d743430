package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/clinicdesk/whatsapp-server-go/internal/model"
)

type MessageRepository interface {
	CreateInbound(ctx context.Context, params model.CreateInboundMessageParams) (*model.Message, error)
	CreateOutbound(ctx context.Context, params model.CreateOutboundMessageParams) (*model.Message, error)
	ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error)
	UnreadCounts(ctx context.Context, tenantID, userID string) (map[string]int, error)
	UnreadCount(ctx context.Context, userID, conversationID string) (int, error)
}

type messageRepo struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepo{db: db}
}

// CreateInbound stores an inbound message. The provider message id is the
// idempotency key: a duplicated or reordered redelivery of an already-stored
// message inserts nothing and returns nil, which callers treat as a no-op.
func (r *messageRepo) CreateInbound(ctx context.Context, params model.CreateInboundMessageParams) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `
		INSERT INTO messages
			(tenant_id, conversation_id, direction, type, body, media_url, provider_message_id, sent_at)
		VALUES ($1, $2, 'inbound', $3, $4, $5, $6, $7)
		ON CONFLICT (provider_message_id) WHERE direction = 'inbound' AND provider_message_id IS NOT NULL
		DO NOTHING
		RETURNING *
	`, params.TenantID, params.ConversationID, params.Type, params.Body,
		params.MediaURL, params.ProviderMessageID, params.SentAt)
	return HandleNotFound(&msg, err)
}

func (r *messageRepo) CreateOutbound(ctx context.Context, params model.CreateOutboundMessageParams) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `
		INSERT INTO messages
			(tenant_id, conversation_id, direction, type, body, provider_message_id, sent_at)
		VALUES ($1, $2, 'outbound', $3, $4, $5, NOW())
		RETURNING *
	`, params.TenantID, params.ConversationID, params.Type, params.Body,
		params.ProviderMessageID)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepo) ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM messages
		WHERE conversation_id = $1
		ORDER BY sent_at DESC
		LIMIT $2 OFFSET $3
	`, conversationID, limit, offset)
	return msgs, err
}

type unreadRow struct {
	ConversationID string `db:"conversation_id"`
	Count          int    `db:"count"`
}

// UnreadCounts returns, per conversation in the tenant, the number of
// inbound messages newer than the user's view watermark. Conversations the
// user never viewed count every inbound message.
func (r *messageRepo) UnreadCounts(ctx context.Context, tenantID, userID string) (map[string]int, error) {
	var rows []unreadRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT m.conversation_id, COUNT(*) AS count
		FROM messages m
		LEFT JOIN view_watermarks w
			ON w.conversation_id = m.conversation_id AND w.user_id = $2
		WHERE m.tenant_id = $1
		AND m.direction = 'inbound'
		AND (w.last_viewed_at IS NULL OR m.sent_at > w.last_viewed_at)
		GROUP BY m.conversation_id
	`, tenantID, userID)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.ConversationID] = row.Count
	}
	return counts, nil
}

func (r *messageRepo) UnreadCount(ctx context.Context, userID, conversationID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM messages m
		LEFT JOIN view_watermarks w
			ON w.conversation_id = m.conversation_id AND w.user_id = $1
		WHERE m.conversation_id = $2
		AND m.direction = 'inbound'
		AND (w.last_viewed_at IS NULL OR m.sent_at > w.last_viewed_at)
	`, userID, conversationID)
	return count, err
}
