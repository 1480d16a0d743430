package model

import (
	"encoding/json"
	"time"
)

// Message is append-only; rows are never mutated after creation.
type Message struct {
	ID                string           `db:"id" json:"id"`
	TenantID          string           `db:"tenant_id" json:"tenantId"`
	ConversationID    string           `db:"conversation_id" json:"conversationId"`
	Direction         MessageDirection `db:"direction" json:"direction"`
	Type              MessageType      `db:"type" json:"type"`
	Body              *string          `db:"body" json:"body,omitempty"`
	MediaURL          *string          `db:"media_url" json:"mediaUrl,omitempty"`
	ProviderMessageID *string          `db:"provider_message_id" json:"providerMessageId,omitempty"`
	SentAt            time.Time        `db:"sent_at" json:"sentAt"`
	CreatedAt         time.Time        `db:"created_at" json:"createdAt"`
}

type CreateInboundMessageParams struct {
	TenantID          string
	ConversationID    string
	Type              MessageType
	Body              *string
	MediaURL          *string
	ProviderMessageID *string
	SentAt            time.Time
}

type CreateOutboundMessageParams struct {
	TenantID          string
	ConversationID    string
	Type              MessageType
	Body              *string
	ProviderMessageID *string
}

// ToEventData returns JSON data for SSE conversation events.
func (m *Message) ToEventData() json.RawMessage {
	data, _ := json.Marshal(map[string]any{
		"id":             m.ID,
		"conversationId": m.ConversationID,
		"direction":      m.Direction,
		"type":           m.Type,
		"body":           m.Body,
		"mediaUrl":       m.MediaURL,
		"sentAt":         m.SentAt,
	})
	return data
}
