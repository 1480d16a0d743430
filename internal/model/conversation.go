package model

import "time"

// Conversation is uniquely keyed by (tenant, counterparty address); at most
// one non-deleted row per pair, enforced by a partial unique index.
type Conversation struct {
	ID                 string             `db:"id" json:"id"`
	TenantID           string             `db:"tenant_id" json:"tenantId"`
	Address            string             `db:"address" json:"address"`
	DisplayName        *string            `db:"display_name" json:"displayName,omitempty"`
	Status             ConversationStatus `db:"status" json:"status"`
	AssignedOperatorID *string            `db:"assigned_operator_id" json:"assignedOperatorId,omitempty"`
	ChatbotStep        *ChatbotStep       `db:"chatbot_step" json:"chatbotStep,omitempty"`
	LastInboundAt      *time.Time         `db:"last_inbound_at" json:"lastInboundAt,omitempty"`
	PatientRecordID    *string            `db:"patient_record_id" json:"patientRecordId,omitempty"`
	CreatedAt          time.Time          `db:"created_at" json:"createdAt"`
	DeletedAt          *time.Time         `db:"deleted_at" json:"-"`
}

type ResolveConversationParams struct {
	TenantID    string
	Address     string
	DisplayName *string
}

// ConversationSummary is the visibility-projection row: a conversation plus
// its unread inbound count for the requesting user.
type ConversationSummary struct {
	Conversation
	UnreadCount int `json:"unreadCount"`
}
