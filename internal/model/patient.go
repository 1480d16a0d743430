package model

import "time"

// PatientRecord is the customer-record linkage consumed from the record
// service; only the fields this subsystem reads are modeled.
type PatientRecord struct {
	ID       string `db:"id" json:"id"`
	TenantID string `db:"tenant_id" json:"tenantId"`
	Address  string `db:"address" json:"address"`
	Name     string `db:"name" json:"name"`
}

// ViewWatermark records when a user last viewed a conversation. Used only
// for unread-count derivation.
type ViewWatermark struct {
	UserID         string    `db:"user_id" json:"userId"`
	ConversationID string    `db:"conversation_id" json:"conversationId"`
	LastViewedAt   time.Time `db:"last_viewed_at" json:"lastViewedAt"`
}
