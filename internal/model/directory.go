package model

import "time"

// Operator is a human user eligible to be assigned conversations.
type Operator struct {
	ID        string    `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"tenantId"`
	Name      string    `db:"name" json:"name"`
	Role      Role      `db:"role" json:"role"`
	TokenHash string    `db:"token_hash" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Procedure is a service offering a tenant exposes in the chatbot menu.
type Procedure struct {
	ID       string `db:"id" json:"id"`
	TenantID string `db:"tenant_id" json:"tenantId"`
	Name     string `db:"name" json:"name"`
	Position int    `db:"position" json:"position"`
}

// Professional is a clinician; conversations about their engagements route
// to the operator they are linked to.
type Professional struct {
	ID         string  `db:"id" json:"id"`
	TenantID   string  `db:"tenant_id" json:"tenantId"`
	Name       string  `db:"name" json:"name"`
	OperatorID *string `db:"operator_id" json:"operatorId,omitempty"`
}
