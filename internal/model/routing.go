package model

// RoutingSettings holds a tenant's distribution strategy. SecretaryID is
// meaningful only for general_secretary; ChatbotFallback only for chatbot
// and is restricted to first_responder or round_robin.
type RoutingSettings struct {
	TenantID        string          `db:"tenant_id" json:"tenantId"`
	Strategy        RoutingStrategy `db:"strategy" json:"strategy"`
	SecretaryID     *string         `db:"secretary_id" json:"secretaryId,omitempty"`
	ChatbotFallback RoutingStrategy `db:"chatbot_fallback" json:"chatbotFallback"`
}

// OperatorOpenCount is the number of open conversations currently assigned
// to one operator, used by round_robin selection.
type OperatorOpenCount struct {
	OperatorID string `db:"operator_id" json:"operatorId"`
	OpenCount  int    `db:"open_count" json:"openCount"`
}
