package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/clinicdesk/whatsapp-server-go/internal/model"
)

type RoutingRepository interface {
	GetSettings(ctx context.Context, tenantID string) (*model.RoutingSettings, error)
	OpenCounts(ctx context.Context, tenantID string) ([]model.OperatorOpenCount, error)
	SetEligible(ctx context.Context, conversationID string, operatorIDs []string) error
	ClearEligible(ctx context.Context, conversationID string) error
	EligibleByConversation(ctx context.Context, conversationID string) ([]string, error)
	EligibleByTenant(ctx context.Context, tenantID string) (map[string][]string, error)
}

type routingRepo struct {
	db *sqlx.DB
}

func NewRoutingRepository(db *sqlx.DB) RoutingRepository {
	return &routingRepo{db: db}
}

func (r *routingRepo) GetSettings(ctx context.Context, tenantID string) (*model.RoutingSettings, error) {
	var settings model.RoutingSettings
	err := r.db.GetContext(ctx, &settings, `
		SELECT * FROM routing_settings WHERE tenant_id = $1
	`, tenantID)
	return HandleNotFound(&settings, err)
}

// OpenCounts returns every operator of the tenant with the number of open
// conversations currently assigned to them, zero included.
func (r *routingRepo) OpenCounts(ctx context.Context, tenantID string) ([]model.OperatorOpenCount, error) {
	var counts []model.OperatorOpenCount
	err := r.db.SelectContext(ctx, &counts, `
		SELECT o.id AS operator_id, COUNT(c.id) AS open_count
		FROM operators o
		LEFT JOIN conversations c
			ON c.assigned_operator_id = o.id
			AND c.status = 'open'
			AND c.deleted_at IS NULL
		WHERE o.tenant_id = $1
		GROUP BY o.id
		ORDER BY o.id
	`, tenantID)
	return counts, err
}

func (r *routingRepo) SetEligible(ctx context.Context, conversationID string, operatorIDs []string) error {
	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM conversation_eligible_operators WHERE conversation_id = $1
	`, conversationID); err != nil {
		return err
	}
	if len(operatorIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversation_eligible_operators (conversation_id, operator_id)
		SELECT $1, UNNEST($2::text[])
		ON CONFLICT DO NOTHING
	`, conversationID, pq.Array(operatorIDs))
	return err
}

func (r *routingRepo) ClearEligible(ctx context.Context, conversationID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM conversation_eligible_operators WHERE conversation_id = $1
	`, conversationID)
	return err
}

func (r *routingRepo) EligibleByConversation(ctx context.Context, conversationID string) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `
		SELECT operator_id FROM conversation_eligible_operators
		WHERE conversation_id = $1
		ORDER BY operator_id
	`, conversationID)
	return ids, err
}

type eligibleRow struct {
	ConversationID string `db:"conversation_id"`
	OperatorID     string `db:"operator_id"`
}

func (r *routingRepo) EligibleByTenant(ctx context.Context, tenantID string) (map[string][]string, error) {
	var rows []eligibleRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT e.conversation_id, e.operator_id
		FROM conversation_eligible_operators e
		JOIN conversations c ON c.id = e.conversation_id
		WHERE c.tenant_id = $1
		ORDER BY e.conversation_id, e.operator_id
	`, tenantID)
	if err != nil {
		return nil, err
	}

	sets := make(map[string][]string)
	for _, row := range rows {
		sets[row.ConversationID] = append(sets[row.ConversationID], row.OperatorID)
	}
	return sets, nil
}
