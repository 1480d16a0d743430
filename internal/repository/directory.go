package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/clinicdesk/whatsapp-server-go/internal/model"
)

// DirectoryRepository reads the tenant/operator directory: operators, their
// procedure and professional linkages. Writes happen in the management
// surface, outside this subsystem.
type DirectoryRepository interface {
	ListOperators(ctx context.Context, tenantID string) ([]model.Operator, error)
	FindOperatorByID(ctx context.Context, id string) (*model.Operator, error)
	FindOperatorByTokenHash(ctx context.Context, tokenHash string) (*model.Operator, error)
	ListProcedures(ctx context.Context, tenantID string) ([]model.Procedure, error)
	OperatorsForProcedure(ctx context.Context, tenantID, procedureID string) ([]model.Operator, error)
	OperatorForProfessional(ctx context.Context, professionalID string) (*string, error)
}

type directoryRepo struct {
	db *sqlx.DB
}

func NewDirectoryRepository(db *sqlx.DB) DirectoryRepository {
	return &directoryRepo{db: db}
}

func (r *directoryRepo) ListOperators(ctx context.Context, tenantID string) ([]model.Operator, error) {
	var ops []model.Operator
	err := r.db.SelectContext(ctx, &ops, `
		SELECT * FROM operators WHERE tenant_id = $1 ORDER BY id
	`, tenantID)
	return ops, err
}

func (r *directoryRepo) FindOperatorByID(ctx context.Context, id string) (*model.Operator, error) {
	var op model.Operator
	err := r.db.GetContext(ctx, &op, `SELECT * FROM operators WHERE id = $1`, id)
	return HandleNotFound(&op, err)
}

func (r *directoryRepo) FindOperatorByTokenHash(ctx context.Context, tokenHash string) (*model.Operator, error) {
	var op model.Operator
	err := r.db.GetContext(ctx, &op, `SELECT * FROM operators WHERE token_hash = $1`, tokenHash)
	return HandleNotFound(&op, err)
}

func (r *directoryRepo) ListProcedures(ctx context.Context, tenantID string) ([]model.Procedure, error) {
	var procs []model.Procedure
	err := r.db.SelectContext(ctx, &procs, `
		SELECT * FROM procedures WHERE tenant_id = $1 ORDER BY position, id
	`, tenantID)
	return procs, err
}

// OperatorsForProcedure resolves the operators linked, through any
// professional that offers the procedure, to the given offering.
func (r *directoryRepo) OperatorsForProcedure(ctx context.Context, tenantID, procedureID string) ([]model.Operator, error) {
	var ops []model.Operator
	err := r.db.SelectContext(ctx, &ops, `
		SELECT DISTINCT o.* FROM operators o
		JOIN professionals p ON p.operator_id = o.id
		JOIN professional_procedures pp ON pp.professional_id = p.id
		WHERE o.tenant_id = $1 AND pp.procedure_id = $2
		ORDER BY o.id
	`, tenantID, procedureID)
	return ops, err
}

func (r *directoryRepo) OperatorForProfessional(ctx context.Context, professionalID string) (*string, error) {
	var operatorID sql.NullString
	err := r.db.GetContext(ctx, &operatorID, `
		SELECT operator_id FROM professionals WHERE id = $1
	`, professionalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !operatorID.Valid {
		return nil, nil
	}
	id := operatorID.String
	return &id, nil
}
