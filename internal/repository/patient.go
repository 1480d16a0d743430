package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/clinicdesk/whatsapp-server-go/internal/model"
)

// PatientRepository is the read boundary to the customer-record service.
type PatientRepository interface {
	FindByNormalizedAddress(ctx context.Context, tenantID, address string) (*model.PatientRecord, error)
	LatestEngagementProfessional(ctx context.Context, recordID string) (*string, error)
}

type patientRepo struct {
	db *sqlx.DB
}

func NewPatientRepository(db *sqlx.DB) PatientRepository {
	return &patientRepo{db: db}
}

func (r *patientRepo) FindByNormalizedAddress(ctx context.Context, tenantID, address string) (*model.PatientRecord, error) {
	var record model.PatientRecord
	err := r.db.GetContext(ctx, &record, `
		SELECT * FROM patient_records
		WHERE tenant_id = $1 AND address = $2
		ORDER BY id
		LIMIT 1
	`, tenantID, address)
	return HandleNotFound(&record, err)
}

// LatestEngagementProfessional returns the professional of the most recent
// non-cancelled engagement for the record, or nil when there is none.
func (r *patientRepo) LatestEngagementProfessional(ctx context.Context, recordID string) (*string, error) {
	var professionalID sql.NullString
	err := r.db.GetContext(ctx, &professionalID, `
		SELECT professional_id FROM engagements
		WHERE patient_record_id = $1 AND status <> 'cancelled'
		ORDER BY scheduled_at DESC
		LIMIT 1
	`, recordID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !professionalID.Valid {
		return nil, nil
	}
	id := professionalID.String
	return &id, nil
}
