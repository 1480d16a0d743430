package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/clinicdesk/whatsapp-server-go/internal/model"
)

type WatermarkRepository interface {
	Upsert(ctx context.Context, userID, conversationID string, viewedAt time.Time) error
	Find(ctx context.Context, userID, conversationID string) (*model.ViewWatermark, error)
}

type watermarkRepo struct {
	db *sqlx.DB
}

func NewWatermarkRepository(db *sqlx.DB) WatermarkRepository {
	return &watermarkRepo{db: db}
}

func (r *watermarkRepo) Upsert(ctx context.Context, userID, conversationID string, viewedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO view_watermarks (user_id, conversation_id, last_viewed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, conversation_id) DO UPDATE SET
			last_viewed_at = GREATEST(view_watermarks.last_viewed_at, EXCLUDED.last_viewed_at)
	`, userID, conversationID, viewedAt)
	return err
}

func (r *watermarkRepo) Find(ctx context.Context, userID, conversationID string) (*model.ViewWatermark, error) {
	var wm model.ViewWatermark
	err := r.db.GetContext(ctx, &wm, `
		SELECT * FROM view_watermarks
		WHERE user_id = $1 AND conversation_id = $2
	`, userID, conversationID)
	return HandleNotFound(&wm, err)
}
