package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/unclebandit/outreach-backend/internal/model"
)

type TimelineRepositoryInterface interface {
	Insert(ctx context.Context, ev *model.TimelineEvent) error
}

type TimelineRepository struct {
	DB *sql.DB
}

func (r *TimelineRepository) Insert(ctx context.Context, ev *model.TimelineEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	query := `
        INSERT INTO case_timeline (applicant_id, type, description, created_by, created_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id
    `
	return r.DB.QueryRowContext(ctx, query, ev.RecipientID, ev.Type, ev.Description, ev.User, ev.CreatedAt).Scan(&ev.ID)
}
