package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shopstack-oss/shopstack/support-bridge/internal/domain"
)

type gormSessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &gormSessionRepository{db: db}
}

func (r *gormSessionRepository) Upsert(ctx context.Context, session *domain.Session) error {
	model := SessionDomainToModel(session)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(model).Error
}

func (r *gormSessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var model SessionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return SessionModelToDomain(&model), nil
}

func (r *gormSessionRepository) GetAll(ctx context.Context, limit, offset int) ([]*domain.Session, error) {
	var models []SessionModel
	query := r.db.WithContext(ctx).Order("last_message_time DESC")

	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}

	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	sessions := make([]*domain.Session, len(models))
	for i := range models {
		sessions[i] = SessionModelToDomain(&models[i])
	}
	return sessions, nil
}

func (r *gormSessionRepository) UpdateLastMessage(ctx context.Context, id, text, sender string, timestamp time.Time) error {
	return r.db.WithContext(ctx).
		Model(&SessionModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_message_text":   text,
			"last_message_sender": sender,
			"last_message_time":   timestamp,
		}).Error
}

func (r *gormSessionRepository) UpdateUnreadCount(ctx context.Context, id string, count int) error {
	return r.db.WithContext(ctx).
		Model(&SessionModel{}).
		Where("id = ?", id).
		Update("unread_count", count).Error
}

func (r *gormSessionRepository) IncrementUnreadCount(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&SessionModel{}).
		Where("id = ?", id).
		UpdateColumn("unread_count", gorm.Expr("unread_count + ?", 1)).Error
}

func (r *gormSessionRepository) UpdateStatus(ctx context.Context, id string, status domain.SessionStatus) error {
	// Archived is terminal for admin workflows.
	res := r.db.WithContext(ctx).
		Model(&SessionModel{}).
		Where("id = ? AND status <> ?", id, string(domain.SessionStatusArchived)).
		Update("status", string(status))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 && status != domain.SessionStatusArchived {
		var model SessionModel
		if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err == nil &&
			model.Status == string(domain.SessionStatusArchived) {
			return fmt.Errorf("session %s is archived and cannot transition to %s", id, status)
		}
	}
	return nil
}

func (r *gormSessionRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&SessionModel{}).Error
}
