package repository

import (
	"context"

	"localpulse/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationRepository stores personal notifications and global broadcasts.
type NotificationRepository interface {
	StageCreate(b *Batch, n *models.Notification) error
	ListForRecipient(ctx context.Context, recipientID uint, limit, offset int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, recipientID uint) (int64, error)
	MarkRead(ctx context.Context, recipientID uint, id string) error
	MarkAllRead(ctx context.Context, recipientID uint) (int64, error)
	Delete(ctx context.Context, recipientID uint, id string) error
	ClearPersonal(ctx context.Context, recipientID uint) (int64, error)

	CreateBroadcast(ctx context.Context, b *models.Broadcast) error
	DeleteBroadcast(ctx context.Context, id string) error
	ListBroadcasts(ctx context.Context, limit int) ([]models.Broadcast, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// StageCreate assigns an id when missing. A notification whose dedup key
// already exists is skipped, so replaying a fan-out chunk is harmless.
func (r *notificationRepository) StageCreate(b *Batch, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return b.Add("create notification", func(tx *gorm.DB) error {
		if n.DedupKey != nil {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(n)
			n.Duplicate = res.Error == nil && res.RowsAffected == 0
			return res.Error
		}
		return tx.Create(n).Error
	})
}

func (r *notificationRepository) ListForRecipient(ctx context.Context, recipientID uint, limit, offset int) ([]models.Notification, error) {
	var items []models.Notification
	err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return items, nil
}

func (r *notificationRepository) UnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND read = ?", recipientID, false).
		Count(&count).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

// MarkRead is a single update scoped to the recipient.
func (r *notificationRepository) MarkRead(ctx context.Context, recipientID uint, id string) error {
	result := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("read", true)
	if result.Error != nil {
		return models.NewRetryableError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Notification", id)
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID uint) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND read = ?", recipientID, false).
		Update("read", true)
	if result.Error != nil {
		return 0, models.NewRetryableError(result.Error)
	}
	return result.RowsAffected, nil
}

func (r *notificationRepository) Delete(ctx context.Context, recipientID uint, id string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return models.NewRetryableError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Notification", id)
	}
	return nil
}

// ClearPersonal deletes every personal notification of the recipient.
// Broadcasts live in their own table and are untouched.
func (r *notificationRepository) ClearPersonal(ctx context.Context, recipientID uint) (int64, error) {
	result := r.db.WithContext(ctx).Where("recipient_id = ?", recipientID).Delete(&models.Notification{})
	if result.Error != nil {
		return 0, models.NewRetryableError(result.Error)
	}
	return result.RowsAffected, nil
}

func (r *notificationRepository) CreateBroadcast(ctx context.Context, b *models.Broadcast) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(b).Error; err != nil {
		return models.NewRetryableError(err)
	}
	return nil
}

func (r *notificationRepository) DeleteBroadcast(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Broadcast{})
	if result.Error != nil {
		return models.NewRetryableError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Broadcast", id)
	}
	return nil
}

func (r *notificationRepository) ListBroadcasts(ctx context.Context, limit int) ([]models.Broadcast, error) {
	var items []models.Broadcast
	err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Find(&items).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return items, nil
}
