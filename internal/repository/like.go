package repository

import (
	"context"

	"localpulse/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository treats likes as a membership set per content item.
// There is no stored counter; the count is the size of the set.
type LikeRepository interface {
	IsLiked(ctx context.Context, contentID, userID uint) (bool, error)
	StageLike(b *Batch, contentID, userID uint) error
	StageUnlike(b *Batch, contentID, userID uint) error
	Count(ctx context.Context, contentID uint) (int64, error)
	MemberIDs(ctx context.Context, contentID uint) ([]uint, error)
}

type likeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new like repository
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

func (r *likeRepository) IsLiked(ctx context.Context, contentID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("content_id = ? AND user_id = ?", contentID, userID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *likeRepository) StageLike(b *Batch, contentID, userID uint) error {
	return b.Add("create like", func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Like{ContentID: contentID, UserID: userID}).Error
	})
}

func (r *likeRepository) StageUnlike(b *Batch, contentID, userID uint) error {
	return b.Add("delete like", func(tx *gorm.DB) error {
		return tx.Where("content_id = ? AND user_id = ?", contentID, userID).Delete(&models.Like{}).Error
	})
}

func (r *likeRepository) Count(ctx context.Context, contentID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Like{}).Where("content_id = ?", contentID).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *likeRepository) MemberIDs(ctx context.Context, contentID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("content_id = ?", contentID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}
