package repository

import (
	"context"

	"localpulse/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowRepository manages the mirrored follower/following membership sets.
type FollowRepository interface {
	IsFollowing(ctx context.Context, followerID, targetID uint) (bool, error)
	StageFollow(b *Batch, followerID, targetID uint) error
	StageUnfollow(b *Batch, followerID, targetID uint) error
	FollowerIDs(ctx context.Context, userID uint) ([]uint, error)
	FollowerIDsAfter(ctx context.Context, userID, afterID uint, limit int) ([]uint, error)
	FollowingIDs(ctx context.Context, userID uint) ([]uint, error)
	ListFollowers(ctx context.Context, userID uint, limit, offset int) ([]models.User, error)
	ListFollowing(ctx context.Context, userID uint, limit, offset int) ([]models.User, error)
	Counts(ctx context.Context, userID uint) (followers, following int64, err error)
}

type followRepository struct {
	db *gorm.DB
}

// NewFollowRepository creates a new follow repository
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

// IsFollowing reads the follower's side of the edge.
func (r *followRepository) IsFollowing(ctx context.Context, followerID, targetID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Following{}).
		Where("user_id = ? AND following_id = ?", followerID, targetID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// StageFollow adds both mirrored records. Re-adding an existing edge is a no-op.
func (r *followRepository) StageFollow(b *Batch, followerID, targetID uint) error {
	if err := b.Add("create follower", func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Follower{UserID: targetID, FollowerID: followerID}).Error
	}); err != nil {
		return err
	}
	return b.Add("create following", func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Following{UserID: followerID, FollowingID: targetID}).Error
	})
}

// StageUnfollow removes both mirrored records.
func (r *followRepository) StageUnfollow(b *Batch, followerID, targetID uint) error {
	if err := b.Add("delete follower", func(tx *gorm.DB) error {
		return tx.Where("user_id = ? AND follower_id = ?", targetID, followerID).Delete(&models.Follower{}).Error
	}); err != nil {
		return err
	}
	return b.Add("delete following", func(tx *gorm.DB) error {
		return tx.Where("user_id = ? AND following_id = ?", followerID, targetID).Delete(&models.Following{}).Error
	})
}

func (r *followRepository) FollowerIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Follower{}).
		Where("user_id = ?", userID).
		Order("follower_id ASC").
		Pluck("follower_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

// FollowerIDsAfter pages through followers by ascending id, starting after afterID.
func (r *followRepository) FollowerIDsAfter(ctx context.Context, userID, afterID uint, limit int) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Follower{}).
		Where("user_id = ? AND follower_id > ?", userID, afterID).
		Order("follower_id ASC").
		Limit(limit).
		Pluck("follower_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *followRepository) FollowingIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Following{}).
		Where("user_id = ?", userID).
		Order("following_id ASC").
		Pluck("following_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *followRepository) ListFollowers(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN followers ON followers.follower_id = users.id").
		Where("followers.user_id = ?", userID).
		Order("followers.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *followRepository) ListFollowing(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN following ON following.following_id = users.id").
		Where("following.user_id = ?", userID).
		Order("following.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *followRepository) Counts(ctx context.Context, userID uint) (followers, following int64, err error) {
	db := r.db.WithContext(ctx)
	if err = db.Model(&models.Follower{}).Where("user_id = ?", userID).Count(&followers).Error; err != nil {
		return 0, 0, models.NewInternalError(err)
	}
	if err = db.Model(&models.Following{}).Where("user_id = ?", userID).Count(&following).Error; err != nil {
		return 0, 0, models.NewInternalError(err)
	}
	return followers, following, nil
}
