package repository

import (
	"context"
	"errors"
	"strings"

	"localpulse/internal/cache"
	"localpulse/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	StageDelete(b *Batch, id uint) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
			return notFound(err, "User", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("LOWER(username) = ?", strings.ToLower(strings.TrimSpace(username))).
		First(&user).Error
	if err != nil {
		return nil, notFound(err, "User", username)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if IsDuplicateKey(err) {
			return models.NewConflictError("Username already taken")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// Update persists the editable profile fields.
func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"name":               user.Name,
		"bio":                user.Bio,
		"avatar_url":         user.AvatarURL,
		"preferred_state":    user.Preferred.State,
		"preferred_district": user.Preferred.District,
		"preferred_block":    user.Preferred.Block,
	})
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("User", user.ID)
	}
	cache.InvalidateUser(ctx, user.ID)
	return nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Order("id ASC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

// StageDelete removes the user together with everything they own or that
// references them: authored content and its engagement, their likes,
// comments, replies, drafts, notifications and both sides of every follow edge.
func (r *userRepository) StageDelete(b *Batch, id uint) error {
	authored := func(tx *gorm.DB) *gorm.DB {
		return tx.Model(&models.Content{}).Select("id").Where("author_id = ?", id)
	}
	userComments := func(tx *gorm.DB) *gorm.DB {
		return tx.Model(&models.Comment{}).Select("id").Where("user_id = ? OR content_id IN (?)", id, authored(tx))
	}

	steps := []struct {
		name string
		run  func(tx *gorm.DB) error
	}{
		{"delete likes", func(tx *gorm.DB) error {
			return tx.Where("user_id = ? OR content_id IN (?)", id, authored(tx)).Delete(&models.Like{}).Error
		}},
		{"delete replies", func(tx *gorm.DB) error {
			return tx.Where("user_id = ? OR content_id IN (?) OR comment_id IN (?)", id, authored(tx), userComments(tx)).
				Delete(&models.Reply{}).Error
		}},
		{"delete comments", func(tx *gorm.DB) error {
			return tx.Where("user_id = ? OR content_id IN (?)", id, authored(tx)).Delete(&models.Comment{}).Error
		}},
		{"delete reports", func(tx *gorm.DB) error {
			return tx.Where("reporter_id = ? OR content_id IN (?)", id, authored(tx)).Delete(&models.Report{}).Error
		}},
		{"delete notifications", func(tx *gorm.DB) error {
			return tx.Where("recipient_id = ? OR from_user_id = ? OR content_id IN (?)", id, id, authored(tx)).
				Delete(&models.Notification{}).Error
		}},
		{"delete followers", func(tx *gorm.DB) error {
			return tx.Where("user_id = ? OR follower_id = ?", id, id).Delete(&models.Follower{}).Error
		}},
		{"delete following", func(tx *gorm.DB) error {
			return tx.Where("user_id = ? OR following_id = ?", id, id).Delete(&models.Following{}).Error
		}},
		{"delete drafts", func(tx *gorm.DB) error {
			return tx.Where("owner_id = ?", id).Delete(&models.Draft{}).Error
		}},
		{"delete broadcasts", func(tx *gorm.DB) error {
			return tx.Where("author_id = ?", id).Delete(&models.Broadcast{}).Error
		}},
		{"delete contents", func(tx *gorm.DB) error {
			return tx.Where("author_id = ?", id).Delete(&models.Content{}).Error
		}},
		{"delete user", func(tx *gorm.DB) error {
			res := tx.Delete(&models.User{}, id)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return models.NewNotFoundError("User", id)
			}
			return nil
		}},
	}
	for _, step := range steps {
		if err := b.Add(step.name, step.run); err != nil {
			return err
		}
	}
	return nil
}

// IsNotFound reports whether err is a missing-record error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || models.IsCode(err, models.CodeNotFound)
}
