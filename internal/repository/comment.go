package repository

import (
	"context"

	"localpulse/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines persistence for comments and their replies.
type CommentRepository interface {
	StageCreate(b *Batch, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByContent(ctx context.Context, contentID uint, limit, offset int) ([]models.Comment, error)
	UpdateText(ctx context.Context, id uint, text string) error
	StageDelete(b *Batch, id uint) error

	CreateReply(ctx context.Context, reply *models.Reply) error
	GetReply(ctx context.Context, id uint) (*models.Reply, error)
	ListReplies(ctx context.Context, commentID uint, limit, offset int) ([]models.Reply, error)
	UpdateReplyText(ctx context.Context, id uint, text string) error
	DeleteReply(ctx context.Context, id uint) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) StageCreate(b *Batch, comment *models.Comment) error {
	return b.Add("create comment", func(tx *gorm.DB) error {
		return tx.Omit("User").Create(comment).Error
	})
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("User").First(&comment, id).Error; err != nil {
		return nil, notFound(err, "Comment", id)
	}
	return &comment, nil
}

// ListByContent returns comments oldest first.
func (r *commentRepository) ListByContent(ctx context.Context, contentID uint, limit, offset int) ([]models.Comment, error) {
	var comments []models.Comment
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("content_id = ?", contentID).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

func (r *commentRepository) UpdateText(ctx context.Context, id uint, text string) error {
	result := r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).Update("text", text)
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}

// StageDelete removes the comment and its replies together.
func (r *commentRepository) StageDelete(b *Batch, id uint) error {
	if err := b.Add("delete replies", func(tx *gorm.DB) error {
		return tx.Where("comment_id = ?", id).Delete(&models.Reply{}).Error
	}); err != nil {
		return err
	}
	return b.Add("delete comment", func(tx *gorm.DB) error {
		res := tx.Delete(&models.Comment{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Comment", id)
		}
		return nil
	})
}

func (r *commentRepository) CreateReply(ctx context.Context, reply *models.Reply) error {
	if err := r.db.WithContext(ctx).Omit("User").Create(reply).Error; err != nil {
		return models.NewRetryableError(err)
	}
	return nil
}

func (r *commentRepository) GetReply(ctx context.Context, id uint) (*models.Reply, error) {
	var reply models.Reply
	if err := r.db.WithContext(ctx).Preload("User").First(&reply, id).Error; err != nil {
		return nil, notFound(err, "Reply", id)
	}
	return &reply, nil
}

func (r *commentRepository) ListReplies(ctx context.Context, commentID uint, limit, offset int) ([]models.Reply, error) {
	var replies []models.Reply
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("comment_id = ?", commentID).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&replies).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return replies, nil
}

func (r *commentRepository) UpdateReplyText(ctx context.Context, id uint, text string) error {
	result := r.db.WithContext(ctx).Model(&models.Reply{}).Where("id = ?", id).Update("text", text)
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Reply", id)
	}
	return nil
}

func (r *commentRepository) DeleteReply(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Reply{}, id)
	if result.Error != nil {
		return models.NewRetryableError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Reply", id)
	}
	return nil
}
