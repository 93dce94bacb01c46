package repository

import (
	"context"

	"localpulse/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DraftRepository stores per-owner unpublished snapshots.
type DraftRepository interface {
	Save(ctx context.Context, draft *models.Draft) error
	GetByID(ctx context.Context, id string) (*models.Draft, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]models.Draft, error)
	Delete(ctx context.Context, id string) error
}

type draftRepository struct {
	db *gorm.DB
}

// NewDraftRepository creates a new draft repository
func NewDraftRepository(db *gorm.DB) DraftRepository {
	return &draftRepository{db: db}
}

// Save inserts the draft or overwrites its snapshot fields.
func (r *draftRepository) Save(ctx context.Context, draft *models.Draft) error {
	if draft.ID == "" {
		draft.ID = uuid.NewString()
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"type", "title", "body", "category",
			"geo_state", "geo_district", "geo_block",
			"thumbnail_url", "video_url", "frame_url", "updated_at",
		}),
	}).Create(draft).Error
	if err != nil {
		return models.NewRetryableError(err)
	}
	return nil
}

func (r *draftRepository) GetByID(ctx context.Context, id string) (*models.Draft, error) {
	var draft models.Draft
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&draft).Error; err != nil {
		return nil, notFound(err, "Draft", id)
	}
	return &draft, nil
}

// ListByOwner returns the owner's drafts, most recently saved first.
func (r *draftRepository) ListByOwner(ctx context.Context, ownerID uint) ([]models.Draft, error) {
	var drafts []models.Draft
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("updated_at DESC").Find(&drafts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return drafts, nil
}

func (r *draftRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Draft{})
	if result.Error != nil {
		return models.NewRetryableError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Draft", id)
	}
	return nil
}
