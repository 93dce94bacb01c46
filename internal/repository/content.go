package repository

import (
	"context"
	"strings"

	"localpulse/internal/cache"
	"localpulse/internal/models"

	"gorm.io/gorm"
)

// ContentRepository defines the interface for published content.
type ContentRepository interface {
	StageCreate(b *Batch, content *models.Content) error
	GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Content, error)
	GetBySourceDraft(ctx context.Context, draftID string) (*models.Content, error)
	List(ctx context.Context, q ContentQuery, currentUserID uint) ([]*models.Content, error)
	Categories(ctx context.Context, g models.Geography) ([]string, error)
	ListByAuthor(ctx context.Context, authorID uint, limit, offset int, currentUserID uint) ([]*models.Content, error)
	AssetURLsByAuthor(ctx context.Context, authorID uint) ([]string, error)
	Update(ctx context.Context, content *models.Content) error
	StageDelete(b *Batch, id uint) error
	IncrementViews(ctx context.Context, id uint) error
	IncrementShares(ctx context.Context, id uint) error
	CreateReport(ctx context.Context, report *models.Report) error
	ListReports(ctx context.Context, contentID uint) ([]models.Report, error)
}

type contentRepository struct {
	db *gorm.DB
}

// NewContentRepository creates a new content repository
func NewContentRepository(db *gorm.DB) ContentRepository {
	return &contentRepository{db: db}
}

func (r *contentRepository) StageCreate(b *Batch, content *models.Content) error {
	return b.Add("create content", func(tx *gorm.DB) error {
		return tx.Omit("Author").Create(content).Error
	})
}

func (r *contentRepository) GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Content, error) {
	var content models.Content
	err := r.applyDetails(r.db.WithContext(ctx), currentUserID).
		Preload("Author").
		First(&content, id).Error
	if err != nil {
		return nil, notFound(err, "Content", id)
	}
	return &content, nil
}

func (r *contentRepository) GetBySourceDraft(ctx context.Context, draftID string) (*models.Content, error) {
	var content models.Content
	err := r.applyDetails(r.db.WithContext(ctx), 0).
		Preload("Author").
		Where("source_draft_id = ?", draftID).
		First(&content).Error
	if err != nil {
		return nil, notFound(err, "Content for draft", draftID)
	}
	return &content, nil
}

// ContentQuery narrows a listing of published content. Zero fields match
// everything; Geography matches level by level down to the deepest level set.
type ContentQuery struct {
	Category  string
	Geography models.Geography
	Text      string
	Limit     int
	Offset    int
}

// List returns the newest items matching q, one page at a time.
func (r *contentRepository) List(ctx context.Context, q ContentQuery, currentUserID uint) ([]*models.Content, error) {
	db := r.applyDetails(r.db.WithContext(ctx), currentUserID).Preload("Author")
	db = whereContent(db, q)
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	if q.Offset > 0 {
		db = db.Offset(q.Offset)
	}
	var items []*models.Content
	if err := db.Order("contents.created_at DESC, contents.id DESC").Find(&items).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return items, nil
}

// Categories lists the distinct categories of content inside g.
func (r *contentRepository) Categories(ctx context.Context, g models.Geography) ([]string, error) {
	var names []string
	err := whereContent(r.db.WithContext(ctx).Model(&models.Content{}), ContentQuery{Geography: g}).
		Distinct().
		Order("category").
		Pluck("category", &names).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return names, nil
}

func whereContent(db *gorm.DB, q ContentQuery) *gorm.DB {
	if category := strings.TrimSpace(q.Category); category != "" {
		db = db.Where("LOWER(contents.category) = ?", strings.ToLower(category))
	}
	g := q.Geography.Normalize()
	levels := []struct{ column, value string }{
		{"contents.geo_state", g.State},
		{"contents.geo_district", g.District},
		{"contents.geo_block", g.Block},
	}
	for _, level := range levels {
		if level.value == "" {
			break
		}
		db = db.Where("LOWER("+level.column+") = ?", strings.ToLower(level.value))
	}
	if text := strings.ToLower(strings.TrimSpace(q.Text)); text != "" {
		like := "%" + text + "%"
		db = db.Where("(LOWER(contents.title) LIKE ? OR LOWER(contents.body) LIKE ?)", like, like)
	}
	return db
}

func (r *contentRepository) ListByAuthor(ctx context.Context, authorID uint, limit, offset int, currentUserID uint) ([]*models.Content, error) {
	var items []*models.Content
	err := r.applyDetails(r.db.WithContext(ctx), currentUserID).
		Preload("Author").
		Where("author_id = ?", authorID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return items, nil
}

func (r *contentRepository) AssetURLsByAuthor(ctx context.Context, authorID uint) ([]string, error) {
	var items []models.Content
	err := r.db.WithContext(ctx).
		Select("id", "thumbnail_url", "video_url", "frame_url").
		Where("author_id = ?", authorID).
		Find(&items).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	var urls []string
	for i := range items {
		urls = append(urls, items[i].AssetURLs()...)
	}
	return urls, nil
}

// Update persists the editable fields of a published item.
func (r *contentRepository) Update(ctx context.Context, content *models.Content) error {
	result := r.db.WithContext(ctx).Model(&models.Content{}).Where("id = ?", content.ID).Updates(map[string]interface{}{
		"title":        content.Title,
		"body":         content.Body,
		"category":     content.Category,
		"geo_state":    content.Geography.State,
		"geo_district": content.Geography.District,
		"geo_block":    content.Geography.Block,
	})
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Content", content.ID)
	}
	cache.InvalidateFeed(ctx)
	return nil
}

// StageDelete removes the item and all engagement hanging off it.
func (r *contentRepository) StageDelete(b *Batch, id uint) error {
	steps := []struct {
		name string
		run  func(tx *gorm.DB) error
	}{
		{"delete likes", func(tx *gorm.DB) error {
			return tx.Where("content_id = ?", id).Delete(&models.Like{}).Error
		}},
		{"delete replies", func(tx *gorm.DB) error {
			return tx.Where("content_id = ?", id).Delete(&models.Reply{}).Error
		}},
		{"delete comments", func(tx *gorm.DB) error {
			return tx.Where("content_id = ?", id).Delete(&models.Comment{}).Error
		}},
		{"delete reports", func(tx *gorm.DB) error {
			return tx.Where("content_id = ?", id).Delete(&models.Report{}).Error
		}},
		{"delete content", func(tx *gorm.DB) error {
			res := tx.Delete(&models.Content{}, id)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return models.NewNotFoundError("Content", id)
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

func (r *contentRepository) IncrementViews(ctx context.Context, id uint) error {
	return r.increment(ctx, id, "view_count")
}

func (r *contentRepository) IncrementShares(ctx context.Context, id uint) error {
	return r.increment(ctx, id, "share_count")
}

func (r *contentRepository) increment(ctx context.Context, id uint, column string) error {
	result := r.db.WithContext(ctx).Model(&models.Content{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1))
	if result.Error != nil {
		return models.NewRetryableError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Content", id)
	}
	return nil
}

func (r *contentRepository) CreateReport(ctx context.Context, report *models.Report) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *contentRepository) ListReports(ctx context.Context, contentID uint) ([]models.Report, error) {
	var reports []models.Report
	err := r.db.WithContext(ctx).Where("content_id = ?", contentID).Order("created_at ASC").Find(&reports).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return reports, nil
}

// applyDetails adds subqueries to fetch counts and liked status in a single query.
// The like count is always the size of the membership set.
func (r *contentRepository) applyDetails(db *gorm.DB, currentUserID uint) *gorm.DB {
	selectQuery := "contents.*, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.content_id = contents.id) as comments_count, " +
		"(SELECT COUNT(*) FROM likes WHERE likes.content_id = contents.id) as likes_count"

	if currentUserID != 0 {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM likes WHERE likes.content_id = contents.id AND likes.user_id = ?) as liked", currentUserID)
	}

	return db.Select(selectQuery + ", false as liked")
}
