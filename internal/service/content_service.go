package service

import (
	"context"
	"strings"

	"localpulse/internal/cache"
	"localpulse/internal/models"
	"localpulse/internal/observability"
	"localpulse/internal/repository"
	"localpulse/internal/storage"
	"localpulse/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

const maxReportReasonRunes = 1000

// ContentService covers reads and owner/admin changes of published items.
type ContentService struct {
	store    *repository.Store
	contents repository.ContentRepository
	objects  storage.ObjectStore
	isAdmin  AdminCheck
}

// UpdateContentInput holds the editable fields. Nil leaves a field unchanged.
type UpdateContentInput struct {
	Title     *string           `json:"title"`
	Body      *string           `json:"body"`
	Category  *string           `json:"category"`
	Geography *models.Geography `json:"geography"`
}

// NewContentService returns a new ContentService.
func NewContentService(
	store *repository.Store,
	contents repository.ContentRepository,
	objects storage.ObjectStore,
	isAdmin AdminCheck,
) *ContentService {
	return &ContentService{
		store:    store,
		contents: contents,
		objects:  objects,
		isAdmin:  isAdmin,
	}
}

// Get returns an item with its like count and the caller's liked flag.
func (s *ContentService) Get(ctx context.Context, id, currentUserID uint) (*models.Content, error) {
	return s.contents.GetByID(ctx, id, currentUserID)
}

func (s *ContentService) ListByAuthor(ctx context.Context, authorID uint, limit, offset int, currentUserID uint) ([]*models.Content, error) {
	return s.contents.ListByAuthor(ctx, authorID, limit, offset, currentUserID)
}

// Update edits an item. Owner or admin only; published items keep the
// publish rules, so title, category and body cannot be blanked.
func (s *ContentService) Update(ctx context.Context, userID, id uint, in UpdateContentInput) (*models.Content, error) {
	content, err := s.contents.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrAdmin(ctx, s.isAdmin, userID, content.AuthorID, "Not authorized to update this content"); err != nil {
		return nil, err
	}

	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return nil, models.NewValidationError("Title is required")
		}
		content.Title = strings.TrimSpace(*in.Title)
	}
	if in.Body != nil {
		if validation.StripTags(*in.Body) == "" {
			return nil, models.NewValidationError("Body cannot be empty")
		}
		content.Body = *in.Body
	}
	if in.Category != nil {
		if strings.TrimSpace(*in.Category) == "" {
			return nil, models.NewValidationError("Category is required")
		}
		content.Category = strings.TrimSpace(*in.Category)
	}
	if in.Geography != nil {
		content.Geography = in.Geography.Normalize()
	}

	if err := s.contents.Update(ctx, content); err != nil {
		return nil, err
	}
	return s.contents.GetByID(ctx, id, userID)
}

// Delete removes an item with its likes, comments, replies and reports in one
// batch, then deletes its assets best effort.
func (s *ContentService) Delete(ctx context.Context, userID, id uint) error {
	ctx, span := observability.StartServiceSpan(ctx, "ContentService", "Delete",
		attribute.Int("content.id", int(id)))
	defer span.End()

	content, err := s.contents.GetByID(ctx, id, 0)
	if err != nil {
		return err
	}
	if err := requireOwnerOrAdmin(ctx, s.isAdmin, userID, content.AuthorID, "Not authorized to delete this content"); err != nil {
		return err
	}

	batch := s.store.NewBatch()
	if err := s.contents.StageDelete(batch, id); err != nil {
		return err
	}
	if err := batch.Commit(ctx); err != nil {
		span.SetError(err)
		return err
	}
	cache.InvalidateFeed(ctx)
	storage.DeleteAll(ctx, s.objects, content.AssetURLs())
	return nil
}

// Report files a complaint about an item.
func (s *ContentService) Report(ctx context.Context, userID, id uint, reason string) (*models.Report, error) {
	if _, err := s.contents.GetByID(ctx, id, 0); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.NewValidationError("A reason is required")
	}
	reason = validation.Excerpt(reason, maxReportReasonRunes)
	report := &models.Report{ContentID: id, ReporterID: userID, Reason: reason}
	if err := s.contents.CreateReport(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// Reports lists the complaints about an item. Admin only.
func (s *ContentService) Reports(ctx context.Context, adminID, id uint) ([]models.Report, error) {
	if err := requireAdmin(ctx, s.isAdmin, adminID); err != nil {
		return nil, err
	}
	return s.contents.ListReports(ctx, id)
}
