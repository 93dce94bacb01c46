package service

import (
	"context"
	"strings"

	"localpulse/internal/cache"
	"localpulse/internal/fanout"
	"localpulse/internal/models"
	"localpulse/internal/moderation"
	"localpulse/internal/observability"
	"localpulse/internal/repository"
	"localpulse/internal/storage"
	"localpulse/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// PublishService owns drafts and turns them into published content.
type PublishService struct {
	store         *repository.Store
	drafts        repository.DraftRepository
	contents      repository.ContentRepository
	users         repository.UserRepository
	notifications *NotificationService
	gate          *moderation.Gate
	objects       storage.ObjectStore
	maxUpload     int64
}

// DraftInput is an autosave snapshot. An empty ID creates a new draft.
type DraftInput struct {
	ID           string             `json:"id"`
	Type         models.ContentType `json:"type"`
	Title        string             `json:"title"`
	Body         string             `json:"body"`
	Category     string             `json:"category"`
	Geography    models.Geography   `json:"geography"`
	ThumbnailURL string             `json:"thumbnail_url"`
	VideoURL     string             `json:"video_url"`
	FrameURL     string             `json:"frame_url"`
}

// PublishUploads carries assets supplied at publish time. Each one replaces
// the URL stored on the draft.
type PublishUploads struct {
	Thumbnail []byte
	Frame     []byte
	Video     []byte
}

// PublishResult is the published item and the follower fan-out outcome.
type PublishResult struct {
	Content *models.Content `json:"content"`
	FanOut  fanout.Report   `json:"fan_out"`
}

// NewPublishService returns a new PublishService.
func NewPublishService(
	store *repository.Store,
	drafts repository.DraftRepository,
	contents repository.ContentRepository,
	users repository.UserRepository,
	notifications *NotificationService,
	gate *moderation.Gate,
	objects storage.ObjectStore,
	maxUpload int64,
) *PublishService {
	return &PublishService{
		store:         store,
		drafts:        drafts,
		contents:      contents,
		users:         users,
		notifications: notifications,
		gate:          gate,
		objects:       objects,
		maxUpload:     maxUpload,
	}
}

// SaveDraft autosaves a snapshot. No validation applies to drafts.
func (s *PublishService) SaveDraft(ctx context.Context, ownerID uint, in DraftInput) (*models.Draft, error) {
	if in.Type == "" {
		in.Type = models.ContentTypePost
	}
	if !in.Type.Valid() {
		return nil, models.NewValidationError("Content type must be post or video")
	}
	if in.ID != "" {
		existing, err := s.drafts.GetByID(ctx, in.ID)
		switch {
		case err == nil:
			if existing.OwnerID != ownerID {
				return nil, models.NewForbiddenError("Not authorized to edit this draft")
			}
		case repository.IsNotFound(err):
		default:
			return nil, err
		}
	}

	draft := &models.Draft{
		ID:           in.ID,
		OwnerID:      ownerID,
		Type:         in.Type,
		Title:        in.Title,
		Body:         in.Body,
		Category:     strings.TrimSpace(in.Category),
		Geography:    in.Geography.Normalize(),
		ThumbnailURL: in.ThumbnailURL,
		VideoURL:     in.VideoURL,
		FrameURL:     in.FrameURL,
	}
	if err := s.drafts.Save(ctx, draft); err != nil {
		return nil, err
	}
	return s.drafts.GetByID(ctx, draft.ID)
}

func (s *PublishService) ListDrafts(ctx context.Context, ownerID uint) ([]models.Draft, error) {
	return s.drafts.ListByOwner(ctx, ownerID)
}

func (s *PublishService) GetDraft(ctx context.Context, ownerID uint, draftID string) (*models.Draft, error) {
	draft, err := s.drafts.GetByID(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft.OwnerID != ownerID {
		return nil, models.NewForbiddenError("Not authorized to view this draft")
	}
	return draft, nil
}

func (s *PublishService) DeleteDraft(ctx context.Context, ownerID uint, draftID string) error {
	if _, err := s.GetDraft(ctx, ownerID, draftID); err != nil {
		return err
	}
	return s.drafts.Delete(ctx, draftID)
}

// Publish validates and moderates a draft, uploads new assets, writes the
// content and notifies the author's followers. The draft is removed best
// effort; the content's source draft id keeps a draft from going live twice.
func (s *PublishService) Publish(ctx context.Context, ownerID uint, draftID string, uploads PublishUploads) (*PublishResult, error) {
	ctx, span := observability.StartServiceSpan(ctx, "PublishService", "Publish",
		attribute.String("draft.id", draftID),
		attribute.Int("user.id", int(ownerID)),
	)
	defer span.End()

	draft, err := s.GetDraft(ctx, ownerID, draftID)
	if err != nil {
		if repository.IsNotFound(err) {
			if _, pubErr := s.contents.GetBySourceDraft(ctx, draftID); pubErr == nil {
				return nil, models.NewConflictError("This draft has already been published")
			}
		}
		return nil, err
	}
	if _, err := s.contents.GetBySourceDraft(ctx, draftID); err == nil {
		return nil, models.NewConflictError("This draft has already been published")
	} else if !repository.IsNotFound(err) {
		return nil, err
	}

	if err := s.checkUploads(uploads); err != nil {
		return nil, err
	}
	err = validation.ValidatePublish(validation.PublishInput{
		Type:         draft.Type,
		Title:        draft.Title,
		Body:         draft.Body,
		Category:     draft.Category,
		HasThumbnail: draft.ThumbnailURL != "" || len(uploads.Thumbnail) > 0,
		HasVideo:     draft.VideoURL != "" || len(uploads.Video) > 0,
		HasFrame:     draft.FrameURL != "" || len(uploads.Frame) > 0,
	})
	if err != nil {
		return nil, err
	}
	if err := s.gate.Check(ctx, draft.Title, draft.Body); err != nil {
		return nil, err
	}

	content := &models.Content{
		Type:          draft.Type,
		AuthorID:      ownerID,
		Title:         strings.TrimSpace(draft.Title),
		Body:          draft.Body,
		Category:      draft.Category,
		Geography:     draft.Geography.Normalize(),
		ThumbnailURL:  draft.ThumbnailURL,
		SourceDraftID: &draft.ID,
	}
	if draft.Type == models.ContentTypeVideo {
		content.VideoURL = draft.VideoURL
		content.FrameURL = draft.FrameURL
	}

	uploaded, err := s.uploadAssets(ctx, content, uploads)
	if err != nil {
		storage.DeleteAll(ctx, s.objects, uploaded)
		return nil, err
	}

	batch := s.store.NewBatch()
	if err := s.contents.StageCreate(batch, content); err != nil {
		storage.DeleteAll(ctx, s.objects, uploaded)
		return nil, err
	}
	if err := batch.Commit(ctx); err != nil {
		span.SetError(err)
		storage.DeleteAll(ctx, s.objects, uploaded)
		if models.IsCode(err, models.CodeConflict) {
			return nil, models.NewConflictError("This draft has already been published")
		}
		return nil, err
	}
	cache.InvalidateFeed(ctx)

	if err := s.drafts.Delete(ctx, draft.ID); err != nil && !repository.IsNotFound(err) {
		observability.LogPartialFailure(ctx, "draft_delete", err, map[string]interface{}{"draft_id": draft.ID})
	}

	published, err := s.contents.GetByID(ctx, content.ID, ownerID)
	if err != nil {
		published = content
	}

	result := &PublishResult{Content: published}
	author, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		observability.LogPartialFailure(ctx, "fan_out", err, map[string]interface{}{"content_id": content.ID})
		return result, nil
	}
	report, err := s.notifications.FanOutContent(ctx, author, published)
	if err != nil {
		observability.LogPartialFailure(ctx, "fan_out", err, map[string]interface{}{"content_id": content.ID})
	}
	result.FanOut = report
	return result, nil
}

// UploadAsset stores a standalone image or video and returns its URL.
func (s *PublishService) UploadAsset(ctx context.Context, data []byte) (string, error) {
	if s.objects == nil {
		return "", models.NewInternalError(errNoObjectStore)
	}
	contentType, err := storage.Detect(data, storage.KindImage, s.maxUpload)
	if err != nil {
		var videoErr error
		contentType, videoErr = storage.Detect(data, storage.KindVideo, s.maxUpload)
		if videoErr != nil {
			return "", err
		}
	}
	url, err := s.objects.Upload(ctx, data, contentType)
	if err != nil {
		return "", models.NewRetryableError(err)
	}
	return url, nil
}

func (s *PublishService) checkUploads(uploads PublishUploads) error {
	for _, slot := range []struct {
		data []byte
		kind storage.Kind
	}{
		{uploads.Thumbnail, storage.KindImage},
		{uploads.Frame, storage.KindImage},
		{uploads.Video, storage.KindVideo},
	} {
		if len(slot.data) == 0 {
			continue
		}
		if _, err := storage.Detect(slot.data, slot.kind, s.maxUpload); err != nil {
			return err
		}
	}
	return nil
}

// uploadAssets stores new assets and points content at them. It returns the
// URLs written so far, even on error, so the caller can clean them up.
func (s *PublishService) uploadAssets(ctx context.Context, content *models.Content, uploads PublishUploads) ([]string, error) {
	var uploaded []string
	put := func(data []byte, kind storage.Kind, dest *string) error {
		if len(data) == 0 {
			return nil
		}
		if s.objects == nil {
			return models.NewInternalError(errNoObjectStore)
		}
		contentType, err := storage.Detect(data, kind, s.maxUpload)
		if err != nil {
			return err
		}
		url, err := s.objects.Upload(ctx, data, contentType)
		if err != nil {
			return models.NewRetryableError(err)
		}
		uploaded = append(uploaded, url)
		*dest = url
		return nil
	}

	if err := put(uploads.Thumbnail, storage.KindImage, &content.ThumbnailURL); err != nil {
		return uploaded, err
	}
	if content.Type == models.ContentTypeVideo {
		if err := put(uploads.Frame, storage.KindImage, &content.FrameURL); err != nil {
			return uploaded, err
		}
		if err := put(uploads.Video, storage.KindVideo, &content.VideoURL); err != nil {
			return uploaded, err
		}
	}
	return uploaded, nil
}
