package service

import (
	"context"
	"log/slog"

	"localpulse/internal/cache"
	"localpulse/internal/models"
	"localpulse/internal/observability"
	"localpulse/internal/realtime"
	"localpulse/internal/repository"
	"localpulse/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// EngagementService handles likes, views, shares, comments and replies.
type EngagementService struct {
	store         *repository.Store
	contents      repository.ContentRepository
	likes         repository.LikeRepository
	comments      repository.CommentRepository
	users         repository.UserRepository
	notifications *NotificationService
	publisher     *realtime.Publisher
	isAdmin       AdminCheck
}

// LikeResult is the like state after a toggle.
type LikeResult struct {
	Liked bool  `json:"liked"`
	Count int64 `json:"likes_count"`
}

// NewEngagementService returns a new EngagementService.
func NewEngagementService(
	store *repository.Store,
	contents repository.ContentRepository,
	likes repository.LikeRepository,
	comments repository.CommentRepository,
	users repository.UserRepository,
	notifications *NotificationService,
	publisher *realtime.Publisher,
	isAdmin AdminCheck,
) *EngagementService {
	return &EngagementService{
		store:         store,
		contents:      contents,
		likes:         likes,
		comments:      comments,
		users:         users,
		notifications: notifications,
		publisher:     publisher,
		isAdmin:       isAdmin,
	}
}

// ToggleLike adds or removes the user's like. A new like and the author's
// notification commit together; liking your own item notifies no one.
func (s *EngagementService) ToggleLike(ctx context.Context, contentID, userID uint) (*LikeResult, error) {
	ctx, span := observability.StartServiceSpan(ctx, "EngagementService", "ToggleLike",
		attribute.Int("content.id", int(contentID)),
		attribute.Int("user.id", int(userID)),
	)
	defer span.End()

	content, err := s.contents.GetByID(ctx, contentID, 0)
	if err != nil {
		return nil, err
	}
	liked, err := s.likes.IsLiked(ctx, contentID, userID)
	if err != nil {
		return nil, err
	}

	batch := s.store.NewBatch()
	var notification *models.Notification
	if liked {
		if err := s.likes.StageUnlike(batch, contentID, userID); err != nil {
			return nil, err
		}
	} else {
		if err := s.likes.StageLike(batch, contentID, userID); err != nil {
			return nil, err
		}
		if content.AuthorID != userID {
			liker, err := s.users.GetByID(ctx, userID)
			if err != nil {
				return nil, err
			}
			notification = buildNotification(models.NotificationNewLike, content.AuthorID, liker, content, "")
			notification.DedupKey = likeDedupKey(content.ID, liker.ID)
			if err := s.notifications.stage(batch, notification); err != nil {
				return nil, err
			}
		}
	}
	if err := batch.Commit(ctx); err != nil {
		span.SetError(err)
		return nil, err
	}

	action := "like"
	if liked {
		action = "unlike"
	}
	observability.LikeToggles.WithLabelValues(action).Inc()
	cache.InvalidateFeed(ctx)
	s.notifications.pushNotification(ctx, notification)

	result := &LikeResult{Liked: !liked}
	if snap, err := s.LikesSnapshot(ctx, contentID); err == nil {
		result.Count = int64(snap.Count)
		s.publisher.Publish(ctx, realtime.LikesTopic(contentID), realtime.EventLikesSnapshot, snap)
	} else {
		observability.LogPartialFailure(ctx, "likes_snapshot", err, map[string]interface{}{"content_id": contentID})
	}
	return result, nil
}

// LikesSnapshot returns the complete like-membership set of an item.
func (s *EngagementService) LikesSnapshot(ctx context.Context, contentID uint) (*realtime.LikesSnapshot, error) {
	ids, err := s.likes.MemberIDs(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []uint{}
	}
	return &realtime.LikesSnapshot{ContentID: contentID, Count: len(ids), UserIDs: ids}, nil
}

// RecordView bumps the view counter. Views are not deduplicated and a
// failure is only logged and counted.
func (s *EngagementService) RecordView(ctx context.Context, contentID uint) {
	if err := s.contents.IncrementViews(ctx, contentID); err != nil {
		observability.ViewIncrementFailures.Inc()
		observability.Logger.DebugContext(ctx, "view increment dropped",
			slog.Uint64("content_id", uint64(contentID)),
			slog.String("error", err.Error()))
	}
}

// RecordShare bumps the share counter after an explicit share action.
func (s *EngagementService) RecordShare(ctx context.Context, contentID uint) error {
	return s.contents.IncrementShares(ctx, contentID)
}

// ListComments returns an item's comments oldest first.
func (s *EngagementService) ListComments(ctx context.Context, contentID uint, limit, offset int) ([]models.Comment, error) {
	if _, err := s.contents.GetByID(ctx, contentID, 0); err != nil {
		return nil, err
	}
	return s.comments.ListByContent(ctx, contentID, limit, offset)
}

// AddComment stores the comment and, unless the commenter is the author,
// the author's notification in one batch.
func (s *EngagementService) AddComment(ctx context.Context, contentID, userID uint, text string) (*models.Comment, error) {
	text, err := validation.ValidateCommentText(text)
	if err != nil {
		return nil, err
	}
	ctx, span := observability.StartServiceSpan(ctx, "EngagementService", "AddComment",
		attribute.Int("content.id", int(contentID)))
	defer span.End()

	content, err := s.contents.GetByID(ctx, contentID, 0)
	if err != nil {
		return nil, err
	}
	commenter, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{ContentID: contentID, UserID: userID, Text: text}
	batch := s.store.NewBatch()
	if err := s.comments.StageCreate(batch, comment); err != nil {
		return nil, err
	}
	var notification *models.Notification
	if content.AuthorID != userID {
		notification = buildNotification(models.NotificationNewComment, content.AuthorID, commenter, content, text)
		if err := s.notifications.stage(batch, notification); err != nil {
			return nil, err
		}
	}
	if err := batch.Commit(ctx); err != nil {
		span.SetError(err)
		return nil, err
	}
	cache.InvalidateFeed(ctx)
	s.notifications.pushNotification(ctx, notification)

	comment.User = *commenter
	return comment, nil
}

// UpdateComment edits a comment. Author or admin only.
func (s *EngagementService) UpdateComment(ctx context.Context, userID, commentID uint, text string) (*models.Comment, error) {
	text, err := validation.ValidateCommentText(text)
	if err != nil {
		return nil, err
	}
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrAdmin(ctx, s.isAdmin, userID, comment.UserID, "Not authorized to edit this comment"); err != nil {
		return nil, err
	}
	if err := s.comments.UpdateText(ctx, commentID, text); err != nil {
		return nil, err
	}
	return s.comments.GetByID(ctx, commentID)
}

// DeleteComment removes a comment and its replies. Author or admin only.
func (s *EngagementService) DeleteComment(ctx context.Context, userID, commentID uint) error {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if err := requireOwnerOrAdmin(ctx, s.isAdmin, userID, comment.UserID, "Not authorized to delete this comment"); err != nil {
		return err
	}
	batch := s.store.NewBatch()
	if err := s.comments.StageDelete(batch, commentID); err != nil {
		return err
	}
	if err := batch.Commit(ctx); err != nil {
		return err
	}
	cache.InvalidateFeed(ctx)
	return nil
}

// ListReplies returns a comment's replies oldest first.
func (s *EngagementService) ListReplies(ctx context.Context, commentID uint, limit, offset int) ([]models.Reply, error) {
	if _, err := s.comments.GetByID(ctx, commentID); err != nil {
		return nil, err
	}
	return s.comments.ListReplies(ctx, commentID, limit, offset)
}

func (s *EngagementService) AddReply(ctx context.Context, commentID, userID uint, text string) (*models.Reply, error) {
	text, err := validation.ValidateCommentText(text)
	if err != nil {
		return nil, err
	}
	parent, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	reply := &models.Reply{CommentID: commentID, ContentID: parent.ContentID, UserID: userID, Text: text}
	if err := s.comments.CreateReply(ctx, reply); err != nil {
		return nil, err
	}
	return s.comments.GetReply(ctx, reply.ID)
}

func (s *EngagementService) UpdateReply(ctx context.Context, userID, replyID uint, text string) (*models.Reply, error) {
	text, err := validation.ValidateCommentText(text)
	if err != nil {
		return nil, err
	}
	reply, err := s.comments.GetReply(ctx, replyID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrAdmin(ctx, s.isAdmin, userID, reply.UserID, "Not authorized to edit this reply"); err != nil {
		return nil, err
	}
	if err := s.comments.UpdateReplyText(ctx, replyID, text); err != nil {
		return nil, err
	}
	return s.comments.GetReply(ctx, replyID)
}

func (s *EngagementService) DeleteReply(ctx context.Context, userID, replyID uint) error {
	reply, err := s.comments.GetReply(ctx, replyID)
	if err != nil {
		return err
	}
	if err := requireOwnerOrAdmin(ctx, s.isAdmin, userID, reply.UserID, "Not authorized to delete this reply"); err != nil {
		return err
	}
	return s.comments.DeleteReply(ctx, replyID)
}
