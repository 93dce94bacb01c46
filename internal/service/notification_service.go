package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"localpulse/internal/fanout"
	"localpulse/internal/models"
	"localpulse/internal/observability"
	"localpulse/internal/realtime"
	"localpulse/internal/repository"
	"localpulse/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

const commentExcerptRunes = 140

// NotificationService writes, fans out and serves notifications.
type NotificationService struct {
	store         *repository.Store
	notifications repository.NotificationRepository
	follows       repository.FollowRepository
	publisher     *realtime.Publisher
	isAdmin       AdminCheck
	chunkSize     int
	concurrency   int

	mu      sync.Mutex
	pending map[uint]*fanOutJob
}

type fanOutJob struct {
	plan   *fanout.Plan
	commit fanout.CommitFunc
}

// FanOutOptions bounds a follower fan-out.
type FanOutOptions struct {
	ChunkSize   int
	Concurrency int
}

// NewNotificationService returns a new NotificationService. Chunks never
// exceed the store's batch limit.
func NewNotificationService(
	store *repository.Store,
	notifications repository.NotificationRepository,
	follows repository.FollowRepository,
	publisher *realtime.Publisher,
	isAdmin AdminCheck,
	opts FanOutOptions,
) *NotificationService {
	chunk := opts.ChunkSize
	if chunk <= 0 || chunk > store.MaxOps() {
		chunk = store.MaxOps()
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &NotificationService{
		store:         store,
		notifications: notifications,
		follows:       follows,
		publisher:     publisher,
		isAdmin:       isAdmin,
		chunkSize:     chunk,
		concurrency:   concurrency,
		pending:       make(map[uint]*fanOutJob),
	}
}

// buildNotification fills the denormalized payload so the notification
// renders without further lookups.
func buildNotification(kind models.NotificationType, recipientID uint, from *models.User, content *models.Content, commentText string) *models.Notification {
	n := &models.Notification{
		RecipientID:   recipientID,
		Type:          kind,
		FromUserID:    from.ID,
		FromName:      from.DisplayName(),
		FromUsername:  from.Username,
		FromAvatarURL: from.AvatarURL,
	}
	if content != nil {
		id := content.ID
		n.ContentID = &id
		n.ContentType = content.Type
		n.ContentTitle = content.Title
	}
	if commentText != "" {
		n.CommentText = validation.Excerpt(commentText, commentExcerptRunes)
	}
	return n
}

func postNotificationType(t models.ContentType) models.NotificationType {
	if t == models.ContentTypeVideo {
		return models.NotificationNewVideo
	}
	return models.NotificationNewPost
}

func fanOutDedupKey(contentID, recipientID uint) string {
	return fmt.Sprintf("post:%d:%d", contentID, recipientID)
}

func followDedupKey(fromID, toID uint) *string {
	key := fmt.Sprintf("follow:%d:%d", fromID, toID)
	return &key
}

func likeDedupKey(contentID, userID uint) *string {
	key := fmt.Sprintf("like:%d:%d", contentID, userID)
	return &key
}

// stage adds a single-recipient notification to a caller's batch.
func (s *NotificationService) stage(b *repository.Batch, n *models.Notification) error {
	return s.notifications.StageCreate(b, n)
}

// pushNotification sends committed notifications to their recipients' live
// topics. Writes that collided with an existing dedup key are not sent.
func (s *NotificationService) pushNotification(ctx context.Context, notifications ...*models.Notification) {
	for _, n := range notifications {
		if n == nil || n.Duplicate {
			continue
		}
		observability.NotificationsWritten.WithLabelValues(string(n.Type)).Inc()
		s.publisher.Publish(ctx, realtime.NotificationsTopic(n.RecipientID), realtime.EventNotification, n)
	}
}

// FanOutContent notifies every follower of author about a newly published
// item. Recipients are read in pages and written in chunks that each commit
// atomically. A failed chunk is kept for Retry and reported, not returned.
func (s *NotificationService) FanOutContent(ctx context.Context, author *models.User, content *models.Content) (fanout.Report, error) {
	ctx, span := observability.StartServiceSpan(ctx, "NotificationService", "FanOutContent",
		attribute.Int("content.id", int(content.ID)))
	defer span.End()

	kind := postNotificationType(content.Type)
	pager := func(ctx context.Context, afterID uint, limit int) ([]uint, error) {
		return s.follows.FollowerIDsAfter(ctx, author.ID, afterID, limit)
	}
	commit := func(ctx context.Context, chunk *fanout.Chunk) error {
		batch := s.store.NewBatch()
		written := make([]*models.Notification, 0, len(chunk.Recipients))
		for _, recipientID := range chunk.Recipients {
			n := buildNotification(kind, recipientID, author, content, "")
			key := fanOutDedupKey(content.ID, recipientID)
			n.DedupKey = &key
			if err := s.notifications.StageCreate(batch, n); err != nil {
				return err
			}
			written = append(written, n)
		}
		if err := batch.Commit(ctx); err != nil {
			observability.FanOutChunks.WithLabelValues("failed").Inc()
			return err
		}
		observability.FanOutChunks.WithLabelValues("ok").Inc()
		s.pushNotification(ctx, written...)
		return nil
	}

	plan := fanout.NewPlan(pager, s.chunkSize)
	report, err := plan.Run(ctx, s.concurrency, commit)
	s.track(ctx, content.ID, &fanOutJob{plan: plan, commit: commit}, report, err)
	if err != nil {
		span.SetError(err)
		return report, models.NewRetryableError(err)
	}
	return report, nil
}

// track parks a job that stopped early or left failed chunks. A retry
// resumes enumeration from the plan's cursor.
func (s *NotificationService) track(ctx context.Context, contentID uint, job *fanOutJob, report fanout.Report, runErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if runErr == nil && report.Complete() {
		delete(s.pending, contentID)
		return
	}
	s.pending[contentID] = job
	observability.Logger.WarnContext(ctx, "fan-out incomplete",
		slog.Uint64("content_id", uint64(contentID)),
		slog.Bool("exhausted", report.Exhausted),
		slog.Int("failed_chunks", report.FailedChunks),
		slog.Int("failed_recipients", report.FailedRecipients),
		slog.Int("delivered", report.Delivered),
	)
}

// PendingFanOuts lists content ids whose fan-out has not finished.
func (s *NotificationService) PendingFanOuts() []uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uint, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// RetryFanOut recommits the failed chunks of a content item's fan-out and
// reads the followers it never reached. Recipients already written are
// skipped through their dedup keys.
func (s *NotificationService) RetryFanOut(ctx context.Context, contentID uint) (fanout.Report, error) {
	s.mu.Lock()
	job, ok := s.pending[contentID]
	s.mu.Unlock()
	if !ok {
		return fanout.Report{}, models.NewNotFoundError("Pending fan-out", contentID)
	}
	job.plan.Requeue()
	report, err := job.plan.Run(ctx, s.concurrency, job.commit)
	s.track(ctx, contentID, job, report, err)
	if err != nil {
		return report, models.NewRetryableError(err)
	}
	return report, nil
}

// Inbox merges personal notifications with broadcasts, newest first.
func (s *NotificationService) Inbox(ctx context.Context, userID uint, limit, offset int) ([]models.InboxItem, error) {
	window := limit + offset
	personal, err := s.notifications.ListForRecipient(ctx, userID, window, 0)
	if err != nil {
		return nil, err
	}
	broadcasts, err := s.notifications.ListBroadcasts(ctx, window)
	if err != nil {
		return nil, err
	}

	items := make([]models.InboxItem, 0, len(personal)+len(broadcasts))
	for _, n := range personal {
		items = append(items, models.InboxItem{Notification: n})
	}
	for _, b := range broadcasts {
		items = append(items, models.InboxItem{
			Notification: models.Notification{
				ID:           b.ID,
				RecipientID:  userID,
				Type:         models.NotificationBroadcast,
				FromUserID:   b.AuthorID,
				ContentTitle: b.Title,
				Read:         true,
				CreatedAt:    b.CreatedAt,
			},
			Broadcast: true,
			Body:      b.Body,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	if offset >= len(items) {
		return []models.InboxItem{}, nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end], nil
}

// UnreadCount counts unread personal notifications. Broadcasts are always read.
func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.notifications.UnreadCount(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID uint, notificationID string) error {
	return s.notifications.MarkRead(ctx, userID, notificationID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.notifications.MarkAllRead(ctx, userID)
}

// Delete removes one of the caller's own notifications.
func (s *NotificationService) Delete(ctx context.Context, userID uint, notificationID string) error {
	return s.notifications.Delete(ctx, userID, notificationID)
}

// ClearPersonal removes all of the caller's personal notifications.
func (s *NotificationService) ClearPersonal(ctx context.Context, userID uint) (int64, error) {
	return s.notifications.ClearPersonal(ctx, userID)
}

// CreateBroadcast publishes a global notification. Admin only.
func (s *NotificationService) CreateBroadcast(ctx context.Context, adminID uint, title, body string) (*models.Broadcast, error) {
	if err := requireAdmin(ctx, s.isAdmin, adminID); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, models.NewValidationError("Title is required")
	}
	b := &models.Broadcast{AuthorID: adminID, Title: title, Body: strings.TrimSpace(body)}
	if err := s.notifications.CreateBroadcast(ctx, b); err != nil {
		return nil, err
	}
	observability.NotificationsWritten.WithLabelValues(string(models.NotificationBroadcast)).Inc()
	s.publisher.Publish(ctx, realtime.BroadcastTopic, realtime.EventBroadcast, b)
	return b, nil
}

// DeleteBroadcast removes a global notification. Admin only.
func (s *NotificationService) DeleteBroadcast(ctx context.Context, adminID uint, id string) error {
	if err := requireAdmin(ctx, s.isAdmin, adminID); err != nil {
		return err
	}
	return s.notifications.DeleteBroadcast(ctx, id)
}
