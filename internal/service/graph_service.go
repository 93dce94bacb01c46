package service

import (
	"context"

	"localpulse/internal/models"
	"localpulse/internal/observability"
	"localpulse/internal/realtime"
	"localpulse/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// GraphService maintains follow edges.
type GraphService struct {
	store         *repository.Store
	follows       repository.FollowRepository
	users         repository.UserRepository
	notifications *NotificationService
	publisher     *realtime.Publisher
}

// FollowResult is the edge state after a toggle.
type FollowResult struct {
	Following      bool  `json:"following"`
	FollowersCount int64 `json:"followers_count"`
}

// FollowCounts summarizes one user's edges.
type FollowCounts struct {
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
}

// NewGraphService returns a new GraphService.
func NewGraphService(
	store *repository.Store,
	follows repository.FollowRepository,
	users repository.UserRepository,
	notifications *NotificationService,
	publisher *realtime.Publisher,
) *GraphService {
	return &GraphService{
		store:         store,
		follows:       follows,
		users:         users,
		notifications: notifications,
		publisher:     publisher,
	}
}

// ToggleFollow follows or unfollows target. Both mirrored edges change in one
// batch; a new follow also writes the target's notification in that batch.
func (s *GraphService) ToggleFollow(ctx context.Context, actingUserID, targetUserID uint) (*FollowResult, error) {
	if actingUserID == targetUserID {
		return nil, models.NewValidationError("You cannot follow yourself")
	}
	ctx, span := observability.StartServiceSpan(ctx, "GraphService", "ToggleFollow",
		attribute.Int("user.id", int(actingUserID)),
		attribute.Int("target.id", int(targetUserID)),
	)
	defer span.End()

	actor, err := s.users.GetByID(ctx, actingUserID)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, targetUserID); err != nil {
		return nil, err
	}

	following, err := s.follows.IsFollowing(ctx, actingUserID, targetUserID)
	if err != nil {
		return nil, err
	}

	batch := s.store.NewBatch()
	var notification *models.Notification
	if following {
		if err := s.follows.StageUnfollow(batch, actingUserID, targetUserID); err != nil {
			return nil, err
		}
	} else {
		if err := s.follows.StageFollow(batch, actingUserID, targetUserID); err != nil {
			return nil, err
		}
		notification = buildNotification(models.NotificationNewFollower, targetUserID, actor, nil, "")
		notification.DedupKey = followDedupKey(actingUserID, targetUserID)
		if err := s.notifications.stage(batch, notification); err != nil {
			return nil, err
		}
	}
	if err := batch.Commit(ctx); err != nil {
		span.SetError(err)
		return nil, err
	}

	action := "follow"
	if following {
		action = "unfollow"
	}
	observability.GraphToggles.WithLabelValues(action).Inc()
	s.notifications.pushNotification(ctx, notification)

	result := &FollowResult{Following: !following}
	if snap, err := s.FollowersSnapshot(ctx, targetUserID); err == nil {
		result.FollowersCount = int64(snap.Count)
		s.publisher.Publish(ctx, realtime.FollowersTopic(targetUserID), realtime.EventFollowersSnapshot, snap)
	} else {
		observability.LogPartialFailure(ctx, "followers_snapshot", err, map[string]interface{}{"user_id": targetUserID})
	}
	return result, nil
}

// IsFollowing reports whether followerID follows targetID.
func (s *GraphService) IsFollowing(ctx context.Context, followerID, targetID uint) (bool, error) {
	return s.follows.IsFollowing(ctx, followerID, targetID)
}

func (s *GraphService) Followers(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.follows.ListFollowers(ctx, userID, limit, offset)
}

func (s *GraphService) Following(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.follows.ListFollowing(ctx, userID, limit, offset)
}

func (s *GraphService) Counts(ctx context.Context, userID uint) (FollowCounts, error) {
	followers, following, err := s.follows.Counts(ctx, userID)
	if err != nil {
		return FollowCounts{}, err
	}
	return FollowCounts{Followers: followers, Following: following}, nil
}

// FollowersSnapshot returns the complete follower set of userID.
func (s *GraphService) FollowersSnapshot(ctx context.Context, userID uint) (*realtime.FollowersSnapshot, error) {
	ids, err := s.follows.FollowerIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []uint{}
	}
	return &realtime.FollowersSnapshot{UserID: userID, Count: len(ids), FollowerIDs: ids}, nil
}
