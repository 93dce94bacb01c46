package service

import (
	"context"
	"strings"

	"localpulse/internal/cache"
	"localpulse/internal/models"
	"localpulse/internal/observability"
	"localpulse/internal/repository"
	"localpulse/internal/storage"

	"go.opentelemetry.io/otel/attribute"
)

const (
	maxNameLen = 100
	maxBioLen  = 500
)

// UserService provides user-related business logic.
type UserService struct {
	store    *repository.Store
	users    repository.UserRepository
	follows  repository.FollowRepository
	contents repository.ContentRepository
	objects  storage.ObjectStore
}

// Profile is a user with follow counts.
type Profile struct {
	models.User
	FollowersCount int64 `json:"followers_count"`
	FollowingCount int64 `json:"following_count"`
}

// UpdateProfileInput holds profile edits. Nil leaves a field unchanged.
type UpdateProfileInput struct {
	Name      *string           `json:"name"`
	Bio       *string           `json:"bio"`
	AvatarURL *string           `json:"avatar_url"`
	Preferred *models.Geography `json:"preferred_geography"`
}

// NewUserService returns a new UserService.
func NewUserService(
	store *repository.Store,
	users repository.UserRepository,
	follows repository.FollowRepository,
	contents repository.ContentRepository,
	objects storage.ObjectStore,
) *UserService {
	return &UserService{
		store:    store,
		users:    users,
		follows:  follows,
		contents: contents,
		objects:  objects,
	}
}

// IsAdmin reports whether the user holds the admin role.
func (s *UserService) IsAdmin(ctx context.Context, userID uint) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return user.IsAdmin(), nil
}

func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// GetProfile returns the user with follower and following counts.
func (s *UserService) GetProfile(ctx context.Context, id uint) (*Profile, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	followers, following, err := s.follows.Counts(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Profile{User: *user, FollowersCount: followers, FollowingCount: following}, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uint, in UpdateProfileInput) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, models.NewValidationError("Name cannot be empty")
		}
		if len(name) > maxNameLen {
			return nil, models.NewValidationError("Name too long (max 100 characters)")
		}
		user.Name = name
	}
	if in.Bio != nil {
		if len(*in.Bio) > maxBioLen {
			return nil, models.NewValidationError("Bio too long (max 500 characters)")
		}
		user.Bio = strings.TrimSpace(*in.Bio)
	}
	if in.AvatarURL != nil {
		user.AvatarURL = strings.TrimSpace(*in.AvatarURL)
	}
	if in.Preferred != nil {
		user.Preferred = in.Preferred.Normalize()
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, userID)
}

// DeleteUser removes a user and everything tied to them in one batch, then
// deletes the assets of their content best effort. Admin only.
func (s *UserService) DeleteUser(ctx context.Context, adminID, userID uint) error {
	ctx, span := observability.StartServiceSpan(ctx, "UserService", "DeleteUser",
		attribute.Int("user.id", int(userID)))
	defer span.End()

	if err := requireAdmin(ctx, s.IsAdmin, adminID); err != nil {
		return err
	}
	if adminID == userID {
		return models.NewValidationError("Admins cannot delete their own account")
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}
	assets, err := s.contents.AssetURLsByAuthor(ctx, userID)
	if err != nil {
		return err
	}

	batch := s.store.NewBatch()
	if err := s.users.StageDelete(batch, userID); err != nil {
		return err
	}
	if err := batch.Commit(ctx); err != nil {
		span.SetError(err)
		return err
	}
	cache.InvalidateUser(ctx, userID)
	cache.InvalidateFeed(ctx)
	storage.DeleteAll(ctx, s.objects, assets)
	return nil
}
