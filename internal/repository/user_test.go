package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"localpulse/internal/models"
	"localpulse/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	tests := []struct {
		name         string
		userID       uint
		mockBehavior func()
		expectedCode string
	}{
		{
			name:   "Success",
			userID: 1,
			mockBehavior: func() {
				rows := sqlmock.NewRows([]string{"id", "username", "name"}).
					AddRow(1, "testuser", "Test User")
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(1, 1).
					WillReturnRows(rows)
			},
		},
		{
			name:   "Not Found",
			userID: 99,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(99, 1).
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			expectedCode: models.CodeNotFound,
		},
		{
			name:   "Database Error",
			userID: 2,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1`)).
					WithArgs(2, 1).
					WillReturnError(errors.New("connection timeout"))
			},
			expectedCode: models.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)

			if tt.expectedCode != "" {
				assert.True(t, models.IsCode(err, tt.expectedCode), "got %v", err)
			} else if assert.NotNil(t, user) {
				assert.Equal(t, "testuser", user.Username)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_CreateDuplicateUsername(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{Username: "dup", Name: "One"}))
	err := repo.Create(ctx, &models.User{Username: "dup", Name: "Two"})
	assert.True(t, models.IsCode(err, models.CodeConflict))
}

func TestUserRepository_UpdateProfile(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "alice")

	u.Bio = "reporter"
	u.Preferred = models.Geography{State: "Bihar", District: "Patna"}
	require.NoError(t, repo.Update(ctx, u))

	got, err := repo.GetByUsername(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, "reporter", got.Bio)
	assert.Equal(t, "Patna", got.Preferred.District)

	err = repo.Update(ctx, &models.User{ID: 999})
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestUserRepository_StageDeleteCascades(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	store := NewStore(db, 50)
	users := NewUserRepository(db)
	follows := NewFollowRepository(db)
	likes := NewLikeRepository(db)
	comments := NewCommentRepository(db)

	victim := testutil.CreateUser(t, db, "victim")
	other := testutil.CreateUser(t, db, "other")
	own := testutil.CreateContent(t, db, victim.ID, "Own story")
	theirs := testutil.CreateContent(t, db, other.ID, "Other story")

	batch := store.NewBatch()
	require.NoError(t, follows.StageFollow(batch, victim.ID, other.ID))
	require.NoError(t, follows.StageFollow(batch, other.ID, victim.ID))
	require.NoError(t, likes.StageLike(batch, theirs.ID, victim.ID))
	require.NoError(t, likes.StageLike(batch, own.ID, other.ID))
	onOwn := &models.Comment{ContentID: own.ID, UserID: other.ID, Text: "nice"}
	require.NoError(t, comments.StageCreate(batch, onOwn))
	require.NoError(t, comments.StageCreate(batch, &models.Comment{ContentID: theirs.ID, UserID: victim.ID, Text: "hi"}))
	require.NoError(t, batch.Commit(ctx))
	require.NoError(t, comments.CreateReply(ctx, &models.Reply{CommentID: onOwn.ID, ContentID: own.ID, UserID: other.ID, Text: "thanks"}))
	require.NoError(t, NewDraftRepository(db).Save(ctx, &models.Draft{OwnerID: victim.ID, Title: "wip"}))

	batch = store.NewBatch()
	require.NoError(t, users.StageDelete(batch, victim.ID))
	require.NoError(t, batch.Commit(ctx))

	count := func(model interface{}) int64 {
		var n int64
		require.NoError(t, db.Model(model).Count(&n).Error)
		return n
	}
	assert.Zero(t, count(&models.Follower{}))
	assert.Zero(t, count(&models.Following{}))
	assert.Zero(t, count(&models.Like{}))
	assert.Zero(t, count(&models.Comment{}))
	assert.Zero(t, count(&models.Reply{}))
	assert.Zero(t, count(&models.Draft{}))
	assert.EqualValues(t, 1, count(&models.Content{}))
	assert.EqualValues(t, 1, count(&models.User{}))
}
