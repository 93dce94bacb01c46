package server

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"localpulse/internal/feed"
	"localpulse/internal/models"
	"localpulse/internal/realtime"
	"localpulse/internal/service"
	"localpulse/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFeed(t *testing.T) {
	env := newTestEnv(t, nil)
	author := testutil.CreateUser(t, env.db, "author")
	bihar := models.Geography{State: "Bihar", District: "Patna"}
	reader := testutil.CreateUser(t, env.db, "reader", testutil.WithPreferred(bihar))
	stranger := testutil.CreateUser(t, env.db, "stranger")

	testutil.CreateContent(t, env.db, author.ID, "Derby result", func(c *models.Content) {
		c.Category = "Sports"
		c.Geography = bihar
	})
	testutil.CreateContent(t, env.db, author.ID, "Budget passed", func(c *models.Content) {
		c.Category = "Politics"
		c.Geography = models.Geography{State: "Kerala"}
	})

	t.Run("anonymous latest is grouped", func(t *testing.T) {
		var view feed.View
		status := env.do(http.MethodGet, "/api/feed", 0, nil, &view)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, feed.ModeGrouped, view.Mode)
		assert.False(t, view.Empty)
	})

	t.Run("category is flat", func(t *testing.T) {
		var view feed.View
		status := env.do(http.MethodGet, "/api/feed?category=Politics", 0, nil, &view)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, feed.ModeFlat, view.Mode)
		require.Len(t, view.Items, 1)
		assert.Equal(t, "Budget passed", view.Items[0].Title)
	})

	t.Run("flat view pages", func(t *testing.T) {
		var first, second feed.View
		status := env.do(http.MethodGet, "/api/feed?q=body&limit=1", 0, nil, &first)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, first.Items, 1)
		assert.Equal(t, 1, first.NextOffset)

		status = env.do(http.MethodGet, "/api/feed?q=body&limit=1&offset=1", 0, nil, &second)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, second.Items, 1)
		assert.NotEqual(t, first.Items[0].ID, second.Items[0].ID)
	})

	t.Run("geography narrows", func(t *testing.T) {
		var view feed.View
		status := env.do(http.MethodGet, "/api/feed?category=Sports&state=Kerala", 0, nil, &view)
		require.Equal(t, http.StatusOK, status)
		assert.True(t, view.Empty)
	})

	t.Run("near me needs login", func(t *testing.T) {
		var errBody models.ErrorResponse
		status := env.do(http.MethodGet, "/api/feed?near_me=1", 0, nil, &errBody)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, models.CodeUnauthorized, errBody.Code)
	})

	t.Run("near me needs a preferred state", func(t *testing.T) {
		status := env.do(http.MethodGet, "/api/feed?near_me=1", stranger.ID, nil, nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("near me uses the profile", func(t *testing.T) {
		var view feed.View
		status := env.do(http.MethodGet, "/api/feed?near_me=1", reader.ID, nil, &view)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, view.Items, 1)
		assert.Equal(t, "Derby result", view.Items[0].Title)
		assert.Equal(t, "Bihar", view.Filter.Geography.State)
	})

	t.Run("categories", func(t *testing.T) {
		var body struct {
			Categories []string `json:"categories"`
		}
		status := env.do(http.MethodGet, "/api/feed/categories", 0, nil, &body)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, []string{"Politics", "Sports", "Health"}, body.Categories)
	})
}

func TestContentLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	author := testutil.CreateUser(t, env.db, "author")
	reader := testutil.CreateUser(t, env.db, "reader")
	item := testutil.CreateContent(t, env.db, author.ID, "Market fire")
	path := fmt.Sprintf("/api/contents/%d", item.ID)

	var got models.Content
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, path, 0, nil, &got))
	assert.Equal(t, "Market fire", got.Title)
	assert.Equal(t, author.ID, got.Author.ID)

	assert.Eventually(t, func() bool {
		var c models.Content
		return env.db.First(&c, item.ID).Error == nil && c.ViewCount == 1
	}, 2*time.Second, 20*time.Millisecond)

	require.Equal(t, http.StatusNoContent, env.do(http.MethodPost, path+"/share", 0, nil, nil))

	var like service.LikeResult
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, path+"/like", reader.ID, nil, &like))
	assert.True(t, like.Liked)
	assert.Equal(t, int64(1), like.Count)

	var snapshot realtime.LikesSnapshot
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, path+"/likes", 0, nil, &snapshot))
	assert.Equal(t, 1, snapshot.Count)
	assert.Equal(t, []uint{reader.ID}, snapshot.UserIDs)

	require.Equal(t, http.StatusOK, env.do(http.MethodPost, path+"/like", reader.ID, nil, &like))
	assert.False(t, like.Liked)
	assert.Equal(t, int64(0), like.Count)

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, path+"/like", 0, nil, nil))

	title := "Market fire contained"
	assert.Equal(t, http.StatusForbidden,
		env.do(http.MethodPut, path, reader.ID, service.UpdateContentInput{Title: &title}, nil))
	require.Equal(t, http.StatusOK,
		env.do(http.MethodPut, path, author.ID, service.UpdateContentInput{Title: &title}, &got))
	assert.Equal(t, title, got.Title)

	var report models.Report
	require.Equal(t, http.StatusCreated,
		env.do(http.MethodPost, path+"/report", reader.ID, map[string]string{"reason": "misleading"}, &report))
	assert.Equal(t, "misleading", report.Reason)

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodDelete, path, reader.ID, nil, nil))
	require.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, path, author.ID, nil, nil))
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, path, 0, nil, nil))
}

func TestCommentsAndReplies(t *testing.T) {
	env := newTestEnv(t, nil)
	author := testutil.CreateUser(t, env.db, "author")
	reader := testutil.CreateUser(t, env.db, "reader")
	item := testutil.CreateContent(t, env.db, author.ID, "School reopens")
	contentPath := fmt.Sprintf("/api/contents/%d/comments", item.ID)

	var errBody models.ErrorResponse
	assert.Equal(t, http.StatusBadRequest,
		env.do(http.MethodPost, contentPath, reader.ID, textRequest{Text: "   "}, &errBody))
	assert.Equal(t, models.CodeValidation, errBody.Code)

	var comment models.Comment
	require.Equal(t, http.StatusCreated,
		env.do(http.MethodPost, contentPath, reader.ID, textRequest{Text: "Good news"}, &comment))
	assert.Equal(t, reader.ID, comment.UserID)

	var comments []models.Comment
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, contentPath, 0, nil, &comments))
	require.Len(t, comments, 1)

	repliesPath := fmt.Sprintf("/api/comments/%d/replies", comment.ID)
	var reply models.Reply
	require.Equal(t, http.StatusCreated,
		env.do(http.MethodPost, repliesPath, author.ID, textRequest{Text: "Thanks"}, &reply))

	replyPath := fmt.Sprintf("/api/replies/%d", reply.ID)
	assert.Equal(t, http.StatusForbidden,
		env.do(http.MethodPut, replyPath, reader.ID, textRequest{Text: "edited"}, nil))
	require.Equal(t, http.StatusOK,
		env.do(http.MethodPut, replyPath, author.ID, textRequest{Text: "Thanks all"}, &reply))
	assert.Equal(t, "Thanks all", reply.Text)

	var replies []models.Reply
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, repliesPath, 0, nil, &replies))
	require.Len(t, replies, 1)

	// The author was notified about the comment.
	var inbox []models.InboxItem
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/notifications", author.ID, nil, &inbox))
	require.Len(t, inbox, 1)
	assert.Equal(t, models.NotificationNewComment, inbox[0].Type)
	assert.Equal(t, "Good news", inbox[0].CommentText)

	commentPath := fmt.Sprintf("/api/comments/%d", comment.ID)
	require.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, commentPath, reader.ID, nil, nil))
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, repliesPath, 0, nil, nil))
}

func TestFollowAndProfile(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")
	followPath := fmt.Sprintf("/api/users/%d/follow", bob.ID)

	var result service.FollowResult
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, followPath, alice.ID, nil, &result))
	assert.True(t, result.Following)
	assert.Equal(t, int64(1), result.FollowersCount)

	require.Equal(t, http.StatusOK, env.do(http.MethodGet, followPath, alice.ID, nil, &result))
	assert.True(t, result.Following)

	var profile service.Profile
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, fmt.Sprintf("/api/users/%d", bob.ID), 0, nil, &profile))
	assert.Equal(t, int64(1), profile.FollowersCount)

	var followers []models.User
	require.Equal(t, http.StatusOK,
		env.do(http.MethodGet, fmt.Sprintf("/api/users/%d/followers", bob.ID), 0, nil, &followers))
	require.Len(t, followers, 1)
	assert.Equal(t, alice.ID, followers[0].ID)

	var following []models.User
	require.Equal(t, http.StatusOK,
		env.do(http.MethodGet, fmt.Sprintf("/api/users/%d/following", alice.ID), 0, nil, &following))
	require.Len(t, following, 1)

	selfPath := fmt.Sprintf("/api/users/%d/follow", alice.ID)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, selfPath, alice.ID, nil, nil))

	require.Equal(t, http.StatusOK, env.do(http.MethodPost, followPath, alice.ID, nil, &result))
	assert.False(t, result.Following)
	assert.Equal(t, int64(0), result.FollowersCount)

	bio := "Reporter from Patna"
	var me models.User
	require.Equal(t, http.StatusOK, env.do(http.MethodPut, "/api/users/me", alice.ID, service.UpdateProfileInput{
		Bio:       &bio,
		Preferred: &models.Geography{State: "Bihar"},
	}, &me))
	assert.Equal(t, bio, me.Bio)
	assert.Equal(t, "Bihar", me.Preferred.State)
}
