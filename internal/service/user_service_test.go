package service

import (
	"testing"

	"localpulse/internal/models"
	"localpulse/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_IsAdmin(t *testing.T) {
	f := newFixture(t)
	admin := testutil.CreateUser(t, f.db, "admin", testutil.AsAdmin)
	user := testutil.CreateUser(t, f.db, "user")

	ok, err := f.user.IsAdmin(bg, admin.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.user.IsAdmin(bg, user.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.user.IsAdmin(bg, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.user.IsAdmin(bg, 999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUserService_ProfileUpdate(t *testing.T) {
	f := newFixture(t)
	u := testutil.CreateUser(t, f.db, "asha")
	fan := testutil.CreateUser(t, f.db, "fan")
	_, err := f.graph.ToggleFollow(bg, fan.ID, u.ID)
	require.NoError(t, err)

	_, err = f.user.UpdateProfile(bg, u.ID, UpdateProfileInput{Name: strPtr(" ")})
	assert.True(t, models.IsCode(err, models.CodeValidation))

	updated, err := f.user.UpdateProfile(bg, u.ID, UpdateProfileInput{
		Name:      strPtr("Asha Devi"),
		Bio:       strPtr(" Reporter from Patna "),
		Preferred: &models.Geography{State: " Bihar ", District: "Patna"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Asha Devi", updated.Name)
	assert.Equal(t, "Reporter from Patna", updated.Bio)
	assert.Equal(t, models.Geography{State: "Bihar", District: "Patna"}, updated.Preferred)

	profile, err := f.user.GetProfile(bg, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, profile.FollowersCount)
	assert.EqualValues(t, 0, profile.FollowingCount)
}

func TestUserService_AdminCascadeDelete(t *testing.T) {
	f := newFixture(t)
	admin := testutil.CreateUser(t, f.db, "admin", testutil.AsAdmin)
	doomed := testutil.CreateUser(t, f.db, "doomed")
	bystander := testutil.CreateUser(t, f.db, "bystander")

	thumb, err := f.objects.Upload(bg, pngBytes, "image/png")
	require.NoError(t, err)
	own := testutil.CreateContent(t, f.db, doomed.ID, "Doomed post", func(c *models.Content) { c.ThumbnailURL = thumb })
	theirs := testutil.CreateContent(t, f.db, bystander.ID, "Other post")

	_, err = f.graph.ToggleFollow(bg, doomed.ID, bystander.ID)
	require.NoError(t, err)
	_, err = f.graph.ToggleFollow(bg, bystander.ID, doomed.ID)
	require.NoError(t, err)
	_, err = f.engagement.ToggleLike(bg, theirs.ID, doomed.ID)
	require.NoError(t, err)
	_, err = f.engagement.ToggleLike(bg, own.ID, bystander.ID)
	require.NoError(t, err)
	_, err = f.engagement.AddComment(bg, theirs.ID, doomed.ID, "bye")
	require.NoError(t, err)
	_, err = f.publish.SaveDraft(bg, doomed.ID, DraftInput{Title: "unfinished"})
	require.NoError(t, err)

	assert.True(t, models.IsCode(f.user.DeleteUser(bg, bystander.ID, doomed.ID), models.CodeForbidden))
	assert.True(t, models.IsCode(f.user.DeleteUser(bg, admin.ID, admin.ID), models.CodeValidation))
	require.NoError(t, f.user.DeleteUser(bg, admin.ID, doomed.ID))

	_, err = f.user.GetUser(bg, doomed.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	assert.Zero(t, count(t, f.db, &models.Content{}, "author_id = ?", doomed.ID))
	assert.Zero(t, count(t, f.db, &models.Like{}, ""))
	assert.Zero(t, count(t, f.db, &models.Comment{}, ""))
	assert.Zero(t, count(t, f.db, &models.Draft{}, ""))
	assert.Zero(t, count(t, f.db, &models.Follower{}, ""))
	assert.Zero(t, count(t, f.db, &models.Following{}, ""))
	assert.Zero(t, count(t, f.db, &models.Notification{}, "recipient_id = ? OR from_user_id = ?", doomed.ID, doomed.ID))
	assert.EqualValues(t, 1, count(t, f.db, &models.Content{}, "id = ?", theirs.ID))
	assert.Empty(t, storedFiles(t, f))

	assert.True(t, models.IsCode(f.user.DeleteUser(bg, admin.ID, doomed.ID), models.CodeNotFound))
}
