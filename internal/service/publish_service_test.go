package service

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"localpulse/internal/models"
	"localpulse/internal/moderation"
	"localpulse/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
	mp4Bytes = append([]byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00isomiso2"), make([]byte, 64)...)
)

func storedFiles(t *testing.T, f *fixture) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(f.objects.Dir(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	require.NoError(t, err)
	return files
}

func completeDraft(in DraftInput) DraftInput {
	if in.Title == "" {
		in.Title = "Bridge reopens"
	}
	if in.Body == "" {
		in.Body = "<p>The bridge over the Ganga reopened today.</p>"
	}
	if in.Category == "" {
		in.Category = "Politics"
	}
	return in
}

func TestPublishService_DraftAutosaveAndOwnership(t *testing.T) {
	f := newFixture(t)
	owner := testutil.CreateUser(t, f.db, "owner")
	other := testutil.CreateUser(t, f.db, "other")

	draft, err := f.publish.SaveDraft(bg, owner.ID, DraftInput{Title: "First"})
	require.NoError(t, err)
	assert.NotEmpty(t, draft.ID)
	assert.Equal(t, models.ContentTypePost, draft.Type)

	draft, err = f.publish.SaveDraft(bg, owner.ID, DraftInput{ID: draft.ID, Title: "Second", Body: "text"})
	require.NoError(t, err)
	assert.Equal(t, "Second", draft.Title)

	list, err := f.publish.ListDrafts(bg, owner.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.publish.SaveDraft(bg, other.ID, DraftInput{ID: draft.ID, Title: "Stolen"})
	assert.True(t, models.IsCode(err, models.CodeForbidden))
	_, err = f.publish.GetDraft(bg, other.ID, draft.ID)
	assert.True(t, models.IsCode(err, models.CodeForbidden))
	_, err = f.publish.SaveDraft(bg, owner.ID, DraftInput{Type: "podcast"})
	assert.True(t, models.IsCode(err, models.CodeValidation))

	require.NoError(t, f.publish.DeleteDraft(bg, owner.ID, draft.ID))
	_, err = f.publish.GetDraft(bg, owner.ID, draft.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPublishService_EmptyTitleRejectedBeforeAnyWrite(t *testing.T) {
	f := newFixture(t)
	owner := testutil.CreateUser(t, f.db, "owner")
	draft, err := f.publish.SaveDraft(bg, owner.ID, DraftInput{Body: "<p>body</p>", Category: "Sports"})
	require.NoError(t, err)

	_, err = f.publish.Publish(bg, owner.ID, draft.ID, PublishUploads{Thumbnail: pngBytes})
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeValidation))
	assert.Zero(t, count(t, f.db, &models.Content{}, ""))
	assert.Empty(t, storedFiles(t, f), "no asset uploaded for a rejected publish")

	_, err = f.publish.GetDraft(bg, owner.ID, draft.ID)
	assert.NoError(t, err, "draft survives a failed publish")
}

func TestPublishService_ValidationRules(t *testing.T) {
	f := newFixture(t)
	owner := testutil.CreateUser(t, f.db, "owner")

	cases := []struct {
		name    string
		in      DraftInput
		uploads PublishUploads
	}{
		{"markup only body", DraftInput{Title: "T", Body: "<p> </p><br/>", Category: "Sports", ThumbnailURL: "/media/a.png"}, PublishUploads{}},
		{"missing category", DraftInput{Title: "T", Body: "text", Category: " ", ThumbnailURL: "/media/a.png"}, PublishUploads{}},
		{"missing thumbnail", DraftInput{Title: "T", Body: "text", Category: "Sports"}, PublishUploads{}},
		{"video without frame", DraftInput{Type: models.ContentTypeVideo, Title: "T", Body: "text", Category: "Sports", ThumbnailURL: "/media/a.png", VideoURL: "/media/v.mp4"}, PublishUploads{}},
		{"video without video", DraftInput{Type: models.ContentTypeVideo, Title: "T", Body: "text", Category: "Sports", ThumbnailURL: "/media/a.png"}, PublishUploads{Frame: pngBytes}},
		{"thumbnail is not an image", DraftInput{Title: "T", Body: "text", Category: "Sports"}, PublishUploads{Thumbnail: mp4Bytes}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			draft, err := f.publish.SaveDraft(bg, owner.ID, tc.in)
			require.NoError(t, err)
			_, err = f.publish.Publish(bg, owner.ID, draft.ID, tc.uploads)
			assert.True(t, models.IsCode(err, models.CodeValidation), "got %v", err)
		})
	}
	assert.Zero(t, count(t, f.db, &models.Content{}, ""))
}

func TestPublishService_PublishOnce(t *testing.T) {
	f := newFixture(t)
	owner := testutil.CreateUser(t, f.db, "owner")
	follower := testutil.CreateUser(t, f.db, "follower")
	_, err := f.graph.ToggleFollow(bg, follower.ID, owner.ID)
	require.NoError(t, err)

	draft, err := f.publish.SaveDraft(bg, owner.ID, completeDraft(DraftInput{
		Geography: models.Geography{State: "Bihar", District: "Patna"},
	}))
	require.NoError(t, err)

	res, err := f.publish.Publish(bg, owner.ID, draft.ID, PublishUploads{Thumbnail: pngBytes})
	require.NoError(t, err)
	require.NotNil(t, res.Content)
	assert.Equal(t, "Bridge reopens", res.Content.Title)
	assert.Equal(t, "owner", res.Content.Author.Username)
	assert.Contains(t, res.Content.ThumbnailURL, "/media/")
	assert.Equal(t, 1, res.FanOut.Delivered)
	assert.Len(t, storedFiles(t, f), 1)

	_, err = f.publish.GetDraft(bg, owner.ID, draft.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound), "draft removed after publish")

	var note models.Notification
	require.NoError(t, f.db.Where("recipient_id = ? AND type = ?", follower.ID, models.NotificationNewPost).First(&note).Error)
	assert.Equal(t, "Bridge reopens", note.ContentTitle)

	_, err = f.publish.Publish(bg, owner.ID, draft.ID, PublishUploads{})
	assert.True(t, models.IsCode(err, models.CodeConflict))
	assert.EqualValues(t, 1, count(t, f.db, &models.Content{}, ""))
}

func TestPublishService_DraftDeleteFailureStillBlocksRepublish(t *testing.T) {
	f := newFixture(t)
	owner := testutil.CreateUser(t, f.db, "owner")
	draft, err := f.publish.SaveDraft(bg, owner.ID, completeDraft(DraftInput{ThumbnailURL: "/media/existing.png"}))
	require.NoError(t, err)
	rejectDeletes(t, f.db, "drafts")

	res, err := f.publish.Publish(bg, owner.ID, draft.ID, PublishUploads{})
	require.NoError(t, err, "draft cleanup is best effort")
	assert.Equal(t, "/media/existing.png", res.Content.ThumbnailURL)

	_, err = f.publish.GetDraft(bg, owner.ID, draft.ID)
	require.NoError(t, err, "draft is still there")

	_, err = f.publish.Publish(bg, owner.ID, draft.ID, PublishUploads{})
	assert.True(t, models.IsCode(err, models.CodeConflict))
	assert.EqualValues(t, 1, count(t, f.db, &models.Content{}, ""))
}

func TestPublishService_Moderation(t *testing.T) {
	t.Run("unsafe blocks", func(t *testing.T) {
		f := newFixture(t, withClassifier(moderation.ClassifierFunc(func(context.Context, string, string) (moderation.Verdict, error) {
			return moderation.VerdictUnsafe, nil
		})))
		owner := testutil.CreateUser(t, f.db, "owner")
		draft, err := f.publish.SaveDraft(bg, owner.ID, completeDraft(DraftInput{}))
		require.NoError(t, err)

		_, err = f.publish.Publish(bg, owner.ID, draft.ID, PublishUploads{Thumbnail: pngBytes})
		assert.True(t, models.IsCode(err, models.CodePolicyViolation))
		assert.Zero(t, count(t, f.db, &models.Content{}, ""))
		assert.Empty(t, storedFiles(t, f))
	})

	t.Run("unavailable fails open", func(t *testing.T) {
		f := newFixture(t, withClassifier(moderation.ClassifierFunc(func(context.Context, string, string) (moderation.Verdict, error) {
			return "", errors.New("connection refused")
		})))
		owner := testutil.CreateUser(t, f.db, "owner")
		draft, err := f.publish.SaveDraft(bg, owner.ID, completeDraft(DraftInput{}))
		require.NoError(t, err)

		_, err = f.publish.Publish(bg, owner.ID, draft.ID, PublishUploads{Thumbnail: pngBytes})
		require.NoError(t, err)
		assert.EqualValues(t, 1, count(t, f.db, &models.Content{}, ""))
	})
}

func TestPublishService_VideoUploadsAndCleanup(t *testing.T) {
	f := newFixture(t)
	owner := testutil.CreateUser(t, f.db, "owner")

	draft, err := f.publish.SaveDraft(bg, owner.ID, completeDraft(DraftInput{Type: models.ContentTypeVideo}))
	require.NoError(t, err)
	rejectCreates(t, f.db, "contents", func(*gorm.DB) bool { return true })

	_, err = f.publish.Publish(bg, owner.ID, draft.ID, PublishUploads{Thumbnail: pngBytes, Frame: pngBytes, Video: mp4Bytes})
	assert.True(t, models.IsCode(err, models.CodeRetryable))
	assert.Empty(t, storedFiles(t, f), "uploads removed when the content write fails")

	require.NoError(t, f.db.Callback().Create().Remove("test:reject_contents"))
	res, err := f.publish.Publish(bg, owner.ID, draft.ID, PublishUploads{Thumbnail: pngBytes, Frame: pngBytes, Video: mp4Bytes})
	require.NoError(t, err)
	assert.Equal(t, models.ContentTypeVideo, res.Content.Type)
	assert.NotEmpty(t, res.Content.VideoURL)
	assert.Equal(t, res.Content.ThumbnailURL, res.Content.FrameURL, "identical bytes share one object")
}

func TestPublishService_UploadAsset(t *testing.T) {
	f := newFixture(t)

	url, err := f.publish.UploadAsset(bg, pngBytes)
	require.NoError(t, err)
	assert.Contains(t, url, ".png")

	url, err = f.publish.UploadAsset(bg, mp4Bytes)
	require.NoError(t, err)
	assert.Contains(t, url, ".mp4")

	_, err = f.publish.UploadAsset(bg, []byte("plain text"))
	assert.True(t, models.IsCode(err, models.CodeValidation))
}
