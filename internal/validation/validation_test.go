package validation

import (
	"strings"
	"testing"

	"localpulse/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestStripTags(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Plain", "hello world", "hello world"},
		{"Paragraphs", "<p>Flood</p><p>warning</p>", "Flood warning"},
		{"Empty Markup", "<p><br></p>", ""},
		{"Nbsp Only", "<p>&nbsp;</p>", ""},
		{"Script Dropped", "<script>alert(1)</script>news", "news"},
		{"Entities", "Tom &amp; Jerry", "Tom & Jerry"},
		{"Self Closing", "line<br/>break", "line break"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripTags(tt.in))
		})
	}
}

func TestExcerpt(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "abc", Excerpt("abc", 10))
	assert.Equal(t, "नम", Excerpt("नमस्ते", 2))
	assert.Equal(t, "abc", Excerpt("abc", 0))
}

func TestValidatePublish(t *testing.T) {
	t.Parallel()
	valid := PublishInput{
		Type: models.ContentTypePost, Title: "Title", Body: "<p>Body</p>", Category: "Sports", HasThumbnail: true,
	}
	tests := []struct {
		name    string
		mutate  func(*PublishInput)
		wantErr string
	}{
		{"Valid Post", func(*PublishInput) {}, ""},
		{"Bad Type", func(in *PublishInput) { in.Type = "story" }, "Content type"},
		{"Empty Title", func(in *PublishInput) { in.Title = "  " }, "Title"},
		{"Missing Category", func(in *PublishInput) { in.Category = "" }, "Category"},
		{"Markup Only Body", func(in *PublishInput) { in.Body = "<p> </p>" }, "Body"},
		{"Missing Thumbnail", func(in *PublishInput) { in.HasThumbnail = false }, "thumbnail"},
		{"Video Without Frame", func(in *PublishInput) {
			in.Type = models.ContentTypeVideo
			in.HasVideo = true
		}, "frame"},
		{"Video Without File", func(in *PublishInput) {
			in.Type = models.ContentTypeVideo
			in.HasFrame = true
		}, "video file"},
		{"Valid Video", func(in *PublishInput) {
			in.Type = models.ContentTypeVideo
			in.HasFrame = true
			in.HasVideo = true
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			err := ValidatePublish(in)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.True(t, models.IsCode(err, models.CodeValidation))
			}
		})
	}
}

func TestValidateCommentText(t *testing.T) {
	t.Parallel()
	text, err := ValidateCommentText("  hi  ")
	assert.NoError(t, err)
	assert.Equal(t, "hi", text)

	_, err = ValidateCommentText("   ")
	assert.Error(t, err)

	_, err = ValidateCommentText(strings.Repeat("x", MaxCommentRunes+1))
	assert.Error(t, err)
}
