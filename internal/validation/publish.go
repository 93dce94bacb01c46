package validation

import (
	"strings"

	"localpulse/internal/models"
)

// PublishInput is the field snapshot checked before a draft may go live.
// The Has* flags are true when either a stored URL or a new upload is present.
type PublishInput struct {
	Type         models.ContentType
	Title        string
	Body         string
	Category     string
	HasThumbnail bool
	HasVideo     bool
	HasFrame     bool
}

// ValidatePublish reports the first missing field as a validation error.
func ValidatePublish(in PublishInput) error {
	if !in.Type.Valid() {
		return models.NewValidationError("Content type must be post or video")
	}
	if strings.TrimSpace(in.Title) == "" {
		return models.NewValidationError("Title is required")
	}
	if strings.TrimSpace(in.Category) == "" {
		return models.NewValidationError("Category is required")
	}
	if StripTags(in.Body) == "" {
		return models.NewValidationError("Body cannot be empty")
	}
	if !in.HasThumbnail {
		return models.NewValidationError("A thumbnail image is required")
	}
	if in.Type == models.ContentTypeVideo {
		if !in.HasFrame {
			return models.NewValidationError("A video frame image is required")
		}
		if !in.HasVideo {
			return models.NewValidationError("A video file is required")
		}
	}
	return nil
}

// ValidateCommentText trims and bounds comment and reply text.
func ValidateCommentText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", models.NewValidationError("Comment cannot be empty")
	}
	if len([]rune(text)) > MaxCommentRunes {
		return "", models.NewValidationError("Comment is too long")
	}
	return text, nil
}

// MaxCommentRunes bounds comment and reply length.
const MaxCommentRunes = 2000
