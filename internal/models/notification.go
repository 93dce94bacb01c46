package models

import "time"

// NotificationType enumerates the events that produce a notification.
type NotificationType string

const (
	NotificationNewFollower NotificationType = "new_follower"
	NotificationNewLike     NotificationType = "new_like"
	NotificationNewComment  NotificationType = "new_comment"
	NotificationNewPost     NotificationType = "new_post"
	NotificationNewVideo    NotificationType = "new_video"
	NotificationBroadcast   NotificationType = "broadcast"
)

// Notification is a personal notification. It carries everything needed to
// render it without further lookups.
type Notification struct {
	ID            string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	RecipientID   uint             `gorm:"not null;index:idx_recipient_created,priority:1" json:"recipient_id"`
	Type          NotificationType `gorm:"type:varchar(20);not null" json:"type"`
	FromUserID    uint             `gorm:"not null" json:"from_user_id"`
	FromName      string           `json:"from_name"`
	FromUsername  string           `json:"from_username"`
	FromAvatarURL string           `json:"from_avatar_url"`
	ContentID     *uint            `gorm:"index" json:"content_id,omitempty"`
	ContentType   ContentType      `gorm:"type:varchar(10)" json:"content_type,omitempty"`
	ContentTitle  string           `json:"content_title,omitempty"`
	CommentText   string           `json:"comment_text,omitempty"`
	// DedupKey makes a notification write idempotent: one per post and
	// follower, one per follower pair, one per like.
	DedupKey  *string   `gorm:"uniqueIndex;type:varchar(80)" json:"-"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `gorm:"index:idx_recipient_created,priority:2" json:"created_at"`

	// Duplicate is set after a commit whose write hit an existing DedupKey.
	Duplicate bool `gorm:"-" json:"-"`
}

// Broadcast is a global notification visible to every user. Only admins can
// write or delete it and it always reads as read.
type Broadcast struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AuthorID  uint      `gorm:"not null" json:"author_id"`
	Title     string    `gorm:"not null" json:"title"`
	Body      string    `gorm:"type:text" json:"body"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// InboxItem is one row of a user's merged notification list.
type InboxItem struct {
	Notification
	Broadcast bool   `json:"broadcast"`
	Body      string `json:"body,omitempty"`
}
