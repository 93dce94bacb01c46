package models

import (
	"time"
)

// ContentType distinguishes articles from short videos.
type ContentType string

const (
	ContentTypePost  ContentType = "post"
	ContentTypeVideo ContentType = "video"
)

// Valid reports whether t is a known content type.
func (t ContentType) Valid() bool {
	return t == ContentTypePost || t == ContentTypeVideo
}

// Content is a published post or video.
type Content struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	Type         ContentType `gorm:"type:varchar(10);not null;default:'post'" json:"type"`
	AuthorID     uint        `gorm:"not null;index" json:"author_id"`
	Author       User        `gorm:"foreignKey:AuthorID" json:"author"`
	Title        string      `gorm:"not null" json:"title"`
	Body         string      `gorm:"type:text;not null" json:"body"`
	Category     string      `gorm:"index;not null" json:"category"`
	Geography    Geography   `gorm:"embedded;embeddedPrefix:geo_" json:"geography"`
	ThumbnailURL string      `json:"thumbnail_url"`
	VideoURL     string      `json:"video_url,omitempty"`
	FrameURL     string      `json:"frame_url,omitempty"`
	ViewCount    int64       `gorm:"not null;default:0" json:"view_count"`
	ShareCount   int64       `gorm:"not null;default:0" json:"share_count"`
	// SourceDraftID is unique so a draft can be published at most once.
	SourceDraftID *string `gorm:"uniqueIndex;type:varchar(36)" json:"-"`
	// LikesCount is not persisted; computed from the likes membership set
	LikesCount int64 `gorm:"->;-:migration" json:"likes_count"`
	// CommentsCount is not persisted; computed at query time
	CommentsCount int64 `gorm:"->;-:migration" json:"comments_count"`
	// Liked indicates whether the current requesting user liked this item (computed)
	Liked     bool      `gorm:"->;-:migration" json:"liked"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Content) TableName() string {
	return "contents"
}

// AssetURLs lists every object-storage URL the item references.
func (c *Content) AssetURLs() []string {
	var urls []string
	for _, u := range []string{c.ThumbnailURL, c.VideoURL, c.FrameURL} {
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// Report is a user complaint about a content item.
type Report struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ContentID  uint      `gorm:"not null;index" json:"content_id"`
	ReporterID uint      `gorm:"not null;index" json:"reporter_id"`
	Reason     string    `gorm:"type:text" json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}
