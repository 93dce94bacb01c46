package models

import "time"

// Draft is an unpublished snapshot owned by its author.
type Draft struct {
	ID           string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID      uint        `gorm:"not null;index" json:"owner_id"`
	Type         ContentType `gorm:"type:varchar(10);not null;default:'post'" json:"type"`
	Title        string      `json:"title"`
	Body         string      `gorm:"type:text" json:"body"`
	Category     string      `json:"category"`
	Geography    Geography   `gorm:"embedded;embeddedPrefix:geo_" json:"geography"`
	ThumbnailURL string      `json:"thumbnail_url"`
	VideoURL     string      `json:"video_url"`
	FrameURL     string      `json:"frame_url"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `gorm:"index" json:"updated_at"`
}
