package models

import "time"

// Follower is the membership record stored under the followed user:
// users/{UserID}/followers/{FollowerID}.
type Follower struct {
	UserID     uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	FollowerID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"follower_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Following is the mirrored record stored under the follower:
// users/{UserID}/following/{FollowingID}.
type Following struct {
	UserID      uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	FollowingID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"following_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Following) TableName() string {
	return "following"
}

// Like is a membership record: its existence is the like.
type Like struct {
	ContentID uint      `gorm:"primaryKey;autoIncrement:false" json:"content_id"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
