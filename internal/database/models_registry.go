package database

import "localpulse/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Content{},
		&models.Follower{},
		&models.Following{},
		&models.Like{},
		&models.Comment{},
		&models.Reply{},
		&models.Notification{},
		&models.Broadcast{},
		&models.Draft{},
		&models.Report{},
	}
}
