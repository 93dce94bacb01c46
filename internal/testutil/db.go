// Package testutil provides shared test doubles and fixtures for tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"localpulse/internal/database"
	"localpulse/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Uint64

// NewDB opens a migrated, isolated in-memory SQLite database.
// The pool is pinned to one connection, so code running inside a
// transaction must only use the transaction handle.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_foreign_keys=0", name, dbSeq.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         database.NewGormLogger(nil, logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db
}

// CreateUser inserts a user with the given username.
func CreateUser(t testing.TB, db *gorm.DB, username string, opts ...func(*models.User)) *models.User {
	t.Helper()
	u := &models.User{
		Name:      strings.ToUpper(username[:1]) + username[1:],
		Username:  username,
		AvatarURL: "https://cdn.example.com/" + username + ".png",
		Role:      models.RoleUser,
	}
	for _, opt := range opts {
		opt(u)
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

// AsAdmin marks a fixture user as an admin.
func AsAdmin(u *models.User) { u.Role = models.RoleAdmin }

// WithPreferred sets a fixture user's preferred geography.
func WithPreferred(g models.Geography) func(*models.User) {
	return func(u *models.User) { u.Preferred = g }
}

// CreateContent inserts a published item authored by authorID.
func CreateContent(t testing.TB, db *gorm.DB, authorID uint, title string, opts ...func(*models.Content)) *models.Content {
	t.Helper()
	c := &models.Content{
		Type:         models.ContentTypePost,
		AuthorID:     authorID,
		Title:        title,
		Body:         "<p>" + title + " body</p>",
		Category:     "Sports",
		ThumbnailURL: "https://cdn.example.com/thumb.png",
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := db.Omit("Author").Create(c).Error; err != nil {
		t.Fatalf("create content %s: %v", title, err)
	}
	return c
}
