// Package storage uploads media assets and removes them by URL.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"localpulse/internal/config"
	"localpulse/internal/models"
	"localpulse/internal/observability"

	"github.com/gabriel-vasile/mimetype"
)

// Kind narrows which media types an upload slot accepts.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// ErrForeignURL is returned when a URL does not belong to the store.
var ErrForeignURL = errors.New("url does not belong to this store")

// ObjectStore is a content-addressed blob store.
type ObjectStore interface {
	// Upload stores data and returns a retrievable URL. Identical bytes
	// map to the same object.
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
	// Delete removes the object behind url.
	Delete(ctx context.Context, url string) error
}

// New builds the store selected by cfg.
func New(cfg *config.Config) (ObjectStore, error) {
	switch cfg.StorageDriver {
	case "cloudinary":
		return NewCloudinaryStore(cfg.CloudinaryURL, cfg.CloudinaryDir)
	case "", "local":
		return NewLocalStore(cfg.UploadDir, cfg.MediaBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// Detect sniffs data and checks it against the slot's kind.
func Detect(data []byte, want Kind, maxBytes int64) (string, error) {
	if len(data) == 0 {
		return "", models.NewValidationError("No file uploaded")
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", maxBytes/(1024*1024)))
	}
	mt := mimetype.Detect(data)
	contentType := mt.String()
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	if !strings.HasPrefix(contentType, string(want)+"/") {
		return "", models.NewValidationError(fmt.Sprintf("Expected an %s file", want))
	}
	return contentType, nil
}

// Extension returns the canonical file extension for data, including the dot.
func Extension(data []byte) string {
	return mimetype.Detect(data).Extension()
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DeleteAll removes every URL best-effort. Failures are logged and counted,
// never returned, because the owning record is already gone.
func DeleteAll(ctx context.Context, store ObjectStore, urls []string) int {
	if store == nil {
		return 0
	}
	failed := 0
	for _, u := range urls {
		if u == "" {
			continue
		}
		if err := store.Delete(ctx, u); err != nil {
			failed++
			observability.AssetCleanupFailures.Inc()
			observability.LogPartialFailure(ctx, "asset_cleanup", err, map[string]interface{}{"url": u})
			continue
		}
		observability.Logger.DebugContext(ctx, "asset deleted", slog.String("url", u))
	}
	return failed
}
