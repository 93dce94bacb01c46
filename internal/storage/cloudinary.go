package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type uploaderAPI interface {
	Upload(ctx context.Context, file interface{}, uploadParams uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

// CloudinaryStore keeps objects in a Cloudinary folder, keyed by content hash.
type CloudinaryStore struct {
	api    uploaderAPI
	folder string
}

// NewCloudinaryStore connects with a cloudinary:// URL.
func NewCloudinaryStore(cloudinaryURL, folder string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("cloudinary configuration error: %w", err)
	}
	return &CloudinaryStore{api: &cld.Upload, folder: strings.Trim(folder, "/")}, nil
}

func (s *CloudinaryStore) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	resourceType := "image"
	if strings.HasPrefix(contentType, "video/") {
		resourceType = "video"
	}
	res, err := s.api.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     contentHash(data),
		ResourceType: resourceType,
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload: %s", res.Error.Message)
	}
	return res.SecureURL, nil
}

func (s *CloudinaryStore) Delete(ctx context.Context, rawURL string) error {
	publicID, resourceType, err := parseCloudinaryURL(rawURL)
	if err != nil {
		return err
	}
	res, err := s.api.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
	})
	if err != nil {
		return fmt.Errorf("cloudinary destroy: %w", err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("cloudinary destroy: %s", res.Error.Message)
	}
	if res.Result != "ok" && res.Result != "not found" {
		return fmt.Errorf("cloudinary destroy: unexpected result %q", res.Result)
	}
	return nil
}

// parseCloudinaryURL turns
// https://res.cloudinary.com/<cloud>/<type>/upload/v123/<folder>/<id>.<ext>
// into ("<folder>/<id>", "<type>").
func parseCloudinaryURL(rawURL string) (publicID, resourceType string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	idx := -1
	for i, p := range parts {
		if p == "upload" {
			idx = i
			break
		}
	}
	if idx < 1 || idx+1 >= len(parts) {
		return "", "", ErrForeignURL
	}
	resourceType = parts[idx-1]
	rest := parts[idx+1:]
	if len(rest) > 1 && strings.HasPrefix(rest[0], "v") && isDigits(rest[0][1:]) {
		rest = rest[1:]
	}
	id := strings.Join(rest, "/")
	id = strings.TrimSuffix(id, path.Ext(id))
	if id == "" {
		return "", "", errors.New("empty cloudinary public id")
	}
	return id, resourceType, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
