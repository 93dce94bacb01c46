package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"localpulse/internal/config"
	"localpulse/internal/middleware"
	"localpulse/internal/models"
	"localpulse/internal/moderation"
	"localpulse/internal/storage"
	"localpulse/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

type testEnv struct {
	t       *testing.T
	db      *gorm.DB
	srv     *Server
	app     *fiber.App
	objects *storage.LocalStore
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:           testSecret,
		Env:                 "test",
		Port:                "0",
		BatchMaxOps:         500,
		FanOutChunkSize:     100,
		FanOutConcurrency:   2,
		FeedPageSize:        50,
		FeedSectionCap:      8,
		FeedCategories:      "Politics,Sports,Health",
		ModerationTimeout:   time.Second,
		ModerationExcerptLn: 200,
		MediaBaseURL:        "/media",
		MaxUploadSizeMB:     1,
	}
}

func newTestEnv(t *testing.T, classifier moderation.Classifier) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	objects, err := storage.NewLocalStore(t.TempDir(), "/media")
	require.NoError(t, err)

	srv, err := NewServerWithDeps(testConfig(), Deps{DB: db, Objects: objects, Classifier: classifier})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.broker.Close() })

	return &testEnv{t: t, db: db, srv: srv, app: srv.App(), objects: objects}
}

func (e *testEnv) token(userID uint) string {
	e.t.Helper()
	token, err := middleware.IssueToken(userID, time.Hour)
	require.NoError(e.t, err)
	return token
}

// do sends a JSON request as userID (0 for anonymous) and decodes the JSON
// response into out when out is non-nil.
func (e *testEnv) do(method, path string, userID uint, body interface{}, out interface{}) int {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+e.token(userID))
	}
	return e.send(req, out)
}

func (e *testEnv) send(req *http.Request, out interface{}) int {
	e.t.Helper()
	resp, err := e.app.Test(req, 5000)
	require.NoError(e.t, err)
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		raw, err := io.ReadAll(resp.Body)
		require.NoError(e.t, err)
		if len(raw) > 0 {
			require.NoError(e.t, json.Unmarshal(raw, out), string(raw))
		}
	}
	return resp.StatusCode
}

// multipartRequest builds a multipart POST with the given file fields.
func (e *testEnv) multipartRequest(path string, userID uint, files map[string][]byte) *http.Request {
	e.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for field, data := range files {
		part, err := w.CreateFormFile(field, field+".bin")
		require.NoError(e.t, err)
		_, err = part.Write(data)
		require.NoError(e.t, err)
	}
	require.NoError(e.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+e.token(userID))
	return req
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, nil)

	var body map[string]interface{}
	status := env.do(http.MethodGet, "/health", 0, nil, &body)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "healthy", checks["database"])
	assert.Equal(t, "disabled", checks["redis"])
}

func TestAdminRequired(t *testing.T) {
	env := newTestEnv(t, nil)
	user := testutil.CreateUser(t, env.db, "reader")
	admin := testutil.CreateUser(t, env.db, "editor", testutil.AsAdmin)

	var errBody models.ErrorResponse
	status := env.do(http.MethodGet, "/api/admin/fanouts", user.ID, nil, &errBody)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, models.CodeForbidden, errBody.Code)

	status = env.do(http.MethodGet, "/api/admin/fanouts", 0, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	var pending struct {
		ContentIDs []uint `json:"content_ids"`
	}
	status = env.do(http.MethodGet, "/api/admin/fanouts", admin.ID, nil, &pending)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, pending.ContentIDs)
}

func TestInvalidRouteParams(t *testing.T) {
	env := newTestEnv(t, nil)
	user := testutil.CreateUser(t, env.db, "reader")

	var errBody models.ErrorResponse
	status := env.do(http.MethodPost, "/api/contents/abc/like", user.ID, nil, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid ID", errBody.Error)

	status = env.do(http.MethodPut, "/api/comments/0", user.ID, map[string]string{"text": "x"}, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid comment ID", errBody.Error)
}
