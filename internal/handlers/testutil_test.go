package handlers

import (
	"bytes"
	"context"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/opendrive/server/internal/config"
	"github.com/opendrive/server/internal/database"
	"github.com/opendrive/server/internal/middleware"
	"github.com/opendrive/server/internal/models"
	"github.com/opendrive/server/internal/services"
	"github.com/opendrive/server/internal/storage"
	"github.com/opendrive/server/pkg/logger"
	"github.com/opendrive/server/pkg/utils"
	"gorm.io/gorm"
)

const testCookieName = "opendrive_session"

type testEnv struct {
	app     *fiber.App
	db      *gorm.DB
	drive   *storage.LocalDrive
	folders *services.FolderService
	replica *recordingReplica
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.SetOutput(io.Discard)
		utils.ConfigureSession("test-secret", 24)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	drive, err := storage.NewLocalDrive(filepath.Join(t.TempDir(), "drive"))
	if err != nil {
		t.Fatalf("failed creating drive: %v", err)
	}

	replica := &recordingReplica{}
	userService := services.NewUserService(db)
	folderService := services.NewFolderService(db, drive)
	accessService := services.NewAccessService(folderService, drive.Root())

	sessions := middleware.NewSessionMiddleware(config.SessionConfig{CookieName: testCookieName})
	authHandler := NewAuthHandler(userService, accessService, sessions)
	driveHandler := NewDriveHandler(folderService, accessService, drive, replica, sessions)

	app := NewApp(10, sessions, authHandler, driveHandler)

	return &testEnv{app: app, db: db, drive: drive, folders: folderService, replica: replica}
}

// recordingReplica remembers what would have been sent to object storage.
type recordingReplica struct {
	mu       sync.Mutex
	uploads  map[string]string
	deleted  []string
	prefixes []string
}

func (r *recordingReplica) Upload(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) error {
	content, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.uploads == nil {
		r.uploads = map[string]string{}
	}
	r.uploads[objectName] = string(content)
	return nil
}

func (r *recordingReplica) Delete(_ context.Context, objectName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, objectName)
	return nil
}

func (r *recordingReplica) DeletePrefix(_ context.Context, prefix string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes = append(r.prefixes, prefix)
	return nil
}

// browser sends requests with the session cookie the server last handed out.
type browser struct {
	t      *testing.T
	app    *fiber.App
	cookie string
}

func newBrowser(t *testing.T, env *testEnv) *browser {
	return &browser{t: t, app: env.app}
}

func (b *browser) do(req *http.Request) *http.Response {
	b.t.Helper()

	if b.cookie != "" {
		req.AddCookie(&http.Cookie{Name: testCookieName, Value: b.cookie})
	}

	resp, err := b.app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		b.t.Fatalf("request %s %s failed: %v", req.Method, req.URL.Path, err)
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == testCookieName {
			b.cookie = cookie.Value
		}
	}
	return resp
}

func (b *browser) get(path string) *http.Response {
	b.t.Helper()
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) postForm(path string, values url.Values) *http.Response {
	b.t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

// upload posts files (name to content) in the multipart "files" field.
func (b *browser) upload(files map[string]string) *http.Response {
	b.t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, content := range files {
		part, err := writer.CreateFormFile("files", name)
		if err != nil {
			b.t.Fatalf("failed creating multipart part: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			b.t.Fatalf("failed writing multipart part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		b.t.Fatalf("failed closing multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return b.do(req)
}

func signup(t *testing.T, env *testEnv, username, email, password string) {
	t.Helper()

	resp := newBrowser(t, env).postForm("/signup", url.Values{
		"username":         {username},
		"email":            {email},
		"password":         {password},
		"confirm_password": {password},
	})
	assertRedirect(t, resp, http.StatusSeeOther, "/")
}

// loggedIn signs a user up, logs them in and opens their root folder.
func loggedIn(t *testing.T, env *testEnv, username string) *browser {
	t.Helper()

	signup(t, env, username, username+"@example.com", "pw-"+username)

	b := newBrowser(t, env)
	resp := b.postForm("/login", url.Values{
		"username": {username},
		"password": {"pw-" + username},
	})
	assertRedirect(t, resp, http.StatusSeeOther, "/"+username+"/root")
	if b.cookie == "" {
		t.Fatalf("expected a session cookie after login")
	}

	assertStatus(t, b.get("/"+username+"/root"), http.StatusOK)
	return b
}

func rootFolder(t *testing.T, env *testEnv, username string) *models.Folder {
	t.Helper()
	folder, err := env.folders.GetFolderByName(context.Background(), username, username)
	if err != nil {
		t.Fatalf("failed loading root folder of %s: %v", username, err)
	}
	return folder
}

func folderNamed(t *testing.T, env *testEnv, name string) *models.Folder {
	t.Helper()
	var folder models.Folder
	if err := env.db.Where("name = ?", name).First(&folder).Error; err != nil {
		t.Fatalf("failed loading folder %q: %v", name, err)
	}
	return &folder
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}
	return string(raw)
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertRedirect(t *testing.T, resp *http.Response, status int, location string) {
	t.Helper()
	assertStatus(t, resp, status)
	if got := resp.Header.Get("Location"); got != location {
		t.Fatalf("expected redirect to %q, got %q", location, got)
	}
}

func assertFileContent(t *testing.T, path, expected string) {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected file %s: %v", path, err)
	}
	if string(content) != expected {
		t.Fatalf("expected %s to contain %q, got %q", path, expected, string(content))
	}
}
