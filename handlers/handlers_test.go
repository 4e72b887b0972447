package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"mediadrop/albums"
	"mediadrop/auth"
	"mediadrop/db"
	"mediadrop/directory"
	"mediadrop/models"
	"mediadrop/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const adminToken = "secret"

type testAdmin struct {
	engine   *gin.Engine
	db       *gorm.DB
	registry *storage.Registry
}

func newTestAdmin(t *testing.T) *testAdmin {
	t.Helper()
	gin.SetMode(gin.TestMode)
	instance, err := db.Open("", filepath.Join(t.TempDir(), "test.db"), false)
	if err != nil {
		t.Fatal(err)
	}
	if err = models.Migrate(instance); err != nil {
		t.Fatal(err)
	}
	log := zap.NewNop()
	registry := storage.NewRegistry(log)
	admin := &Admin{
		DB:       instance,
		Albums:   albums.NewService(instance, nil, directory.NewProvisioner(instance, true, log), log),
		Storages: registry,
		Log:      log,
	}
	engine := gin.New()
	admin.Register(&auth.Router{Base: engine, Token: adminToken})
	return &testAdmin{engine: engine, db: instance, registry: registry}
}

func (a *testAdmin) request(method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("bad json %q: %v", w.Body.String(), err)
	}
	return v
}

func TestAdmin_RequiresToken(t *testing.T) {
	a := newTestAdmin(t)
	for _, header := range []string{"", "Bearer wrong", adminToken} {
		req := httptest.NewRequest(http.MethodGet, "/admin/album/list", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		a.engine.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("Authorization %q: status = %d", header, w.Code)
		}
	}
}

func TestAlbumCreate(t *testing.T) {
	a := newTestAdmin(t)
	tests := []struct {
		name string
		body map[string]interface{}
		want int
	}{
		{"defaults", map[string]interface{}{"name": "Wedding", "base_path": "wedding", "category_tree": "media_directories"}, http.StatusOK},
		{"missing name", map[string]interface{}{"base_path": "wedding"}, http.StatusBadRequest},
		{"escaping path", map[string]interface{}{"name": "X", "base_path": "../x"}, http.StatusBadRequest},
		{"unknown bucket", map[string]interface{}{"name": "X", "base_path": "x", "bucket_id": 42}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.request(http.MethodPost, "/admin/album/create", tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.want, w.Body)
			}
			if w.Code != http.StatusOK {
				return
			}
			album := decode[models.Album](t, w)
			if !album.Active || !album.UploadsEnabled || album.NotificationsEnabled {
				t.Errorf("flags = %+v", album)
			}
			if album.Token == "" || album.RootNodeID == nil {
				t.Errorf("token %q, root %v", album.Token, album.RootNodeID)
			}
		})
	}
}

func TestAlbumSaveAndRotate(t *testing.T) {
	a := newTestAdmin(t)
	created := decode[models.Album](t, a.request(http.MethodPost, "/admin/album/create",
		map[string]interface{}{"name": "Party", "base_path": "party", "uploads_enabled": false}))
	if created.UploadsEnabled {
		t.Fatal("uploads_enabled=false ignored")
	}

	w := a.request(http.MethodPut, "/admin/album/save", map[string]interface{}{
		"id": created.ID, "name": "Party 2026", "base_path": "party", "notifications_enabled": true,
	})
	saved := decode[models.Album](t, w)
	if w.Code != http.StatusOK || saved.Name != "Party 2026" || saved.Token != created.Token {
		t.Fatalf("save = %d %+v", w.Code, saved)
	}
	if !saved.NotificationsEnabled || !saved.Active || saved.UploadsEnabled {
		t.Errorf("flags not merged: %+v", saved)
	}
	if w = a.request(http.MethodPut, "/admin/album/save", map[string]interface{}{"id": 999, "name": "x", "base_path": "x"}); w.Code != http.StatusNotFound {
		t.Errorf("missing album status = %d", w.Code)
	}

	w = a.request(http.MethodPost, "/admin/album/rotate-token?id="+strconv.FormatUint(created.ID, 10), nil)
	rotated := decode[map[string]string](t, w)
	if rotated["token"] == "" || rotated["token"] == created.Token {
		t.Errorf("rotate = %s", w.Body)
	}
	if w = a.request(http.MethodPost, "/admin/album/rotate-token?id=abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", w.Code)
	}
}

func TestAlbumList_ETag(t *testing.T) {
	a := newTestAdmin(t)
	a.request(http.MethodPost, "/admin/album/create", map[string]interface{}{"name": "A", "base_path": "a"})
	w := a.request(http.MethodGet, "/admin/album/list", nil)
	if w.Code != http.StatusOK || len(decode[[]models.Album](t, w)) != 1 {
		t.Fatalf("list = %d %s", w.Code, w.Body)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("no ETag")
	}
	if w = a.request(http.MethodGet, "/admin/album/list", nil, "If-None-Match", etag); w.Code != http.StatusNotModified {
		t.Errorf("status with current ETag = %d", w.Code)
	}
}

func TestMimeSave(t *testing.T) {
	a := newTestAdmin(t)
	w := a.request(http.MethodPut, "/admin/mime/save", map[string]interface{}{
		"pattern": " Application/PDF ", "media_type": "document", "weight": -1, "enabled": true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("create = %d %s", w.Code, w.Body)
	}
	list := decode[[]models.MimeMapping](t, a.request(http.MethodGet, "/admin/mime/list", nil))
	if len(list) != len(models.DefaultMimeMappings())+1 || list[0].Pattern != "application/pdf" {
		t.Errorf("list = %+v", list)
	}

	tests := []struct {
		name string
		body map[string]interface{}
		want int
	}{
		{"bad pattern", map[string]interface{}{"pattern": "image/[", "media_type": "image"}, http.StatusBadRequest},
		{"no media type", map[string]interface{}{"pattern": "image/*"}, http.StatusBadRequest},
		{"unknown id", map[string]interface{}{"id": 999, "pattern": "image/*", "media_type": "image"}, http.StatusNotFound},
		{"disable existing", map[string]interface{}{"id": list[0].ID, "pattern": "application/pdf", "media_type": "document", "enabled": false}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := a.request(http.MethodPut, "/admin/mime/save", tt.body); w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body)
			}
		})
	}
	var pdf models.MimeMapping
	a.db.First(&pdf, list[0].ID)
	if pdf.Enabled {
		t.Error("mapping still enabled")
	}
}

func TestBucketSave(t *testing.T) {
	a := newTestAdmin(t)
	dir := t.TempDir()
	tests := []struct {
		name string
		body map[string]interface{}
		want int
	}{
		{"relative path", map[string]interface{}{"name": "local", "storage_type": 0, "path": "data"}, http.StatusBadRequest},
		{"no name", map[string]interface{}{"storage_type": 0, "path": dir}, http.StatusBadRequest},
		{"s3 without keys", map[string]interface{}{"name": "remote", "storage_type": 1}, http.StatusBadRequest},
		{"unknown type", map[string]interface{}{"name": "x", "storage_type": 7}, http.StatusBadRequest},
		{"disk", map[string]interface{}{"name": "local", "storage_type": 0, "path": dir}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := a.request(http.MethodPut, "/admin/bucket/save", tt.body); w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body)
			}
		})
	}

	w := a.request(http.MethodGet, "/admin/bucket/list", nil)
	buckets := decode[[]storage.Bucket](t, w)
	if len(buckets) != 1 || a.registry.StorageFrom(buckets[0].ID) == nil {
		t.Fatalf("buckets = %+v", buckets)
	}
	if strings.Contains(w.Body.String(), "auth_details") {
		t.Error("credentials leaked in listing")
	}
}
