package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"mediadrop/albums"
	"mediadrop/db"
	"mediadrop/directory"
	"mediadrop/models"
	"mediadrop/notify"
	"mediadrop/storage"
	"mediadrop/upload"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type countingNotifier struct {
	batches int
}

func (n *countingNotifier) NotifyBatch(context.Context, notify.Batch) error {
	n.batches++
	return nil
}

type testServer struct {
	engine   *gin.Engine
	db       *gorm.DB
	album    *models.Album
	notifier *countingNotifier
}

func newTestServer(t *testing.T) *testServer {
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
	bucket := storage.Bucket{Name: "local", StorageType: storage.StorageTypeFile, Path: t.TempDir()}
	if err = bucket.Create(instance); err != nil {
		t.Fatal(err)
	}
	registry, err := storage.LoadRegistry(instance, log)
	if err != nil {
		t.Fatal(err)
	}
	provisioner := directory.NewProvisioner(instance, true, log)
	albumService := albums.NewService(instance, nil, provisioner, log)
	notifier := &countingNotifier{}
	coordinator := upload.NewCoordinator(upload.Options{
		Storages:    registry,
		Mappings:    upload.NewMimeTable(instance),
		Writer:      upload.NewWriter(instance, 0, 32, log),
		Provisioner: provisioner,
		Recorder:    upload.NewRecorder(instance),
		Notifier:    notifier,
		Log:         log,
		FileTimeout: 10 * time.Second,
		FlushWindow: time.Minute,
	})

	album := &models.Album{
		Name:                 "Wedding",
		BucketID:             bucket.ID,
		BasePath:             "wedding",
		CategoryTree:         "media_directories",
		AutoOrganize:         true,
		Active:               true,
		UploadsEnabled:       true,
		NotificationsEnabled: true,
	}
	if err = albumService.Create(context.Background(), album); err != nil {
		t.Fatal(err)
	}

	engine := gin.New()
	engine.Use(sessions.Sessions("session", cookie.NewStore([]byte("test"))))
	h := &Handlers{Albums: albumService, Uploads: coordinator, Provisioner: provisioner, Log: log}
	h.Register(engine)
	return &testServer{engine: engine, db: instance, album: album, notifier: notifier}
}

type part struct {
	field, filename, contentType string
	content                      []byte
}

func multipartBody(t *testing.T, fields map[string]string, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+p.field+`"; filename="`+p.filename+`"`)
		h.Set("Content-Type", p.contentType)
		pw, err := w.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		pw.Write(p.content)
	}
	w.Close()
	return body, w.FormDataContentType()
}

func (s *testServer) do(req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) upload(t *testing.T, token string, cookies []*http.Cookie, fields map[string]string, parts ...part) *httptest.ResponseRecorder {
	body, contentType := multipartBody(t, fields, parts...)
	req := httptest.NewRequest(http.MethodPost, "/albums/"+token+"/upload", body)
	req.Header.Set("Content-Type", contentType)
	return s.do(req, cookies)
}

func (s *testServer) postForm(path string, values url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req, cookies)
}

type uploadResponse struct {
	Results []upload.Result `json:"results"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("bad json %q: %v", w.Body.String(), err)
	}
	return v
}

func pngImage(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 80, 40))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestUpload_AliceEndToEnd(t *testing.T) {
	s := newTestServer(t)
	w := s.upload(t, s.album.Token, nil, map[string]string{"contributor_name": "Alice"},
		part{"file", "photo.png", "image/png", bytes.Repeat([]byte{9}, 2048)})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	resp := decode[uploadResponse](t, w)
	if len(resp.Results) != 1 || !resp.Results[0].Success || resp.Results[0].Filename != "photo.png" {
		t.Fatalf("results = %+v", resp.Results)
	}
	var media models.Media
	s.db.First(&media, resp.Results[0].ObjectID)
	if media.Path != "wedding/alice/photo.png" {
		t.Errorf("path = %q", media.Path)
	}
	var node models.CategoryNode
	s.db.Where("parent_id = ? AND normalized_label = ?", *s.album.RootNodeID, "alice").First(&node)
	if node.ID == 0 || media.CategoryNodeID == nil || *media.CategoryNodeID != node.ID {
		t.Errorf("media not placed under the alice node: %v / %+v", media.CategoryNodeID, node)
	}
	var record models.UploadRecord
	s.db.Where("media_id = ?", media.ID).First(&record)
	if record.SessionID == "" || record.UserID != nil || record.UserName != "Alice" {
		t.Errorf("record = %+v", record)
	}
}

func TestUpload_RequestErrors(t *testing.T) {
	s := newTestServer(t)
	disabled := &models.Album{Name: "Closed", Token: models.NewAlbumToken(), BasePath: "closed", Active: true, UploadsEnabled: false}
	if err := s.db.Create(disabled).Error; err != nil {
		t.Fatal(err)
	}
	file := part{"file", "a.png", "image/png", []byte("x")}
	tests := []struct {
		name   string
		token  string
		fields map[string]string
		parts  []part
		want   int
	}{
		{"unknown token", "nope", map[string]string{"contributor_name": "A"}, []part{file}, http.StatusNotFound},
		{"uploads disabled", disabled.Token, map[string]string{"contributor_name": "A"}, []part{file}, http.StatusForbidden},
		{"no contributor", s.album.Token, nil, []part{file}, http.StatusBadRequest},
		{"no files", s.album.Token, map[string]string{"contributor_name": "A"}, nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := s.upload(t, tt.token, nil, tt.fields, tt.parts...); w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body)
			}
		})
	}
	var count int64
	s.db.Model(&models.Media{}).Count(&count)
	if count != 0 {
		t.Errorf("%d media created by failed requests", count)
	}
}

func TestUpload_MixedResults(t *testing.T) {
	s := newTestServer(t)
	w := s.upload(t, s.album.Token, nil, map[string]string{"contributor_name": "Bob", "sub_label": "Party"},
		part{"files", "one.png", "image/png", pngImage(t)},
		part{"files", "two.txt", "text/plain", []byte("hello")},
		part{"files", "three.mp4", "video/mp4", []byte("not really a video")},
	)
	resp := decode[uploadResponse](t, w)
	if len(resp.Results) != 3 {
		t.Fatalf("results = %+v", resp.Results)
	}
	if !resp.Results[0].Success || resp.Results[0].ThumbnailURL == "" {
		t.Errorf("first = %+v", resp.Results[0])
	}
	if resp.Results[1].Success || resp.Results[1].Code != upload.CodeUnsupportedType {
		t.Errorf("second = %+v", resp.Results[1])
	}
	if !resp.Results[2].Success {
		t.Errorf("third = %+v", resp.Results[2])
	}
}

func TestFolders_ListingIsIndependentOfCategories(t *testing.T) {
	s := newTestServer(t)
	w := s.postForm("/albums/"+s.album.Token+"/folders", url.Values{"contributor_name": {"Alice"}, "folder_name": {"Le Matin"}}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("create status = %d: %s", w.Code, w.Body)
	}
	created := decode[map[string]interface{}](t, w)
	if created["safe_folder_name"] != "le_matin" || created["node_id"] == nil {
		t.Errorf("create response = %v", created)
	}

	// Renaming the category does not rename the folder
	s.db.Model(&models.CategoryNode{}).Where("normalized_label = ?", "le_matin").
		Updates(map[string]interface{}{"label": "Morning", "normalized_label": "morning"})

	req := httptest.NewRequest(http.MethodGet, "/albums/"+s.album.Token+"/folders?contributor_name=Alice", nil)
	w = s.do(req, nil)
	listed := decode[struct {
		Folders []Folder `json:"folders"`
	}](t, w)
	if len(listed.Folders) != 1 || listed.Folders[0].SafeName != "le_matin" {
		t.Errorf("folders = %+v", listed.Folders)
	}

	req = httptest.NewRequest(http.MethodGet, "/albums/"+s.album.Token+"/folders", nil)
	if w = s.do(req, nil); !strings.Contains(w.Body.String(), `"folders":[]`) {
		t.Errorf("listing without a name = %s", w.Body)
	}
	if w = s.postForm("/albums/"+s.album.Token+"/folders", url.Values{"contributor_name": {"Alice"}}, nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing folder_name status = %d", w.Code)
	}
}

func TestMedia_OwnershipAcrossSessions(t *testing.T) {
	s := newTestServer(t)
	w := s.upload(t, s.album.Token, nil, map[string]string{"contributor_name": "Alice"},
		part{"file", "mine.png", "image/png", pngImage(t)})
	alice := w.Result().Cookies()
	id := decode[uploadResponse](t, w).Results[0].ObjectID
	mediaPath := "/albums/" + s.album.Token + "/media/" + strconv.FormatUint(id, 10)

	// Another browser
	w = s.do(httptest.NewRequest(http.MethodGet, "/albums/"+s.album.Token+"/media", nil), nil)
	mallory := w.Result().Cookies()
	if !strings.Contains(w.Body.String(), `"media":[]`) {
		t.Errorf("stranger sees %s", w.Body)
	}
	if w = s.do(httptest.NewRequest(http.MethodGet, mediaPath+"/thumb", nil), mallory); w.Code != http.StatusNotFound {
		t.Errorf("stranger thumb status = %d", w.Code)
	}
	if w = s.do(httptest.NewRequest(http.MethodDelete, mediaPath, nil), mallory); w.Code != http.StatusForbidden {
		t.Errorf("stranger delete status = %d", w.Code)
	}

	w = s.do(httptest.NewRequest(http.MethodGet, "/albums/"+s.album.Token+"/media", nil), alice)
	listed := decode[struct {
		Media []MediaInfo `json:"media"`
	}](t, w)
	if len(listed.Media) != 1 || listed.Media[0].ID != id || listed.Media[0].Thumbnail == "" {
		t.Fatalf("owner sees %+v", listed.Media)
	}
	w = s.do(httptest.NewRequest(http.MethodGet, mediaPath+"/thumb", nil), alice)
	if w.Code != http.StatusOK || w.Header().Get("Cache-Control") != "private, max-age=3600" {
		t.Errorf("thumb status = %d, cache = %q", w.Code, w.Header().Get("Cache-Control"))
	}
	if w = s.do(httptest.NewRequest(http.MethodDelete, mediaPath, nil), alice); w.Code != http.StatusOK {
		t.Errorf("owner delete status = %d: %s", w.Code, w.Body)
	}
}

func TestCheckDuplicateAndNotify(t *testing.T) {
	s := newTestServer(t)
	content := bytes.Repeat([]byte{3}, 100)
	w := s.upload(t, s.album.Token, nil, map[string]string{"contributor_name": "Alice"},
		part{"file", "a.jpg", "image/jpeg", content})
	cookies := w.Result().Cookies()

	check := func(size int) string {
		return s.postForm("/albums/"+s.album.Token+"/check-duplicate", url.Values{
			"filename": {"a.jpg"}, "file_size": {strconv.Itoa(size)}, "contributor_name": {"Alice"},
		}, cookies).Body.String()
	}
	if body := check(100); !strings.Contains(body, `"exists":true`) {
		t.Errorf("same size check = %s", body)
	}
	if body := check(101); !strings.Contains(body, `"exists":false`) {
		t.Errorf("different size check = %s", body)
	}

	w = s.postForm("/albums/"+s.album.Token+"/notify", url.Values{"contributor_name": {"Alice"}}, cookies)
	if !strings.Contains(w.Body.String(), `"notified":1`) || s.notifier.batches != 1 {
		t.Errorf("notify = %s, batches %d", w.Body, s.notifier.batches)
	}
	// A different session has nothing to report
	w = s.postForm("/albums/"+s.album.Token+"/notify", url.Values{"contributor_name": {"Alice"}}, nil)
	if !strings.Contains(w.Body.String(), `"notified":0`) || s.notifier.batches != 1 {
		t.Errorf("notify from another session = %s", w.Body)
	}
}
