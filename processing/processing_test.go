package processing

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"mediadrop/db"
	"mediadrop/directory"
	"mediadrop/models"
	"mediadrop/storage"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	instance, err := db.Open("", filepath.Join(t.TempDir(), "test.db"), false)
	if err != nil {
		t.Fatal(err)
	}
	if err = models.Migrate(instance); err != nil {
		t.Fatal(err)
	}
	if err = Migrate(instance); err != nil {
		t.Fatal(err)
	}
	return instance
}

func TestProcessingTask_Status(t *testing.T) {
	task := ProcessingTask{MediaID: 1, Status: "thumb:3,broken,other:2"}
	statusMap := task.statusToMap(zap.NewNop())
	if len(statusMap) != 2 || statusMap["thumb"] != Failed || statusMap["other"] != Done {
		t.Fatalf("statusToMap() = %v", statusMap)
	}
	statusMap["thumb"] = Done
	task.updateWith(statusMap)
	if task.Status != "other:2,thumb:2" {
		t.Errorf("Status = %q", task.Status)
	}
}

func TestThumbBackfill(t *testing.T) {
	instance := newTestDB(t)
	log := zap.NewNop()
	bucket := storage.Bucket{Name: "local", StorageType: storage.StorageTypeFile, Path: t.TempDir()}
	if err := bucket.Create(instance); err != nil {
		t.Fatal(err)
	}
	registry := storage.NewRegistry(log)
	if err := registry.Add(&bucket); err != nil {
		t.Fatal(err)
	}
	store := registry.StorageFrom(bucket.ID)
	album := models.Album{Name: "A", Token: models.NewAlbumToken(), BasePath: "a", BucketID: bucket.ID, Active: true}
	if err := instance.Create(&album).Error; err != nil {
		t.Fatal(err)
	}

	var img bytes.Buffer
	if err := png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 300, 200))); err != nil {
		t.Fatal(err)
	}
	files := []struct {
		path, mime string
		content    []byte
	}{
		{"a/alice/good.png", "image/png", img.Bytes()},
		{"a/alice/bad.png", "image/png", []byte("not an image")},
		{"a/alice/clip.mp4", "video/mp4", []byte("video")},
	}
	media := make([]models.Media, len(files))
	for i, f := range files {
		if _, err := store.Create(context.Background(), f.path, bytes.NewReader(f.content), f.mime); err != nil {
			t.Fatal(err)
		}
		media[i] = models.Media{AlbumID: album.ID, BucketID: bucket.ID, Path: f.path, Name: filepath.Base(f.path), MimeType: f.mime, Size: int64(len(f.content))}
		if err := instance.Create(&media[i]).Error; err != nil {
			t.Fatal(err)
		}
	}
	// Lost file
	lost := models.Media{AlbumID: album.ID, BucketID: bucket.ID, Path: "a/alice/lost.jpg", MimeType: "image/jpeg", Size: 10}
	instance.Create(&lost)

	job := NewThumbBackfill(instance, registry, 64, log)
	job.Now = func() time.Time { return time.Now().Add(time.Hour) }

	// Too recent
	job.MinAge = 2 * time.Hour
	if err := job.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	var count int64
	instance.Model(&ProcessingTask{}).Count(&count)
	if count != 0 {
		t.Fatalf("recent uploads processed: %d", count)
	}

	job.MinAge = time.Minute
	if err := job.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := map[uint64]string{
		media[0].ID: "thumb:2",
		media[1].ID: "thumb:3",
		lost.ID:     "thumb:4",
	}
	var tasks []ProcessingTask
	instance.Find(&tasks)
	if len(tasks) != len(want) {
		t.Fatalf("tasks = %+v", tasks)
	}
	for _, task := range tasks {
		if want[task.MediaID] != task.Status {
			t.Errorf("media %d status = %q, want %q", task.MediaID, task.Status, want[task.MediaID])
		}
	}
	var good models.Media
	instance.First(&good, media[0].ID)
	if good.ThumbSize == 0 || good.ThumbPath != good.GetThumbPath() {
		t.Errorf("thumbnail not recorded: %+v", good)
	}
	if size, err := store.GetSize(context.Background(), good.ThumbPath); err != nil || size != good.ThumbSize {
		t.Errorf("thumbnail file: %d, %v", size, err)
	}

	// Failures are not retried
	pending, err := job.pending(context.Background())
	if err != nil || len(pending) != 0 {
		t.Errorf("pending after run = %d, %v", len(pending), err)
	}
}

type fakeCleaner struct {
	trees []string
	fail  string
}

func (f *fakeCleaner) CleanupEmpty(_ context.Context, tree string) (int64, error) {
	f.trees = append(f.trees, tree)
	if tree == f.fail {
		return 0, errors.New("boom")
	}
	return 1, nil
}

func TestCleanupJob_Trees(t *testing.T) {
	instance := newTestDB(t)
	for i, tree := range []string{"photos", "photos", "", "videos"} {
		album := models.Album{Name: "A", Token: models.NewAlbumToken(), BasePath: "a" + string(rune('0'+i)), CategoryTree: tree}
		if err := instance.Create(&album).Error; err != nil {
			t.Fatal(err)
		}
	}
	cleaner := &fakeCleaner{fail: "videos"}
	job := NewCleanupJob(instance, cleaner, zap.NewNop(), "photos", "legacy")
	err := job.Run(context.Background())
	if err == nil {
		t.Error("failure of one tree not reported")
	}
	if len(cleaner.trees) != 3 {
		t.Errorf("cleaned trees = %v", cleaner.trees)
	}
}

func TestCleanupJob_RemovesUnusedNodes(t *testing.T) {
	instance := newTestDB(t)
	log := zap.NewNop()
	provisioner := directory.NewProvisioner(instance, true, log)
	album := models.Album{Name: "Wedding", Token: models.NewAlbumToken(), BasePath: "w", CategoryTree: "photos"}
	if err := instance.Create(&album).Error; err != nil {
		t.Fatal(err)
	}
	if err := provisioner.EnsureAlbumRoot(context.Background(), &album); err != nil {
		t.Fatal(err)
	}
	if _, err := provisioner.Ensure(context.Background(), &album, "Alice", "Dinner"); err != nil {
		t.Fatal(err)
	}

	if err := NewCleanupJob(instance, provisioner, log).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	var nodes []models.CategoryNode
	instance.Find(&nodes)
	if len(nodes) != 1 || nodes[0].ID != *album.RootNodeID {
		t.Errorf("nodes left = %+v", nodes)
	}
}

type panicJob struct{}

func (panicJob) Name() string              { return "panic" }
func (panicJob) Run(context.Context) error { panic("boom") }

func TestScheduler(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	s := NewScheduler(zap.New(core))
	if err := s.Add("", panicJob{}); err != nil {
		t.Errorf("empty spec: %v", err)
	}
	if err := s.Add("every now and then", panicJob{}); err == nil {
		t.Error("bad spec accepted")
	}
	if err := s.Add("@every 1h", panicJob{}); err != nil {
		t.Errorf("valid spec: %v", err)
	}
	if len(s.cron.Entries()) != 1 {
		t.Errorf("entries = %d", len(s.cron.Entries()))
	}

	s.wrap(panicJob{}).Run()
	if logs.FilterMessage("job panicked").Len() != 1 {
		t.Error("panic not logged")
	}

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
