package main

import (
	"context"
	"log"
	"strings"
	"time"

	"mediadrop/albums"
	"mediadrop/auth"
	"mediadrop/config"
	"mediadrop/db"
	"mediadrop/directory"
	"mediadrop/handlers"
	"mediadrop/logging"
	"mediadrop/models"
	"mediadrop/notify"
	"mediadrop/processing"
	"mediadrop/storage"
	"mediadrop/upload"
	"mediadrop/utils"
	"mediadrop/web"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	gormsessions "github.com/gin-contrib/sessions/gorm"
	"github.com/gin-gonic/autotls"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	sessionCookieName     = "drop"
	sessionExpirationTime = 365 * 86400 // 1 year
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	logger, err := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		Development: cfg.DebugMode,
	})
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	defer logger.Sync()

	instance, err := db.Open(cfg.MySQLDSN, cfg.SQLiteFile, cfg.DebugMode)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	if err = models.Migrate(instance); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}
	if err = processing.Migrate(instance); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}
	registry := initStorage(cfg, instance, logger.Named("storage"))

	provisioner := directory.NewProvisioner(instance, cfg.DirectoriesEnabled(), logger.Named("directory"))
	albumService := albums.NewService(instance, albumCache(cfg, logger), provisioner, logger.Named("albums"))
	coordinator := upload.NewCoordinator(upload.Options{
		Storages:       registry,
		Mappings:       upload.NewMimeTable(instance),
		Writer:         upload.NewWriter(instance, cfg.MinFreeMB, cfg.ThumbSize, logger.Named("writer")),
		Provisioner:    provisioner,
		Recorder:       upload.NewRecorder(instance),
		Notifier:       notifiers(cfg, logger.Named("notify")),
		Log:            logger.Named("upload"),
		TrackingPolicy: cfg.TrackingFailurePolicy,
		FileTimeout:    cfg.FileTimeout,
		FlushWindow:    cfg.FlushWindow,
		MaxFileSize:    cfg.MaxUploadMB << 20,
	})

	scheduler := processing.NewScheduler(logger.Named("jobs"))
	if err = scheduler.Add(cfg.CleanupSchedule, processing.NewCleanupJob(instance, provisioner, logger.Named("cleanup"), cfg.DirectoryTree)); err != nil {
		logger.Fatal("bad CLEANUP_SCHEDULE", zap.Error(err))
	}
	if err = scheduler.Add(cfg.ThumbBackfillSchedule, processing.NewThumbBackfill(instance, registry, cfg.ThumbSize, logger.Named("thumbs"))); err != nil {
		logger.Fatal("bad THUMB_BACKFILL_SCHEDULE", zap.Error(err))
	}
	scheduler.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		scheduler.Stop(ctx)
	}()

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.MaxMultipartMemory = 32 << 20
	_ = router.SetTrustedProxies([]string{})
	if cfg.DebugMode {
		router.Use(utils.ErrorLogMiddleware(logger.Named("http")))
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "PUT", "POST", "DELETE"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           30 * 24 * time.Hour,
	}))

	sessionKey := cfg.SessionKey
	if sessionKey == "" {
		sessionKey = utils.Rand16BytesToBase62() + utils.Rand16BytesToBase62()
		logger.Warn("SESSION_KEY not set, sessions will not survive a restart")
	}
	cookieStore := gormsessions.NewStore(instance, true, []byte(sessionKey))
	cookieStore.Options(sessions.Options{MaxAge: sessionExpirationTime, Path: "/", HttpOnly: true})
	router.Use(sessions.Sessions(sessionCookieName, cookieStore))
	if !cfg.DebugMode {
		router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{`^/albums/[^/]+/media/\d+/thumb$`})))
	}
	router.Use(utils.CacheControl(0)) // No cache by default, individual end-points can override that

	public := router.Group("/")
	if cfg.RateLimit > 0 {
		public.Use(utils.NewRateLimiter(cfg.RateLimit, cfg.RateBurst).Handler())
	}
	(&web.Handlers{
		Albums:      albumService,
		Uploads:     coordinator,
		Provisioner: provisioner,
		Log:         logger.Named("web"),
	}).Register(public)

	if cfg.AdminToken != "" {
		(&handlers.Admin{
			DB:          instance,
			Albums:      albumService,
			Storages:    registry,
			Log:         logger.Named("admin"),
			DefaultTree: cfg.DirectoryTree,
		}).Register(&auth.Router{Base: router, Token: cfg.AdminToken})
	} else {
		logger.Info("ADMIN_TOKEN not set, admin API disabled")
	}

	if cfg.TLSDomains != "" {
		err = autotls.Run(router, strings.Split(cfg.TLSDomains, ",")...)
	} else {
		err = router.Run(cfg.BindAddress)
	}
	logger.Error("server stopped", zap.Error(err))
}

// initStorage loads the configured buckets and creates the default one on first start
func initStorage(cfg config.Config, instance *gorm.DB, log *zap.Logger) *storage.Registry {
	registry, err := storage.LoadRegistry(instance, log)
	if err != nil {
		log.Fatal("loading buckets failed", zap.Error(err))
	}
	if len(registry.Buckets()) > 0 || cfg.DefaultBucketDir == "" {
		return registry
	}
	bucket := storage.Bucket{
		Name:        "Default",
		StorageType: storage.StorageTypeFile,
		Path:        cfg.DefaultBucketDir,
	}
	if err = bucket.Create(instance); err != nil {
		log.Fatal("creating default bucket failed", zap.Error(err))
	}
	if err = registry.Add(&bucket); err != nil {
		log.Fatal("registering default bucket failed", zap.Error(err))
	}
	log.Info("default bucket created", zap.String("path", bucket.Path))
	return registry
}

func albumCache(cfg config.Config, logger *zap.Logger) albums.Cache {
	if cfg.RedisAddr == "" {
		return albums.NopCache{}
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	return albums.NewRedisCache(rdb, cfg.AlbumCacheTTL, logger.Named("cache"))
}

func notifiers(cfg config.Config, logger *zap.Logger) notify.Notifier {
	var result notify.Multi
	if cfg.SMTPEnabled() {
		result = append(result, notify.NewEmailNotifier(notify.SMTPConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
			TLS:  cfg.SMTPTLS,
		}, logger))
	}
	if cfg.PushServer != "" {
		result = append(result, notify.NewPushNotifier(cfg.PushServer, logger))
	}
	if len(result) == 0 {
		return notify.Nop{}
	}
	return result
}
