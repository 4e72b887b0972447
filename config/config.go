package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	TrackingPolicyRollback = "rollback" // delete the stored object when its ownership record cannot be written
	TrackingPolicyKeep     = "keep"     // keep the stored object, report the tracking failure alongside success
)

type Config struct {
	BindAddress string
	TLSDomains  string // e.g. "example.com,example2.com"
	MySQLDSN    string // MySQL will be used if this is set
	SQLiteFile  string // SQLite will be used if MySQLDSN is not configured and this is set
	DebugMode   bool
	LogLevel    string
	LogFormat   string // "console" or "json"

	SessionKey string
	AdminToken string // Bearer token for the /admin API. Admin API is disabled when empty

	DefaultBucketDir string // Used for creating initial bucket
	TmpDir           string // Used for S3 local copies (thumbnails, etc)

	// DirectoryTree is the category tree new albums are placed in. Empty disables hierarchical placement
	DirectoryTree         string
	TrackingFailurePolicy string
	FileTimeout           time.Duration
	FlushWindow           time.Duration
	MaxUploadMB           int64
	MinFreeMB             uint64
	ThumbSize             uint

	RateLimit float64 // requests per second per client IP on public endpoints, 0 disables
	RateBurst int

	RedisAddr     string // album token cache, optional
	RedisPassword string
	AlbumCacheTTL time.Duration

	PushServer string
	SMTPHost   string
	SMTPPort   string
	SMTPUser   string
	SMTPPass   string
	SMTPFrom   string
	SMTPTLS    bool

	CleanupSchedule       string // cron spec for removing empty category nodes, empty disables
	ThumbBackfillSchedule string // cron spec for creating missing thumbnails, empty disables
}

func Default() Config {
	return Config{
		BindAddress:           "0.0.0.0:8080",
		DebugMode:             true,
		LogLevel:              "info",
		LogFormat:             "console",
		TmpDir:                "/tmp",
		TrackingFailurePolicy: TrackingPolicyRollback,
		FileTimeout:           2 * time.Minute,
		FlushWindow:           60 * time.Second,
		MaxUploadMB:           50,
		MinFreeMB:             100,
		ThumbSize:             1280,
		RateLimit:             5,
		RateBurst:             40,
		AlbumCacheTTL:         5 * time.Minute,
		CleanupSchedule:       "@daily",
		ThumbBackfillSchedule: "@every 10m",
	}
}

// Load reads an optional .env file (the path in ENV_FILE, or ./.env) and then the environment
func Load() (Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err = godotenv.Load(envFile); err != nil {
			return Config{}, err
		}
	}
	cfg := Default()
	cfg.readEnv()
	return cfg, cfg.Validate()
}

func (c *Config) readEnv() {
	readEnvString("BIND_ADDRESS", &c.BindAddress)
	readEnvString("TLS_DOMAINS", &c.TLSDomains)
	readEnvString("MYSQL_DSN", &c.MySQLDSN)
	readEnvString("SQLITE_FILE", &c.SQLiteFile)
	readEnvBool("DEBUG_MODE", &c.DebugMode)
	readEnvString("LOG_LEVEL", &c.LogLevel)
	readEnvString("LOG_FORMAT", &c.LogFormat)
	readEnvString("SESSION_KEY", &c.SessionKey)
	readEnvString("ADMIN_TOKEN", &c.AdminToken)
	readEnvString("DEFAULT_BUCKET_DIR", &c.DefaultBucketDir)
	readEnvString("TMP_DIR", &c.TmpDir)
	readEnvString("DIRECTORY_TREE", &c.DirectoryTree)
	readEnvString("TRACKING_FAILURE_POLICY", &c.TrackingFailurePolicy)
	readEnvDuration("FILE_TIMEOUT", &c.FileTimeout)
	readEnvDuration("FLUSH_WINDOW", &c.FlushWindow)
	readEnvInt64("MAX_UPLOAD_MB", &c.MaxUploadMB)
	readEnvUint64("MIN_FREE_MB", &c.MinFreeMB)
	readEnvUint("THUMB_SIZE", &c.ThumbSize)
	readEnvFloat("RATE_LIMIT", &c.RateLimit)
	readEnvInt("RATE_BURST", &c.RateBurst)
	readEnvString("REDIS_ADDR", &c.RedisAddr)
	readEnvString("REDIS_PASSWORD", &c.RedisPassword)
	readEnvDuration("ALBUM_CACHE_TTL", &c.AlbumCacheTTL)
	readEnvString("PUSH_SERVER", &c.PushServer)
	readEnvString("SMTP_HOST", &c.SMTPHost)
	readEnvString("SMTP_PORT", &c.SMTPPort)
	readEnvString("SMTP_USER", &c.SMTPUser)
	readEnvString("SMTP_PASS", &c.SMTPPass)
	readEnvString("SMTP_FROM", &c.SMTPFrom)
	readEnvBool("SMTP_TLS", &c.SMTPTLS)
	readEnvString("CLEANUP_SCHEDULE", &c.CleanupSchedule)
	readEnvString("THUMB_BACKFILL_SCHEDULE", &c.ThumbBackfillSchedule)
}

// DirectoriesEnabled reports whether uploads get placed in a category tree at all
func (c *Config) DirectoriesEnabled() bool {
	return c.DirectoryTree != ""
}

func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

func readEnvString(name string, value *string) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	*value = v
}

func readEnvBool(name string, value *bool) {
	v := strings.ToLower(os.Getenv(name))
	if v == "true" || v == "1" || v == "yes" || v == "on" {
		*value = true
	} else if v == "false" || v == "0" || v == "no" || v == "off" {
		*value = false
	}
}

func readEnvFloat(name string, value *float64) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return
	}
	*value = f
}

func readEnvInt(name string, value *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	f, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*value = f
}

func readEnvInt64(name string, value *int64) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	f, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return
	}
	*value = f
}

func readEnvUint64(name string, value *uint64) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	f, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return
	}
	*value = f
}

func readEnvUint(name string, value *uint) {
	var v uint64 = uint64(*value)
	readEnvUint64(name, &v)
	*value = uint(v)
}

// readEnvDuration accepts Go durations ("90s", "2m") or a plain number of seconds
func readEnvDuration(name string, value *time.Duration) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*value = d
		return
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*value = time.Duration(secs) * time.Second
	}
}
