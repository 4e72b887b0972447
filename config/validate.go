package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.MySQLDSN == "" && c.SQLiteFile == "" {
		return errors.New("one of MYSQL_DSN or SQLITE_FILE must be set")
	}
	if c.BindAddress == "" && c.TLSDomains == "" {
		return errors.New("BIND_ADDRESS must be set")
	}
	switch c.TrackingFailurePolicy {
	case TrackingPolicyRollback, TrackingPolicyKeep:
	default:
		return fmt.Errorf("TRACKING_FAILURE_POLICY must be %q or %q, got %q", TrackingPolicyRollback, TrackingPolicyKeep, c.TrackingFailurePolicy)
	}
	if c.FileTimeout <= 0 {
		return errors.New("FILE_TIMEOUT must be positive")
	}
	if c.FlushWindow <= 0 {
		return errors.New("FLUSH_WINDOW must be positive")
	}
	if c.MaxUploadMB <= 0 {
		return errors.New("MAX_UPLOAD_MB must be positive")
	}
	if c.RateLimit < 0 || (c.RateLimit > 0 && c.RateBurst <= 0) {
		return errors.New("RATE_LIMIT must be >= 0 and RATE_BURST positive when limiting")
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.LogFormat)
	}
	if c.SMTPHost != "" && c.SMTPPort == "" {
		return errors.New("SMTP_PORT is required when SMTP_HOST is set")
	}
	return nil
}
