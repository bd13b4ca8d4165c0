package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/shaikrahim04/file-storage-s3/internal/database"
	"github.com/shaikrahim04/file-storage-s3/internal/upload"
)

// Config holds the process-wide settings. It is built once at startup and
// handed to everything that needs it.
type Config struct {
	Port             string
	Platform         string
	JWTSecret        string
	DBDriver         string
	DBPath           string
	DBURL            string
	FilepathRoot     string
	AssetsRoot       string
	StagingRoot      string
	S3Bucket         string
	S3Region         string
	S3Endpoint       string
	VideoURLTTL      time.Duration
	MaxVideoSize     int64
	MaxThumbnailSize int64
	FFmpegPath       string
	FFprobePath      string
	ToolTimeout      time.Duration
	LogLevel         string
}

// loadConfig reads .env (if present) and the environment.
func loadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", "8091")
	v.SetDefault("PLATFORM", "dev")
	v.SetDefault("DB_DRIVER", database.DriverSQLite)
	v.SetDefault("DB_PATH", "tubely.db")
	v.SetDefault("FILEPATH_ROOT", "./app")
	v.SetDefault("ASSETS_ROOT", "./assets")
	v.SetDefault("STAGING_ROOT", filepath.Join(os.TempDir(), "tubely"))
	v.SetDefault("VIDEO_URL_TTL", 20*time.Minute)
	v.SetDefault("MAX_VIDEO_SIZE", upload.DefaultMaxVideoSize)
	v.SetDefault("MAX_THUMBNAIL_SIZE", upload.DefaultMaxThumbnailSize)
	v.SetDefault("FFMPEG_PATH", "ffmpeg")
	v.SetDefault("FFPROBE_PATH", "ffprobe")
	v.SetDefault("TOOL_TIMEOUT", time.Duration(0))
	v.SetDefault("LOG_LEVEL", "info")

	cfg := Config{
		Port:             v.GetString("PORT"),
		Platform:         v.GetString("PLATFORM"),
		JWTSecret:        v.GetString("JWT_SECRET"),
		DBDriver:         v.GetString("DB_DRIVER"),
		DBPath:           v.GetString("DB_PATH"),
		DBURL:            v.GetString("DB_URL"),
		FilepathRoot:     v.GetString("FILEPATH_ROOT"),
		AssetsRoot:       v.GetString("ASSETS_ROOT"),
		StagingRoot:      v.GetString("STAGING_ROOT"),
		S3Bucket:         v.GetString("S3_BUCKET"),
		S3Region:         v.GetString("S3_REGION"),
		S3Endpoint:       v.GetString("S3_ENDPOINT"),
		VideoURLTTL:      v.GetDuration("VIDEO_URL_TTL"),
		MaxVideoSize:     v.GetInt64("MAX_VIDEO_SIZE"),
		MaxThumbnailSize: v.GetInt64("MAX_THUMBNAIL_SIZE"),
		FFmpegPath:       v.GetString("FFMPEG_PATH"),
		FFprobePath:      v.GetString("FFPROBE_PATH"),
		ToolTimeout:      v.GetDuration("TOOL_TIMEOUT"),
		LogLevel:         v.GetString("LOG_LEVEL"),
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	var missing []string
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.S3Bucket == "" {
		missing = append(missing, "S3_BUCKET")
	}
	if c.S3Region == "" {
		missing = append(missing, "S3_REGION")
	}
	switch c.DBDriver {
	case database.DriverSQLite:
		if c.DBPath == "" {
			missing = append(missing, "DB_PATH")
		}
	case database.DriverPostgres:
		if c.DBURL == "" {
			missing = append(missing, "DB_URL")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", database.DriverSQLite, database.DriverPostgres, c.DBDriver)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}
	if c.VideoURLTTL <= 0 {
		return fmt.Errorf("VIDEO_URL_TTL must be positive, got %s", c.VideoURLTTL)
	}
	if c.MaxVideoSize <= 0 || c.MaxThumbnailSize <= 0 {
		return errors.New("MAX_VIDEO_SIZE and MAX_THUMBNAIL_SIZE must be positive")
	}
	return nil
}

// dsn returns the data source name for the configured driver.
func (c Config) dsn() string {
	if c.DBDriver == database.DriverPostgres {
		return c.DBURL
	}
	return c.DBPath
}
