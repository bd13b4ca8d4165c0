package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/shaikrahim04/file-storage-s3/internal/database"
	"github.com/shaikrahim04/file-storage-s3/internal/media"
	"github.com/shaikrahim04/file-storage-s3/internal/storage"
	"github.com/shaikrahim04/file-storage-s3/internal/upload"
)

type apiConfig struct {
	db            database.Client
	jwtSecret     string
	platform      string
	filepathRoot  string
	assetsRoot    string
	port          string
	objects       upload.ObjectStore
	urls          *storage.URLIssuer
	videoUploads  *upload.Pipeline
	maxVideoSize  int64
	thumbnailRule upload.Rule
	logger        *zap.Logger
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Couldn't load config: %v", err)
	}

	logger, err := newLogger(cfg.Platform, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Couldn't create logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	db, err := database.NewClient(cfg.DBDriver, cfg.dsn())
	if err != nil {
		logger.Fatal("Couldn't connect to database", zap.Error(err))
	}
	defer db.Close()

	s3Store, err := storage.New(context.Background(), storage.Options{
		Bucket:   cfg.S3Bucket,
		Region:   cfg.S3Region,
		Endpoint: cfg.S3Endpoint,
	}, logger.Named("s3"))
	if err != nil {
		logger.Fatal("Couldn't create S3 client", zap.Error(err))
	}

	api := newAPIConfig(cfg, db, s3Store, storage.NewURLIssuer(s3Store, cfg.VideoURLTTL), logger)
	if err := api.ensureAssetsDir(); err != nil {
		logger.Fatal("Couldn't create assets directory", zap.Error(err))
	}
	if err := os.MkdirAll(cfg.StagingRoot, 0o755); err != nil {
		logger.Fatal("Couldn't create staging directory", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Serving on port", zap.String("port", cfg.Port), zap.String("platform", cfg.Platform))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
}

// newAPIConfig wires the handlers and the video upload pipeline.
func newAPIConfig(cfg Config, db database.Client, s3Store *storage.S3, urls *storage.URLIssuer, logger *zap.Logger) *apiConfig {
	pipeline := upload.New(upload.Options{
		Rule:        upload.VideoRule(cfg.MaxVideoSize),
		Remuxer:     media.FFmpeg{Path: cfg.FFmpegPath},
		Prober:      media.FFprobe{Path: cfg.FFprobePath},
		Store:       s3Store,
		Signer:      urls,
		Videos:      db,
		Paths:       stagingPathResolver(cfg.StagingRoot),
		ToolTimeout: cfg.ToolTimeout,
		Logger:      logger.Named("upload"),
	})

	return &apiConfig{
		db:            db,
		jwtSecret:     cfg.JWTSecret,
		platform:      cfg.Platform,
		filepathRoot:  cfg.FilepathRoot,
		assetsRoot:    cfg.AssetsRoot,
		port:          cfg.Port,
		objects:       s3Store,
		urls:          urls,
		videoUploads:  pipeline,
		maxVideoSize:  cfg.MaxVideoSize,
		thumbnailRule: upload.ThumbnailRule(cfg.MaxThumbnailSize),
		logger:        logger,
	}
}

func (cfg *apiConfig) routes() http.Handler {
	mux := http.NewServeMux()

	appHandler := http.StripPrefix("/app", http.FileServer(http.Dir(cfg.filepathRoot)))
	mux.Handle("/app/", appHandler)

	assetsHandler := http.StripPrefix("/assets", http.FileServer(http.Dir(cfg.assetsRoot)))
	mux.Handle("/assets/", noCacheMiddleware(assetsHandler))

	mux.HandleFunc("POST /api/login", cfg.handlerLogin)
	mux.HandleFunc("POST /api/refresh", cfg.handlerRefresh)
	mux.HandleFunc("POST /api/revoke", cfg.handlerRevoke)

	mux.HandleFunc("POST /api/users", cfg.handlerUsersCreate)

	mux.HandleFunc("POST /api/videos", cfg.handlerVideoMetaCreate)
	mux.HandleFunc("POST /api/thumbnail_upload/{videoID}", cfg.handlerUploadThumbnail)
	mux.HandleFunc("POST /api/video_upload/{videoID}", cfg.handlerUploadVideo)
	mux.HandleFunc("GET /api/videos", cfg.handlerVideosRetrieve)
	mux.HandleFunc("GET /api/videos/{videoID}", cfg.handlerVideoGet)
	mux.HandleFunc("DELETE /api/videos/{videoID}", cfg.handlerVideoMetaDelete)

	mux.HandleFunc("POST /admin/reset", cfg.handlerReset)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

func newLogger(platform, level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewDevelopmentConfig()
	if platform == "prod" {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}
