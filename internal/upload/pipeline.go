package upload

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/shaikrahim04/file-storage-s3/internal/database"
	"github.com/shaikrahim04/file-storage-s3/internal/media"
)

// Remuxer rewrites a local media file for progressive playback and returns
// the path of the rewritten copy.
type Remuxer interface {
	ProcessForFastStart(ctx context.Context, path string) (string, error)
}

// Prober classifies the frame geometry of a local media file.
type Prober interface {
	Geometry(ctx context.Context, path string) (media.Geometry, error)
}

// ObjectStore is the durable home of processed videos.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body io.Reader, contentType string) error
	DeleteObject(ctx context.Context, key string) error
}

// Signer turns an object key into a time-limited URL.
type Signer interface {
	Sign(ctx context.Context, key string) (string, error)
}

// VideoStore persists video records.
type VideoStore interface {
	UpdateVideo(video database.Video) error
}

// PathResolver maps a file name to an absolute path under the staging root.
type PathResolver func(name string) string

// Request is one video upload. The video it targets must already have been
// checked to belong to OwnerID.
type Request struct {
	OwnerID     uuid.UUID
	Body        io.Reader
	Size        int64
	ContentType string
}

type Options struct {
	Rule        Rule
	Remuxer     Remuxer
	Prober      Prober
	Store       ObjectStore
	Signer      Signer
	Videos      VideoStore
	Paths       PathResolver
	ToolTimeout time.Duration
	Logger      *zap.Logger
}

// Pipeline moves an uploaded video from the request body into object storage.
type Pipeline struct {
	rule        Rule
	remuxer     Remuxer
	prober      Prober
	store       ObjectStore
	signer      Signer
	videos      VideoStore
	paths       PathResolver
	toolTimeout time.Duration
	logger      *zap.Logger
}

func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		rule:        opts.Rule,
		remuxer:     opts.Remuxer,
		prober:      opts.Prober,
		store:       opts.Store,
		signer:      opts.Signer,
		videos:      opts.Videos,
		paths:       opts.Paths,
		toolTimeout: opts.ToolTimeout,
		logger:      logger,
	}
}

// Upload validates, stages, remuxes and classifies the uploaded video, stores
// it under "<geometry>/<random name><ext>", records the key on video and
// returns the record with VideoURL replaced by a signed URL.
//
// Local files are removed on every return path. If the metadata update fails
// after the object was written, the object is deleted again before the
// storage error is returned.
func (p *Pipeline) Upload(ctx context.Context, video database.Video, req Request) (database.Video, error) {
	uploadsInFlight.Inc()
	defer uploadsInFlight.Dec()

	log := p.logger.With(zap.String("video_id", video.ID.String()), zap.String("user_id", req.OwnerID.String()))

	signed, geometry, err := p.upload(ctx, log, video, req)
	if err != nil {
		uploadsTotal.WithLabelValues(KindOf(err).String(), "").Inc()
		return database.Video{}, err
	}
	uploadsTotal.WithLabelValues("success", string(geometry)).Inc()
	return signed, nil
}

func (p *Pipeline) upload(ctx context.Context, log *zap.Logger, video database.Video, req Request) (database.Video, media.Geometry, error) {
	mediaType, ext, err := p.rule.Check(req.Size, req.ContentType)
	if err != nil {
		return database.Video{}, "", err
	}

	name, err := randomName()
	if err != nil {
		return database.Video{}, "", processingError("Unable to name upload", err)
	}
	fileName := name + ext

	processedPath, err := p.stageAndRemux(ctx, log, p.paths(fileName), req.Body)
	if err != nil {
		return database.Video{}, "", err
	}
	defer removeFile(log, processedPath)

	done := observeStage("probe")
	geometry, err := withTimeout(ctx, p.toolTimeout, func(ctx context.Context) (media.Geometry, error) {
		return p.prober.Geometry(ctx, processedPath)
	})
	done()
	if err != nil {
		return database.Video{}, "", processingError("Unable to determine video aspect ratio", err)
	}

	key := ObjectKey(geometry, fileName)
	log = log.With(zap.String("key", key), zap.String("geometry", string(geometry)))

	if err := p.putObject(ctx, processedPath, key, mediaType); err != nil {
		return database.Video{}, "", err
	}
	removeFile(log, processedPath)
	log.Info("stored video")

	video.VideoURL = &key
	if err := p.videos.UpdateVideo(video); err != nil {
		if delErr := p.store.DeleteObject(context.WithoutCancel(ctx), key); delErr != nil {
			log.Error("failed to remove object after metadata update failure", zap.Error(delErr))
		}
		return database.Video{}, "", storageError("Unable to update video URL", err)
	}

	url, err := p.signer.Sign(ctx, key)
	if err != nil {
		return database.Video{}, "", storageError("Unable to sign video URL", err)
	}
	video.VideoURL = &url
	return video, geometry, nil
}

// stageAndRemux writes body to stagedPath and remuxes it. The staged file is
// gone when it returns; the caller owns the returned processed file.
func (p *Pipeline) stageAndRemux(ctx context.Context, log *zap.Logger, stagedPath string, body io.Reader) (string, error) {
	defer removeFile(log, stagedPath)

	done := observeStage("stage")
	n, err := p.stage(stagedPath, body)
	done()
	if err != nil {
		return "", err
	}
	log.Debug("staged upload", zap.String("path", stagedPath), zap.Int64("bytes", n))

	done = observeStage("remux")
	defer done()
	processedPath, err := withTimeout(ctx, p.toolTimeout, func(ctx context.Context) (string, error) {
		return p.remuxer.ProcessForFastStart(ctx, stagedPath)
	})
	if err != nil {
		return "", processingError("Unable to process video for fast start", err)
	}
	return processedPath, nil
}

// stage copies body to path, enforcing the size ceiling on the bytes actually
// read. On failure the partially written file is left for the caller to
// remove.
func (p *Pipeline) stage(path string, body io.Reader) (int64, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return 0, processingError("Unable to create staging file", err)
	}
	defer f.Close()

	src := &readTracker{r: io.LimitReader(body, p.rule.MaxBytes+1)}
	n, err := io.Copy(f, src)
	if err != nil {
		if src.err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(src.err, &maxErr) {
				return n, clientError(fmt.Sprintf("File exceeds the maximum allowed size of %s", humanSize(p.rule.MaxBytes)), ErrTooLarge)
			}
			return n, clientError("Upload interrupted", src.err)
		}
		return n, processingError("Unable to save uploaded file", err)
	}
	if n > p.rule.MaxBytes {
		return n, clientError(fmt.Sprintf("File exceeds the maximum allowed size of %s", humanSize(p.rule.MaxBytes)), ErrTooLarge)
	}
	if err := f.Close(); err != nil {
		return n, processingError("Unable to save uploaded file", err)
	}
	return n, nil
}

func (p *Pipeline) putObject(ctx context.Context, path, key, contentType string) error {
	done := observeStage("put_object")
	defer done()

	f, err := os.Open(path)
	if err != nil {
		return processingError("Unable to open processed file", err)
	}
	defer f.Close()

	if err := p.store.PutObject(ctx, key, f, contentType); err != nil {
		return storageError("Unable to upload video to object storage", err)
	}
	return nil
}

// withTimeout runs fn with a deadline of d, or without one when d is zero.
func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}

// ObjectKey is the persisted key layout: "<geometry>/<file name>".
func ObjectKey(geometry media.Geometry, fileName string) string {
	return string(geometry) + "/" + fileName
}

// randomName returns 256 random bits, hex encoded.
func randomName() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func removeFile(log *zap.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("failed to remove local file", zap.String("path", path), zap.Error(err))
	}
}

func observeStage(stage string) func() {
	timer := prometheus.NewTimer(stageDuration.WithLabelValues(stage))
	return func() { timer.ObserveDuration() }
}

// readTracker remembers the error returned by the client stream so it can be
// told apart from local write errors.
type readTracker struct {
	r   io.Reader
	err error
}

func (t *readTracker) Read(b []byte) (int, error) {
	n, err := t.r.Read(b)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}
