package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/shaikrahim04/file-storage-s3/internal/auth"
	"github.com/shaikrahim04/file-storage-s3/internal/database"
	"github.com/shaikrahim04/file-storage-s3/internal/media"
	"github.com/shaikrahim04/file-storage-s3/internal/storage"
	"github.com/shaikrahim04/file-storage-s3/internal/upload"
)

const testSecret = "test-jwt-secret"

type copyRemuxer struct {
	calls int
}

func (r *copyRemuxer) ProcessForFastStart(ctx context.Context, path string) (string, error) {
	r.calls++
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	out := path + media.ProcessedSuffix
	return out, os.WriteFile(out, data, 0o600)
}

type fixedProber media.Geometry

func (p fixedProber) Geometry(ctx context.Context, path string) (media.Geometry, error) {
	return media.Geometry(p), nil
}

type memoryStore struct {
	mu      sync.Mutex
	objects map[string]string
}

func (s *memoryStore) PutObject(ctx context.Context, key string, body io.Reader, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.Copy(io.Discard, body); err != nil {
		return err
	}
	s.objects[key] = contentType
	return nil
}

func (s *memoryStore) DeleteObject(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

type testAPI struct {
	cfg        *apiConfig
	handler    http.Handler
	store      *memoryStore
	remuxer    *copyRemuxer
	stagingDir string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	dir := t.TempDir()

	db, err := database.NewClient(database.DriverSQLite, filepath.Join(dir, "tubely.db"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	client := s3.New(s3.Options{
		Region:      "us-east-2",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", "")),
	})
	urls := storage.NewURLIssuer(storage.NewFromClient(client, "tubely-videos", nil), 20*time.Minute)

	store := &memoryStore{objects: map[string]string{}}
	remuxer := &copyRemuxer{}
	stagingDir := filepath.Join(dir, "staging")
	assetsDir := filepath.Join(dir, "assets")
	for _, d := range []string{stagingDir, assetsDir} {
		if err := os.Mkdir(d, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	logger := zaptest.NewLogger(t)
	cfg := &apiConfig{
		db:         db,
		jwtSecret:  testSecret,
		platform:   "dev",
		assetsRoot: assetsDir,
		port:       "8091",
		objects:    store,
		urls:       urls,
		videoUploads: upload.New(upload.Options{
			Rule:    upload.VideoRule(upload.DefaultMaxVideoSize),
			Remuxer: remuxer,
			Prober:  fixedProber(media.Landscape),
			Store:   store,
			Signer:  urls,
			Videos:  db,
			Paths:   stagingPathResolver(stagingDir),
			Logger:  logger,
		}),
		maxVideoSize:  upload.DefaultMaxVideoSize,
		thumbnailRule: upload.ThumbnailRule(upload.DefaultMaxThumbnailSize),
		logger:        logger,
	}

	return &testAPI{
		cfg:        cfg,
		handler:    cfg.routes(),
		store:      store,
		remuxer:    remuxer,
		stagingDir: stagingDir,
	}
}

func (a *testAPI) createUserAndVideo(t *testing.T, email string) (uuid.UUID, database.Video, string) {
	t.Helper()
	user, err := a.cfg.db.CreateUser(database.CreateUserParams{Email: email, Password: "hashed"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	video, err := a.cfg.db.CreateVideo(database.CreateVideoParams{Title: "Boots", UserID: user.ID})
	if err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}
	token, err := auth.MakeJWT(user.ID, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("MakeJWT: %v", err)
	}
	return user.ID, video, token
}

func (a *testAPI) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func multipartRequest(t *testing.T, target, field, fileName, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, fileName))
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	part.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (a *testAPI) assertStagingEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(a.stagingDir)
	if err != nil {
		t.Fatalf("read staging dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("staging dir has %d leftover files", len(entries))
	}
}

func decodeVideo(t *testing.T, rec *httptest.ResponseRecorder) database.Video {
	t.Helper()
	var video database.Video
	if err := json.Unmarshal(rec.Body.Bytes(), &video); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return video
}

func TestHandlerUploadVideo_success(t *testing.T) {
	api := newTestAPI(t)
	_, video, token := api.createUserAndVideo(t, "walt@breakingbad.com")

	req := multipartRequest(t, "/api/video_upload/"+video.ID.String(), "video", "boots.mp4", "video/mp4", bytes.Repeat([]byte{0x42}, 64<<10))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := api.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decodeVideo(t, rec)
	if got.VideoURL == nil || !strings.Contains(*got.VideoURL, "landscape/") || !strings.Contains(*got.VideoURL, "X-Amz-Signature=") {
		t.Fatalf("videoURL is not a signed landscape URL: %v", got.VideoURL)
	}

	stored, err := api.cfg.db.GetVideo(video.ID)
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if stored.VideoURL == nil {
		t.Fatalf("stored record has no key")
	}
	if len(api.store.objects) != 1 {
		t.Fatalf("store has %d objects, want 1", len(api.store.objects))
	}
	contentType, ok := api.store.objects[*stored.VideoURL]
	if !ok {
		t.Fatalf("recorded key %q was not written to the store", *stored.VideoURL)
	}
	if contentType != "video/mp4" {
		t.Fatalf("object content type = %q", contentType)
	}
	api.assertStagingEmpty(t)
}

func TestHandlerUploadVideo_invalidMediaType(t *testing.T) {
	api := newTestAPI(t)
	_, video, token := api.createUserAndVideo(t, "walt@breakingbad.com")

	req := multipartRequest(t, "/api/video_upload/"+video.ID.String(), "video", "boots.avi", "video/avi", []byte("avi bytes"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := api.do(req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid media type") {
		t.Fatalf("error body %q does not mention the media type", rec.Body.String())
	}
	if len(api.store.objects) != 0 || api.remuxer.calls != 0 {
		t.Fatalf("pipeline did work for a rejected type")
	}
	api.assertStagingEmpty(t)
}

func TestHandlerUploadVideo_rejections(t *testing.T) {
	api := newTestAPI(t)
	_, video, token := api.createUserAndVideo(t, "walt@breakingbad.com")
	_, _, otherToken := api.createUserAndVideo(t, "gus@lospolloshermanos.com")

	cases := []struct {
		name   string
		target string
		auth   string
		field  string
		want   int
	}{
		{"other_owner", "/api/video_upload/" + video.ID.String(), "Bearer " + otherToken, "video", http.StatusForbidden},
		{"unknown_video", "/api/video_upload/" + uuid.NewString(), "Bearer " + token, "video", http.StatusNotFound},
		{"invalid_id", "/api/video_upload/not-a-uuid", "Bearer " + token, "video", http.StatusBadRequest},
		{"no_token", "/api/video_upload/" + video.ID.String(), "", "video", http.StatusUnauthorized},
		{"bad_token", "/api/video_upload/" + video.ID.String(), "Bearer garbage", "video", http.StatusUnauthorized},
		{"missing_field", "/api/video_upload/" + video.ID.String(), "Bearer " + token, "movie", http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := multipartRequest(t, tc.target, tc.field, "boots.mp4", "video/mp4", []byte("mp4"))
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			rec := api.do(req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.want, rec.Body.String())
			}
			if api.remuxer.calls != 0 || len(api.store.objects) != 0 {
				t.Fatalf("pipeline ran for a rejected request")
			}
			api.assertStagingEmpty(t)
		})
	}
}

func TestHandlerVideoGet_signsOrBlanksURL(t *testing.T) {
	api := newTestAPI(t)
	_, video, token := api.createUserAndVideo(t, "walt@breakingbad.com")

	req := httptest.NewRequest(http.MethodGet, "/api/videos/"+video.ID.String(), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := api.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := decodeVideo(t, rec); got.VideoURL == nil || *got.VideoURL != "" {
		t.Fatalf("videoURL = %v, want empty string", got.VideoURL)
	}

	key := "portrait/abc.mp4"
	video.VideoURL = &key
	if err := api.cfg.db.UpdateVideo(video); err != nil {
		t.Fatalf("UpdateVideo: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = api.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var videos []database.Video
	if err := json.Unmarshal(rec.Body.Bytes(), &videos); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(videos) != 1 || videos[0].VideoURL == nil || !strings.Contains(*videos[0].VideoURL, "portrait/abc.mp4") {
		t.Fatalf("unexpected videos %s", rec.Body.String())
	}
}

func TestHandlerVideoMetaDelete_removesObject(t *testing.T) {
	api := newTestAPI(t)
	_, video, token := api.createUserAndVideo(t, "walt@breakingbad.com")

	key := "landscape/abc.mp4"
	api.store.objects[key] = "video/mp4"
	video.VideoURL = &key
	if err := api.cfg.db.UpdateVideo(video); err != nil {
		t.Fatalf("UpdateVideo: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/videos/"+video.ID.String(), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := api.do(req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(api.store.objects) != 0 {
		t.Fatalf("object not deleted: %v", api.store.objects)
	}
}

func TestHandlerUploadThumbnail(t *testing.T) {
	api := newTestAPI(t)
	_, video, token := api.createUserAndVideo(t, "walt@breakingbad.com")

	req := multipartRequest(t, "/api/thumbnail_upload/"+video.ID.String(), "thumbnail", "boots.png", "image/png", []byte("\x89PNG fake"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := api.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	got := decodeVideo(t, rec)
	if got.ThumbnailURL == nil || !strings.HasPrefix(*got.ThumbnailURL, "http://localhost:8091/assets/") || !strings.HasSuffix(*got.ThumbnailURL, ".png") {
		t.Fatalf("unexpected thumbnailURL %v", got.ThumbnailURL)
	}
	name := strings.TrimPrefix(*got.ThumbnailURL, "http://localhost:8091/assets/")
	data, err := os.ReadFile(filepath.Join(api.cfg.assetsRoot, name))
	if err != nil {
		t.Fatalf("thumbnail not on disk: %v", err)
	}
	if string(data) != "\x89PNG fake" {
		t.Fatalf("thumbnail contents %q", data)
	}

	req = multipartRequest(t, "/api/thumbnail_upload/"+video.ID.String(), "thumbnail", "boots.gif", "image/gif", []byte("GIF89a"))
	req.Header.Set("Authorization", "Bearer "+token)
	if rec := api.do(req); rec.Code != http.StatusBadRequest {
		t.Fatalf("gif thumbnail status = %d, want 400", rec.Code)
	}
}

func TestLoginRefreshRevoke(t *testing.T) {
	api := newTestAPI(t)

	post := func(target, auth string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			json.NewEncoder(&buf).Encode(body)
		}
		req := httptest.NewRequest(http.MethodPost, target, &buf)
		if auth != "" {
			req.Header.Set("Authorization", "Bearer "+auth)
		}
		return api.do(req)
	}

	creds := map[string]string{"email": "saul@bettercall.com", "password": "its-all-good"}
	if rec := post("/api/users", "", creds); rec.Code != http.StatusCreated {
		t.Fatalf("create user status = %d, body %s", rec.Code, rec.Body.String())
	}

	wrong := map[string]string{"email": "saul@bettercall.com", "password": "nope"}
	if rec := post("/api/login", "", wrong); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", rec.Code)
	}

	rec := post("/api/login", "", creds)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	var login struct {
		ID           uuid.UUID `json:"id"`
		Token        string    `json:"token"`
		RefreshToken string    `json:"refreshToken"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if id, err := auth.ValidateJWT(login.Token, testSecret); err != nil || id != login.ID {
		t.Fatalf("login token invalid: %v", err)
	}

	if rec := post("/api/refresh", login.RefreshToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec := post("/api/revoke", login.RefreshToken, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("revoke status = %d", rec.Code)
	}
	if rec := post("/api/refresh", login.RefreshToken, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after revoke status = %d, want 401", rec.Code)
	}
}

func TestHandlerReset(t *testing.T) {
	api := newTestAPI(t)
	api.createUserAndVideo(t, "walt@breakingbad.com")

	api.cfg.platform = "prod"
	if rec := api.do(httptest.NewRequest(http.MethodPost, "/admin/reset", nil)); rec.Code != http.StatusForbidden {
		t.Fatalf("prod reset status = %d, want 403", rec.Code)
	}

	api.cfg.platform = "dev"
	if rec := api.do(httptest.NewRequest(http.MethodPost, "/admin/reset", nil)); rec.Code != http.StatusOK {
		t.Fatalf("dev reset status = %d", rec.Code)
	}
	if _, err := api.cfg.db.GetUserByEmail("walt@breakingbad.com"); err == nil {
		t.Fatalf("user survived reset")
	}
}

func TestDeclaredPartSize(t *testing.T) {
	tests := []struct {
		contentLength int64
		want          int64
	}{
		{-1, -1},
		{0, 0},
		{512, 0},
		{multipartSlack + 10, 10},
		{upload.DefaultMaxVideoSize + multipartSlack, upload.DefaultMaxVideoSize},
	}
	for _, tc := range tests {
		if got := declaredPartSize(tc.contentLength); got != tc.want {
			t.Fatalf("declaredPartSize(%d) = %d, want %d", tc.contentLength, got, tc.want)
		}
	}
}

// withVideoCeiling rebuilds the upload pipeline with a small size ceiling.
func (a *testAPI) withVideoCeiling(t *testing.T, maxBytes int64) {
	t.Helper()
	a.cfg.maxVideoSize = maxBytes
	a.cfg.videoUploads = upload.New(upload.Options{
		Rule:    upload.VideoRule(maxBytes),
		Remuxer: a.remuxer,
		Prober:  fixedProber(media.Landscape),
		Store:   a.store,
		Signer:  a.cfg.urls,
		Videos:  a.cfg.db,
		Paths:   stagingPathResolver(a.stagingDir),
		Logger:  zaptest.NewLogger(t),
	})
}

func TestHandlerUploadVideo_sizeCeiling(t *testing.T) {
	const ceiling = 1000

	cases := []struct {
		name string
		size int
		want int
	}{
		{"at_ceiling", ceiling, http.StatusOK},
		// Within the envelope allowance: passes the declared check, caught
		// while staging.
		{"just_over_ceiling", ceiling + 1, http.StatusBadRequest},
		{"inside_envelope_allowance", ceiling + multipartSlack/2, http.StatusBadRequest},
		// Declared length alone proves the part is too large.
		{"beyond_envelope_allowance", ceiling + 2*multipartSlack, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := newTestAPI(t)
			api.withVideoCeiling(t, ceiling)
			_, video, token := api.createUserAndVideo(t, "walt@breakingbad.com")

			req := multipartRequest(t, "/api/video_upload/"+video.ID.String(), "video", "boots.mp4", "video/mp4", bytes.Repeat([]byte{'v'}, tc.size))
			req.Header.Set("Authorization", "Bearer "+token)
			rec := api.do(req)

			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.want, rec.Body.String())
			}
			if tc.want == http.StatusOK {
				if api.remuxer.calls != 1 || len(api.store.objects) != 1 {
					t.Fatalf("remuxer calls = %d, objects = %d", api.remuxer.calls, len(api.store.objects))
				}
			} else {
				if !strings.Contains(rec.Body.String(), "maximum allowed size") {
					t.Fatalf("error body %q does not mention the size limit", rec.Body.String())
				}
				if api.remuxer.calls != 0 || len(api.store.objects) != 0 {
					t.Fatalf("pipeline did work for an oversized upload")
				}
			}
			api.assertStagingEmpty(t)
		})
	}
}

func TestHandlerUploadThumbnail_rejections(t *testing.T) {
	api := newTestAPI(t)
	_, video, token := api.createUserAndVideo(t, "walt@breakingbad.com")
	_, _, otherToken := api.createUserAndVideo(t, "gus@lospolloshermanos.com")

	cases := []struct {
		name   string
		target string
		auth   string
		want   int
	}{
		{"other_owner", "/api/thumbnail_upload/" + video.ID.String(), "Bearer " + otherToken, http.StatusForbidden},
		{"unknown_video", "/api/thumbnail_upload/" + uuid.NewString(), "Bearer " + token, http.StatusNotFound},
		{"invalid_id", "/api/thumbnail_upload/not-a-uuid", "Bearer " + token, http.StatusBadRequest},
		{"no_token", "/api/thumbnail_upload/" + video.ID.String(), "", http.StatusUnauthorized},
		{"bad_token", "/api/thumbnail_upload/" + video.ID.String(), "Bearer garbage", http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := multipartRequest(t, tc.target, "thumbnail", "boots.png", "image/png", []byte("\x89PNG fake"))
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			rec := api.do(req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.want, rec.Body.String())
			}
			entries, err := os.ReadDir(api.cfg.assetsRoot)
			if err != nil {
				t.Fatalf("read assets dir: %v", err)
			}
			if len(entries) != 0 {
				t.Fatalf("assets dir has %d files after a rejected upload", len(entries))
			}
		})
	}

	stored, err := api.cfg.db.GetVideo(video.ID)
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if stored.ThumbnailURL != nil {
		t.Fatalf("thumbnail set by a rejected upload: %q", *stored.ThumbnailURL)
	}
}

func TestHandlerUploadVideo_exactMediaType(t *testing.T) {
	for _, contentType := range []string{"VIDEO/MP4", "video/mp4; codecs=avc1"} {
		api := newTestAPI(t)
		_, video, token := api.createUserAndVideo(t, "walt@breakingbad.com")

		req := multipartRequest(t, "/api/video_upload/"+video.ID.String(), "video", "boots.mp4", contentType, []byte("mp4 bytes"))
		req.Header.Set("Authorization", "Bearer "+token)
		if rec := api.do(req); rec.Code != http.StatusBadRequest {
			t.Fatalf("type %q: status = %d, want 400", contentType, rec.Code)
		}
		if api.remuxer.calls != 0 {
			t.Fatalf("type %q: remuxer ran", contentType)
		}
	}
}
