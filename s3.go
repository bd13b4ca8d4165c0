package main

import (
	"context"
	"net/url"
	"strings"

	"github.com/shaikrahim04/file-storage-s3/internal/database"
)

// dbVideoToSignedVideo replaces the stored object key with a fresh signed
// URL. Videos with nothing stored get an empty VideoURL.
func (cfg *apiConfig) dbVideoToSignedVideo(ctx context.Context, video database.Video) (database.Video, error) {
	var key string
	if video.VideoURL != nil {
		key = objectKeyFromStored(*video.VideoURL)
	}

	signed, err := cfg.urls.Sign(ctx, key)
	if err != nil {
		return database.Video{}, err
	}
	video.VideoURL = &signed
	return video, nil
}

// objectKeyFromStored returns the object key held in a video's stored URL
// field. Besides plain keys it understands the older formats:
//   - "bucket,key"
//   - https://<bucket>.s3.<region>.amazonaws.com/<key>
//   - https://s3.amazonaws.com/<bucket>/<key> (path-style)
func objectKeyFromStored(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if b, k, ok := strings.Cut(raw, ","); ok {
		b, k = strings.TrimSpace(b), strings.TrimSpace(k)
		if b != "" && k != "" && !strings.Contains(k, ",") {
			return k
		}
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	host := u.Host
	path := strings.TrimPrefix(u.Path, "/")
	if strings.Contains(host, ".s3.") && strings.Contains(host, "amazonaws.com") {
		// <bucket>.s3.<region>.amazonaws.com/<key>
		return path
	}
	if strings.HasPrefix(host, "s3.") {
		// s3.amazonaws.com/<bucket>/<key>
		if _, k, ok := strings.Cut(path, "/"); ok {
			return k
		}
		return ""
	}
	return path
}
