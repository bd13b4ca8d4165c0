package storage

import (
	"context"
	"time"
)

// Presigner is the signing primitive of an object store.
type Presigner interface {
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
}

// URLIssuer applies a fixed expiry policy to a Presigner.
type URLIssuer struct {
	presigner Presigner
	ttl       time.Duration
}

func NewURLIssuer(presigner Presigner, ttl time.Duration) *URLIssuer {
	return &URLIssuer{presigner: presigner, ttl: ttl}
}

// TTL returns how long issued URLs stay valid.
func (i *URLIssuer) TTL() time.Duration {
	return i.ttl
}

// Sign returns a time-limited URL for key. An empty key yields an empty URL
// so callers never hand out a link to an object that does not exist.
func (i *URLIssuer) Sign(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	return i.presigner.PresignGet(ctx, key, i.ttl)
}
