package database

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

type RefreshToken struct {
	Token     string
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
	UserID    uuid.UUID
	ExpiresAt time.Time
}

type CreateRefreshTokenParams struct {
	Token     string
	UserID    uuid.UUID
	ExpiresAt time.Time
}

func (c Client) CreateRefreshToken(params CreateRefreshTokenParams) (*RefreshToken, error) {
	now := time.Now().UTC()
	token := RefreshToken{
		Token:     params.Token,
		CreatedAt: now,
		UpdatedAt: now,
		UserID:    params.UserID,
		ExpiresAt: params.ExpiresAt.UTC(),
	}
	_, err := c.exec(`
		INSERT INTO refresh_tokens (token, created_at, updated_at, user_id, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		token.Token, token.CreatedAt, token.UpdatedAt, token.UserID.String(), token.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// GetUserByRefreshToken returns the owner of token. Revoked and expired tokens
// are reported as ErrNotFound.
func (c Client) GetUserByRefreshToken(token string) (*User, error) {
	var (
		rt        RefreshToken
		revokedAt sql.NullTime
	)
	err := c.queryRow(`
		SELECT token, created_at, updated_at, revoked_at, user_id, expires_at
		FROM refresh_tokens WHERE token = ?`, token).
		Scan(&rt.Token, &rt.CreatedAt, &rt.UpdatedAt, &revokedAt, &rt.UserID, &rt.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if revokedAt.Valid || time.Now().After(rt.ExpiresAt) {
		return nil, ErrNotFound
	}
	return c.GetUser(rt.UserID)
}

func (c Client) RevokeRefreshToken(token string) error {
	now := time.Now().UTC()
	result, err := c.exec(`
		UPDATE refresh_tokens SET revoked_at = ?, updated_at = ?
		WHERE token = ?`, now, now, token)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
