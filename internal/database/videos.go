package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Video is a user's video record. VideoURL holds the object key of the stored
// file; it is replaced with a signed URL before the record leaves the server.
type Video struct {
	ID           uuid.UUID `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	ThumbnailURL *string   `json:"thumbnailURL"`
	VideoURL     *string   `json:"videoURL"`
	CreateVideoParams
}

type CreateVideoParams struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	UserID      uuid.UUID `json:"userID"`
}

func (c Client) CreateVideo(params CreateVideoParams) (Video, error) {
	now := time.Now().UTC()
	video := Video{
		ID:                uuid.New(),
		CreatedAt:         now,
		UpdatedAt:         now,
		CreateVideoParams: params,
	}
	_, err := c.exec(`
		INSERT INTO videos (id, created_at, updated_at, title, description, user_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		video.ID.String(), video.CreatedAt, video.UpdatedAt, video.Title, video.Description, video.UserID.String(),
	)
	if err != nil {
		return Video{}, fmt.Errorf("failed to insert video: %w", err)
	}
	return video, nil
}

// GetVideo returns ErrNotFound when no video has the given id.
func (c Client) GetVideo(id uuid.UUID) (Video, error) {
	row := c.queryRow(`
		SELECT id, created_at, updated_at, title, description, thumbnail_url, video_url, user_id
		FROM videos WHERE id = ?`, id.String())
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Video{}, ErrNotFound
	}
	return video, err
}

// GetVideos lists userID's videos, newest first.
func (c Client) GetVideos(userID uuid.UUID) ([]Video, error) {
	rows, err := c.query(`
		SELECT id, created_at, updated_at, title, description, thumbnail_url, video_url, user_id
		FROM videos WHERE user_id = ? ORDER BY created_at DESC`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query videos: %w", err)
	}
	defer rows.Close()

	videos := []Video{}
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, video)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating videos: %w", err)
	}
	return videos, nil
}

// UpdateVideo persists the mutable fields of video.
func (c Client) UpdateVideo(video Video) error {
	result, err := c.exec(`
		UPDATE videos
		SET title = ?, description = ?, thumbnail_url = ?, video_url = ?, updated_at = ?
		WHERE id = ?`,
		video.Title, video.Description, nullString(video.ThumbnailURL), nullString(video.VideoURL),
		time.Now().UTC(), video.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update video: %w", err)
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

func (c Client) DeleteVideo(id uuid.UUID) error {
	result, err := c.exec("DELETE FROM videos WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanVideo(s scanner) (Video, error) {
	var (
		video        Video
		thumbnailURL sql.NullString
		videoURL     sql.NullString
	)
	err := s.Scan(
		&video.ID,
		&video.CreatedAt,
		&video.UpdatedAt,
		&video.Title,
		&video.Description,
		&thumbnailURL,
		&videoURL,
		&video.UserID,
	)
	if err != nil {
		return Video{}, err
	}
	if thumbnailURL.Valid {
		video.ThumbnailURL = &thumbnailURL.String
	}
	if videoURL.Valid {
		video.VideoURL = &videoURL.String
	}
	return video, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
