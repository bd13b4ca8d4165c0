package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shaikrahim04/file-storage-s3/internal/auth"
	"github.com/shaikrahim04/file-storage-s3/internal/database"
)

// authenticate returns the user ID of the request's access token, or writes
// a 401 and reports false.
func (cfg *apiConfig) authenticate(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	token, err := auth.GetBearerToken(r.Header)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Couldn't find JWT", err)
		return uuid.Nil, false
	}
	userID, err := auth.ValidateJWT(token, cfg.jwtSecret)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Couldn't validate JWT", err)
		return uuid.Nil, false
	}
	return userID, true
}

// ownedVideo loads the video named in the path and checks that userID owns
// it, writing the error response itself on failure.
func (cfg *apiConfig) ownedVideo(w http.ResponseWriter, r *http.Request, userID uuid.UUID) (database.Video, bool) {
	videoID, err := uuid.Parse(r.PathValue("videoID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid ID", err)
		return database.Video{}, false
	}
	video, err := cfg.db.GetVideo(videoID)
	if errors.Is(err, database.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "Couldn't find video", err)
		return database.Video{}, false
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Couldn't get video", err)
		return database.Video{}, false
	}
	if video.UserID != userID {
		respondWithError(w, http.StatusForbidden, "You can't access this video", nil)
		return database.Video{}, false
	}
	return video, true
}

func (cfg *apiConfig) handlerVideoMetaCreate(w http.ResponseWriter, r *http.Request) {
	type parameters struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}

	userID, ok := cfg.authenticate(w, r)
	if !ok {
		return
	}

	params := parameters{}
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		respondWithError(w, http.StatusBadRequest, "Couldn't decode parameters", err)
		return
	}
	if params.Title == "" {
		respondWithError(w, http.StatusBadRequest, "Title is required", nil)
		return
	}

	video, err := cfg.db.CreateVideo(database.CreateVideoParams{
		Title:       params.Title,
		Description: params.Description,
		UserID:      userID,
	})
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Couldn't create video", err)
		return
	}

	signed, err := cfg.dbVideoToSignedVideo(r.Context(), video)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Couldn't sign video URL", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, signed)
}

func (cfg *apiConfig) handlerVideoMetaDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := cfg.authenticate(w, r)
	if !ok {
		return
	}
	video, ok := cfg.ownedVideo(w, r, userID)
	if !ok {
		return
	}

	if err := cfg.db.DeleteVideo(video.ID); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Couldn't delete video", err)
		return
	}

	if video.VideoURL != nil {
		if key := objectKeyFromStored(*video.VideoURL); key != "" {
			if err := cfg.objects.DeleteObject(r.Context(), key); err != nil {
				cfg.logger.Warn("failed to delete stored video",
					zap.String("video_id", video.ID.String()),
					zap.String("key", key),
					zap.Error(err),
				)
			}
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func (cfg *apiConfig) handlerVideoGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := cfg.authenticate(w, r)
	if !ok {
		return
	}
	video, ok := cfg.ownedVideo(w, r, userID)
	if !ok {
		return
	}

	signed, err := cfg.dbVideoToSignedVideo(r.Context(), video)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Couldn't sign video URL", err)
		return
	}
	respondWithJSON(w, http.StatusOK, signed)
}

func (cfg *apiConfig) handlerVideosRetrieve(w http.ResponseWriter, r *http.Request) {
	userID, ok := cfg.authenticate(w, r)
	if !ok {
		return
	}

	videos, err := cfg.db.GetVideos(userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Couldn't retrieve videos", err)
		return
	}

	signed := make([]database.Video, 0, len(videos))
	for _, video := range videos {
		v, err := cfg.dbVideoToSignedVideo(r.Context(), video)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Couldn't sign video URL", err)
			return
		}
		signed = append(signed, v)
	}
	respondWithJSON(w, http.StatusOK, signed)
}
