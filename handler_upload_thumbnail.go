package main

import (
	"io"
	"net/http"
	"os"

	"go.uber.org/zap"
)

func (cfg *apiConfig) handlerUploadThumbnail(w http.ResponseWriter, r *http.Request) {
	userID, ok := cfg.authenticate(w, r)
	if !ok {
		return
	}
	video, ok := cfg.ownedVideo(w, r, userID)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, cfg.thumbnailRule.MaxBytes+multipartSlack)
	const maxMemory = 10 << 20
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		respondWithError(w, http.StatusBadRequest, "Unable to parse form file", err)
		return
	}

	// "thumbnail" should match the HTML form input name
	file, header, err := r.FormFile("thumbnail")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Thumbnail file missing", err)
		return
	}
	defer file.Close()

	_, ext, err := cfg.thumbnailRule.Check(header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		respondWithUploadError(w, err)
		return
	}

	fileName, err := randomAssetName(ext)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Unable to name thumbnail", err)
		return
	}
	diskPath := cfg.getAssetDiskPath(fileName)

	dst, err := os.Create(diskPath)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Unable to create file on server", err)
		return
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(diskPath)
		respondWithError(w, http.StatusInternalServerError, "Error saving file", err)
		return
	}

	url := cfg.getAssetURL(fileName)
	video.ThumbnailURL = &url
	if err := cfg.db.UpdateVideo(video); err != nil {
		os.Remove(diskPath)
		respondWithError(w, http.StatusInternalServerError, "Couldn't update video", err)
		return
	}

	cfg.logger.Info("stored thumbnail",
		zap.String("video_id", video.ID.String()),
		zap.String("file", fileName),
	)

	signed, err := cfg.dbVideoToSignedVideo(r.Context(), video)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Couldn't sign video URL", err)
		return
	}
	respondWithJSON(w, http.StatusOK, signed)
}
