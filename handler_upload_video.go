package main

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"go.uber.org/zap"

	"github.com/shaikrahim04/file-storage-s3/internal/upload"
)

// multipartSlack allows for boundaries and part headers around the video.
const multipartSlack = 1 << 20

func (cfg *apiConfig) handlerUploadVideo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, cfg.maxVideoSize+multipartSlack)

	userID, ok := cfg.authenticate(w, r)
	if !ok {
		return
	}
	video, ok := cfg.ownedVideo(w, r, userID)
	if !ok {
		return
	}

	// The form is streamed part by part so nothing touches the disk before
	// the pipeline has validated the upload.
	part, err := findFormPart(r, "video")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Video file missing", err)
		return
	}
	defer part.Close()

	cfg.logger.Info("uploading video",
		zap.String("video_id", video.ID.String()),
		zap.String("user_id", userID.String()),
	)

	signed, err := cfg.videoUploads.Upload(r.Context(), video, upload.Request{
		OwnerID:     userID,
		Body:        part,
		Size:        declaredPartSize(r.ContentLength),
		ContentType: part.Header.Get("Content-Type"),
	})
	if err != nil {
		respondWithUploadError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, signed)
}

// declaredPartSize bounds the size of the file part from the request
// Content-Length, less the envelope allowance. Unknown lengths stay unknown
// and are only checked while streaming.
func declaredPartSize(contentLength int64) int64 {
	if contentLength < 0 {
		return -1
	}
	return max(contentLength-multipartSlack, 0)
}

// findFormPart advances the multipart body to the file part named field.
func findFormPart(r *http.Request, field string) (*multipart.Part, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			return nil, errors.New("no " + field + " field in form")
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == field {
			return part, nil
		}
		part.Close()
	}
}
