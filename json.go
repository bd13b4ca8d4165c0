package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/shaikrahim04/file-storage-s3/internal/upload"
)

func respondWithError(w http.ResponseWriter, code int, msg string, err error) {
	if err != nil {
		zap.L().Debug("request failed", zap.Int("status", code), zap.String("message", msg), zap.Error(err))
	}
	if code > 499 {
		zap.L().Error("Responding with 5XX error", zap.String("message", msg), zap.Error(err))
	}
	type errorResponse struct {
		Error string `json:"error"`
	}
	respondWithJSON(w, code, errorResponse{
		Error: msg,
	})
}

// respondWithUploadError maps an upload pipeline failure to its status code.
// Processing errors keep the tool output in the log, not the response.
func respondWithUploadError(w http.ResponseWriter, err error) {
	var uerr *upload.Error
	if !errors.As(err, &uerr) {
		respondWithError(w, http.StatusInternalServerError, "Unable to upload video", err)
		return
	}
	switch uerr.Kind {
	case upload.KindClientInput:
		respondWithError(w, http.StatusBadRequest, uerr.Message, uerr.Err)
	default:
		respondWithError(w, http.StatusInternalServerError, uerr.Message, uerr.Err)
	}
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	dat, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("Error marshalling JSON", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(code)
	w.Write(dat)
}
