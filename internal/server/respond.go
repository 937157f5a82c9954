package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/desertthunder/swiper/internal/models"
)

const maxBodyBytes = 1 << 20

var (
	unauthorizedBody = models.ErrorResponse{Error: "Unauthorized", Message: "Access token is required"}
	invalidJSONBody  = models.ErrorResponse{Error: "Bad Request", Message: "Invalid JSON body"}
	errEmptyBody     = errors.New("empty body")
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMissingParam(w http.ResponseWriter, field string) {
	writeJSON(w, http.StatusBadRequest, models.ErrorResponse{
		Error:   "Bad Request",
		Message: "Missing required parameter: " + field,
	})
}

// writeFailure is the single response for any upstream failure.
func writeFailure(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: message})
}

// decodeBody decodes a JSON request body into v. An empty body yields errEmptyBody.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return errEmptyBody
	}
	return err
}
