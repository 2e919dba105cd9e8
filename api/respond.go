package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/garnizeh/ats/internal/hiring"
	"github.com/garnizeh/ats/internal/lifecycle"
	"github.com/garnizeh/ats/internal/ranking"
	"github.com/garnizeh/ats/pkg/repository"
	"github.com/gorilla/mux"
)

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", slog.Any("err", err))
	}
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, hiring.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, hiring.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, hiring.ErrInvalidAnswers),
		errors.Is(err, hiring.ErrInvalidResume),
		errors.Is(err, hiring.ErrInvalidJob),
		errors.Is(err, ranking.ErrInvalidCount):
		return http.StatusBadRequest
	case errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrNotWithdrawable),
		errors.Is(err, hiring.ErrDuplicateApplication),
		errors.Is(err, hiring.ErrJobClosed),
		errors.Is(err, repository.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, hiring.ErrNoEligibleApplications),
		errors.Is(err, hiring.ErrInsufficientCandidates):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("err", err),
		)
		http.Error(w, "Internal Server Error", status)
		return
	}

	http.Error(w, err.Error(), status)
}

// pathID parses the named mux route variable as a positive id.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
