package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	apperrors "github.com/Cryptoprojectsfun/advisorhub/internal/errors"
	"github.com/Cryptoprojectsfun/advisorhub/internal/logger"
)

// ErrorRecorder counts errors returned to callers.
type ErrorRecorder interface {
	ObserveError(errorType, errorCode string)
}

// ErrorWriter renders errors as ErrorResponse bodies.
type ErrorWriter struct {
	log      *logger.Logger
	recorder ErrorRecorder
}

func NewErrorWriter(log *logger.Logger, recorder ErrorRecorder) *ErrorWriter {
	return &ErrorWriter{log: log, recorder: recorder}
}

// Write maps err to its status code. Internal failures are logged with
// their cause; the caller only sees the public message.
func (e *ErrorWriter) Write(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.FromError(err)
	requestID := logger.RequestIDFromContext(r.Context())

	if appErr.StatusCode >= http.StatusInternalServerError {
		e.log.WithContext(r.Context()).WithFields(map[string]interface{}{
			"path":  r.URL.Path,
			"error": err.Error(),
		}).Error("Request failed")
	}
	if e.recorder != nil {
		e.recorder.ObserveError(appErr.Type.String(), appErr.ErrorCode)
	}

	WriteJSON(w, appErr.StatusCode, apperrors.NewErrorResponse(appErr, requestID))
}

// Recovery turns a panic into a 500 response.
func (e *ErrorWriter) Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				e.Write(w, r, apperrors.NewInternalError("Internal server error", fmt.Errorf("panic: %v", rec)))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}
