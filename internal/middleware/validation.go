package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/Cryptoprojectsfun/advisorhub/internal/errors"
)

// ContentTypeJSON rejects bodies that are not declared as JSON.
func ContentTypeJSON(errs *ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
				if r.ContentLength != 0 && !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
					errs.Write(w, r, apperrors.NewValidationError("Content-Type must be application/json", nil))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func MaxBodySize(size int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, size)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// DecodeJSON reads one JSON object from the request body into dst.
// Unknown fields are rejected.
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperrors.NewValidationError("Request body too large", nil)
		case errors.Is(err, io.EOF):
			return apperrors.NewValidationError("Request body is empty", nil)
		default:
			return apperrors.NewValidationError("Malformed JSON body", err)
		}
	}
	return nil
}
