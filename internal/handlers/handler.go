package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	apperrors "github.com/Cryptoprojectsfun/advisorhub/internal/errors"
	"github.com/Cryptoprojectsfun/advisorhub/internal/middleware"
	"github.com/Cryptoprojectsfun/advisorhub/internal/models"
)

// SessionHeader carries the caller's session id. Each browser tab keeps
// its own, so sessions never bleed into each other.
const SessionHeader = "X-Session-ID"

func actor(r *http.Request) (*models.User, error) {
	user, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return nil, apperrors.NewAuthenticationError("Not authenticated", nil)
	}
	return user, nil
}

func pathID(r *http.Request) string {
	return mux.Vars(r)["id"]
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	middleware.WriteJSON(w, status, body)
}
