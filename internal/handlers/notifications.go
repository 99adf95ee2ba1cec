package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/Cryptoprojectsfun/advisorhub/internal/logger"
	"github.com/Cryptoprojectsfun/advisorhub/internal/middleware"
	"github.com/Cryptoprojectsfun/advisorhub/internal/notify"
)

type NotificationHandler struct {
	publisher notify.Publisher
	hub       *notify.Hub
	upgrader  *websocket.Upgrader
	log       *logger.Logger
	errors    *middleware.ErrorWriter
}

// BroadcastRequest still accepts type and payload from older senders;
// both are replaced before publishing.
type BroadcastRequest struct {
	Type       string          `json:"type,omitempty"`
	Message    string          `json:"message"`
	Recipients []string        `json:"recipients"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// NewNotificationHandler accepts websocket upgrades from allowedOrigins;
// an empty list allows any origin.
func NewNotificationHandler(publisher notify.Publisher, hub *notify.Hub, allowedOrigins []string, log *logger.Logger, errs *middleware.ErrorWriter) *NotificationHandler {
	return &NotificationHandler{
		publisher: publisher,
		hub:       hub,
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log:    log,
		errors: errs,
	}
}

// Broadcast is fire and forget: it always answers {success: true}. Only
// a logged-in sender reaches the hub, and always as a plain broadcast.
func (h *NotificationHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	defer respond(w, http.StatusOK, map[string]bool{"success": true})

	sender, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		h.log.WithContext(r.Context()).Debug("Ignoring anonymous notification")
		return
	}
	var req BroadcastRequest
	if err := middleware.DecodeJSON(r, &req); err != nil {
		h.log.WithContext(r.Context()).WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Warn("Ignoring malformed notification")
		return
	}

	h.publisher.Publish(notify.Notification{
		Type:       notify.TypeBroadcast,
		Message:    req.Message,
		Recipients: req.Recipients,
		Payload:    map[string]string{"senderId": sender.ID, "senderName": sender.Name},
	})
}

// Stream upgrades an authenticated request to a websocket carrying the
// caller's notifications.
func (h *NotificationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	caller, err := actor(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	if err := notify.Serve(h.hub, h.upgrader, w, r, caller.ID, string(caller.Role)); err != nil {
		h.log.WithContext(r.Context()).WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Warn("Websocket upgrade failed")
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}
