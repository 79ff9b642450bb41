package stream

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	chathandler "github.com/zhouzirui/adventure-chat/backend/internal/handler/chat"
	"github.com/zhouzirui/adventure-chat/backend/internal/service/session"
	"github.com/zhouzirui/adventure-chat/backend/pkg/utils"
)

const defaultHeartbeat = 15 * time.Second

// Handler pushes chat updates over Server-Sent Events.
type Handler struct {
	sessions  *session.Manager
	heartbeat time.Duration
}

// New creates a stream handler.
func New(sessions *session.Manager) *Handler {
	return &Handler{sessions: sessions, heartbeat: defaultHeartbeat}
}

// RegisterRoutes mounts the stream route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

// handleStream sends the current transcript, then one "chat" event per
// change until the client leaves or the session is disposed.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	sess, err := h.sessions.Get(sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	if err := sess.Wait(ctx); err != nil {
		return
	}

	updates, unsubscribe := sess.Chat.Subscribe()
	defer unsubscribe()

	utils.SetupSSEHeaders(w)
	log.Debug().Str("session", sessionID).Msg("[sse] opening chat stream")

	if err := utils.SendSSEEvent(w, flusher, "chat", chathandler.StateOf(sess)); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("session", sessionID).Msg("[sse] closing chat stream")
			return
		case history, ok := <-updates:
			if !ok {
				_ = utils.SendSSEEvent(w, flusher, "closed", map[string]string{"sessionId": sessionID})
				return
			}
			if err := utils.SendSSEEvent(w, flusher, "chat", chathandler.StateWith(sess, history)); err != nil {
				log.Debug().Err(err).Str("session", sessionID).Msg("[sse] client went away")
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
		}
	}
}
