package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	chatmodel "github.com/zhouzirui/adventure-chat/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/adventure-chat/backend/internal/service/chat"
	"github.com/zhouzirui/adventure-chat/backend/internal/service/session"
	"github.com/zhouzirui/adventure-chat/backend/pkg/utils"
)

// State is the chat view pushed to clients.
type State struct {
	SessionID   string        `json:"sessionId"`
	ChatHistory chatmodel.Log `json:"chat_history"`
	Connected   bool          `json:"connected"`
	Source      string        `json:"source"`
}

// StateOf snapshots a session's chat.
func StateOf(sess *session.Session) State {
	return StateWith(sess, sess.Chat.Entries())
}

// StateWith builds a view around an already copied transcript.
func StateWith(sess *session.Session, history chatmodel.Log) State {
	return State{
		SessionID:   sess.ID,
		ChatHistory: history,
		Connected:   sess.Chat.Connected(),
		Source:      string(sess.Chat.Source()),
	}
}

// Handler serves session and chat endpoints.
type Handler struct {
	sessions *session.Manager
}

// New creates a chat handler.
func New(sessions *session.Manager) *Handler {
	return &Handler{sessions: sessions}
}

// RegisterRoutes mounts the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Delete("/session/{sessionID}", h.handleEndSession)

	r.Route("/chat/{sessionID}", func(r chi.Router) {
		r.Get("/", h.handleGetChat)
		r.Post("/messages", h.handleSubmit)
		r.Post("/next", h.handleNext)
		r.Post("/save", h.handleSave)
		r.Post("/reset", h.handleReset)
	})
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"sessionId"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.sessions.Create(r.Context(), payload.SessionID)
	switch {
	case errors.Is(err, session.ErrInvalidSessionID):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, session.ErrManagerClosed):
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		utils.RespondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, sess.Session)
}

func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.End(chi.URLParam(r, "sessionID")); err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetChat(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadedSession(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, StateOf(sess))
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, ok := h.loadedSession(w, r)
	if !ok {
		return
	}

	accepted := sess.Chat.Submit(payload.Text)
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"accepted": accepted,
		"state":    StateOf(sess),
	})
}

func (h *Handler) handleNext(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadedSession(w, r)
	if !ok {
		return
	}
	sess.Chat.AppendGame(chatservice.NextCommand)
	utils.RespondJSON(w, http.StatusOK, StateOf(sess))
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadedSession(w, r)
	if !ok {
		return
	}

	if err := sess.Chat.Save(r.Context()); err != nil {
		log.Warn().Err(err).Str("session", sess.ID).Msg("[chat] save request failed")
		utils.RespondError(w, http.StatusInsufficientStorage, "save failed")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadedSession(w, r)
	if !ok {
		return
	}

	if _, err := sess.Chat.Reset(r.Context()); err != nil {
		log.Warn().Err(err).Str("session", sess.ID).Msg("[chat] reset request failed")
		utils.RespondError(w, http.StatusInternalServerError, "reset failed")
		return
	}
	utils.RespondJSON(w, http.StatusOK, StateOf(sess))
}

// loadedSession resolves the session in the URL and waits for its startup
// work so requests never race the initial transcript or the connectivity
// check.
func (h *Handler) loadedSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	if err := sess.Wait(r.Context()); err != nil {
		if errors.Is(err, chatservice.ErrClosed) {
			utils.RespondError(w, http.StatusGone, "session closed")
			return nil, false
		}
		utils.RespondError(w, http.StatusServiceUnavailable, "session still loading")
		return nil, false
	}
	return sess, true
}
