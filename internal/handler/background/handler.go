package background

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	model "github.com/zhouzirui/adventure-chat/backend/internal/model/background"
	"github.com/zhouzirui/adventure-chat/backend/internal/service/background"
	"github.com/zhouzirui/adventure-chat/backend/internal/service/session"
	"github.com/zhouzirui/adventure-chat/backend/pkg/utils"
)

// View is the background a session currently shows.
type View struct {
	Index int         `json:"index"`
	Value model.Value `json:"value"`
	CSS   string      `json:"css"`
}

// ViewOf reads a session's committed background.
func ViewOf(sess *session.Session) View {
	value, index := sess.Background.Current()
	return View{Index: index, Value: value, CSS: value.CSS()}
}

// Handler serves the background catalog and per-session selection.
type Handler struct {
	sessions *session.Manager
	catalog  *model.Catalog
	prober   background.Prober
}

// New creates a background handler.
func New(sessions *session.Manager, catalog *model.Catalog, prober background.Prober) *Handler {
	return &Handler{sessions: sessions, catalog: catalog, prober: prober}
}

// RegisterRoutes mounts the background routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/backgrounds", h.handleCatalog)
	r.Get("/background/{sessionID}", h.handleCurrent)
	r.Put("/background/{sessionID}", h.handleSelect)
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"backgrounds": background.Probe(r.Context(), h.catalog, h.prober),
	})
}

func (h *Handler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, ViewOf(sess))
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Index *int `json:"index"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Index == nil {
		utils.RespondError(w, http.StatusBadRequest, "index is required")
		return
	}

	sess, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	if _, err := sess.Background.Select(r.Context(), *payload.Index); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, background.ErrClosed) {
			status = http.StatusGone
		}
		utils.RespondError(w, status, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, ViewOf(sess))
}
