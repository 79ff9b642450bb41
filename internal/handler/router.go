package handler

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	backgroundhandler "github.com/zhouzirui/adventure-chat/backend/internal/handler/background"
	chathandler "github.com/zhouzirui/adventure-chat/backend/internal/handler/chat"
	"github.com/zhouzirui/adventure-chat/backend/internal/handler/live"
	"github.com/zhouzirui/adventure-chat/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/adventure-chat/backend/internal/middleware"
	bgmodel "github.com/zhouzirui/adventure-chat/backend/internal/model/background"
	"github.com/zhouzirui/adventure-chat/backend/internal/service/background"
	"github.com/zhouzirui/adventure-chat/backend/internal/service/session"
	"github.com/zhouzirui/adventure-chat/backend/pkg/utils"
)

// Options carries what the router needs besides the session manager.
type Options struct {
	Catalog        *bgmodel.Catalog
	Prober         background.Prober
	Static         fs.FS
	AllowedOrigins []string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(sessions *session.Manager, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(opts.AllowedOrigins))

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"status":   "ok",
				"sessions": sessions.Len(),
			})
		})

		chathandler.New(sessions).RegisterRoutes(api)
		backgroundhandler.New(sessions, opts.Catalog, opts.Prober).RegisterRoutes(api)
		stream.New(sessions).RegisterRoutes(api)
		live.NewWebSocketHandler(sessions).RegisterRoutes(api)
	})

	if opts.Static != nil {
		r.Handle("/*", http.FileServerFS(opts.Static))
	}

	return r
}
