package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/pavelanni/comunizika/internal/i18n"
	"github.com/pavelanni/comunizika/internal/model"
	"github.com/pavelanni/comunizika/internal/progress"
	"github.com/pavelanni/comunizika/internal/store"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	game   *progress.Service
	config model.ServerConfig
}

// New creates a new Handler.
func New(s *store.Store, g *progress.Service, cfg model.ServerConfig) *Handler {
	return &Handler{store: s, game: g, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.csrfMiddleware)

		r.Get("/curriculum", h.handleCurriculum)
		r.Post("/auth/register", h.handleRegister)
		r.Post("/auth/login", h.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/auth/logout", h.handleLogout)
			r.Get("/me", h.handleMe)
			r.Get("/box", h.handleCurrentBox)
			r.Post("/box", h.handleEvaluate)
			r.Post("/box/restart", h.handleRestart)
			r.Get("/history", h.handleHistory)
		})
	})
}

type healthResponse struct {
	Status    string   `json:"status"`
	App       string   `json:"app"`
	Languages []string `json:"languages"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		App:       appI18n.T(r.Context(), "AppTitle"),
		Languages: appI18n.Languages(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// decodeJSON reads a single JSON object from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
