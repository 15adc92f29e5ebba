package httpapi

import (
	"net/http"
	"time"

	"github.com/category-clash/server/internal/game"
)

type RoomDirectory interface {
	Describe(code string) (game.RoomInfo, bool)
}

type CategoryLister interface {
	Categories() []string
}

// Handler serves the small REST surface next to the websocket endpoint.
type Handler struct {
	Rooms      RoomDirectory
	Categories CategoryLister

	now func() time.Time
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type CategoriesResponse struct {
	Categories []string `json:"categories"`
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /api/categories", h.ListCategories)
	mux.HandleFunc("GET /api/rooms/{code}", h.Room)
	mux.HandleFunc("/api/", notFound)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	now := time.Now
	if h.now != nil {
		now = h.now
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CategoriesResponse{Categories: h.Categories.Categories()})
}

func (h *Handler) Room(w http.ResponseWriter, r *http.Request) {
	code := game.NormalizeCode(r.PathValue("code"))
	if code == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "room code is required")
		return
	}

	info, ok := h.Rooms.Describe(code)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "room not found")
		return
	}
	writeJSON(w, http.StatusOK, info)
}
