package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/fingerfuse/internal/keyboard"
	"github.com/ayusman/fingerfuse/internal/store"
)

// builtinLayoutID names the default layout, which is served but not stored.
var builtinLayoutID = keyboard.DefaultLayout().ID

// LayoutHandler handles HTTP requests for keyboard layouts.
type LayoutHandler struct {
	store *store.Store
}

// NewLayoutHandler creates a new LayoutHandler with the given store.
func NewLayoutHandler(s *store.Store) *LayoutHandler {
	return &LayoutHandler{store: s}
}

// ServeHTTP routes /api/layouts and /api/layouts/{id}.
func (h *LayoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/layouts")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type createLayoutRequest struct {
	Name string         `json:"name"`
	Keys []keyboard.Key `json:"keys"`
}

type layoutResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Keys      []keyboard.Key `json:"keys"`
	BuiltIn   bool           `json:"built_in,omitempty"`
	CreatedAt string         `json:"created_at,omitempty"`
}

type listLayoutsResponse struct {
	Layouts []layoutResponse `json:"layouts"`
}

func toLayoutResponse(rec *store.LayoutRecord) layoutResponse {
	return layoutResponse{
		ID:        rec.ID,
		Name:      rec.Name,
		Keys:      rec.Keys,
		CreatedAt: formatTime(rec.CreatedAt),
	}
}

func defaultLayoutResponse() layoutResponse {
	l := keyboard.DefaultLayout()
	return layoutResponse{ID: l.ID, Name: l.Name, Keys: l.Keys, BuiltIn: true}
}

// list handles GET /api/layouts. The built-in layout is listed first.
func (h *LayoutHandler) list(w http.ResponseWriter, r *http.Request) {
	layouts, err := h.store.Layouts().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list layouts")
		return
	}

	response := listLayoutsResponse{
		Layouts: make([]layoutResponse, 0, len(layouts)+1),
	}
	response.Layouts = append(response.Layouts, defaultLayoutResponse())
	for _, rec := range layouts {
		response.Layouts = append(response.Layouts, toLayoutResponse(rec))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/layouts/{id}.
func (h *LayoutHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	if id == builtinLayoutID {
		writeJSON(w, http.StatusOK, defaultLayoutResponse())
		return
	}

	rec, err := h.store.Layouts().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Layout not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get layout")
		return
	}

	writeJSON(w, http.StatusOK, toLayoutResponse(rec))
}

// create handles POST /api/layouts.
func (h *LayoutHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createLayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}

	layout := &keyboard.Layout{Name: req.Name, Keys: req.Keys}
	if err := layout.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Layouts().Create(layout); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create layout")
		return
	}

	rec, err := h.store.Layouts().GetByID(layout.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load layout")
		return
	}
	writeJSON(w, http.StatusCreated, toLayoutResponse(rec))
}

// delete handles DELETE /api/layouts/{id}.
func (h *LayoutHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if id == builtinLayoutID {
		writeError(w, http.StatusBadRequest, "The built-in layout cannot be deleted")
		return
	}

	if err := h.store.Layouts().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Layout not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete layout")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
