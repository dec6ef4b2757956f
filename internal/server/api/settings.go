package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ayusman/fingerfuse/internal/config"
	"github.com/ayusman/fingerfuse/internal/store"
)

// maxSettingsBody bounds PUT /api/settings bodies.
const maxSettingsBody = 1 << 20

// SettingsHandler serves the stored tuning overrides at /api/settings.
// Saved overrides are merged over the tuning file on the next start.
type SettingsHandler struct {
	store *store.Store
}

// NewSettingsHandler creates a new SettingsHandler with the given store.
func NewSettingsHandler(s *store.Store) *SettingsHandler {
	return &SettingsHandler{store: s}
}

// ServeHTTP implements the http.Handler interface.
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPut:
		h.put(w, r)
	case http.MethodDelete:
		h.reset(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// get handles GET /api/settings and returns the stored overrides.
func (h *SettingsHandler) get(w http.ResponseWriter, r *http.Request) {
	raw, err := h.store.Settings().Get(store.SettingTuning)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusOK, config.EmptyTuningConfig())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	cfg, err := config.ParseTuningConfig([]byte(raw))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Stored settings are invalid")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// put handles PUT /api/settings. The body replaces the stored overrides.
func (h *SettingsHandler) put(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSettingsBody+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body")
		return
	}
	if len(body) > maxSettingsBody {
		writeError(w, http.StatusRequestEntityTooLarge, "Settings too large")
		return
	}

	cfg, err := config.ParseTuningConfig(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	canonical, err := json.Marshal(cfg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode settings")
		return
	}
	if err := h.store.Settings().Set(store.SettingTuning, string(canonical)); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// reset handles DELETE /api/settings and drops all overrides.
func (h *SettingsHandler) reset(w http.ResponseWriter, r *http.Request) {
	err := h.store.Settings().Delete(store.SettingTuning)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to reset settings")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
