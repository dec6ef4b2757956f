package api

import (
	"net/http"

	"github.com/ayusman/fingerfuse/internal/plugin"
)

// PluginHandler lists installed plugins at /api/plugins.
type PluginHandler struct {
	plugins PluginLookup
}

// NewPluginHandler creates a new PluginHandler.
func NewPluginHandler(plugins PluginLookup) *PluginHandler {
	return &PluginHandler{plugins: plugins}
}

type listPluginsResponse struct {
	Plugins []plugin.Manifest `json:"plugins"`
}

// ServeHTTP handles GET /api/plugins.
func (h *PluginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	plugins := h.plugins.List()
	response := listPluginsResponse{Plugins: make([]plugin.Manifest, 0, len(plugins))}
	for _, p := range plugins {
		response.Plugins = append(response.Plugins, p.Manifest)
	}
	writeJSON(w, http.StatusOK, response)
}
