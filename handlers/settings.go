package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"subrelay/config"
)

// SettingsHandler exposes the runtime configuration for the admin UI.
type SettingsHandler struct {
	CfgManager *config.Manager
}

func NewSettingsHandler(cfgManager *config.Manager) *SettingsHandler {
	return &SettingsHandler{CfgManager: cfgManager}
}

func (h *SettingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	settings := h.CfgManager.Get()
	providers := make([]config.ProviderConfig, len(settings.Providers))
	copy(providers, settings.Providers)
	for i := range providers {
		providers[i].APIKey = "" // never echo credentials
	}
	settings.Providers = providers
	writeJSON(w, http.StatusOK, settings)
}

func (h *SettingsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var incoming config.Settings
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		http.Error(w, "invalid settings payload", http.StatusBadRequest)
		return
	}
	if err := h.CfgManager.Update(incoming); err != nil {
		log.Printf("[settings] update failed: %v", err)
		http.Error(w, "failed to persist settings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
