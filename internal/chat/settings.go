package chat

import (
	"sync"

	"github.com/soyeahso/uncover/internal/domain"
)

// SettingsHolder keeps the model choices currently selected in the UI.
// The summarizer reads it on every tick.
type SettingsHolder struct {
	mu sync.RWMutex
	s  domain.Settings
}

// NewSettingsHolder starts from the given defaults.
func NewSettingsHolder(initial domain.Settings) *SettingsHolder {
	return &SettingsHolder{s: initial}
}

// Get returns a copy of the current settings.
func (h *SettingsHolder) Get() domain.Settings {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.s
}

// Set replaces the current settings.
func (h *SettingsHolder) Set(s domain.Settings) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.s = s
}

// UseEndpoint switches api mode to a saved endpoint.
func (h *SettingsHolder) UseEndpoint(ep domain.EndpointConfig) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.s.APIURL = ep.ModelURL()
	h.s.AccessToken = ep.APIKey
}
