package domain

import (
	"fmt"
	"time"
)

// Mode selects which model backend answers a prompt.
type Mode string

const (
	ModeLocal Mode = "local"
	ModeAPI   Mode = "api"
)

// EndpointConfig is a saved remote endpoint. Rows are append-only; the most
// recently saved one is active.
type EndpointConfig struct {
	ID       int64     `json:"id"`
	URL      string    `json:"url"`
	Port     int       `json:"port"`
	Protocol string    `json:"protocol"` // "http" | "https"
	APIKey   string    `json:"apiKey"`
	SavedAt  time.Time `json:"savedAt"`
}

// BaseURL returns protocol://url:port.
func (e EndpointConfig) BaseURL() string {
	return fmt.Sprintf("%s://%s:%d", e.Protocol, e.URL, e.Port)
}

// ModelURL returns the URL prompts are posted to in api mode.
func (e EndpointConfig) ModelURL() string {
	return e.BaseURL() + "/model"
}

// Settings are the per-call model choices supplied by the UI.
type Settings struct {
	Model       string `json:"model"`
	Mode        Mode   `json:"mode"`
	APIURL      string `json:"apiUrl,omitempty"`
	AccessToken string `json:"accessToken,omitempty"`
}

// Complete reports whether every field needed to reach the endpoint is set.
func (e EndpointConfig) Complete() bool {
	return e.URL != "" && e.Port != 0 && e.Protocol != "" && e.APIKey != ""
}
