package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/soyeahso/uncover/internal/logging"
)

// DefaultOllamaURL is where a local Ollama daemon listens.
const DefaultOllamaURL = "http://127.0.0.1:11434"

// ModelManager lists, pulls and deletes locally installed models through
// the Ollama API client. Like the gateway it reports failures as text.
type ModelManager struct {
	baseURL string
	client  *api.Client
	log     *logging.Logger
}

// NewModelManager creates a manager for the daemon at baseURL.
func NewModelManager(baseURL string, log *logging.Logger) *ModelManager {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	m := &ModelManager{
		baseURL: baseURL,
		log:     log.Sub("llm.models"),
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		m.log.Warn().Err(err).Str("url", baseURL).Msg("invalid ollama url, using default")
		u, _ = url.Parse(DefaultOllamaURL)
	}
	// Pulls can take minutes; callers bound them with ctx.
	m.client = api.NewClient(u, &http.Client{})
	return m
}

// ListModels returns the installed model names. On failure the names are
// nil and the Result carries "Error listing models: ...".
func (m *ModelManager) ListModels(ctx context.Context) ([]string, Result) {
	resp, err := m.client.List(ctx)
	if err != nil {
		return nil, Failuref("Error listing models: %v", err)
	}

	names := make([]string, 0, len(resp.Models))
	for _, lm := range resp.Models {
		name := lm.Model
		if name == "" {
			name = lm.Name
		}
		names = append(names, name)
	}
	return names, Success(strings.Join(names, "\n"))
}

// PullModel downloads a model and waits for it to finish.
func (m *ModelManager) PullModel(ctx context.Context, name string) Result {
	stream := false
	req := &api.PullRequest{Model: name, Stream: &stream}
	err := m.client.Pull(ctx, req, func(p api.ProgressResponse) error {
		m.log.Debug().Str("model", name).Str("status", p.Status).Msg("pull progress")
		return nil
	})
	if err != nil {
		return Failuref("Error downloading model '%s': %v", name, err)
	}
	m.log.Info().Str("model", name).Msg("model pulled")
	return Success(fmt.Sprintf("Model '%s' downloaded successfully.", name))
}

// DeleteModel removes an installed model.
func (m *ModelManager) DeleteModel(ctx context.Context, name string) Result {
	if err := m.client.Delete(ctx, &api.DeleteRequest{Model: name}); err != nil {
		return Failuref("Error deleting model '%s': %v", name, err)
	}
	m.log.Info().Str("model", name).Msg("model deleted")
	return Success(fmt.Sprintf("Model '%s' deleted successfully.", name))
}
