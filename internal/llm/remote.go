package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/soyeahso/uncover/internal/domain"
	"github.com/soyeahso/uncover/internal/logging"
	"github.com/soyeahso/uncover/internal/version"
)

// StatusError is a non-200 answer from a remote endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status code %d with message: %s", e.Code, e.Body)
}

// RemoteClient posts prompts to a user-supplied HTTP endpoint.
type RemoteClient struct {
	client *http.Client
	log    *logging.Logger
}

// NewRemoteClient creates a remote endpoint client. A zero timeout leaves
// the deadline to the caller's context.
func NewRemoteClient(timeout time.Duration, log *logging.Logger) *RemoteClient {
	return &RemoteClient{
		client: &http.Client{Timeout: timeout},
		log:    log.Sub("llm.remote"),
	}
}

// Name returns the backend name.
func (c *RemoteClient) Name() string { return "http" }

type remoteRequest struct {
	Prompt string `json:"prompt"`
}

type remoteResponse struct {
	Result string `json:"result"`
}

// Complete sends {"prompt": ...} to req.APIURL and returns the trimmed
// "result" field of the reply.
func (c *RemoteClient) Complete(ctx context.Context, req Request) (string, error) {
	if req.APIURL == "" {
		return "", ErrMissingAPIURL
	}

	payload, err := json.Marshal(remoteRequest{Prompt: req.Prompt})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.APIURL, strings.NewReader(string(payload)))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", version.UserAgent())
	if req.AccessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.AccessToken)
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var out remoteResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	c.log.Debug().
		Str("url", req.APIURL).
		Dur("duration", time.Since(start)).
		Msg("remote completion done")

	return strings.TrimSpace(out.Result), nil
}

type probeResponse struct {
	Message string `json:"message"`
}

// Probe checks that a saved endpoint answers GET /test. The returned text
// is shown next to the endpoint form.
func (c *RemoteClient) Probe(ctx context.Context, ep domain.EndpointConfig) Result {
	if !ep.Complete() {
		return Failuref("Please fill in all fields.")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.BaseURL()+"/test", nil)
	if err != nil {
		return Failuref("Connection error: %v", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+ep.APIKey)
	httpReq.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Failuref("Connection error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Failuref("Error: Received status code %d", resp.StatusCode)
	}

	var out probeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Failuref("Connection error: %v", err)
	}
	if out.Message == "" {
		out.Message = "Connected successfully!"
	}
	return Success("Success: " + out.Message)
}
