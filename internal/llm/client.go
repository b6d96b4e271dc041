// Package llm is the model gateway: it turns a prompt into display-ready
// text using either a locally installed model run as a subprocess or a
// remote HTTP endpoint.
//
// Failures never escape as Go errors. Every call yields a Result whose
// Text is what the UI shows, prefixed with "Error: " when something went
// wrong; OK lets internal callers branch without inspecting the text.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/soyeahso/uncover/internal/domain"
)

// ErrorPrefix starts the display text of every failed Result.
const ErrorPrefix = "Error: "

var (
	// ErrInvalidMode is returned for modes other than local and api.
	ErrInvalidMode = errors.New("Invalid mode specified. Use 'local' or 'api'.")

	// ErrMissingAPIURL is returned when api mode is used without a URL.
	ErrMissingAPIURL = errors.New("API URL must be provided in API mode.")
)

// Request is a single prompt for the gateway.
type Request struct {
	Prompt      string      `json:"prompt"`
	Model       string      `json:"model"`
	Mode        domain.Mode `json:"mode"`
	APIURL      string      `json:"apiUrl,omitempty"`
	AccessToken string      `json:"accessToken,omitempty"`
}

// RequestFor builds a Request from UI settings.
func RequestFor(prompt string, s domain.Settings) Request {
	return Request{
		Prompt:      prompt,
		Model:       s.Model,
		Mode:        s.Mode,
		APIURL:      s.APIURL,
		AccessToken: s.AccessToken,
	}
}

// Result is the outcome of a gateway call. Text is always display-ready.
type Result struct {
	OK   bool   `json:"ok"`
	Text string `json:"text"`
}

// Success wraps model output.
func Success(text string) Result {
	return Result{OK: true, Text: text}
}

// Failure renders err as an "Error: ..." display string.
func Failure(err error) Result {
	return Result{Text: ErrorPrefix + err.Error()}
}

// Failuref builds a failed Result with a custom display string, for the
// auxiliary operations whose messages do not start with ErrorPrefix.
func Failuref(format string, args ...any) Result {
	return Result{Text: fmt.Sprintf(format, args...)}
}

func (r Result) String() string { return r.Text }

// Backend answers prompts for one mode.
type Backend interface {
	// Complete returns the trimmed model answer.
	Complete(ctx context.Context, req Request) (string, error)

	// Name returns the backend name (e.g., "ollama-cli", "http").
	Name() string
}

// Responder is what the chat controller depends on.
type Responder interface {
	Respond(ctx context.Context, req Request) Result
}
