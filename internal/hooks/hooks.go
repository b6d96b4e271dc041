// Package hooks dispatches chat lifecycle events to in-process handlers
// and to user-configured shell commands.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"sync"
	"time"

	"github.com/soyeahso/uncover/internal/config"
	"github.com/soyeahso/uncover/internal/logging"
)

// Event names for the hook system.
const (
	EventTurnPending     = "turn_pending"
	EventTurnResolved    = "turn_resolved"
	EventSessionCreated  = "session_created"
	EventSessionDeleted  = "session_deleted"
	EventSessionsRenamed = "sessions_renamed"
	EventGatewayStart    = "gateway_start"
	EventGatewayStop     = "gateway_stop"
)

// AllEvents lists all known hook event names.
var AllEvents = []string{
	EventTurnPending,
	EventTurnResolved,
	EventSessionCreated,
	EventSessionDeleted,
	EventSessionsRenamed,
	EventGatewayStart,
	EventGatewayStop,
}

// Payload is what handlers receive. Command hooks get it as JSON on stdin.
type Payload struct {
	Event string         `json:"event"`
	At    time.Time      `json:"at"`
	Data  map[string]any `json:"data,omitempty"`
}

// Handler handles a hook event. Returning an error logs the failure but
// does not stop processing.
type Handler func(ctx context.Context, p Payload) error

// Manager manages hook registrations and dispatches events.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	inflight sync.WaitGroup
	log      *logging.Logger
}

type namedHandler struct {
	name    string
	handler Handler
}

// NewManager creates a hook manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("hooks"),
	}
}

// On registers a handler for the given event.
func (m *Manager) On(event, name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], namedHandler{name: name, handler: handler})
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// Off removes the event's handlers registered under name.
func (m *Manager) Off(event, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = slices.DeleteFunc(m.handlers[event], func(h namedHandler) bool {
		return h.name == name
	})
}

func (m *Manager) snapshot(event string) []namedHandler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.handlers[event])
}

// Emit dispatches an event to all registered handlers synchronously, in
// registration order.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) {
	payload := Payload{Event: event, At: time.Now(), Data: data}
	for _, h := range m.snapshot(event) {
		m.call(ctx, h, payload)
	}
}

// EmitAsync dispatches an event to all registered handlers concurrently
// and returns immediately. Use Wait to drain in-flight handlers.
func (m *Manager) EmitAsync(ctx context.Context, event string, data map[string]any) {
	payload := Payload{Event: event, At: time.Now(), Data: data}
	for _, h := range m.snapshot(event) {
		m.inflight.Add(1)
		go func(h namedHandler) {
			defer m.inflight.Done()
			m.call(ctx, h, payload)
		}(h)
	}
}

// Wait blocks until every handler started by EmitAsync has returned.
func (m *Manager) Wait() {
	m.inflight.Wait()
}

func (m *Manager) call(ctx context.Context, h namedHandler, p Payload) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().
				Interface("panic", r).
				Str("event", p.Event).
				Str("handler", h.name).
				Msg("hook handler panicked")
		}
	}()
	if err := h.handler(ctx, p); err != nil {
		m.log.Warn().
			Err(err).
			Str("event", p.Event).
			Str("handler", h.name).
			Msg("hook handler error")
	}
}

// Count returns the number of handlers registered for an event.
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[event])
}

// RegisterCommands installs the shell hooks from the config file.
func (m *Manager) RegisterCommands(cfg config.HooksConfig) {
	register := func(event string, entries []config.HookEntry) {
		for i, e := range entries {
			m.On(event, fmt.Sprintf("command:%s:%d", event, i), CommandHandler(e))
		}
	}
	register(EventTurnResolved, cfg.TurnResolved)
	register(EventSessionsRenamed, cfg.SessionsRenamed)
	register(EventGatewayStart, cfg.GatewayStart)
	register(EventGatewayStop, cfg.GatewayStop)
}

// CommandHandler runs `sh -c <command>` with the JSON payload on stdin and
// the event name in $UNCOVER_EVENT. Timeout defaults to ten seconds.
func CommandHandler(e config.HookEntry) Handler {
	timeout := 10 * time.Second
	if e.Timeout > 0 {
		timeout = time.Duration(e.Timeout) * time.Millisecond
	}
	return func(ctx context.Context, p Payload) error {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding payload: %w", err)
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, "sh", "-c", e.Command)
		cmd.Stdin = bytes.NewReader(data)
		cmd.Env = append(os.Environ(), "UNCOVER_EVENT="+p.Event)
		cmd.Stderr = &stderr
		cmd.WaitDelay = time.Second
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("hook %q: %w: %s", e.Command, err, bytes.TrimSpace(stderr.Bytes()))
		}
		return nil
	}
}
