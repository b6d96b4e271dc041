package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/soyeahso/uncover/internal/domain"
	"github.com/soyeahso/uncover/internal/logging"
)

// Registry maps a mode to the backend that serves it.
type Registry struct {
	mu       sync.RWMutex
	backends map[domain.Mode]Backend
	log      *logging.Logger
}

// NewRegistry creates an empty backend registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		backends: make(map[domain.Mode]Backend),
		log:      log.Sub("llm.registry"),
	}
}

// Register installs a backend for a mode, replacing any previous one.
func (r *Registry) Register(mode domain.Mode, b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[mode] = b
	r.log.Info().Str("mode", string(mode)).Str("backend", b.Name()).Msg("registered model backend")
}

// Resolve returns the backend for a mode, or ErrInvalidMode.
func (r *Registry) Resolve(mode domain.Mode) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if b, ok := r.backends[mode]; ok {
		return b, nil
	}
	return nil, ErrInvalidMode
}

// Modes returns the registered modes.
func (r *Registry) Modes() []domain.Mode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	modes := make([]domain.Mode, 0, len(r.backends))
	for m := range r.backends {
		modes = append(modes, m)
	}
	return modes
}

// Gateway is the single entry point for prompts. It never returns an
// error and never panics; failures come back as "Error: ..." results.
type Gateway struct {
	reg *Registry
	log *logging.Logger
}

// NewGateway creates a gateway over the given registry.
func NewGateway(reg *Registry, log *logging.Logger) *Gateway {
	return &Gateway{reg: reg, log: log.Sub("llm.gateway")}
}

// GatewayOptions configures NewDefaultGateway.
type GatewayOptions struct {
	OllamaCommand string
	Timeout       time.Duration
}

// NewDefaultGateway wires the local subprocess backend and the remote HTTP
// backend into a fresh registry.
func NewDefaultGateway(opts GatewayOptions, log *logging.Logger) *Gateway {
	reg := NewRegistry(log)
	reg.Register(domain.ModeLocal, NewLocalClient(LocalConfig{
		Command: opts.OllamaCommand,
		Timeout: opts.Timeout,
	}, log))
	reg.Register(domain.ModeAPI, NewRemoteClient(opts.Timeout, log))
	return NewGateway(reg, log)
}

// Respond runs the prompt against the backend selected by req.Mode.
func (g *Gateway) Respond(ctx context.Context, req Request) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			g.log.Error().Interface("panic", p).Str("mode", string(req.Mode)).Msg("backend panicked")
			res = Failure(fmt.Errorf("%v", p))
		}
	}()

	backend, err := g.reg.Resolve(req.Mode)
	if err != nil {
		return Failure(err)
	}

	text, err := backend.Complete(ctx, req)
	if err != nil {
		g.log.Warn().Err(err).
			Str("mode", string(req.Mode)).
			Str("backend", backend.Name()).
			Str("model", req.Model).
			Msg("model call failed")
		return Failure(err)
	}
	return Success(text)
}
