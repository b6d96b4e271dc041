// Package gateway is the loopback HTTP + WebSocket bridge between the UI
// shell and the chat controller.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/uncover/internal/chat"
	"github.com/soyeahso/uncover/internal/config"
	"github.com/soyeahso/uncover/internal/domain"
	"github.com/soyeahso/uncover/internal/hooks"
	"github.com/soyeahso/uncover/internal/llm"
	"github.com/soyeahso/uncover/internal/logging"
	"github.com/soyeahso/uncover/internal/version"
)

var ErrClientClosed = errors.New("client connection closed")

const (
	maxPayload       = 4 * 1024 * 1024
	handshakeTimeout = 10 * time.Second
)

// EndpointStore persists remote endpoint configurations.
type EndpointStore interface {
	SaveEndpoint(ctx context.Context, url string, port int, protocol, apiKey string) (domain.EndpointConfig, error)
	LatestEndpoint(ctx context.Context) (domain.EndpointConfig, bool, error)
}

// Prober checks that a remote endpoint answers.
type Prober interface {
	Probe(ctx context.Context, ep domain.EndpointConfig) llm.Result
}

// ModelAdmin manages models on the local runner.
type ModelAdmin interface {
	ListModels(ctx context.Context) ([]string, llm.Result)
	PullModel(ctx context.Context, name string) llm.Result
	DeleteModel(ctx context.Context, name string) llm.Result
}

// Server is the uncover UI bridge.
type Server struct {
	cfg      config.GatewayConfig
	log      *logging.Logger
	shells   *shellSet
	handlers map[string]RequestHandler
	version  string

	chat      *chat.Controller
	settings  *chat.SettingsHolder
	endpoints EndpointStore
	prober    Prober
	models    ModelAdmin
	hooks     *hooks.Manager

	inflight sync.WaitGroup

	mu         sync.Mutex
	startedAt  time.Time
	httpServer *http.Server
	addr       string
	upgrader   websocket.Upgrader
}

// ServerOption configures the bridge.
type ServerOption func(*Server)

// WithEndpoints enables the endpoint.* methods.
func WithEndpoints(es EndpointStore, p Prober) ServerOption {
	return func(s *Server) {
		s.endpoints = es
		s.prober = p
	}
}

// WithModels enables the models.* methods.
func WithModels(m ModelAdmin) ServerOption {
	return func(s *Server) {
		s.models = m
	}
}

// WithHooks forwards chat lifecycle events to connected clients and emits
// gateway start/stop.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) {
		s.hooks = hm
	}
}

// New creates the bridge around a chat controller and the shared settings.
func New(cfg config.GatewayConfig, ctrl *chat.Controller, settings *chat.SettingsHolder, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:      cfg,
		log:      log.Sub("gateway"),
		shells:   newShellSet(log.Sub("shells")),
		handlers: make(map[string]RequestHandler),
		version:  version.Version,
		chat:     ctrl,
		settings: settings,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.AllowedOrigins),
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.registerRPCHandlers()
	if s.hooks != nil {
		s.bindHooks()
	}
	return s
}

// checkWebSocketOrigin accepts requests without an Origin header and those
// whose Origin is allow-listed.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return originAllowed(origin, allowed)
	}
}

// Handle registers an RPC method handler.
func (s *Server) Handle(method string, handler RequestHandler) {
	s.handlers[method] = handler
}

// Methods returns the registered RPC method names, sorted.
func (s *Server) Methods() []string {
	methods := make([]string, 0, len(s.handlers))
	for m := range s.handlers {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// Events returns the event names the bridge pushes.
func (s *Server) Events() []string {
	return []string{EventConnectChallenge, EventChatResponse, EventSessionsChanged}
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "127.0.0.1"
		}
		return net.JoinHostPort(host, fmt.Sprint(cfg.Port))
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Handler returns the bridge's HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)
	return s.withMiddleware(mux)
}

// Start listens and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", resolveBindAddr(s.cfg))
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", resolveBindAddr(s.cfg), err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the bridge on an existing listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.httpServer = srv
	s.addr = ln.Addr().String()
	s.startedAt = time.Now()
	s.mu.Unlock()

	if s.cfg.Bind == "lan" || s.cfg.Bind == "custom" {
		s.log.Warn().Str("bind", s.cfg.Bind).Msg("bridge reachable beyond loopback without authentication")
	}
	s.log.Info().
		Str("addr", s.addr).
		Int("methods", len(s.handlers)).
		Msg("gateway server ready")

	if s.hooks != nil {
		s.hooks.Emit(ctx, hooks.EventGatewayStart, map[string]any{"addr": s.addr})
	}

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		if s.hooks != nil {
			s.hooks.Emit(context.WithoutCancel(ctx), hooks.EventGatewayStop, nil)
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		s.shells.closeAll()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.inflight.Wait()
	return nil
}

// Addr returns the address the bridge listens on, or "" before Serve.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Uptime reports how long the bridge has been serving.
func (s *Server) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}

// Broadcast pushes an event to every connected shell and returns how many
// received it.
func (s *Server) Broadcast(event string, payload any) int {
	return s.shells.publish(event, payload)
}

// bindHooks turns chat lifecycle events into pushed events.
func (s *Server) bindHooks() {
	s.hooks.On(hooks.EventTurnResolved, "gateway", func(ctx context.Context, p hooks.Payload) error {
		s.Broadcast(EventChatResponse, p.Data["turn"])
		return nil
	})
	s.hooks.On(hooks.EventSessionCreated, "gateway", func(ctx context.Context, p hooks.Payload) error {
		sess, _ := p.Data["session"].(domain.Session)
		s.Broadcast(EventSessionsChanged, SessionsChanged{Reason: "created", Session: &sess})
		return nil
	})
	s.hooks.On(hooks.EventSessionDeleted, "gateway", func(ctx context.Context, p hooks.Payload) error {
		id, _ := p.Data["sessionId"].(string)
		s.Broadcast(EventSessionsChanged, SessionsChanged{Reason: "deleted", Deleted: id})
		return nil
	})
	s.hooks.On(hooks.EventSessionsRenamed, "gateway", func(ctx context.Context, p hooks.Payload) error {
		s.Broadcast(EventSessionsChanged, SessionsChanged{Reason: "renamed", Renamed: p.Data["renamed"]})
		return nil
	})
}

// handleWebSocket upgrades the request and runs the connection until the
// shell disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxPayload)

	s.log.Debug().Str("remote", r.RemoteAddr).Msg("new websocket connection")

	sh, err := s.handshake(conn)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("handshake failed")
		conn.Close()
		return
	}

	s.shells.join(sh)
	defer s.shells.leave(sh)

	s.readLoop(r.Context(), sh)
}

// handshake runs connect.challenge → connect → hello-ok.
func (s *Server) handshake(conn *websocket.Conn) (*Shell, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	challenge, err := NewEvent(EventConnectChallenge, map[string]any{
		"nonce": uuid.NewString(),
		"ts":    time.Now().UnixMilli(),
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("creating challenge: %w", err)
	}
	if err := conn.WriteJSON(challenge); err != nil {
		return nil, fmt.Errorf("sending challenge: %w", err)
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("reading connect: %w", err)
	}

	var frame Frame
	if err := json.Unmarshal(msg, &frame); err != nil {
		return nil, fmt.Errorf("parsing connect frame: %w", err)
	}
	if frame.Type != FrameTypeRequest || frame.Method != "connect" {
		sendErrorAndClose(conn, frame.ID, CodeProtocol, "expected connect request")
		return nil, fmt.Errorf("expected connect request, got type=%s method=%s", frame.Type, frame.Method)
	}

	var params ConnectParams
	if err := json.Unmarshal(frame.Params, &params); err != nil {
		sendErrorAndClose(conn, frame.ID, CodeInvalidParams, "invalid connect params")
		return nil, fmt.Errorf("parsing connect params: %w", err)
	}
	if params.MaxProtocol != 0 && params.MaxProtocol < ProtocolVersion {
		sendErrorAndClose(conn, frame.ID, CodeProtocol, "unsupported protocol version")
		return nil, fmt.Errorf("client max protocol %d < %d", params.MaxProtocol, ProtocolVersion)
	}

	conn.SetReadDeadline(time.Time{})

	sh := newShell(conn, params.Client)

	hello := HelloOK{
		Protocol: ProtocolVersion,
		Server: ServerInfo{
			Version: s.version,
			Commit:  version.Commit,
			ConnID:  sh.ID,
		},
		Features: Features{
			Methods: s.Methods(),
			Events:  s.Events(),
		},
		Policy:   ServerPolicy{MaxPayload: maxPayload},
		Settings: s.settings.Get(),
	}

	resp, err := NewResponse(frame.ID, hello)
	if err != nil {
		return nil, fmt.Errorf("creating hello response: %w", err)
	}
	if err := conn.WriteJSON(resp); err != nil {
		return nil, fmt.Errorf("sending hello: %w", err)
	}

	s.log.Debug().
		Str("connId", sh.ID).
		Str("clientVersion", params.Client.Version).
		Str("platform", params.Client.Platform).
		Msg("handshake complete")

	return sh, nil
}

// readLoop dispatches request frames until the socket closes.
func (s *Server) readLoop(ctx context.Context, sh *Shell) {
	for {
		frame, err := sh.next()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("connId", sh.ID).Msg("shell closed connection")
			} else {
				s.log.Warn().Err(err).Str("connId", sh.ID).Msg("read error")
			}
			return
		}

		if frame.Type != FrameTypeRequest {
			s.log.Debug().Str("type", frame.Type).Msg("ignoring non-request frame")
			continue
		}

		s.dispatch(ctx, sh, frame)
	}
}

// dispatch runs the method's handler on its own goroutine so slow calls
// (model pulls, endpoint probes) never stall the read loop.
func (s *Server) dispatch(ctx context.Context, sh *Shell, frame Frame) {
	handler, ok := s.handlers[frame.Method]
	if !ok {
		sh.replyError(frame.ID, CodeMethodNotFound, "unknown method: "+frame.Method)
		return
	}

	rc := &RequestContext{
		Ctx:    ctx,
		Shell:  sh,
		Frame:  frame,
		Server: s,
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error().Interface("panic", r).Str("method", frame.Method).Msg("rpc handler panicked")
				rc.RespondError(CodeInternal, fmt.Sprint(r))
			}
		}()
		handler(rc)
	}()
}

// sendErrorAndClose sends an error response and a close frame.
func sendErrorAndClose(conn *websocket.Conn, reqID, code, message string) {
	conn.WriteJSON(NewErrorResponse(reqID, ErrorShape{Code: code, Message: message}))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, message))
}
