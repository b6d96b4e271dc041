package gateway

import (
	"errors"
	"net/http"
	"strings"

	"github.com/soyeahso/uncover/internal/chat"
)

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("/", handleNotFound)
}

// registerRPCHandlers sets up all RPC method handlers.
func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)

	s.Handle("sessions.list", s.rpcSessionsList)
	s.Handle("sessions.load", s.rpcSessionsLoad)
	s.Handle("sessions.create", s.rpcSessionsCreate)
	s.Handle("sessions.delete", s.rpcSessionsDelete)
	s.Handle("sessions.rename", s.rpcSessionsRename)

	s.Handle("chat.history", s.rpcChatHistory)
	s.Handle("chat.send", s.rpcChatSend)

	s.Handle("settings.get", s.rpcSettingsGet)
	s.Handle("settings.set", s.rpcSettingsSet)

	if s.endpoints != nil {
		s.Handle("endpoint.save", s.rpcEndpointSave)
		s.Handle("endpoint.latest", s.rpcEndpointLatest)
		s.Handle("endpoint.test", s.rpcEndpointTest)
	}
	if s.models != nil {
		s.Handle("models.list", s.rpcModelsList)
		s.Handle("models.pull", s.rpcModelsPull)
		s.Handle("models.delete", s.rpcModelsDelete)
	}
}

func (s *Server) rpcHealth(rc *RequestContext) {
	rc.Respond(HealthResponse{
		Status:   "ok",
		Version:  s.version,
		Clients:  s.shells.len(),
		UptimeMs: s.Uptime().Milliseconds(),
	})
}

// Sessions

func (s *Server) rpcSessionsList(rc *RequestContext) {
	sessions, err := s.chat.Sessions(rc.Ctx)
	if err != nil {
		rc.RespondError(CodeInternal, err.Error())
		return
	}
	rc.Respond(map[string]any{"sessions": sessions})
}

func (s *Server) rpcSessionsLoad(rc *RequestContext) {
	sel, err := s.chat.Load(rc.Ctx)
	if err != nil {
		rc.RespondError(CodeInternal, err.Error())
		return
	}
	rc.Respond(sel)
}

func (s *Server) rpcSessionsCreate(rc *RequestContext) {
	sess, err := s.chat.NewSession(rc.Ctx)
	if err != nil {
		rc.RespondError(CodeInternal, err.Error())
		return
	}
	rc.Respond(map[string]any{"session": sess})
}

func (s *Server) rpcSessionsDelete(rc *RequestContext) {
	var p sessionParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.SessionID == "" {
		rc.RespondError(CodeInvalidParams, "sessionId is required")
		return
	}
	s.chat.DeleteSession(rc.Ctx, p.SessionID)
	rc.Respond(map[string]any{"deleted": p.SessionID})
}

func (s *Server) rpcSessionsRename(rc *RequestContext) {
	var p renameParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.SessionID == "" || p.Name == "" {
		rc.RespondError(CodeInvalidParams, "sessionId and name are required")
		return
	}
	if err := s.chat.Rename(rc.Ctx, p.SessionID, p.Name); err != nil {
		rc.RespondError(CodeInternal, err.Error())
		return
	}
	rc.Respond(p)
}

// Chat

func (s *Server) rpcChatHistory(rc *RequestContext) {
	var p sessionParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.SessionID == "" {
		rc.RespondError(CodeInvalidParams, "sessionId is required")
		return
	}

	msgs, err := s.chat.History(rc.Ctx, p.SessionID)
	if err != nil {
		rc.RespondError(CodeInternal, err.Error())
		return
	}
	questions, err := s.chat.Questions(rc.Ctx, p.SessionID)
	if err != nil {
		rc.RespondError(CodeInternal, err.Error())
		return
	}
	rc.Respond(ChatHistory{
		SessionID: p.SessionID,
		Messages:  msgs,
		Questions: questions,
		Turns:     s.chat.Turns(p.SessionID),
	})
}

// rpcChatSend replies with the pending turn; the answer follows as a
// chat.response event.
func (s *Server) rpcChatSend(rc *RequestContext) {
	var p ChatSendParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}

	settings := s.settings.Get()
	if p.Settings != nil {
		settings = *p.Settings
	}
	turn, err := s.chat.Submit(rc.Ctx, chat.SubmitRequest{
		SessionID:  p.SessionID,
		Input:      p.Input,
		ClickIndex: p.ClickIndex,
		EnterIndex: p.EnterIndex,
		Settings:   settings,
	})
	switch {
	case errors.Is(err, chat.ErrEmptyInput), errors.Is(err, chat.ErrNoSession):
		rc.RespondError(CodeInvalidParams, err.Error())
	case errors.Is(err, chat.ErrDuplicateTurn):
		rc.RespondError(CodeConflict, err.Error())
	case err != nil:
		rc.RespondError(CodeInternal, err.Error())
	default:
		rc.Respond(map[string]any{"turn": turn})
	}
}

// Settings

func (s *Server) rpcSettingsGet(rc *RequestContext) {
	rc.Respond(s.settings.Get())
}

func (s *Server) rpcSettingsSet(rc *RequestContext) {
	settings := s.settings.Get()
	if err := rc.Params(&settings); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	s.settings.Set(settings)
	rc.Respond(settings)
}

// Endpoint

func (s *Server) rpcEndpointSave(rc *RequestContext) {
	var p EndpointParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if !p.endpoint().Complete() {
		rc.RespondError(CodeInvalidParams, "Please fill in all fields.")
		return
	}

	ep, err := s.endpoints.SaveEndpoint(rc.Ctx, p.URL, p.Port, p.Protocol, p.APIKey)
	if err != nil {
		rc.RespondError(CodeInternal, err.Error())
		return
	}
	s.settings.UseEndpoint(ep)
	rc.Respond(map[string]any{"endpoint": ep, "settings": s.settings.Get()})
}

func (s *Server) rpcEndpointLatest(rc *RequestContext) {
	ep, found, err := s.endpoints.LatestEndpoint(rc.Ctx)
	if err != nil {
		rc.RespondError(CodeInternal, err.Error())
		return
	}
	if !found {
		rc.Respond(map[string]any{"found": false})
		return
	}
	rc.Respond(map[string]any{"found": true, "endpoint": ep})
}

// rpcEndpointTest probes the given fields, or the latest saved endpoint
// when no params are sent.
func (s *Server) rpcEndpointTest(rc *RequestContext) {
	var p EndpointParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}

	ep := p.endpoint()
	if p == (EndpointParams{}) {
		latest, found, err := s.endpoints.LatestEndpoint(rc.Ctx)
		if err != nil {
			rc.RespondError(CodeInternal, err.Error())
			return
		}
		if found {
			ep = latest
		}
	}
	rc.Respond(s.prober.Probe(rc.Ctx, ep))
}

// Models

func (s *Server) rpcModelsList(rc *RequestContext) {
	models, res := s.models.ListModels(rc.Ctx)
	if models == nil {
		models = []string{}
	}
	rc.Respond(ModelList{Models: models, Result: res})
}

func (s *Server) rpcModelsPull(rc *RequestContext) {
	name, ok := modelName(rc)
	if !ok {
		return
	}
	rc.Respond(s.models.PullModel(rc.Ctx, name))
}

func (s *Server) rpcModelsDelete(rc *RequestContext) {
	name, ok := modelName(rc)
	if !ok {
		return
	}
	rc.Respond(s.models.DeleteModel(rc.Ctx, name))
}

func modelName(rc *RequestContext) (string, bool) {
	var p modelParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return "", false
	}
	name := strings.TrimSpace(p.Model)
	if name == "" {
		rc.RespondError(CodeInvalidParams, "model is required")
		return "", false
	}
	return name, true
}
