package gateway

import (
	"encoding/json"

	"github.com/soyeahso/uncover/internal/domain"
	"github.com/soyeahso/uncover/internal/llm"
)

// ProtocolVersion is the bridge protocol spoken by this server.
const ProtocolVersion = 1

// Frame types for the WebSocket protocol.
const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

// Events pushed by the server.
const (
	EventConnectChallenge = "connect.challenge"
	EventChatResponse     = "chat.response"
	EventSessionsChanged  = "sessions.changed"
)

// Error codes used in ErrorShape.
const (
	CodeProtocol       = "protocol_error"
	CodeInvalidParams  = "invalid_params"
	CodeMethodNotFound = "method_not_found"
	CodeConflict       = "conflict"
	CodeUnavailable    = "unavailable"
	CodeInternal       = "internal_error"
)

// Frame is the envelope for every WebSocket message. Type selects which of
// the remaining fields are meaningful.
type Frame struct {
	Type string `json:"type"`

	// req
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	// res
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ErrorShape     `json:"error,omitempty"`

	// event
	Event string `json:"event,omitempty"`
	Seq   int64  `json:"seq,omitempty"`
}

// ErrorShape is the error body of a failed response.
type ErrorShape struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ConnectParams are sent by the UI shell in its "connect" request.
type ConnectParams struct {
	MinProtocol int        `json:"minProtocol"`
	MaxProtocol int        `json:"maxProtocol"`
	Client      ClientInfo `json:"client"`
	UserAgent   string     `json:"userAgent,omitempty"`
}

// ClientInfo identifies the connecting shell.
type ClientInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version"`
	Platform    string `json:"platform"`
}

// HelloOK answers a successful connect.
type HelloOK struct {
	Protocol int             `json:"protocol"`
	Server   ServerInfo      `json:"server"`
	Features Features        `json:"features"`
	Policy   ServerPolicy    `json:"policy"`
	Settings domain.Settings `json:"settings"`
}

// ServerInfo identifies the bridge.
type ServerInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	ConnID  string `json:"connId"`
}

// Features advertises the available RPC methods and events.
type Features struct {
	Methods []string `json:"methods"`
	Events  []string `json:"events"`
}

// ServerPolicy communicates protocol limits to the shell.
type ServerPolicy struct {
	MaxPayload int `json:"maxPayload"`
}

// RPC params and results.

type sessionParams struct {
	SessionID string `json:"sessionId"`
}

type renameParams struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
}

// ChatSendParams is the payload of chat.send. Settings override the
// bridge's current settings for this one turn.
type ChatSendParams struct {
	SessionID  string           `json:"sessionId"`
	Input      string           `json:"input"`
	ClickIndex int              `json:"clickIndex,omitempty"`
	EnterIndex int              `json:"enterIndex,omitempty"`
	Settings   *domain.Settings `json:"settings,omitempty"`
}

// ChatHistory is the result of chat.history.
type ChatHistory struct {
	SessionID string           `json:"sessionId"`
	Messages  []domain.Message `json:"messages"`
	Questions []string         `json:"questions"`
	Turns     []domain.Turn    `json:"turns"`
}

// EndpointParams carries the four endpoint fields from the settings form.
type EndpointParams struct {
	URL      string `json:"url"`
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	APIKey   string `json:"apiKey"`
}

func (p EndpointParams) endpoint() domain.EndpointConfig {
	return domain.EndpointConfig{URL: p.URL, Port: p.Port, Protocol: p.Protocol, APIKey: p.APIKey}
}

type modelParams struct {
	Model string `json:"model"`
}

// ModelList is the result of models.list.
type ModelList struct {
	Models []string   `json:"models"`
	Result llm.Result `json:"result"`
}

// SessionsChanged is the payload of the sessions.changed event.
type SessionsChanged struct {
	Reason  string          `json:"reason"` // "created" | "deleted" | "renamed"
	Session *domain.Session `json:"session,omitempty"`
	Deleted string          `json:"deleted,omitempty"`
	Renamed any             `json:"renamed,omitempty"`
}

// NewRequest creates a request frame.
func NewRequest(id, method string, params any) (Frame, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameTypeRequest, ID: id, Method: method, Params: raw}, nil
}

// NewResponse creates a success response frame.
func NewResponse(id string, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	ok := true
	return Frame{Type: FrameTypeResponse, ID: id, OK: &ok, Payload: raw}, nil
}

// NewErrorResponse creates an error response frame.
func NewErrorResponse(id string, errShape ErrorShape) Frame {
	ok := false
	return Frame{Type: FrameTypeResponse, ID: id, OK: &ok, Error: &errShape}
}

// NewEvent creates an event frame.
func NewEvent(event string, payload any, seq int64) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameTypeEvent, Event: event, Payload: raw, Seq: seq}, nil
}
