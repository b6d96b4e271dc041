package gateway

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/uncover/internal/logging"
)

const writeWait = 10 * time.Second

// Shell is one connected UI window. Writes are serialized; reads happen only
// on the connection's read loop.
type Shell struct {
	ID     string
	Info   ClientInfo
	Joined time.Time

	conn *websocket.Conn
	wmu  sync.Mutex
	gone bool
}

func newShell(conn *websocket.Conn, info ClientInfo) *Shell {
	return &Shell{
		ID:     uuid.NewString(),
		Info:   info,
		Joined: time.Now(),
		conn:   conn,
	}
}

func (sh *Shell) write(f Frame) error {
	sh.wmu.Lock()
	defer sh.wmu.Unlock()
	if sh.gone {
		return ErrClientClosed
	}
	sh.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return sh.conn.WriteJSON(f)
}

func (sh *Shell) reply(reqID string, payload any) error {
	f, err := NewResponse(reqID, payload)
	if err != nil {
		return err
	}
	return sh.write(f)
}

func (sh *Shell) replyError(reqID, code, message string) error {
	return sh.write(NewErrorResponse(reqID, ErrorShape{Code: code, Message: message}))
}

// next blocks for the shell's next frame.
func (sh *Shell) next() (Frame, error) {
	var f Frame
	_, msg, err := sh.conn.ReadMessage()
	if err != nil {
		return f, err
	}
	err = json.Unmarshal(msg, &f)
	return f, err
}

func (sh *Shell) close() {
	sh.wmu.Lock()
	defer sh.wmu.Unlock()
	if sh.gone {
		return
	}
	sh.gone = true
	sh.conn.Close()
}

// shellSet holds the connected shells and numbers pushed events.
type shellSet struct {
	mu   sync.RWMutex
	byID map[string]*Shell
	seq  atomic.Int64
	log  *logging.Logger
}

func newShellSet(log *logging.Logger) *shellSet {
	return &shellSet{byID: make(map[string]*Shell), log: log}
}

func (s *shellSet) join(sh *Shell) {
	s.mu.Lock()
	s.byID[sh.ID] = sh
	n := len(s.byID)
	s.mu.Unlock()
	s.log.Info().Str("connId", sh.ID).Str("client", sh.Info.ID).Int("shells", n).Msg("shell joined")
}

// leave forgets the shell and closes its socket.
func (s *shellSet) leave(sh *Shell) {
	s.mu.Lock()
	delete(s.byID, sh.ID)
	s.mu.Unlock()
	sh.close()
	s.log.Info().Str("connId", sh.ID).Msg("shell left")
}

func (s *shellSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *shellSet) members() []*Shell {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Shell, 0, len(s.byID))
	for _, sh := range s.byID {
		out = append(out, sh)
	}
	return out
}

// publish sends one event frame to every shell and returns how many
// received it. A failed write does not stop delivery to the rest.
func (s *shellSet) publish(event string, payload any) int {
	f, err := NewEvent(event, payload, s.seq.Add(1))
	if err != nil {
		s.log.Error().Err(err).Str("event", event).Msg("encoding event")
		return 0
	}
	delivered := 0
	for _, sh := range s.members() {
		if err := sh.write(f); err != nil {
			s.log.Warn().Err(err).Str("connId", sh.ID).Str("event", event).Msg("event not delivered")
			continue
		}
		delivered++
	}
	return delivered
}

func (s *shellSet) closeAll() {
	for _, sh := range s.members() {
		s.leave(sh)
	}
}
