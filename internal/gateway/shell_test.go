package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/uncover/internal/logging"
)

func testLog() *logging.Logger {
	return logging.New(nil, "silent")
}

// socketPair returns the server and client ends of a live WebSocket.
func socketPair(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()
	accepted := make(chan *websocket.Conn, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := websocket.Upgrader{}
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- c
	}))
	t.Cleanup(ts.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("server side never accepted")
	}
	return server, client
}

func readFrame(t *testing.T, c *websocket.Conn) Frame {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f Frame
	require.NoError(t, c.ReadJSON(&f))
	return f
}

func TestShellReply(t *testing.T) {
	srv, cli := socketPair(t)
	sh := newShell(srv, ClientInfo{ID: "ui"})
	assert.NotEmpty(t, sh.ID)

	require.NoError(t, sh.reply("r1", map[string]string{"hello": "there"}))
	f := readFrame(t, cli)
	assert.Equal(t, FrameTypeResponse, f.Type)
	assert.Equal(t, "r1", f.ID)
	require.NotNil(t, f.OK)
	assert.True(t, *f.OK)
	assert.JSONEq(t, `{"hello":"there"}`, string(f.Payload))

	require.NoError(t, sh.replyError("r2", CodeConflict, "taken"))
	f = readFrame(t, cli)
	require.NotNil(t, f.Error)
	assert.False(t, *f.OK)
	assert.Equal(t, CodeConflict, f.Error.Code)
	assert.Equal(t, "taken", f.Error.Message)
}

func TestShellNext(t *testing.T) {
	srv, cli := socketPair(t)
	sh := newShell(srv, ClientInfo{})

	require.NoError(t, cli.WriteMessage(websocket.TextMessage, []byte(`{"type":"req","id":"9","method":"health"}`)))
	f, err := sh.next()
	require.NoError(t, err)
	assert.Equal(t, "health", f.Method)

	require.NoError(t, cli.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	_, err = sh.next()
	assert.Error(t, err)
}

func TestShellWriteAfterClose(t *testing.T) {
	srv, _ := socketPair(t)
	sh := newShell(srv, ClientInfo{})

	sh.close()
	sh.close()
	assert.ErrorIs(t, sh.write(Frame{Type: FrameTypeEvent}), ErrClientClosed)
}

func TestShellSetJoinLeave(t *testing.T) {
	set := newShellSet(testLog())
	assert.Equal(t, 0, set.len())

	a, _ := socketPair(t)
	b, _ := socketPair(t)
	sa := newShell(a, ClientInfo{ID: "a"})
	sb := newShell(b, ClientInfo{ID: "b"})
	set.join(sa)
	set.join(sb)
	assert.Equal(t, 2, set.len())

	set.leave(sa)
	assert.Equal(t, 1, set.len())
	assert.ErrorIs(t, sa.write(Frame{}), ErrClientClosed)

	// Leaving twice is harmless.
	set.leave(sa)
	assert.Equal(t, 1, set.len())
}

func TestShellSetPublishNumbersEvents(t *testing.T) {
	set := newShellSet(testLog())
	s1, c1 := socketPair(t)
	s2, c2 := socketPair(t)
	set.join(newShell(s1, ClientInfo{}))
	set.join(newShell(s2, ClientInfo{}))

	assert.Equal(t, 2, set.publish(EventSessionsChanged, SessionsChanged{Reason: "created"}))
	assert.Equal(t, 2, set.publish(EventChatResponse, map[string]any{"index": 1}))

	for _, c := range []*websocket.Conn{c1, c2} {
		first := readFrame(t, c)
		second := readFrame(t, c)
		assert.Equal(t, EventSessionsChanged, first.Event)
		assert.Equal(t, int64(1), first.Seq)
		assert.Equal(t, EventChatResponse, second.Event)
		assert.Equal(t, int64(2), second.Seq)
	}
}

func TestShellSetPublishSkipsClosedShell(t *testing.T) {
	set := newShellSet(testLog())
	s1, _ := socketPair(t)
	s2, c2 := socketPair(t)
	dead := newShell(s1, ClientInfo{})
	set.join(dead)
	set.join(newShell(s2, ClientInfo{}))
	dead.close()

	assert.Equal(t, 1, set.publish(EventSessionsChanged, SessionsChanged{Reason: "deleted", Deleted: "Session 1"}))
	f := readFrame(t, c2)
	assert.JSONEq(t, `{"reason":"deleted","deleted":"Session 1"}`, string(f.Payload))
}

func TestShellSetPublishUnencodable(t *testing.T) {
	set := newShellSet(testLog())
	assert.Equal(t, 0, set.publish(EventChatResponse, make(chan int)))
}

func TestShellSetCloseAll(t *testing.T) {
	set := newShellSet(testLog())
	s1, _ := socketPair(t)
	s2, _ := socketPair(t)
	set.join(newShell(s1, ClientInfo{}))
	set.join(newShell(s2, ClientInfo{}))

	set.closeAll()
	assert.Equal(t, 0, set.len())
	assert.Equal(t, 0, set.publish(EventChatResponse, nil))
}
