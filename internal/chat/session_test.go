package chat

import (
	"context"
	"testing"

	"github.com/soyeahso/uncover/internal/domain"
	"github.com/soyeahso/uncover/internal/hooks"
	"github.com/soyeahso/uncover/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_NoSessions(t *testing.T) {
	c, st := testController(t, &llm.MockResponder{})
	ctx := context.Background()

	sel, err := c.Load(ctx)
	require.NoError(t, err)
	assert.True(t, sel.Implicit)
	assert.Equal(t, "Session 1", sel.Selected)
	require.Len(t, sel.Sessions, 1)
	assert.Equal(t, "Session 1", sel.Sessions[0].Name)

	n, err := st.CountSessions(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "load must not persist the implicit session")
}

func TestLoad_SelectsNewest(t *testing.T) {
	c, _ := testController(t, &llm.MockResponder{})
	ctx := context.Background()

	_, err := c.NewSession(ctx)
	require.NoError(t, err)
	second, err := c.NewSession(ctx)
	require.NoError(t, err)

	sel, err := c.Load(ctx)
	require.NoError(t, err)
	assert.False(t, sel.Implicit)
	assert.Equal(t, second.ID, sel.Selected)
	assert.Len(t, sel.Sessions, 2)
}

func TestNewSession_Naming(t *testing.T) {
	c, _ := testController(t, &llm.MockResponder{})
	ctx := context.Background()

	s1, err := c.NewSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Session 1", s1.ID)
	assert.Equal(t, "Session 1", s1.Name)

	s2, err := c.NewSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Session 2", s2.ID)

	s3, err := c.NewSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Session 3", s3.ID)

	// Two sessions remain, but "Session 3" is still taken.
	c.DeleteSession(ctx, "Session 1")
	s4, err := c.NewSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Session 4", s4.ID)
}

func TestNewSession_EmitsHook(t *testing.T) {
	hm := hooks.NewManager(silentLog())
	got := make(chan hooks.Payload, 1)
	hm.On(hooks.EventSessionCreated, "test", func(ctx context.Context, p hooks.Payload) error {
		got <- p
		return nil
	})
	c := New(testStore(t), &llm.MockResponder{}, hm, silentLog())

	sess, err := c.NewSession(context.Background())
	require.NoError(t, err)
	hm.Wait()

	p := <-got
	assert.Equal(t, sess, p.Data["session"])
}

func TestDeleteSession(t *testing.T) {
	c, st := testController(t, &llm.MockResponder{})
	ctx := context.Background()

	turn, err := c.Submit(ctx, SubmitRequest{SessionID: "Session 1", Input: "hi", ClickIndex: 1})
	require.NoError(t, err)
	waitTurn(t, c, turn.Key)

	c.DeleteSession(ctx, "Session 1")

	_, exists, err := st.GetSession(ctx, "Session 1")
	require.NoError(t, err)
	assert.False(t, exists)
	msgs, err := st.Messages(ctx, "Session 1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Empty(t, c.Turns("Session 1"))
}

func TestRename(t *testing.T) {
	c, st := testController(t, &llm.MockResponder{})
	ctx := context.Background()

	sess, err := c.NewSession(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Rename(ctx, sess.ID, "Trip planning"))

	got, _, err := st.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Trip planning", got.Name)
	assert.Equal(t, sess.ID, got.ID)
}

func TestHistoryAndQuestions(t *testing.T) {
	mock := &llm.MockResponder{
		RespondFunc: func(ctx context.Context, req llm.Request) llm.Result {
			return llm.Success("answer")
		},
	}
	c, _ := testController(t, mock)
	ctx := context.Background()

	for i, q := range []string{"one", "two"} {
		turn, err := c.Submit(ctx, SubmitRequest{SessionID: "s", Input: q, ClickIndex: i + 1})
		require.NoError(t, err)
		waitTurn(t, c, turn.Key)
	}

	history, err := c.History(ctx, "s")
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, domain.SenderAI, history[3].Sender)

	questions, err := c.Questions(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, questions)
}

func TestSettingsHolder(t *testing.T) {
	h := NewSettingsHolder(domain.Settings{Model: "llama3", Mode: domain.ModeLocal})
	assert.Equal(t, "llama3", h.Get().Model)

	h.Set(domain.Settings{Model: "mistral", Mode: domain.ModeAPI})
	h.UseEndpoint(domain.EndpointConfig{URL: "example.com", Port: 8080, Protocol: "https", APIKey: "k"})

	got := h.Get()
	assert.Equal(t, "mistral", got.Model)
	assert.Equal(t, domain.ModeAPI, got.Mode)
	assert.Equal(t, "https://example.com:8080/model", got.APIURL)
	assert.Equal(t, "k", got.AccessToken)
}
