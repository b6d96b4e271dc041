package chat

import (
	"context"

	"github.com/soyeahso/uncover/internal/domain"
	"github.com/soyeahso/uncover/internal/hooks"
)

// Selection is what the session picker shows on load.
type Selection struct {
	Sessions []domain.Session `json:"sessions"`
	Selected string           `json:"selected"`

	// Implicit is true when Selected names a session that has not been
	// persisted yet.
	Implicit bool `json:"implicit"`
}

// Sessions lists sessions newest first.
func (c *Controller) Sessions(ctx context.Context) ([]domain.Session, error) {
	return c.store.ListSessions(ctx)
}

// Load returns the initial selection. With no sessions stored, an
// unpersisted "Session 1" is offered; otherwise the newest session is
// selected.
func (c *Controller) Load(ctx context.Context) (Selection, error) {
	sessions, err := c.store.ListSessions(ctx)
	if err != nil {
		return Selection{}, err
	}
	if len(sessions) == 0 {
		first := domain.SessionName(1)
		return Selection{
			Sessions: []domain.Session{{ID: first, Name: first}},
			Selected: first,
			Implicit: true,
		}, nil
	}
	return Selection{Sessions: sessions, Selected: sessions[0].ID}, nil
}

// NewSession creates and persists "Session N", where N is one more than
// the number of stored sessions. If that name is taken (after deletions)
// the next free number is used.
func (c *Controller) NewSession(ctx context.Context) (domain.Session, error) {
	n, err := c.store.CountSessions(ctx)
	if err != nil {
		return domain.Session{}, err
	}

	id := domain.SessionName(n + 1)
	for {
		_, exists, err := c.store.GetSession(ctx, id)
		if err != nil {
			return domain.Session{}, err
		}
		if !exists {
			break
		}
		n++
		id = domain.SessionName(n + 1)
	}

	if err := c.store.CreateSession(ctx, id); err != nil {
		return domain.Session{}, err
	}
	sess, _, err := c.store.GetSession(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}

	c.log.Info().Str("session", id).Msg("session created")
	c.emit(ctx, hooks.EventSessionCreated, map[string]any{"session": sess})
	return sess, nil
}

// DeleteSession removes a session and its history. Storage failures are
// logged by the store and otherwise ignored.
func (c *Controller) DeleteSession(ctx context.Context, id string) {
	c.store.DeleteSession(ctx, id)

	c.mu.Lock()
	for k, e := range c.turns {
		if k.SessionID == id && e.turn.Resolved() {
			delete(c.turns, k)
		}
	}
	c.mu.Unlock()

	c.log.Info().Str("session", id).Msg("session deleted")
	c.emit(ctx, hooks.EventSessionDeleted, map[string]any{"sessionId": id})
}

// Rename sets a session's display name by hand.
func (c *Controller) Rename(ctx context.Context, id, name string) error {
	if err := c.store.RenameSession(ctx, name, id); err != nil {
		return err
	}
	c.emit(ctx, hooks.EventSessionsRenamed, map[string]any{
		"renamed": []Rename{{SessionID: id, Name: name}},
	})
	return nil
}

// History returns a session's messages in display order.
func (c *Controller) History(ctx context.Context, id string) ([]domain.Message, error) {
	return c.store.Messages(ctx, id)
}

// Questions returns only the user's questions, for the history sidebar.
func (c *Controller) Questions(ctx context.Context, id string) ([]string, error) {
	msgs, err := c.store.Messages(ctx, id)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, m := range msgs {
		if m.Sender == domain.SenderUser {
			out = append(out, m.Body)
		}
	}
	return out, nil
}
