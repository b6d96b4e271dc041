package domain

import (
	"fmt"
	"time"
)

// Session is a named conversation. Its name starts out equal to its ID and
// is later replaced by a background summary.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionName returns the display name given to the n-th session ("Session n").
func SessionName(n int) string {
	return fmt.Sprintf("Session %d", n)
}

// TurnKey identifies one question/answer slot in a session view.
type TurnKey struct {
	SessionID string `json:"sessionId"`
	Index     int    `json:"index"`
}

// String returns a canonical string form of the turn key.
func (k TurnKey) String() string {
	return fmt.Sprintf("%s#%d", k.SessionID, k.Index)
}

// TurnState is the lifecycle state of a turn.
type TurnState string

const (
	TurnPending  TurnState = "pending"
	TurnResolved TurnState = "resolved"
)

// Turn pairs a user question with the model's answer. A turn is created
// pending and resolves exactly once.
type Turn struct {
	Key        TurnKey   `json:"key"`
	Question   string    `json:"question"`
	Response   string    `json:"response,omitempty"`
	OK         bool      `json:"ok"`
	State      TurnState `json:"state"`
	CreatedAt  time.Time `json:"createdAt"`
	ResolvedAt time.Time `json:"resolvedAt,omitzero"`
}

// Resolved reports whether the answer has been filled in.
func (t Turn) Resolved() bool {
	return t.State == TurnResolved
}
