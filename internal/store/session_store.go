package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/georgysavva/scany/v2/sqlscan"

	"github.com/soyeahso/uncover/internal/domain"
)

// SessionStore persists sessions and their chat history.
type SessionStore struct {
	db *DB
}

// NewSessionStore creates a session store using the given database.
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

type sessionRow struct {
	ID      string `db:"session_id"`
	Name    string `db:"session_name"`
	Created string `db:"created"`
}

func (r sessionRow) domain() domain.Session {
	return domain.Session{ID: r.ID, Name: r.Name, CreatedAt: parseTimestamp(r.Created)}
}

type messageRow struct {
	ID        int64  `db:"id"`
	SessionID string `db:"session_id"`
	Sender    string `db:"sender"`
	Message   string `db:"message"`
	Timestamp string `db:"timestamp"`
}

func (r messageRow) domain() domain.Message {
	return domain.Message{
		ID:        r.ID,
		SessionID: r.SessionID,
		Sender:    domain.Sender(r.Sender),
		Body:      r.Message,
		CreatedAt: parseTimestamp(r.Timestamp),
	}
}

// ListSessions returns all sessions, newest first.
func (s *SessionStore) ListSessions(ctx context.Context) ([]domain.Session, error) {
	var rows []sessionRow
	err := sqlscan.Select(ctx, s.db.sql, &rows,
		`SELECT session_id, session_name, created FROM sessions ORDER BY created DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	sessions := make([]domain.Session, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, r.domain())
	}
	return sessions, nil
}

// CountSessions returns the number of persisted sessions.
func (s *SessionStore) CountSessions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting sessions: %w", err)
	}
	return n, nil
}

// GetSession returns the session with the given ID, if any.
func (s *SessionStore) GetSession(ctx context.Context, id string) (domain.Session, bool, error) {
	var row sessionRow
	err := sqlscan.Get(ctx, s.db.sql, &row,
		`SELECT session_id, session_name, created FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		if sqlscan.NotFound(err) {
			return domain.Session{}, false, nil
		}
		return domain.Session{}, false, fmt.Errorf("getting session %q: %w", id, err)
	}
	return row.domain(), true, nil
}

// CreateSession inserts a session named after its ID. Creating an existing
// session is a no-op.
func (s *SessionStore) CreateSession(ctx context.Context, id string) error {
	_, err := s.db.sql.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (session_id, session_name, created) VALUES (?, ?, ?)`,
		id, id, s.db.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("creating session %q: %w", id, err)
	}
	return nil
}

// DeleteSession removes a session and all of its messages in one
// transaction. Failures are rolled back and logged, never returned.
func (s *SessionStore) DeleteSession(ctx context.Context, id string) {
	if err := s.deleteSession(ctx, id); err != nil {
		s.db.log.Error().Err(err).Str("session", id).Msg("failed to delete session")
	}
}

func (s *SessionStore) deleteSession(ctx context.Context, id string) error {
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chat_history WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("deleting messages: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("deleting session row: %w", err)
		}
		return nil
	})
}

// RenameSession sets a session's display name. Names need not be unique.
func (s *SessionStore) RenameSession(ctx context.Context, newName, id string) error {
	_, err := s.db.sql.ExecContext(ctx,
		`UPDATE sessions SET session_name = ? WHERE session_id = ?`, newName, id)
	if err != nil {
		return fmt.Errorf("renaming session %q: %w", id, err)
	}
	return nil
}

// AppendMessage stores a message. The session is not required to exist.
func (s *SessionStore) AppendMessage(ctx context.Context, sessionID string, sender domain.Sender, body string) (domain.Message, error) {
	ts := s.db.timestamp()
	res, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO chat_history (session_id, sender, message, timestamp) VALUES (?, ?, ?, ?)`,
		sessionID, string(sender), body, ts,
	)
	if err != nil {
		return domain.Message{}, fmt.Errorf("appending message to %q: %w", sessionID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Message{}, fmt.Errorf("reading message id: %w", err)
	}
	return domain.Message{
		ID:        id,
		SessionID: sessionID,
		Sender:    sender,
		Body:      body,
		CreatedAt: parseTimestamp(ts),
	}, nil
}

// Messages returns a session's messages in insertion order.
func (s *SessionStore) Messages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	var rows []messageRow
	err := sqlscan.Select(ctx, s.db.sql, &rows,
		`SELECT id, session_id, sender, message, timestamp FROM chat_history
		 WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading messages for %q: %w", sessionID, err)
	}

	msgs := make([]domain.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, r.domain())
	}
	return msgs, nil
}

// Context renders a session's history as prompt context. A session with
// no messages yields "".
func (s *SessionStore) Context(ctx context.Context, sessionID string) (string, error) {
	msgs, err := s.Messages(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return domain.FormatContext(msgs), nil
}
