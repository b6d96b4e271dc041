package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
//
// chat_history deliberately has no foreign key to sessions: messages may be
// appended for a session that was never persisted.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create sessions and chat history",
		SQL: `
			CREATE TABLE IF NOT EXISTS sessions (
				session_id   TEXT PRIMARY KEY,
				session_name TEXT NOT NULL,
				created      TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions (created);

			CREATE TABLE IF NOT EXISTS chat_history (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id TEXT NOT NULL,
				sender     TEXT NOT NULL,
				message    TEXT NOT NULL,
				timestamp  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX IF NOT EXISTS idx_chat_history_session ON chat_history (session_id, id);
		`,
	},
	{
		Version: 2,
		Name:    "create endpoints",
		SQL: `
			CREATE TABLE IF NOT EXISTS endpoints (
				id        INTEGER PRIMARY KEY AUTOINCREMENT,
				url       TEXT NOT NULL,
				port      INTEGER NOT NULL,
				protocol  TEXT NOT NULL,
				api_key   TEXT NOT NULL DEFAULT '',
				timestamp TEXT NOT NULL DEFAULT (datetime('now'))
			);
		`,
	},
}
