package store

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/sqlscan"

	"github.com/soyeahso/uncover/internal/domain"
)

// EndpointStore keeps the append-only history of saved endpoints.
type EndpointStore struct {
	db *DB
}

// NewEndpointStore creates an endpoint store using the given database.
func NewEndpointStore(db *DB) *EndpointStore {
	return &EndpointStore{db: db}
}

type endpointRow struct {
	ID        int64  `db:"id"`
	URL       string `db:"url"`
	Port      int    `db:"port"`
	Protocol  string `db:"protocol"`
	APIKey    string `db:"api_key"`
	Timestamp string `db:"timestamp"`
}

// SaveEndpoint appends a new endpoint row; earlier rows are kept.
func (s *EndpointStore) SaveEndpoint(ctx context.Context, url string, port int, protocol, apiKey string) (domain.EndpointConfig, error) {
	ts := s.db.timestamp()
	res, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO endpoints (url, port, protocol, api_key, timestamp) VALUES (?, ?, ?, ?, ?)`,
		url, port, protocol, apiKey, ts,
	)
	if err != nil {
		return domain.EndpointConfig{}, fmt.Errorf("saving endpoint: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.EndpointConfig{}, fmt.Errorf("reading endpoint id: %w", err)
	}
	return domain.EndpointConfig{
		ID:       id,
		URL:      url,
		Port:     port,
		Protocol: protocol,
		APIKey:   apiKey,
		SavedAt:  parseTimestamp(ts),
	}, nil
}

// LatestEndpoint returns the most recently saved endpoint. The bool is
// false when nothing has been saved yet.
func (s *EndpointStore) LatestEndpoint(ctx context.Context) (domain.EndpointConfig, bool, error) {
	var row endpointRow
	err := sqlscan.Get(ctx, s.db.sql, &row,
		`SELECT id, url, port, protocol, api_key, timestamp FROM endpoints
		 ORDER BY timestamp DESC, id DESC LIMIT 1`)
	if err != nil {
		if sqlscan.NotFound(err) {
			return domain.EndpointConfig{}, false, nil
		}
		return domain.EndpointConfig{}, false, fmt.Errorf("loading latest endpoint: %w", err)
	}
	return domain.EndpointConfig{
		ID:       row.ID,
		URL:      row.URL,
		Port:     row.Port,
		Protocol: row.Protocol,
		APIKey:   row.APIKey,
		SavedAt:  parseTimestamp(row.Timestamp),
	}, true, nil
}
