package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ManifestRecord is a stored compiled-subgraph manifest.
type ManifestRecord struct {
	Key        string `json:"key"`
	Identifier string `json:"identifier"`
	Payload    []byte `json:"-"`
	Seq        int64  `json:"seq"`
}

// SaveManifest stores a manifest under its content key. Saving an existing
// key is a no-op since equal keys imply equal payloads.
func (s *Store) SaveManifest(ctx context.Context, key, identifier string, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO compiled_subgraphs (key, identifier, payload, seq)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM compiled_subgraphs))
		ON CONFLICT(key) DO NOTHING
	`, key, identifier, payload)
	if err != nil {
		return fmt.Errorf("save manifest %s: %w", key, err)
	}
	return nil
}

// LoadManifest returns the payload stored under key.
func (s *Store) LoadManifest(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM compiled_subgraphs WHERE key = ?
	`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load manifest %s: %w", key, err)
	}
	return payload, true, nil
}

// ListManifests returns stored manifests for one boundary identifier, or all
// of them when identifier is empty. Ordered by seq ASC.
func (s *Store) ListManifests(ctx context.Context, identifier string) ([]ManifestRecord, error) {
	query := `SELECT key, identifier, payload, seq FROM compiled_subgraphs`
	var args []any
	if identifier != "" {
		query += ` WHERE identifier = ?`
		args = append(args, identifier)
	}
	query += ` ORDER BY seq ASC, key COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list manifests: %w", err)
	}
	defer rows.Close()

	var out []ManifestRecord
	for rows.Next() {
		var r ManifestRecord
		if err := rows.Scan(&r.Key, &r.Identifier, &r.Payload, &r.Seq); err != nil {
			return nil, fmt.Errorf("list manifests: scan: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list manifests: %w", err)
	}
	return out, nil
}

// DeleteManifests removes every manifest stored for identifier.
// Returns the number of rows removed.
func (s *Store) DeleteManifests(ctx context.Context, identifier string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM compiled_subgraphs WHERE identifier = ?
	`, identifier)
	if err != nil {
		return 0, fmt.Errorf("delete manifests for %s: %w", identifier, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete manifests for %s: %w", identifier, err)
	}
	return n, nil
}
