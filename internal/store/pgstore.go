// Package store persists embedded document chunks in Postgres with the
// pgvector extension and answers nearest-neighbor queries over them.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"docchat/internal/errs"
	"docchat/internal/model"
)

type PgStore struct {
	db *sql.DB
}

// New opens the database and bootstraps the pgvector schema for the
// configured embedding dimension.
func New(conn string, dim int) (*PgStore, error) {
	db, err := sql.Open("postgres", conn)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "failed to open database", err)
	}
	if err := ensureSchema(db, dim); err != nil {
		return nil, errs.Wrap(errs.KindStorage, "failed to bootstrap schema", err)
	}
	return &PgStore{db: db}, nil
}

// Upsert writes one record. Records are keyed by chunk id; re-ingesting
// always generates a fresh id, so conflicts only occur on administrative
// re-writes.
func (s *PgStore) Upsert(ctx context.Context, rec model.Record) error {
	vec := vectorLiteral(rec.Vector)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chunks (chunk_id, doc_name, text, embedding)
		VALUES ($1, $2, $3, $4::vector)
		ON CONFLICT (chunk_id) DO UPDATE
		SET doc_name = EXCLUDED.doc_name, text = EXCLUDED.text, embedding = EXCLUDED.embedding
	`, rec.ID, rec.Filename, rec.Text, vec)
	if err != nil {
		return errs.Wrap(errs.KindStorage, "failed to store chunk", err)
	}
	return nil
}

// Query returns up to k matches ordered by descending cosine similarity.
// An empty index yields an empty slice, not an error.
func (s *PgStore) Query(ctx context.Context, vector []float32, k int) ([]model.Match, error) {
	vec := vectorLiteral(vector)
	rows, err := s.db.QueryContext(ctx, `
		SELECT text, 1 - (embedding <=> $1::vector) AS score
		FROM chunks
		ORDER BY embedding <=> $1::vector
		LIMIT $2
	`, vec, k)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "vector query failed", err)
	}
	defer rows.Close()

	var out []model.Match
	for rows.Next() {
		var m model.Match
		if err := rows.Scan(&m.Text, &m.Score); err != nil {
			return nil, errs.Wrap(errs.KindStorage, "failed to scan match", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindStorage, "vector query failed", err)
	}
	return out, nil
}

func (s *PgStore) Close() error {
	return s.db.Close()
}

func vectorLiteral(v []float32) string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, f := range v {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(fmt.Sprintf("%.6f", float64(f)))
	}
	sb.WriteString("]")
	return sb.String()
}
