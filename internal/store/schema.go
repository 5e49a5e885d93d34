package store

import (
	"database/sql"
	"fmt"
)

// ensureSchema creates the extension, table, and index for pgvector.
// The embedding column dimension must match the provider's output.
func ensureSchema(db *sql.DB, dim int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id SERIAL PRIMARY KEY,
			chunk_id TEXT UNIQUE NOT NULL,
			doc_name TEXT,
			text TEXT,
			embedding vector(%d)
		)`, dim),
		`DO $$
		BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM pg_class c
				JOIN pg_namespace n ON n.oid=c.relnamespace
				WHERE c.relname='chunks_embedding_ivfflat_idx'
			) THEN
				EXECUTE 'CREATE INDEX chunks_embedding_ivfflat_idx ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists=100)';
			END IF;
		END $$;`,
	}

	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}

	// ANALYZE keeps ivfflat plans sane
	_, _ = db.Exec(`ANALYZE chunks`)
	return nil
}
