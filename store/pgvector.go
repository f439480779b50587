package store

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/semdex/semdex/config"
)

func init() {
	Register("pgvector", func(ctx context.Context, cfg config.StoreConfig) (VectorStore, error) {
		return NewPgvectorStore(ctx, cfg.Pgvector)
	})
}

// PgvectorStore keeps the index in a Postgres table with a pgvector column.
type PgvectorStore struct {
	pool  *pgxpool.Pool
	table string
}

func NewPgvectorStore(ctx context.Context, cfg config.PgvectorConfig) (*PgvectorStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("pgvector store requires a dsn")
	}
	table := cfg.Table
	if table == "" {
		table = "semdex_blocks"
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PgvectorStore{pool: pool, table: table}, nil
}

func (s *PgvectorStore) EnsureCollection(ctx context.Context, dimension int) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable vector extension: %w", err)
	}

	exists, err := s.Exists(ctx)
	if err != nil {
		return err
	}

	if exists {
		current, err := s.tableDimension(ctx)
		if err != nil {
			return err
		}
		if current == dimension {
			return nil
		}
		log.Printf("Table %q has dimension %d, expected %d: recreating", s.table, current, dimension)
		if _, err := s.pool.Exec(ctx, fmt.Sprintf("DROP TABLE %s", s.table)); err != nil {
			return fmt.Errorf("failed to drop table %q: %w", s.table, err)
		}
	}

	schema := fmt.Sprintf(`CREATE TABLE %s (
		id uuid PRIMARY KEY,
		embedding vector(%d) NOT NULL,
		file_path text NOT NULL,
		content text NOT NULL,
		language text NOT NULL DEFAULT '',
		start_line integer NOT NULL DEFAULT 0,
		end_line integer NOT NULL DEFAULT 0,
		block_type text NOT NULL DEFAULT '',
		name text NOT NULL DEFAULT ''
	)`, s.table, dimension)
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create table %q: %w", s.table, err)
	}

	index := fmt.Sprintf("CREATE INDEX ON %s (file_path)", s.table)
	if _, err := s.pool.Exec(ctx, index); err != nil {
		return fmt.Errorf("failed to index %q: %w", s.table, err)
	}

	return nil
}

// tableDimension reads the declared vector size from the catalog.
func (s *PgvectorStore) tableDimension(ctx context.Context) (int, error) {
	var dim int
	err := s.pool.QueryRow(ctx, `
		SELECT a.atttypmod
		FROM pg_attribute a
		JOIN pg_class c ON c.oid = a.attrelid
		WHERE c.relname = $1 AND a.attname = 'embedding'`, s.table).Scan(&dim)
	if err != nil {
		return 0, fmt.Errorf("failed to read dimension of %q: %w", s.table, err)
	}
	return dim, nil
}

func (s *PgvectorStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO %s
		(id, embedding, file_path, content, language, start_line, end_line, block_type, name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			file_path = EXCLUDED.file_path,
			content = EXCLUDED.content,
			language = EXCLUDED.language,
			start_line = EXCLUDED.start_line,
			end_line = EXCLUDED.end_line,
			block_type = EXCLUDED.block_type,
			name = EXCLUDED.name`, s.table)

	for _, p := range points {
		_, err := s.pool.Exec(ctx, query,
			p.ID,
			pgvector.NewVector(p.Vector),
			p.Payload.FilePath,
			p.Payload.Content,
			p.Payload.Language,
			p.Payload.StartLine,
			p.Payload.EndLine,
			p.Payload.Type,
			p.Payload.Name,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert point %s: %w", p.ID, err)
		}
	}
	return nil
}

func (s *PgvectorStore) DeleteByPath(ctx context.Context, filePath string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE file_path = $1", s.table)
	if _, err := s.pool.Exec(ctx, query, filePath); err != nil {
		return fmt.Errorf("failed to delete points for %s: %w", filePath, err)
	}
	return nil
}

func (s *PgvectorStore) DeleteCollection(ctx context.Context) error {
	query := fmt.Sprintf("DROP TABLE IF EXISTS %s", s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to drop table %q: %w", s.table, err)
	}
	return nil
}

func (s *PgvectorStore) Exists(ctx context.Context) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1
		)`, s.table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check table %q: %w", s.table, err)
	}
	return exists, nil
}

func (s *PgvectorStore) Search(ctx context.Context, vector []float32, limit int, minScore float32) ([]SearchResult, error) {
	query := fmt.Sprintf(`
		SELECT id, 1 - (embedding <=> $1) AS score,
			file_path, content, language, start_line, end_line, block_type, name
		FROM %s
		WHERE 1 - (embedding <=> $1) >= $2
		ORDER BY embedding <=> $1
		LIMIT $3`, s.table)

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(vector), minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var score float64
		err := rows.Scan(&r.ID, &score,
			&r.Payload.FilePath, &r.Payload.Content, &r.Payload.Language,
			&r.Payload.StartLine, &r.Payload.EndLine, &r.Payload.Type, &r.Payload.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		r.Score = float32(score)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return results, nil
}

func (s *PgvectorStore) Close() error {
	s.pool.Close()
	return nil
}
