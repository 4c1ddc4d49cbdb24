// internal/common/vectorindex/postgres.go
package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	errs "rag-pipelines/internal/common/errors"
	"rag-pipelines/internal/common/logger"
)

const pgServiceName = "vector-index-postgres"

// PostgresStore keeps vectors in a pgvector table. It satisfies the same
// Store contract as the hosted index, for deployments that keep the index
// local.
type PostgresStore struct {
	db     *sql.DB
	table  string
	logger logger.Logger
}

func NewPostgresStore(db *sql.DB, table string, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:    db,
		table: table,
		logger: log.With(map[string]interface{}{
			"component": pgServiceName,
		}),
	}
}

// Open connects with the lib/pq driver and verifies the connection.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errs.NewServiceError(pgServiceName, err)
	}
	if err := db.Ping(); err != nil {
		return nil, errs.NewServiceError(pgServiceName, err)
	}
	return db, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, vectors []Vector) error {
	stmt := fmt.Sprintf(
		`INSERT INTO %s (doc_id, metadata, embedding) VALUES ($1, $2, $3)
		 ON CONFLICT (doc_id) DO UPDATE SET metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding`,
		s.table,
	)

	for _, v := range vectors {
		meta, err := json.Marshal(v.Metadata)
		if err != nil {
			return errs.NewServiceError(pgServiceName, err)
		}
		if _, err := s.db.ExecContext(ctx, stmt, v.ID, meta, encodeVector(v.Values)); err != nil {
			return errs.NewServiceError(pgServiceName, err)
		}
	}

	s.logger.Info("vectors upserted", map[string]interface{}{
		"count": len(vectors),
		"table": s.table,
	})
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	stmt := fmt.Sprintf(
		`SELECT doc_id, metadata, 1 - (embedding <=> $1) AS score
		 FROM %s ORDER BY embedding <=> $1 LIMIT $2`,
		s.table,
	)

	rows, err := s.db.QueryContext(ctx, stmt, encodeVector(vector), k)
	if err != nil {
		return nil, errs.NewServiceError(pgServiceName, err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			m    Match
			meta []byte
		)
		if err := rows.Scan(&m.ID, &meta, &m.Score); err != nil {
			return nil, errs.NewServiceError(pgServiceName, err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &m.Metadata); err != nil {
				return nil, errs.NewParseError("vector metadata", err.Error())
			}
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewServiceError(pgServiceName, err)
	}

	return matches, nil
}

// encodeVector renders the pgvector text literal, e.g. "[0.1,0.2]".
func encodeVector(values []float32) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
