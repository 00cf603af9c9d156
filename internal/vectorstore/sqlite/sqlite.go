package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"

	"smartxerox/internal/domain"
	"smartxerox/internal/vectorstore/vecmath"
)

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS documents (
	id       TEXT PRIMARY KEY,
	text     TEXT NOT NULL,
	metadata TEXT NOT NULL,
	vector   BLOB NOT NULL
);`

// Storage persists documents and vectors in a SQLite file so the index
// survives restarts. Search is brute-force cosine over all stored vectors.
type Storage struct {
	db        *sql.DB
	dimension int
}

// Open opens (creating if needed) the index database at path.
func Open(path string) (*Storage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite index: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	return &Storage{db: db}, nil
}

// Init records the vector dimension. If the stored index was built with a
// different dimension its documents are dropped.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'dimension'`).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if stored != strconv.Itoa(dimension) {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES ('dimension', ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, strconv.Itoa(dimension)); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Storage) Upsert(ctx context.Context, docs []domain.Document, vectors [][]float64) error {
	if len(docs) != len(vectors) {
		return errors.New("documents and vectors length mismatch")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO documents (id, text, metadata, vector) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET text = excluded.text, metadata = excluded.metadata, vector = excluded.vector`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, d := range docs {
		if len(vectors[i]) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
		meta, err := json.Marshal(d.Metadata)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, d.ID, d.Text, string(meta), encodeVector(vectors[i])); err != nil {
			return fmt.Errorf("upsert document %s: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, text, metadata, vector FROM documents ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.Document
	var scores []float64
	for rows.Next() {
		var (
			d    domain.Document
			meta string
			blob []byte
		)
		if err := rows.Scan(&d.ID, &d.Text, &meta, &blob); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(meta), &d.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", d.ID, err)
		}
		docs = append(docs, d)
		scores = append(scores, vecmath.Cosine(decodeVector(blob), vector))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	idxs := vecmath.TopK(scores, topK)
	results := make([]domain.SearchResult, 0, len(idxs))
	for _, j := range idxs {
		results = append(results, domain.SearchResult{Document: docs[j], Score: scores[j]})
	}
	return results, nil
}

func (s *Storage) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents`)
	return err
}

func (s *Storage) Close() error { return s.db.Close() }

func encodeVector(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(x))
	}
	return buf
}

func decodeVector(buf []byte) []float64 {
	v := make([]float64, len(buf)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return v
}
