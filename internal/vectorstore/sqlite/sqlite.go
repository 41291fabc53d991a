// Package sqlite persists the question index in a SQLite file so it survives
// across processes.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"qbank/internal/domain"
	"qbank/internal/vectorstore"
)

var _ vectorstore.Storage = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS index_meta (
	id          INTEGER PRIMARY KEY CHECK (id = 1),
	dimension   INTEGER NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
	seq             INTEGER PRIMARY KEY AUTOINCREMENT,
	id              TEXT NOT NULL UNIQUE,
	bucket          TEXT NOT NULL,
	text            TEXT NOT NULL,
	topic           TEXT,
	subtopic        TEXT,
	marks           TEXT,
	difficulty      TEXT,
	cognitive_level TEXT,
	question_type   TEXT,
	time            TEXT,
	vector          BLOB NOT NULL
);
`

// Store is a SQLite-backed vector store with brute-force cosine search.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and runs migrations.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO index_meta (id, dimension, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET dimension = excluded.dimension, updated_at = excluded.updated_at`,
		dimension, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	return nil
}

func (s *Store) dimension(ctx context.Context) (int, error) {
	var dim int
	err := s.db.QueryRowContext(ctx, `SELECT dimension FROM index_meta WHERE id = 1`).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, errors.New("index not initialised")
	}
	return dim, err
}

func (s *Store) Upsert(ctx context.Context, entries []domain.Entry) error {
	dim, err := s.dimension(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if len(e.Vector) != dim {
			return errors.New("vector dimension mismatch")
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO questions (id, bucket, text, topic, subtopic, marks, difficulty, cognitive_level, question_type, time, vector)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			bucket = excluded.bucket, text = excluded.text, topic = excluded.topic,
			subtopic = excluded.subtopic, marks = excluded.marks, difficulty = excluded.difficulty,
			cognitive_level = excluded.cognitive_level, question_type = excluded.question_type,
			time = excluded.time, vector = excluded.vector`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		id := e.ID
		if id == "" {
			id = uuid.New().String()
		}
		q := e.Question
		_, err := stmt.ExecContext(ctx,
			id, e.Bucket, q.Text, q.Topic, q.Subtopic, q.Marks.String(),
			string(q.Difficulty), string(q.CognitiveLevel), q.QuestionType, q.Time,
			encodeVector(e.Vector),
		)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, vector []float64, topK int) ([]domain.Candidate, error) {
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]domain.Candidate, len(entries))
	for i, e := range entries {
		results[i] = domain.Candidate{ID: e.ID, Question: e.Question, Score: vectorstore.Cosine(e.Vector, vector)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

// List returns all entries in insertion order.
func (s *Store) List(ctx context.Context) ([]domain.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, bucket, text, topic, subtopic, marks, difficulty, cognitive_level, question_type, time, vector
		 FROM questions ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Entry
	for rows.Next() {
		var (
			e                                  domain.Entry
			topic, subtopic, marks, difficulty sql.NullString
			cognitive, qtype, qtime            sql.NullString
			blob                               []byte
		)
		if err := rows.Scan(&e.ID, &e.Bucket, &e.Question.Text, &topic, &subtopic, &marks,
			&difficulty, &cognitive, &qtype, &qtime, &blob); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		e.Question.Topic = topic.String
		e.Question.Subtopic = subtopic.String
		e.Question.Marks = domain.ParseMarks(marks.String)
		e.Question.Difficulty = domain.Difficulty(difficulty.String)
		e.Question.CognitiveLevel = domain.CognitiveLevel(cognitive.String)
		e.Question.QuestionType = qtype.String
		e.Question.Time = qtime.String
		e.Vector = decodeVector(blob)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM questions; DELETE FROM index_meta;`); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	return nil
}

func encodeVector(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float64 {
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v
}
