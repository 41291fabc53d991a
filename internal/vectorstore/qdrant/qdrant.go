package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"qbank/internal/domain"
	"qbank/internal/vectorstore"
)

var _ vectorstore.Storage = (*Storage)(nil)

// Storage is a minimal REST client to Qdrant.
// It creates the collection on Init and stores question metadata as point payload.
type Storage struct {
	url        string
	apiKey     string
	collection string
	distance   string
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Distance   string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	distance := cfg.Distance
	if distance == "" {
		distance = "Cosine"
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		distance:   distance,
		client:     &http.Client{Timeout: timeout},
	}
}

type statusError struct {
	method, url string
	code        int
	status      string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant %s %s failed: %s", e.method, e.url, e.status)
}

func hasStatus(err error, code int) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == code
}

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": s.distance,
		},
	}
	err := s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil)
	if hasStatus(err, http.StatusConflict) {
		return nil
	}
	return err
}

func (s *Storage) Upsert(ctx context.Context, entries []domain.Entry) error {
	points := make([]map[string]any, len(entries))
	for i, e := range entries {
		id := e.ID
		if id == "" {
			id = uuid.New().String()
		}
		points[i] = map[string]any{
			"id":      id,
			"vector":  e.Vector,
			"payload": toPayload(e),
		}
	}
	body := map[string]any{"points": points}
	return s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), body, nil)
}

type point struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
	Vector  []float64      `json:"vector"`
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.Candidate, error) {
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []point `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.Candidate, 0, len(resp.Result))
	for _, r := range resp.Result {
		e := fromPayload(r)
		results = append(results, domain.Candidate{ID: e.ID, Question: e.Question, Score: r.Score})
	}
	return results, nil
}

// List scrolls through every point in the collection.
func (s *Storage) List(ctx context.Context) ([]domain.Entry, error) {
	var out []domain.Entry
	var offset any
	for {
		req := map[string]any{
			"limit":        256,
			"with_payload": true,
			"with_vector":  true,
		}
		if offset != nil {
			req["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points         []point `json:"points"`
				NextPageOffset any     `json:"next_page_offset"`
			} `json:"result"`
		}
		err := s.do(ctx, http.MethodPost, s.collectionURL("/points/scroll"), req, &resp)
		if hasStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		for _, p := range resp.Result.Points {
			out = append(out, fromPayload(p))
		}
		if resp.Result.NextPageOffset == nil {
			return out, nil
		}
		offset = resp.Result.NextPageOffset
	}
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionURL("/points/count"), map[string]any{"exact": true}, &resp)
	if hasStatus(err, http.StatusNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// Clear drops the collection; a missing collection is not an error.
func (s *Storage) Clear(ctx context.Context) error {
	err := s.do(ctx, http.MethodDelete, s.collectionURL(""), nil, nil)
	if hasStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

func (s *Storage) Close() error { return nil }

func toPayload(e domain.Entry) map[string]any {
	q := e.Question
	return map[string]any{
		"bucket":          e.Bucket,
		"question":        q.Text,
		"topic":           q.Topic,
		"subtopic":        q.Subtopic,
		"marks":           int(q.Marks),
		"difficulty":      string(q.Difficulty),
		"cognitive_level": string(q.CognitiveLevel),
		"question_type":   q.QuestionType,
		"time":            q.Time,
	}
}

// fromPayload tolerates payloads written by other tools, where marks may be a
// string and fields may be absent.
func fromPayload(p point) domain.Entry {
	str := func(key string) string {
		v, _ := p.Payload[key].(string)
		return v
	}
	return domain.Entry{
		ID:     fmt.Sprint(p.ID),
		Bucket: str("bucket"),
		Question: domain.Question{
			Text:           str("question"),
			Topic:          str("topic"),
			Subtopic:       str("subtopic"),
			Marks:          domain.ParseMarks(p.Payload["marks"]),
			Difficulty:     domain.Difficulty(str("difficulty")),
			CognitiveLevel: domain.CognitiveLevel(str("cognitive_level")),
			QuestionType:   str("question_type"),
			Time:           str("time"),
		},
		Vector: p.Vector,
	}
}

func (s *Storage) do(ctx context.Context, method, url string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &statusError{method: method, url: url, code: resp.StatusCode, status: resp.Status}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
