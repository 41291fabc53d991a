package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"qbank/internal/domain"
	"qbank/internal/embedding"
	"qbank/internal/retrieval"
	"qbank/internal/subtopic"
	"qbank/internal/vectorstore"
)

// DefaultTopK is the number of nearest questions fetched before filtering.
const DefaultTopK = 15

// Options tunes a QuestionService.
type Options struct {
	TopK        int
	FallbackCap int
	Concurrency int
}

// QuestionService indexes question banks and answers profile searches.
type QuestionService struct {
	embedder    embedding.Embedder
	store       vectorstore.Storage
	filter      retrieval.Filter
	topK        int
	concurrency int

	mu      sync.RWMutex
	entries []domain.Entry
	loaded  bool
}

func NewQuestionService(embedder embedding.Embedder, store vectorstore.Storage, opts Options) *QuestionService {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &QuestionService{
		embedder:    embedder,
		store:       store,
		filter:      retrieval.Filter{FallbackCap: opts.FallbackCap},
		topK:        opts.TopK,
		concurrency: opts.Concurrency,
	}
}

// Normalize rewrites every subtopic label in bank and returns how many changed.
func (s *QuestionService) Normalize(bank domain.Bank) int {
	changed := subtopic.NormalizeBank(bank)
	log.WithFields(log.Fields{"questions": bank.Len(), "changed": changed}).Info("normalized subtopics")
	return changed
}

// BuildIndex embeds every question of bank and replaces the store contents with them.
// An existing index is only replaced when overwrite is set. If the rebuild fails,
// the previous index is written back.
func (s *QuestionService) BuildIndex(ctx context.Context, bank domain.Bank, overwrite bool) (int, error) {
	if bank.Len() == 0 {
		return 0, domain.ErrEmptyBank
	}
	existing, err := s.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count index: %w", err)
	}
	if existing > 0 && !overwrite {
		return 0, fmt.Errorf("%w: %d questions stored", domain.ErrIndexExists, existing)
	}
	var previous []domain.Entry
	if existing > 0 {
		if previous, err = s.store.List(ctx); err != nil {
			return 0, fmt.Errorf("snapshot index: %w", err)
		}
	}

	start := time.Now()
	entries := entriesFromBank(bank)
	texts := make([]string, len(entries))
	for i := range entries {
		texts[i] = entries[i].Question.Text
	}
	if err := s.embedder.Prepare(texts); err != nil {
		return 0, fmt.Errorf("prepare %s embedder: %w", s.embedder.Name(), err)
	}
	if err := s.embedAll(ctx, entries); err != nil {
		s.restore(ctx, previous, false)
		return 0, err
	}
	dimension := len(entries[0].Vector)
	if dimension == 0 {
		s.restore(ctx, previous, false)
		return 0, errors.New("embedder returned an empty vector")
	}
	if err := s.replace(ctx, entries, dimension); err != nil {
		s.restore(ctx, previous, true)
		return 0, err
	}

	s.mu.Lock()
	s.entries = entries
	s.loaded = true
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"questions": len(entries),
		"dimension": dimension,
		"embedder":  s.embedder.Name(),
		"elapsed":   time.Since(start).String(),
	}).Info("index built")
	return len(entries), nil
}

func (s *QuestionService) embedAll(ctx context.Context, entries []domain.Entry) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range entries {
		i := i
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, entries[i].Question.Text)
			if err != nil {
				return fmt.Errorf("embed question %s: %w", entries[i].ID, err)
			}
			entries[i].Vector = vec
			return nil
		})
	}
	return g.Wait()
}

func (s *QuestionService) replace(ctx context.Context, entries []domain.Entry, dimension int) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	if err := s.store.Init(ctx, dimension); err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	if err := s.store.Upsert(ctx, entries); err != nil {
		return fmt.Errorf("upsert questions: %w", err)
	}
	return nil
}

// restore puts the embedder, and the store when rewrite is set, back to the
// previous index after a failed rebuild.
func (s *QuestionService) restore(ctx context.Context, previous []domain.Entry, rewrite bool) {
	if len(previous) == 0 {
		return
	}
	texts := make([]string, len(previous))
	for i := range previous {
		texts[i] = previous[i].Question.Text
	}
	if err := s.embedder.Prepare(texts); err != nil {
		log.WithError(err).Error("restore embedder after failed rebuild")
	}
	if !rewrite {
		return
	}
	if err := s.replace(ctx, previous, len(previous[0].Vector)); err != nil {
		log.WithError(err).Error("restore previous index after failed rebuild")
		return
	}
	log.WithField("questions", len(previous)).Warn("rebuild failed, previous index restored")
}

// Load reads an existing index back from the store and prepares the embedder over it.
func (s *QuestionService) Load(ctx context.Context) (int, error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list index: %w", err)
	}
	if len(entries) == 0 {
		return 0, domain.ErrNotIndexed
	}
	texts := make([]string, len(entries))
	for i := range entries {
		texts[i] = entries[i].Question.Text
	}
	if err := s.embedder.Prepare(texts); err != nil {
		return 0, fmt.Errorf("prepare %s embedder: %w", s.embedder.Name(), err)
	}

	s.mu.Lock()
	s.entries = entries
	s.loaded = true
	s.mu.Unlock()

	log.WithField("questions", len(entries)).Info("index loaded")
	return len(entries), nil
}

// Search fetches the k questions nearest to the profile query and narrows them
// with the cascading filter. A non-positive k uses the configured default.
func (s *QuestionService) Search(ctx context.Context, p domain.Profile, k int) (retrieval.Result, error) {
	if err := p.Validate(); err != nil {
		return retrieval.Result{}, err
	}
	if k <= 0 {
		k = s.topK
	}
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if !loaded {
		if _, err := s.Load(ctx); err != nil {
			return retrieval.Result{}, err
		}
	}

	candidates, err := s.nearest(ctx, p.Query, k)
	if err != nil {
		return retrieval.Result{}, err
	}
	res := s.filter.Apply(candidates, p)
	log.WithFields(log.Fields{
		"query":      p.Query,
		"marks":      p.Marks.String(),
		"difficulty": p.Difficulty,
		"cognitive":  p.Cognitive,
		"candidates": len(candidates),
		"selected":   len(res.Candidates),
		"tier":       res.Tier.String(),
	}).Info("search")
	return res, nil
}

func (s *QuestionService) nearest(ctx context.Context, query string, k int) ([]domain.Candidate, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if embedding.IsZero(vec) {
		log.Debug("query has no known terms, using lexical ranking")
		return s.lexicalSearch(query, k), nil
	}
	res, err := s.store.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	for _, r := range res {
		if r.Score > 1e-9 {
			return res, nil
		}
	}
	log.Debug("all similarity scores are zero, using lexical ranking")
	return s.lexicalSearch(query, k), nil
}

// entriesFromBank flattens bank in sorted bucket order. IDs are derived from
// bucket, position and text so rebuilding the same bank yields the same IDs.
func entriesFromBank(bank domain.Bank) []domain.Entry {
	entries := make([]domain.Entry, 0, bank.Len())
	for _, key := range bank.Keys() {
		for i, q := range bank[key] {
			name := fmt.Sprintf("%s/%d/%s", key, i, q.Text)
			entries = append(entries, domain.Entry{
				ID:       uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String(),
				Bucket:   key,
				Question: q,
			})
		}
	}
	return entries
}
