package vectorstore

import (
	"context"
	"math"

	"qbank/internal/domain"
)

// Storage persists indexed questions and supports similarity search.
//
// Search returns at most topK candidates ordered by descending score; equal scores
// keep insertion order.
type Storage interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, entries []domain.Entry) error
	Search(ctx context.Context, vector []float64, topK int) ([]domain.Candidate, error)
	List(ctx context.Context) ([]domain.Entry, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Close() error
}

// DefaultTopK is used when a search asks for a non-positive number of results.
const DefaultTopK = 5

// Cosine returns the cosine similarity of a and b, or 0 when either is a zero
// vector or the lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
