package embedding

import (
	"context"

	"golang.org/x/time/rate"
)

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Embed(ctx context.Context, text string) ([]float64, error)
}

// IsZero reports whether every component of vec is zero.
func IsZero(vec []float64) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

type limited struct {
	Embedder
	limiter *rate.Limiter
}

// WithRateLimit throttles Embed calls to perSecond requests per second.
// A non-positive limit returns e unchanged.
func WithRateLimit(e Embedder, perSecond int) Embedder {
	if perSecond <= 0 {
		return e
	}
	return &limited{Embedder: e, limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond)}
}

func (l *limited) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.Embedder.Embed(ctx, text)
}
