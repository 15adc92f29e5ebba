package trivia

import (
	"context"
	"log/slog"

	lru "github.com/hashicorp/golang-lru"
)

// Source is one upstream of questions (Open Trivia DB, the Postgres bank).
type Source interface {
	Fetch(ctx context.Context) (Question, error)
}

// Cache is a secondary store consulted when the primary source fails.
type Cache interface {
	Remember(ctx context.Context, q Question) error
	Random(ctx context.Context) (Question, error)
}

// Provider resolves a question through primary -> cache -> built-in set.
// FetchQuestion never fails.
type Provider struct {
	primary  Source
	cache    Cache
	fallback *Fallback
	recent   *lru.Cache
	log      *slog.Logger
}

type Option func(*Provider)

func WithCache(c Cache) Option {
	return func(p *Provider) { p.cache = c }
}

func WithLogger(log *slog.Logger) Option {
	return func(p *Provider) { p.log = log }
}

// NewProvider builds a provider. primary may be nil, in which case only the
// cache and the built-in set are used.
func NewProvider(primary Source, recentSize int, opts ...Option) (*Provider, error) {
	if recentSize <= 0 {
		recentSize = 64
	}
	recent, err := lru.New(recentSize)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		primary:  primary,
		fallback: NewFallback(),
		recent:   recent,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

func (p *Provider) FetchQuestion(ctx context.Context) Question {
	if p.primary != nil {
		q, err := p.primary.Fetch(ctx)
		if err == nil {
			err = q.Validate()
		}
		if err == nil {
			if p.cache != nil {
				if cerr := p.cache.Remember(ctx, q); cerr != nil {
					p.log.Warn("question cache write failed", "err", cerr)
				}
			}
			return p.serve(q)
		}
		p.log.Warn("question source failed, using fallback", "err", err)
	}

	if p.cache != nil {
		for range 3 {
			q, err := p.cache.Random(ctx)
			if err != nil {
				break
			}
			if !p.seen(q.Prompt) {
				return p.serve(q)
			}
		}
	}

	return p.serve(p.fallback.Pick(p.seen))
}

func (p *Provider) seen(prompt string) bool {
	return p.recent.Contains(prompt)
}

func (p *Provider) serve(q Question) Question {
	p.recent.Add(q.Prompt, struct{}{})
	return q
}
