// Package embedding turns text into fixed-length vectors. A Provider picks a
// remote engine when credentials are configured and falls back to the
// deterministic offline hash embedding whenever the remote call fails, so
// callers always get a vector of the provider's declared size.
package embedding

import (
	"context"
	"strings"
	"time"

	"github.com/entrhq/soulcore/pkg/logging"
)

// Declared dimensions per backend.
const (
	OpenAIDimensions  = 1536
	GenAIDimensions   = 768
	OfflineDimensions = 256
)

// Engine is a remote embedding backend.
type Engine interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float64, error)
	// EmbedBatch generates embeddings for several texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
	// Dimensions returns the length of every vector the engine produces.
	Dimensions() int
	// Name identifies the engine in logs and health output.
	Name() string
}

// Config selects and configures the backend.
type Config struct {
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	GeminiAPIKey      string
	GeminiModel       string
	OfflineDimensions int
	RequestTimeout    time.Duration
}

// DefaultConfig returns a config with no remote credentials.
func DefaultConfig() Config {
	return Config{
		OpenAIModel:       DefaultOpenAIModel,
		GeminiModel:       DefaultGenAIModel,
		OfflineDimensions: OfflineDimensions,
		RequestTimeout:    10 * time.Second,
	}
}

// Provider produces embeddings, using a remote Engine when available.
type Provider struct {
	engine Engine
	dims   int
	logger *logging.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the provider logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Provider) {
		p.logger = l
	}
}

// WithEngine bypasses backend selection and uses e.
func WithEngine(e Engine) Option {
	return func(p *Provider) {
		p.engine = e
	}
}

// NewProvider selects a backend from cfg: OpenAI when an OpenAI key is set,
// otherwise Gemini when a Gemini key is set, otherwise offline hashing. A
// backend that fails to initialize is skipped.
func NewProvider(ctx context.Context, cfg Config, opts ...Option) *Provider {
	p := &Provider{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logging.Nop("embedding")
	}
	if cfg.OfflineDimensions <= 0 {
		cfg.OfflineDimensions = OfflineDimensions
	}

	if p.engine == nil && cfg.OpenAIAPIKey != "" {
		e, err := NewOpenAIEngine(cfg.OpenAIAPIKey,
			WithOpenAIModel(cfg.OpenAIModel),
			WithOpenAIBaseURL(cfg.OpenAIBaseURL),
			WithOpenAITimeout(cfg.RequestTimeout))
		if err != nil {
			p.logger.Warnf("OpenAI embeddings unavailable: %v", err)
		} else {
			p.engine = e
		}
	}
	if p.engine == nil && cfg.GeminiAPIKey != "" {
		e, err := NewGenAIEngine(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			p.logger.Warnf("Gemini embeddings unavailable: %v", err)
		} else {
			p.engine = e
		}
	}

	if p.engine != nil {
		p.dims = p.engine.Dimensions()
	} else {
		p.dims = cfg.OfflineDimensions
	}
	p.logger.Infof("embedding provider %s (%d dimensions)", p.Name(), p.dims)
	return p
}

// Dimensions returns the length of every vector this provider returns.
func (p *Provider) Dimensions() int {
	return p.dims
}

// Name returns the active backend name.
func (p *Provider) Name() string {
	if p.engine == nil {
		return "offline"
	}
	return p.engine.Name()
}

// Embed returns the embedding of text, or nil for empty or whitespace-only
// input. Remote failures fall back to HashEmbed at the provider's dimensions.
func (p *Provider) Embed(ctx context.Context, text string) []float64 {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if p.engine == nil {
		return HashEmbed(text, p.dims)
	}
	vec, err := p.engine.Embed(ctx, text)
	if err != nil {
		p.logger.Warnf("%s embed failed, using offline fallback: %v", p.engine.Name(), err)
		return HashEmbed(text, p.dims)
	}
	if len(vec) != p.dims {
		p.logger.Warnf("%s returned %d dimensions, want %d; using offline fallback", p.engine.Name(), len(vec), p.dims)
		return HashEmbed(text, p.dims)
	}
	return vec
}

// EmbedBatch embeds texts in one remote call. The result has one entry per
// input: nil for blank inputs, a vector of Dimensions() otherwise. When the
// batch call fails each entry falls back to HashEmbed individually.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) [][]float64 {
	out := make([][]float64, len(texts))
	var (
		idx   []int
		batch []string
	)
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		idx = append(idx, i)
		batch = append(batch, t)
	}
	if len(batch) == 0 {
		return out
	}

	var vecs [][]float64
	if p.engine != nil {
		var err error
		vecs, err = p.engine.EmbedBatch(ctx, batch)
		switch {
		case err != nil:
			p.logger.Warnf("%s batch embed failed, using offline fallback: %v", p.engine.Name(), err)
			vecs = nil
		case len(vecs) != len(batch):
			p.logger.Warnf("%s returned %d vectors for %d inputs; using offline fallback", p.engine.Name(), len(vecs), len(batch))
			vecs = nil
		}
	}

	for j, i := range idx {
		if vecs != nil && len(vecs[j]) == p.dims {
			out[i] = vecs[j]
			continue
		}
		out[i] = HashEmbed(batch[j], p.dims)
	}
	return out
}
