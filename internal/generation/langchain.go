package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Provider names.
const (
	ProviderOpenAI   = "openai"
	ProviderDisabled = "disabled"
)

// Defaults for the OpenAI-compatible provider.
const (
	defaultModel         = "gpt-4o-mini"
	defaultTimeout       = 15 * time.Second
	defaultTemperature   = 0.3
	defaultMaxTokens     = 600
	defaultRatePerMinute = 50.0
	defaultBurst         = 5
)

// Config configures the generation provider.
type Config struct {
	Provider      string
	APIKey        string
	Model         string
	BaseURL       string
	Timeout       time.Duration
	Temperature   float64
	RatePerMinute float64
	Burst         int
}

// New creates a Generator for cfg. Without a provider or API key the
// returned generator is Disabled and heuristic-only paths are used.
func New(cfg Config, logger *zap.Logger) (Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Provider == "" || cfg.Provider == ProviderDisabled || cfg.APIKey == "" {
		logger.Info("generation disabled, using heuristic fallbacks")
		return Disabled{}, nil
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		return newLangchainGenerator(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown generation provider: %s", cfg.Provider)
	}
}

// langchainGenerator calls an OpenAI-compatible endpoint through langchaingo.
type langchainGenerator struct {
	llm      llms.Model
	limiter  *rate.Limiter
	timeout  time.Duration
	defaults CallOptions
	logger   *zap.Logger
}

func newLangchainGenerator(cfg Config, logger *zap.Logger) (*langchainGenerator, error) {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}

	return newWithModel(llm, cfg, logger), nil
}

// newWithModel wires an llms.Model with rate limiting and timeouts.
func newWithModel(llm llms.Model, cfg Config, logger *zap.Logger) *langchainGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = defaultRatePerMinute
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}

	return &langchainGenerator{
		llm:      llm,
		limiter:  rate.NewLimiter(rate.Limit(perMinute/60.0), burst),
		timeout:  timeout,
		defaults: CallOptions{Temperature: temperature, MaxTokens: defaultMaxTokens},
		logger:   logger,
	}
}

// Generate implements Generator.
func (g *langchainGenerator) Generate(ctx context.Context, prompt string, opts ...CallOption) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	o := ApplyOptions(g.defaults, opts...)
	start := time.Now()
	reply, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt,
		llms.WithTemperature(o.Temperature),
		llms.WithMaxTokens(o.MaxTokens),
	)
	if err != nil {
		g.logger.Warn("generation call failed",
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return "", err
	}

	g.logger.Debug("generation call completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("reply_len", len(reply)))
	return reply, nil
}

// Available implements Generator.
func (g *langchainGenerator) Available() bool {
	return g != nil && g.llm != nil
}
