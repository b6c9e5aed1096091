package providers

import (
	"context"
	"fmt"

	"github.com/boristopalov/dojo/pkg/logging"
)

// Client completes a prompt with a language model
type Client interface {
	Complete(ctx context.Context, model string, prompt string) (string, error)
}

type ProviderParams struct {
	BaseURL string
	APIKey  string
	Logger  logging.Logger
}

type ProviderOption func(*ProviderParams)

func WithBaseURL(baseURL string) ProviderOption {
	return func(p *ProviderParams) {
		p.BaseURL = baseURL
	}
}

func WithAPIKey(apiKey string) ProviderOption {
	return func(p *ProviderParams) {
		p.APIKey = apiKey
	}
}

func WithLogger(l logging.Logger) ProviderOption {
	return func(p *ProviderParams) {
		p.Logger = l
	}
}

// New returns the client for the named provider, "openai" or "gemini".
func New(ctx context.Context, name string, opts ...ProviderOption) (Client, error) {
	switch name {
	case "", "openai":
		return OpenAi(ctx, opts...), nil
	case "gemini":
		params := ProviderParams{}
		for _, opt := range opts {
			opt(&params)
		}
		return Gemini(ctx, params)
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
