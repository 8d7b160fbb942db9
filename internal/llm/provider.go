package llm

import (
	"context"
	"fmt"
	"strings"
)

// Providers lists the accepted backend names.
var Providers = []string{"openai", "gemini", "anthropic", "mock"}

// ProviderConfig selects and configures a backend.
type ProviderConfig struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
}

// NewCompleter builds the backend named by cfg.Provider.
func NewCompleter(ctx context.Context, cfg ProviderConfig) (Completer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai":
		return NewOpenAI(cfg.BaseURL, cfg.APIKey, cfg.Model), nil
	case "gemini":
		return NewGemini(ctx, cfg.APIKey, cfg.Model)
	case "anthropic":
		return NewAnthropic(cfg.BaseURL, cfg.APIKey, cfg.Model), nil
	case "mock":
		return Mock{}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q (want one of %s)", cfg.Provider, strings.Join(Providers, ", "))
	}
}
