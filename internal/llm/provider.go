package llm

import (
	"context"
	"fmt"
	"iter"
	"log"
	"strings"
)

// ProviderOptions selects and configures a provider.
type ProviderOptions struct {
	Name         string // ollama, openai or gemini
	Model        string
	OllamaURL    string
	OpenAIModel  string
	OpenAIKeyEnv string
	GeminiKeyEnv string
}

// CreateProvider creates an LLM provider based on configuration. An
// unreachable Ollama falls back to OpenAI when a key is available.
func CreateProvider(ctx context.Context, opts ProviderOptions) (Provider, error) {
	switch strings.ToLower(opts.Name) {
	case "gemini":
		p, err := NewGeminiProvider(ctx, opts.Model, opts.GeminiKeyEnv)
		if err != nil {
			return nil, err
		}
		log.Printf("Using Gemini with model: %s", opts.Model)
		return p, nil

	case "openai":
		p := NewOpenAIProvider(opts.Model, opts.OpenAIKeyEnv)
		if !p.IsConfigured() {
			return nil, fmt.Errorf("OpenAI API key is required: set %s", opts.OpenAIKeyEnv)
		}
		log.Printf("Using OpenAI with model: %s", opts.Model)
		return p, nil

	case "ollama", "":
		p := NewOllamaProvider(opts.Model, opts.OllamaURL)
		if p.IsConfigured() {
			log.Printf("Using Ollama with model: %s", opts.Model)
			return p, nil
		}
		log.Println("Ollama not available, trying OpenAI fallback...")

		fallback := NewOpenAIProvider(opts.OpenAIModel, opts.OpenAIKeyEnv)
		if fallback.IsConfigured() {
			log.Printf("Using OpenAI with model: %s (configured model names and failover do not apply)", opts.OpenAIModel)
			return fixedModel{OpenAIProvider: fallback, model: opts.OpenAIModel}, nil
		}
		return nil, fmt.Errorf("no LLM provider available: start Ollama or set %s", opts.OpenAIKeyEnv)

	default:
		return nil, fmt.Errorf("unknown AI provider %q (want ollama, openai or gemini)", opts.Name)
	}
}

// Pinned is implemented by providers that serve a single model and ignore
// per-request model names. Failover between models is pointless for them.
type Pinned interface {
	PinnedModel() string
}

// fixedModel ignores per-request model names, which belong to the provider
// that was asked for originally.
type fixedModel struct {
	*OpenAIProvider
	model string
}

func (f fixedModel) PinnedModel() string { return f.model }

func (f fixedModel) Generate(ctx context.Context, req Request) (string, error) {
	req.Model = ""
	return f.OpenAIProvider.Generate(ctx, req)
}

func (f fixedModel) Stream(ctx context.Context, req Request) iter.Seq2[string, error] {
	req.Model = ""
	return f.OpenAIProvider.Stream(ctx, req)
}
