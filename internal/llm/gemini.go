package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiProvider talks to Google's Gemini API.
type GeminiProvider struct {
	Model  string
	client *genai.Client
}

// NewGeminiProvider creates a Gemini provider. A missing key is a
// configuration error.
func NewGeminiProvider(ctx context.Context, model, apiKeyEnv string) (*GeminiProvider, error) {
	key := os.Getenv(apiKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("gemini API key is required: set %s", apiKeyEnv)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	return &GeminiProvider{Model: model, client: client}, nil
}

// IsConfigured reports whether a client was created.
func (g *GeminiProvider) IsConfigured() bool {
	return g.client != nil
}

// Close releases the underlying client.
func (g *GeminiProvider) Close() error {
	return g.client.Close()
}

// session prepares a chat with every turn but the last as history.
func (g *GeminiProvider) session(req Request) (*genai.ChatSession, genai.Text) {
	model := g.client.GenerativeModel(req.model(g.Model))
	model.SetTemperature(0.3)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	turns := req.Conversation()
	var system []string
	var history []*genai.Content
	for _, m := range turns[:len(turns)-1] {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	if len(system) > 0 {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))}}
	}

	cs := model.StartChat()
	cs.History = history
	return cs, genai.Text(turns[len(turns)-1].Content)
}

// Generate sends the request to Gemini and returns the response.
func (g *GeminiProvider) Generate(ctx context.Context, req Request) (string, error) {
	cs, last := g.session(req)
	resp, err := cs.SendMessage(ctx, last)
	if err != nil {
		return "", geminiError(err)
	}
	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}

// Stream yields Gemini's partial responses as they arrive.
func (g *GeminiProvider) Stream(ctx context.Context, req Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		cs, last := g.session(req)
		it := cs.SendMessageStream(ctx, last)
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				yield("", geminiError(err))
				return
			}
			if text := responseText(resp); text != "" {
				if !yield(text, nil) {
					return
				}
			}
		}
	}
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}

func geminiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return statusError("gemini", gerr.Code, []byte(gerr.Message))
	}
	msg := err.Error()
	if strings.Contains(msg, "API key not valid") || strings.Contains(msg, "PermissionDenied") || strings.Contains(msg, "Unauthenticated") {
		return fmt.Errorf("gemini: %w", ErrUnauthorized)
	}
	return fmt.Errorf("gemini API error: %w", err)
}
