package service

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"github.com/set-night/dispatchbot/internal/domain"
	"google.golang.org/genai"
)

// GeminiService streams chat replies from the Gemini API.
type GeminiService struct {
	client *genai.Client
	model  string
	system string
}

func NewGeminiService(ctx context.Context, apiKey, model, systemPrompt string) (*GeminiService, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiService{client: client, model: model, system: systemPrompt}, nil
}

// StartSession copies history into Gemini contents; later appends to the
// caller's slice do not reach the session.
func (s *GeminiService) StartSession(_ context.Context, history []domain.Turn) (domain.ChatSession, error) {
	contents := make([]*genai.Content, 0, len(history))
	for _, t := range history {
		contents = append(contents, genai.NewContentFromText(t.Text, geminiRole(t.Role)))
	}
	return &geminiSession{svc: s, history: contents}, nil
}

type geminiSession struct {
	svc     *GeminiService
	history []*genai.Content
}

func (g *geminiSession) SendStreaming(ctx context.Context, input domain.ChatInput) iter.Seq2[string, error] {
	contents := append(slices.Clone(g.history), geminiInput(input))

	var cfg *genai.GenerateContentConfig
	if g.svc.system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(g.svc.system, genai.RoleUser),
		}
	}

	return func(yield func(string, error) bool) {
		for resp, err := range g.svc.client.Models.GenerateContentStream(ctx, g.svc.model, contents, cfg) {
			if err != nil {
				yield("", fmt.Errorf("gemini stream: %w: %w", domain.ErrStreamTransport, err))
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

// geminiInput puts the inline image first, followed by the text.
func geminiInput(input domain.ChatInput) *genai.Content {
	var parts []*genai.Part
	if input.Image != nil && len(input.Image.InlineData) > 0 {
		parts = append(parts, genai.NewPartFromBytes(input.Image.InlineData, input.Image.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(input.Text))
	return genai.NewContentFromParts(parts, genai.RoleUser)
}

func geminiRole(r domain.Role) genai.Role {
	if r == domain.RoleModel {
		return genai.RoleModel
	}
	return genai.RoleUser
}
