package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"slices"

	"github.com/sashabaranov/go-openai"
	"github.com/set-night/dispatchbot/internal/config"
	"github.com/set-night/dispatchbot/internal/domain"
)

// OpenRouterService streams chat replies through OpenRouter's
// OpenAI-compatible API.
type OpenRouterService struct {
	client *openai.Client
	model  string
	system string
}

func NewOpenRouterService(apiKey, baseURL, model, systemPrompt string) *OpenRouterService {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: config.ChatRequestTimeout}
	return &OpenRouterService{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		system: systemPrompt,
	}
}

func (s *OpenRouterService) StartSession(_ context.Context, history []domain.Turn) (domain.ChatSession, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if s.system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: s.system})
	}
	for _, t := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: openAIRole(t.Role), Content: t.Text})
	}
	return &openRouterSession{svc: s, messages: messages}, nil
}

type openRouterSession struct {
	svc      *OpenRouterService
	messages []openai.ChatCompletionMessage
}

func (o *openRouterSession) SendStreaming(ctx context.Context, input domain.ChatInput) iter.Seq2[string, error] {
	req := openai.ChatCompletionRequest{
		Model:    o.svc.model,
		Messages: append(slices.Clone(o.messages), openAIInput(input)),
		Stream:   true,
	}

	return func(yield func(string, error) bool) {
		stream, err := o.svc.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			yield("", fmt.Errorf("openrouter stream: %w: %w", domain.ErrStreamTransport, describeOpenRouterErr(err)))
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", fmt.Errorf("openrouter stream: %w: %w", domain.ErrStreamTransport, describeOpenRouterErr(err)))
				return
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			if !yield(resp.Choices[0].Delta.Content, nil) {
				return
			}
		}
	}
}

func describeOpenRouterErr(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return fmt.Errorf("rate limited by OpenRouter (429): %w", err)
		case http.StatusServiceUnavailable:
			return fmt.Errorf("OpenRouter service unavailable (503): %w", err)
		}
	}
	return err
}

func openAIInput(input domain.ChatInput) openai.ChatCompletionMessage {
	if input.Image == nil || len(input.Image.InlineData) == 0 {
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: input.Text}
	}
	dataURL := "data:" + input.Image.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(input.Image.InlineData)
	return openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
			{Type: openai.ChatMessagePartTypeText, Text: input.Text},
		},
	}
}

func openAIRole(r domain.Role) string {
	if r == domain.RoleModel {
		return openai.ChatMessageRoleAssistant
	}
	return openai.ChatMessageRoleUser
}
