package assist

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/modoterra/lifedash/pkg/stream"
)

// OpenAIProvider talks to the OpenAI chat completions API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates a provider. baseURL overrides the API URL when
// set (for compatible gateways).
func NewOpenAIProvider(apiKey, model, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg), model: model}
}

func (p *OpenAIProvider) Name() string { return "openai" }

// Fragments passes the content deltas to emit as they arrive, unchanged.
func (p *OpenAIProvider) Fragments(ctx context.Context, r Request, emit func(string) error) error {
	cs, err := p.open(ctx, r)
	if err != nil {
		return err
	}
	defer cs.Close()
	_, err = recvDeltas(cs, emit)
	return err
}

// Stream re-frames the deltas as a data stream. The framing has no escape
// for a backslash, so text containing sequences like `\n` does not survive
// a trip through stream.Normalizer; Rephrase uses Fragments instead.
func (p *OpenAIProvider) Stream(ctx context.Context, r Request) (io.ReadCloser, error) {
	cs, err := p.open(ctx, r)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	go func() {
		defer cs.Close()
		enc := stream.NewEncoder(pw)
		finish, err := recvDeltas(cs, enc.Text)
		if err == nil {
			err = enc.Finish(finish)
		}
		pw.CloseWithError(err)
	}()
	return pr, nil
}

func (p *OpenAIProvider) open(ctx context.Context, r Request) (*openai.ChatCompletionStream, error) {
	system := r.System
	if system == "" {
		system = SystemPrompt
	}
	return p.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: r.Prompt},
		},
		Stream: true,
	})
}

// recvDeltas hands every non-empty content delta to emit until the upstream
// ends, and returns the last finish reason. A failure mid-stream is returned
// so the caller does not mistake truncated text for a complete answer.
func recvDeltas(cs *openai.ChatCompletionStream, emit func(string) error) (string, error) {
	finish := "stop"
	for {
		resp, err := cs.Recv()
		if errors.Is(err, io.EOF) {
			return finish, nil
		}
		if err != nil {
			return finish, fmt.Errorf("openai stream: %w", err)
		}
		for _, choice := range resp.Choices {
			if choice.Delta.Content != "" {
				if err := emit(choice.Delta.Content); err != nil {
					return finish, err
				}
			}
			if choice.FinishReason != "" {
				finish = string(choice.FinishReason)
			}
		}
	}
}
