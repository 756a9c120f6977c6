package deliberation

import (
	"context"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// OpenAIGenerator streams completions from the OpenAI chat API.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

func NewOpenAIGenerator(apiKey, model string) *OpenAIGenerator {
	return &OpenAIGenerator{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt Prompt) (<-chan Chunk, error) {
	req := openai.ChatCompletionRequest{
		Model:  g.model,
		Stream: true,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: renderSystem(prompt),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt.UserText,
			},
		},
	}

	stream, err := g.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create chat completion stream")
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer func() {
			stream.Close()
		}()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				log.Warn().Err(err).Str("model", g.model).Msg("completion stream broke")
				select {
				case out <- Chunk{Err: err}:
				case <-ctx.Done():
				}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case out <- Chunk{Delta: delta}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

var _ Generator = (*OpenAIGenerator)(nil)
