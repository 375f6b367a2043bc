package reasoning

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/opstriage/triage-engine/internal/models"
)

const systemPrompt = "You are an expert L2 support engineer for a port community system. " +
	"You diagnose operational alerts across container, vessel and EDI/API modules. " +
	"Follow the output format in each request exactly."

// OpenAIInvoker talks to an OpenAI-compatible chat-completions endpoint.
type OpenAIInvoker struct {
	client openai.Client
	model  openai.ChatModel
}

// NewOpenAIInvoker builds an invoker for the given endpoint and model. An
// empty endpoint uses the official API.
func NewOpenAIInvoker(endpoint, apiKey, model string) *OpenAIInvoker {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(apiKey))}
	if strings.TrimSpace(endpoint) != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSpace(endpoint)))
	}
	return &OpenAIInvoker{
		client: openai.NewClient(opts...),
		model:  openai.ChatModel(model),
	}
}

// Invoke sends one prompt and returns the raw completion text.
func (inv *OpenAIInvoker) Invoke(ctx context.Context, kind PromptKind, payload string) (string, error) {
	completion, err := inv.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: inv.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(payload),
		},
	})
	if err != nil {
		return "", mapTransportError(err)
	}
	if len(completion.Choices) == 0 {
		return "", models.ErrMalformedResponse
	}
	return completion.Choices[0].Message.Content, nil
}

func mapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.ErrTimeout
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return models.ErrRateLimited
		case http.StatusGatewayTimeout, http.StatusRequestTimeout:
			return models.ErrTimeout
		}
	}
	return err
}
