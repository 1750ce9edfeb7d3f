package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/halcyon-data/docdex/internal/domain"
)

const describePrompt = "Describe this image in two or three sentences for a document search index. " +
	"Name what kind of visual it is and the quantities, labels, and trends it shows."

// Verbalizer turns figure crops into searchable text using a vision-capable
// chat model.
type Verbalizer struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// VerbalizerConfig holds the vision chat provider settings.
type VerbalizerConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Logger    *zap.Logger
}

// NewVerbalizer creates an OpenAI-compatible vision chat client.
func NewVerbalizer(cfg *VerbalizerConfig) *Verbalizer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 300
	}

	return &Verbalizer{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: maxTokens,
		logger:    cfg.Logger,
	}
}

// Describe implements verbalize.Describer. The image travels inline as a
// base64 data URL; contextText tells the model where the figure came from.
func (v *Verbalizer) Describe(ctx context.Context, image []byte, contextText string) (string, error) {
	prompt := describePrompt
	if contextText != "" {
		prompt += " Context: " + contextText
	}

	req := openai.ChatCompletionRequest{
		Model:     v.model,
		MaxTokens: v.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageDataURL(image),
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	}

	resp, err := v.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", parseChatError(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("verbalization returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("verbalization returned an empty description")
	}
	return text, nil
}

func imageDataURL(image []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)
}

// parseChatError mirrors parseAPIError for the chat endpoint. The verbalize
// usecase substitutes a fallback description on any error, so the sentinel
// only matters for 429 backoff.
func parseChatError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("verbalization API error %d: %s: %w", reqErr.HTTPStatusCode, detail, domain.ErrRateLimited)
		}
		return fmt.Errorf("verbalization API error %d: %s", reqErr.HTTPStatusCode, detail)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("verbalization API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, domain.ErrRateLimited)
		}
		return fmt.Errorf("verbalization API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}

	return fmt.Errorf("verbalization request failed: %w", err)
}
