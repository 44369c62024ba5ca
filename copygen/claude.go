package copygen

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"listing-publisher/models"
	"listing-publisher/utils"
)

// Generator turns a listing into post text for every platform.
type Generator interface {
	Generate(ctx context.Context, l *models.Listing) (models.CaptionPair, error)
}

// Claude generates captions with a single Messages API call.
type Claude struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	logger    *utils.Logger
}

// NewClaude builds a generator. Extra options are appended after the API
// key, so tests can point it at a local server.
func NewClaude(apiKey, model string, maxTokens int, logger *utils.Logger, opts ...option.RequestOption) *Claude {
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Claude{
		client:    anthropic.NewClient(all...),
		model:     model,
		maxTokens: int64(maxTokens),
		logger:    logger,
	}
}

// Generate asks the model for both captions. Any failure, including a
// malformed or incomplete reply, wraps models.ErrCopyGeneration.
func (c *Claude) Generate(ctx context.Context, l *models.Listing) (models.CaptionPair, error) {
	c.logger.Info("[copygen] Generating copy for listing %s with %s", l.ListingID, c.model)

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildPrompt(l))),
		},
	})
	if err != nil {
		return models.CaptionPair{}, fmt.Errorf("%w: %v", models.ErrCopyGeneration, err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return models.CaptionPair{}, fmt.Errorf("%w: response had no text content", models.ErrCopyGeneration)
	}

	pair, err := ParseResponse(text.String())
	if err != nil {
		c.logger.Debug("[copygen] Unparseable response: %s", text.String())
		return models.CaptionPair{}, err
	}
	c.logger.Info("[copygen] Generated %d/%d words (facebook/instagram)",
		len(strings.Fields(pair.Facebook)), len(strings.Fields(pair.Instagram)))
	return pair, nil
}
