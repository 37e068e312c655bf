// Package genai generates personalised reply copy with the Anthropic
// Messages API. It is consulted only for tenants whose plan includes AI
// responses; all other tiers use static templates.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const maxReplyTokens = 300

// Usage reports token consumption for one generation.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Client wraps the Anthropic Messages API for reply generation.
type Client struct {
	client *anthropic.Client
	model  string
	logger *slog.Logger
}

// Request carries the tenant context a reply is generated from.
type Request struct {
	BusinessName string
	Category     string
	FAQ          string
	OrderingLink string
	QuoteLink    string
	CallerNumber string
}

// New creates a Client using the given API key and model.
func New(apiKey, model string, logger *slog.Logger) *Client {
	c := anthropic.NewClient(option.WithAuthToken(apiKey))
	return &Client{
		client: &c,
		model:  model,
		logger: logger.With("subsystem", "genai"),
	}
}

// NewWithClient creates a Client around an existing SDK client. Intended
// for tests.
func NewWithClient(client *anthropic.Client, model string, logger *slog.Logger) *Client {
	return &Client{client: client, model: model, logger: logger.With("subsystem", "genai")}
}

// GenerateReply produces a short text-back message for a missed call. The
// caller bounds the work with the context deadline.
func (c *Client) GenerateReply(ctx context.Context, req Request) (string, Usage, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxReplyTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(req))),
		},
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", Usage{}, fmt.Errorf("claude API call: %w", err)
	}

	usage := Usage{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			tb := block.AsText()
			sb.WriteString(tb.Text)
		}
	}
	reply := strings.TrimSpace(sb.String())
	if reply == "" {
		return "", usage, fmt.Errorf("empty completion from model %s", c.model)
	}

	c.logger.Debug("reply generated",
		"model", c.model,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
	)
	return reply, usage, nil
}

const systemPrompt = `You write the single SMS a small business sends back when it misses a call. ` +
	`Keep it under 320 characters, warm and concrete. Include the most useful link if one is provided. ` +
	`Never invent facts, hours, or prices that were not given. Reply with the message text only.`

func buildPrompt(req Request) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Business: %s\n", req.BusinessName)
	if req.Category != "" {
		fmt.Fprintf(&sb, "Type: %s\n", req.Category)
	}
	if req.OrderingLink != "" {
		fmt.Fprintf(&sb, "Online ordering: %s\n", req.OrderingLink)
	}
	if req.QuoteLink != "" {
		fmt.Fprintf(&sb, "Quote request form: %s\n", req.QuoteLink)
	}
	if req.FAQ != "" {
		fmt.Fprintf(&sb, "Known answers:\n%s\n", req.FAQ)
	}
	sb.WriteString("\nThe business just missed a call from a customer. Write the text-back message.")
	return sb.String()
}
