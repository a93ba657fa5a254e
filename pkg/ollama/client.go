// Package ollama provides a local, on-machine alternative to the remote
// analysis backend: a vision model served by Ollama produces the same
// clothing attribute record from a captured photo.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/mishal9/glasscloset/pkg/closet"
)

// AttributePrompt instructs the vision model to emit the backend's wire
// schema. The resilient closet decoder absorbs whatever the model actually
// returns.
const AttributePrompt = `You are a clothing attribute extractor.

Return JSON only, with this exact shape:
{
  "main_colors": ["string"],
  "secondary_colors": ["string"],
  "garment_type": "string",
  "pattern": "string",
  "material": "string",
  "style": "string",
  "season": "string",
  "occasion": "string",
  "fit": "string",
  "brand": "string"
}

HARD RULES
- Use lowercase everyday words ("hoodie", "jeans", "cotton").
- If an attribute is not visible, use an empty string, never "null".
- Colors are ordered by visual dominance.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Client analyzes images through a local Ollama server.
type Client struct {
	client *api.Client
	model  string
}

// NewClient creates a client for the given Ollama URL and model name.
func NewClient(ollamaURL, model string) (*Client, error) {
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	return &Client{
		client: api.NewClient(baseURL, http.DefaultClient),
		model:  model,
	}, nil
}

// AnalyzeImage sends the JPEG to the vision model and decodes the response
// into an attribute record. A non-JSON or partially malformed response
// degrades to an emptier record; it never errors past the transport.
func (c *Client) AnalyzeImage(ctx context.Context, jpegData []byte) (closet.ClothingAttributes, error) {
	var zero closet.ClothingAttributes

	// Vision models on CPU can be slow; give the call a generous ceiling
	// when the caller hasn't set one.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 300*time.Second)
		defer cancel()
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: AttributePrompt,
				Images:  []api.ImageData{api.ImageData(jpegData)},
			},
		},
		Stream: &streamFalse,
	}

	var responseContent string
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		responseContent = resp.Message.Content
		return nil
	})
	if err != nil {
		return zero, fmt.Errorf("ollama chat error: %v", err)
	}
	if responseContent == "" {
		return zero, fmt.Errorf("empty response from ollama")
	}

	return ParseAttributes(responseContent), nil
}

// ParseAttributes sanitizes a raw model reply and decodes it into an
// attribute record. Any input yields a valid record; garbage degrades to an
// empty one.
func ParseAttributes(raw string) closet.ClothingAttributes {
	return closet.DecodeAttributes([]byte(sanitizeModelJSON(raw)))
}

// sanitizeModelJSON removes code fences, comments, and trailing commas from
// a model response before decoding.
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	// Remove /* ... */ block comments
	reBlock := regexp.MustCompile(`(?s)/\*.*?\*/`)
	raw = reBlock.ReplaceAllString(raw, "")

	// Remove // line/inline comments
	reLine := regexp.MustCompile(`(?m)^\s*//.*$`)
	raw = reLine.ReplaceAllString(raw, "")
	reInline := regexp.MustCompile(`(?m)//.*$`)
	raw = reInline.ReplaceAllString(raw, "")

	// Remove trailing commas before } or ]
	reTrailing := regexp.MustCompile(`,(\s*[}\]])`)
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
