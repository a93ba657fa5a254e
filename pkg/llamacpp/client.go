// Package llamacpp analyzes garment photos through a llama.cpp server's
// OpenAI-compatible chat endpoint, as an alternative local backend to
// Ollama.
package llamacpp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mishal9/glasscloset/pkg/closet"
	"github.com/mishal9/glasscloset/pkg/ollama"
)

// Client talks to a llama.cpp server.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// OpenAI-compatible message format
type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []contentPart
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewClient creates a client for the given llama.cpp server URL and model.
func NewClient(serverURL, model string) (*Client, error) {
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}
	return &Client{
		baseURL: strings.TrimSuffix(serverURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}, nil
}

// AnalyzeImage sends the JPEG to the model and decodes the reply into an
// attribute record with the same resilience as the Ollama backend.
func (c *Client) AnalyzeImage(ctx context.Context, jpegData []byte) (closet.ClothingAttributes, error) {
	var zero closet.ClothingAttributes

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 300*time.Second)
		defer cancel()
	}

	content := []contentPart{
		{Type: "text", Text: ollama.AttributePrompt},
		{Type: "image_url", ImageURL: &imageURL{
			URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegData),
		}},
	}

	req := chatCompletionRequest{
		Model:       c.model,
		Messages:    []message{{Role: "user", Content: content}},
		Temperature: 0.2,
		MaxTokens:   1024,
		Stream:      false,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return zero, fmt.Errorf("failed to marshal request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return zero, fmt.Errorf("failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return zero, fmt.Errorf("llama.cpp request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, fmt.Errorf("failed to read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return zero, fmt.Errorf("llama.cpp server error: HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return zero, fmt.Errorf("failed to parse completion: %v", err)
	}
	if len(completion.Choices) == 0 {
		return zero, fmt.Errorf("empty completion from llama.cpp")
	}

	return ollama.ParseAttributes(completion.Choices[0].Message.Content), nil
}
