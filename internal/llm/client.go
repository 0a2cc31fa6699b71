package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/shopassist/shopassist/internal/observability"
)

type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	EmbeddingModel string
	MaxTokens      int
	Timeout        time.Duration
	HTTPClient     *http.Client
}

type ChatRequest struct {
	System      string
	User        string
	Temperature float64
}

type ChatResponse struct {
	Content string
	Model   string
}

// ChatCompleter is the chat-style completion boundary of the generation service.
type ChatCompleter interface {
	Complete(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// Client talks to an OpenAI-compatible API (OpenAI, Groq, Ollama's /v1).
type Client struct {
	baseURL        string
	apiKey         string
	model          string
	embeddingModel string
	maxTokens      int
	client         *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:         strings.TrimSpace(cfg.APIKey),
		model:          model,
		embeddingModel: strings.TrimSpace(cfg.EmbeddingModel),
		maxTokens:      cfg.MaxTokens,
		client:         httpClient,
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) Complete(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": req.System},
			{"role": "user", "content": req.User},
		},
		"temperature": req.Temperature,
	}
	if c.maxTokens > 0 {
		payload["max_tokens"] = c.maxTokens
	}

	body, err := c.post(ctx, "chat", "/v1/chat/completions", payload)
	if err != nil {
		return ChatResponse{}, err
	}

	choices := gjson.GetBytes(body, "choices")
	if !choices.IsArray() || len(choices.Array()) == 0 {
		return ChatResponse{}, fmt.Errorf("empty chat completion choices")
	}
	content := gjson.GetBytes(body, "choices.0.message.content")
	if !content.Exists() {
		return ChatResponse{}, fmt.Errorf("chat completion has no message content")
	}
	model := gjson.GetBytes(body, "model").String()
	if model == "" {
		model = c.model
	}
	return ChatResponse{Content: content.String(), Model: model}, nil
}

// Embed returns one vector per input, in input order.
func (c *Client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	if c.embeddingModel == "" {
		return nil, fmt.Errorf("embedding model is not configured")
	}
	body, err := c.post(ctx, "embeddings", "/v1/embeddings", map[string]any{
		"model": c.embeddingModel,
		"input": inputs,
	})
	if err != nil {
		return nil, err
	}

	data := gjson.GetBytes(body, "data").Array()
	if len(data) != len(inputs) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(inputs), len(data))
	}
	vectors := make([][]float32, len(inputs))
	for i, item := range data {
		index := i
		if idx := item.Get("index"); idx.Exists() {
			index = int(idx.Int())
		}
		if index < 0 || index >= len(inputs) {
			return nil, fmt.Errorf("embedding index %d out of range", index)
		}
		values := item.Get("embedding").Array()
		if len(values) == 0 {
			return nil, fmt.Errorf("embedding %d is empty", index)
		}
		vector := make([]float32, len(values))
		for j, value := range values {
			vector[j] = float32(value.Float())
		}
		vectors[index] = vector
	}
	return vectors, nil
}

func (c *Client) post(ctx context.Context, operation, path string, payload map[string]any) ([]byte, error) {
	start := time.Now()
	status := "error"
	defer func() { observability.ObserveLLMCall(operation, status, time.Since(start)) }()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", operation, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", operation, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", operation, err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response body: %w", operation, err)
	}
	status = strconv.Itoa(resp.StatusCode)
	if resp.StatusCode >= 400 {
		message := gjson.GetBytes(rawRespBody, "error.message").String()
		if message == "" {
			message = string(rawRespBody)
		}
		return nil, fmt.Errorf("%s failed status=%d: %s", operation, resp.StatusCode, message)
	}
	if !gjson.ValidBytes(rawRespBody) {
		return nil, fmt.Errorf("decode %s response: invalid json", operation)
	}
	return rawRespBody, nil
}
