package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/deepchat-backend/internal/logger"
)

// LLMClient is the opaque external generation capability. Transport
// failures surface as *GenerationError; retry policy belongs to callers.
type LLMClient interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}

type CompletionOptions struct {
	Temperature float64
	MaxTokens   int
}

type llmClient struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewLLMClient(log *logger.Logger, baseURL, apiKey, model string) (LLMClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("missing LLM api key")
	}
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("missing LLM api base")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("missing LLM model")
	}
	return &llmClient{
		log:        log.With("service", "LLMClient"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{},
	}, nil
}

type chatCompletionsRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type chatCompletionsResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *llmClient) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	reqBody := chatCompletionsRequest{
		Model:       c.model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	reqBody.Messages = []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}{
		{Role: "user", Content: prompt},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return "", &GenerationError{Kind: GenerationTransport, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", &buf)
	if err != nil {
		return "", &GenerationError{Kind: GenerationTransport, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &GenerationError{Kind: classifyTransportErr(ctx, err), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &GenerationError{Kind: GenerationTransport, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &GenerationError{
			Kind: GenerationStatus,
			Err:  fmt.Errorf("API returned error status code: %d", resp.StatusCode),
		}
	}

	var out chatCompletionsResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &GenerationError{Kind: GenerationMalformed, Err: err}
	}
	if len(out.Choices) == 0 {
		return "", &GenerationError{
			Kind: GenerationMalformed,
			Err:  errors.New("API response format error: missing 'choices' field"),
		}
	}

	content := out.Choices[0].Message.Content
	c.log.Debug("Completion received", "model", c.model, "elapsed", time.Since(start).String(), "chars", len(content))
	return content, nil
}

func classifyTransportErr(ctx context.Context, err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return GenerationTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return GenerationTimeout
	}
	return GenerationTransport
}
