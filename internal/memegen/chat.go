package memegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"memeatlas/internal/logger"
	"memeatlas/internal/metrics"
	"memeatlas/internal/util"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultChatRetryPolicy retries transient chat failures three times with a
// doubling delay starting at 2s and capped at 10s.
var DefaultChatRetryPolicy = util.Policy{
	MaxAttempts: 3,
	BaseDelay:   2 * time.Second,
	MaxDelay:    10 * time.Second,
	Retryable:   isTransient,
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	Messages    []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// ChatClient calls an OpenAI-compatible chat completion endpoint.
type ChatClient struct {
	url         string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
	policy      util.Policy
}

type ChatOption func(*ChatClient)

func WithChatRetryPolicy(p util.Policy) ChatOption {
	return func(c *ChatClient) { c.policy = p }
}

func WithHTTPClient(hc *http.Client) ChatOption {
	return func(c *ChatClient) { c.client = hc }
}

func NewChatClient(url, apiKey, model string, opts ...ChatOption) *ChatClient {
	c := &ChatClient{
		url:         url,
		apiKey:      apiKey,
		model:       model,
		temperature: 0.9,
		client:      &http.Client{Timeout: 30 * time.Second},
		policy:      DefaultChatRetryPolicy,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends the conversation and returns the first choice's content.
func (c *ChatClient) Complete(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(chatRequest{Model: c.model, Temperature: c.temperature, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	content, err := util.DoWithResult(ctx, c.policy, func() (string, error) {
		return c.send(ctx, body)
	})
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("chat", "error").Inc()
		var ge *Error
		if errors.As(err, &ge) {
			return "", err
		}
		return "", upstreamError("Failed to get response from OpenAI API", err)
	}

	metrics.UpstreamRequestsTotal.WithLabelValues("chat", "ok").Inc()
	return content, nil
}

func (c *ChatClient) send(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		logger.L().Debug("chat_request_error", "err", err)
		return "", err
	}
	defer resp.Body.Close()
	logger.L().Debug("chat_response", "status", resp.StatusCode, "elapsed_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Upstream: "chat", Code: resp.StatusCode}
	}

	var r chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", malformedError("Failed to decode OpenAI response.")
	}
	if len(r.Choices) == 0 {
		return "", malformedError("OpenAI response contained no choices.")
	}
	return r.Choices[0].Message.Content, nil
}
