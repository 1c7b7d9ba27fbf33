// Package chatbot answers styling questions through the platform run
// endpoint. The bot never surfaces upstream failures to visitors; any
// error falls back to a canned reply so the widget stays friendly.
package chatbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// chatModel is the run-endpoint model used for replies.
const chatModel = "openai/gpt-4o-mini"

// systemPrompt frames every conversation around the brand's voice.
const systemPrompt = `You are a fashion expert AI assistant for THROWING A FIT, a bold NYC-based fashion brand. Your personality is confident, trendy, and street-smart. You help users with:

- Fashion advice and styling tips
- Outfit coordination and color matching
- Trend insights and street style
- Shopping recommendations
- Fashion history and cultural context
- Personal style development

Keep responses concise (2-3 sentences max), use a confident tone, and occasionally use fashion slang or NYC references. If asked about non-fashion topics, redirect back to style and fashion. Always be encouraging about personal expression through fashion.`

// Fallback replies used when the upstream call fails or returns nothing.
const (
	emptyReply    = "I'm here to help you elevate your style game! Ask me about fashion trends, outfit ideas, or styling tips!"
	fallbackReply = "Hey! I'm your fashion assistant. Ask me about the latest trends, how to style your fits, or what's hot in NYC street fashion right now!"
)

// Client runs chat completions.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *slog.Logger
}

// Config carries the run-endpoint settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewClient builds a chatbot client. Timeout defaults to 30 seconds; model
// replies can be slow.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     cfg.Logger,
	}
}

type runRequest struct {
	Model  string `json:"model"`
	Inputs struct {
		SystemPrompt string `json:"system_prompt"`
		UserPrompt   string `json:"user_prompt"`
	} `json:"inputs"`
}

type runResponse struct {
	Response string `json:"response"`
}

// Reply answers one visitor message. It always returns a usable reply;
// failures are logged and replaced with the fallback.
func (c *Client) Reply(ctx context.Context, message string) string {
	reply, err := c.run(ctx, message)
	if err != nil {
		c.log.Error("chatbot upstream failed", "error", err)
		return fallbackReply
	}
	if reply == "" {
		return emptyReply
	}
	return reply
}

func (c *Client) run(ctx context.Context, message string) (string, error) {
	var reqBody runRequest
	reqBody.Model = chatModel
	reqBody.Inputs.SystemPrompt = systemPrompt
	reqBody.Inputs.UserPrompt = message

	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/run", bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call chat endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat endpoint returned %d", resp.StatusCode)
	}

	var result runResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	return result.Response, nil
}
