package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"copytoask/src/apperrors"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"

	// maxErrorBody bounds how much of a non-2xx body is kept.
	maxErrorBody = 32000
	pingTimeout  = 20 * time.Second
)

type Config struct {
	APIKey  string
	BaseURL string
	// HTTPClient overrides the default streaming client, mainly for tests.
	HTTPClient *http.Client
}

// Client talks to an OpenAI-compatible API over streaming HTTP.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewClient(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = newStreamingHTTPClient()
	}
	return &Client{apiKey: cfg.APIKey, baseURL: base, http: hc}
}

// newStreamingHTTPClient has no overall timeout: a stream lives as long as
// its context. Only connection setup and the first response byte are bounded.
func newStreamingHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 15 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       120 * time.Second,
			TLSHandshakeTimeout:   15 * time.Second,
			ResponseHeaderTimeout: 60 * time.Second,
		},
	}
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a stateless multi-message request.
type CompletionRequest struct {
	Model    string
	Messages []Message
}

// TurnRequest is one turn of a server-side conversation. PreviousResponseID
// is the continuation token of the last completed turn, empty for the first.
type TurnRequest struct {
	Model              string
	Instructions       string
	Input              string
	PreviousResponseID string
}

type chatRequest struct {
	Model     string    `json:"model"`
	Stream    bool      `json:"stream"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

type responsesRequest struct {
	Model              string `json:"model"`
	Stream             bool   `json:"stream"`
	Instructions       string `json:"instructions"`
	Input              string `json:"input"`
	PreviousResponseID string `json:"previous_response_id,omitempty"`
}

// StreamCompletion streams POST /chat/completions.
func (c *Client) StreamCompletion(ctx context.Context, req CompletionRequest) (*Stream, error) {
	body := chatRequest{Model: req.Model, Stream: true, Messages: req.Messages}
	log.Printf("llm: chat completion model=%s messages=%d", req.Model, len(req.Messages))
	return c.open(ctx, "/chat/completions", body, chatDecoder{})
}

// StreamConversationTurn streams POST /responses. The continuation token for
// the next turn is available from the stream once it has been read.
func (c *Client) StreamConversationTurn(ctx context.Context, req TurnRequest) (*Stream, error) {
	body := responsesRequest{
		Model:              req.Model,
		Stream:             true,
		Instructions:       req.Instructions,
		Input:              req.Input,
		PreviousResponseID: req.PreviousResponseID,
	}
	log.Printf("llm: conversation turn model=%s continued=%v", req.Model, req.PreviousResponseID != "")
	return c.open(ctx, "/responses", body, &responsesDecoder{})
}

func (c *Client) newRequest(ctx context.Context, path string, payload any) (*http.Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return req, nil
}

func (c *Client) open(ctx context.Context, path string, payload any, dec decoder) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	req, err := c.newRequest(ctx, path, payload)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request canceled: %w", ctx.Err())
		}
		return nil, apperrors.New(apperrors.KindTransient,
			"Could not reach the model API. Please check your connection.",
			fmt.Errorf("request failed: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer cancel()
		defer resp.Body.Close()
		terr := readTransportError(resp)
		log.Printf("llm: %s returned status %d", path, resp.StatusCode)
		return nil, classifyTransportError(terr)
	}
	return newStream(ctx, resp.Body, cancel, dec), nil
}

// Ping validates the key with a minimal non-streaming completion.
func (c *Client) Ping(ctx context.Context, model string) error {
	if strings.TrimSpace(c.apiKey) == "" {
		return apperrors.New(apperrors.KindAuth, "API key is required.", nil)
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	payload := chatRequest{
		Model:     model,
		Messages:  []Message{{Role: "user", Content: "ping"}},
		MaxTokens: 1,
	}
	req, err := c.newRequest(ctx, "/chat/completions", payload)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.New(apperrors.KindTransient,
			"Could not reach the model API. Please check your connection.",
			fmt.Errorf("ping failed: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classifyTransportError(readTransportError(resp))
	}
	log.Printf("llm: ping ok model=%s", model)
	return nil
}
