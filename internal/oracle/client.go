package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/AgenticCurve/gitsplit/internal/logging"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultTimeout = 2 * time.Minute
	maxTokens      = 4096
	maxRetries     = 3
)

// Config carries the oracle client settings.
type Config struct {
	APIKey        string
	BaseURL       string
	ModelOverride string
	MaxCost       float64 // 0 means unlimited
	Timeout       time.Duration
}

// Client talks to the intent oracle over the OpenRouter chat API. It
// keeps a conversation history for self-healing retries and tracks
// token spend against an optional budget.
type Client struct {
	apiKey        string
	baseURL       string
	modelOverride string
	maxCost       float64
	httpClient    *http.Client

	mu          sync.Mutex
	lastRequest time.Time
	tier        ModelTier
	usage       Usage
	history     []Message
	system      string
}

// NewClient builds a client from config, falling back to the
// OPENROUTER_API_KEY environment variable for the key.
func NewClient(cfg Config) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("oracle API key not configured: set OPENROUTER_API_KEY or oracle.api_key")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &Client{
		apiKey:        apiKey,
		baseURL:       baseURL,
		modelOverride: cfg.ModelOverride,
		maxCost:       cfg.MaxCost,
		httpClient:    &http.Client{Timeout: timeout},
		tier:          TierFast,
	}, nil
}

// Model returns the model slug the next request will use.
func (c *Client) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model()
}

func (c *Client) model() string {
	if c.modelOverride != "" {
		return c.modelOverride
	}
	return tierModels[c.tier]
}

// Tier returns the current escalation tier.
func (c *Client) Tier() ModelTier {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tier
}

// EscalateTier moves to the next tier and reports whether anything
// changed. Escalation is disabled when a model override is pinned.
func (c *Client) EscalateTier() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.modelOverride != "" || c.tier >= TierInteractive {
		return false
	}
	c.tier++
	logging.Oracle("Escalated to %s (%s)", c.tier, c.model())
	return true
}

// ResetTier drops back to the fast tier.
func (c *Client) ResetTier() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.modelOverride == "" {
		c.tier = TierFast
	}
}

// Usage returns accumulated token usage and spend.
func (c *Client) Usage() Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

// ResetConversation clears history and installs a new system prompt.
func (c *Client) ResetConversation(system string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
	c.system = system
}

// SetSystem swaps the system prompt without clearing the history, so
// a later phase keeps the context built up by an earlier one.
func (c *Client) SetSystem(system string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.system = system
}

// AddUserMessage appends a user turn to the conversation.
func (c *Client) AddUserMessage(content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, Message{Role: "user", Content: content})
}

// AddErrorContext appends a retry prompt describing the previous
// failure so the oracle can correct itself on the next turn.
func (c *Client) AddErrorContext(errText, diagnosis string) {
	var b strings.Builder
	b.WriteString("The previous attempt failed with this error:\n")
	b.WriteString(errText)
	if diagnosis != "" {
		b.WriteString("\n\nDiagnosis:\n")
		b.WriteString(diagnosis)
	}
	b.WriteString("\n\nPlease analyze what went wrong and provide a corrected response.")
	c.AddUserMessage(b.String())
}

// ConversationLength reports how many turns are in the history.
func (c *Client) ConversationLength() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends the conversation (history plus system prompt) and
// records the assistant's reply back into the history.
func (c *Client) Complete(ctx context.Context) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	c.mu.Lock()
	model := c.model()
	messages := make([]Message, 0, len(c.history)+1)
	if c.system != "" {
		messages = append(messages, Message{Role: "system", Content: c.system})
	}
	messages = append(messages, c.history...)

	// Rough token estimate for the budget gate.
	textLen := 0
	for _, m := range messages {
		textLen += len(m.Content)
	}
	estInput := textLen / 4
	estOutput := maxTokens / 2
	estCost := c.estimateCost(model, estInput, estOutput)
	if c.maxCost > 0 && c.usage.Cost+estCost > c.maxCost {
		current, limit := c.usage.Cost, c.maxCost
		c.mu.Unlock()
		return "", fmt.Errorf("%w: current $%.4f, estimated $%.4f, max $%.2f",
			ErrBudgetExceeded, current, estCost, limit)
	}

	// Rate limiting between requests.
	elapsed := time.Since(c.lastRequest)
	if elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	start := time.Now()
	logging.OracleDebug("Complete: model=%s messages=%d", model, len(messages))

	reqBody := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: 0.0,
		MaxTokens:   maxTokens,
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(1<<uint(attempt-1)) * time.Second)
		}

		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return "", fmt.Errorf("failed to marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("HTTP-Referer", "https://github.com/AgenticCurve/gitsplit")
		req.Header.Set("X-Title", "gitsplit")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limit exceeded (429)")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		}

		var chat chatResponse
		if err := json.Unmarshal(body, &chat); err != nil {
			return "", fmt.Errorf("failed to parse response: %w", err)
		}
		if chat.Error != nil {
			return "", fmt.Errorf("API error: %s", chat.Error.Message)
		}
		if len(chat.Choices) == 0 {
			return "", fmt.Errorf("no completion returned")
		}

		content := strings.TrimSpace(chat.Choices[0].Message.Content)
		cost := c.estimateCost(model, chat.Usage.PromptTokens, chat.Usage.CompletionTokens)

		c.mu.Lock()
		c.usage.add(chat.Usage.PromptTokens, chat.Usage.CompletionTokens, cost)
		c.history = append(c.history, Message{Role: "assistant", Content: content})
		c.mu.Unlock()

		logging.Oracle("Complete: model=%s in=%d out=%d cost=$%.4f elapsed=%v",
			model, chat.Usage.PromptTokens, chat.Usage.CompletionTokens, cost, time.Since(start))
		return content, nil
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) estimateCost(model string, inputTokens, outputTokens int) float64 {
	costs, ok := modelCosts[model]
	if !ok {
		costs = defaultCost
	}
	return (float64(inputTokens)*costs.Input + float64(outputTokens)*costs.Output) / 1_000_000
}
