package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

const completionsPath = "/v1/chat/completions"

// Decoding parameters for the two request shapes. Workload traffic asks for
// real generation; the health probe is minimal and deterministic.
const (
	WorkloadMaxTokens   = 500
	WorkloadTemperature = 0.7

	ProbeMaxTokens   = 10
	ProbeTemperature = 0.0
	ProbePrompt      = "Reply with OK if you can read this."
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatBody struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

// ChatRequest describes one chat-completions call.
type ChatRequest struct {
	Endpoint    string
	APIKey      string
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Build produces the HTTP request: a single user-role message with fixed
// decoding parameters, JSON-encoded, with a bearer header when a credential
// is configured.
func (c ChatRequest) Build(ctx context.Context) (*http.Request, error) {
	body := chatBody{
		Model:       c.Model,
		Messages:    []chatMessage{{Role: "user", Content: c.Prompt}},
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode chat body: %w", err)
	}

	url := strings.TrimRight(c.Endpoint, "/") + completionsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	return req, nil
}

// Completion is the subset of a successful response body this tool reads.
type Completion struct {
	Content          string
	CompletionTokens int
}

// ParseCompletion extracts the response text and completion token count.
// Missing fields are tolerated and yield zero values, never an error.
func ParseCompletion(body []byte) Completion {
	return Completion{
		Content:          gjson.GetBytes(body, "choices.0.message.content").String(),
		CompletionTokens: int(gjson.GetBytes(body, "usage.completion_tokens").Int()),
	}
}
