package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Defaults for the chat-completion endpoint
const (
	DefaultBaseURL  = "https://api.openai.com/v1"
	DefaultModel    = "gpt-4o-mini"
	DefaultMinWords = 30
)

const systemPrompt = "You summarize voice channel conversations. Produce a short, " +
	"neutral summary of the main points and decisions in the transcript. " +
	"Reply with the summary only."

// Config contains summarizer configuration
type Config struct {
	BaseURL  string
	APIKey   string
	Model    string
	Timeout  time.Duration
	MinWords int
}

// Summarizer produces summaries of transcripts via a chat-completion API
type Summarizer struct {
	config     Config
	httpClient *http.Client
}

// Result holds the outcome of a summarization call
type Result struct {
	Text    string // summary, or the original transcript when skipped
	Skipped bool   // true when the transcript was below the word threshold
}

// chat-completion request/response bodies
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewSummarizer creates a summarizer client
func NewSummarizer(config Config) (*Summarizer, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}

	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}

	if config.Model == "" {
		config.Model = DefaultModel
	}

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	if config.MinWords <= 0 {
		config.MinWords = DefaultMinWords
	}

	return &Summarizer{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// Summarize returns a summary of the transcript. Transcripts with fewer
// than the configured minimum number of words are too short to be worth a
// model call and come back unchanged with Skipped set.
func (s *Summarizer) Summarize(ctx context.Context, transcript string) (*Result, error) {
	transcript = strings.TrimSpace(transcript)

	if len(strings.Fields(transcript)) < s.config.MinWords {
		return &Result{Text: transcript, Skipped: true}, nil
	}

	reqBody, err := json.Marshal(chatRequest{
		Model: s.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: transcript},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := strings.TrimSuffix(s.config.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("response contained no choices")
	}

	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return nil, fmt.Errorf("response contained an empty summary")
	}

	return &Result{Text: text}, nil
}
