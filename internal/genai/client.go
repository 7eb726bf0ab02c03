package genai

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

// Client calls a generative text completion service speaking the Google
// Generative Language REST dialect. The service is stateless per call and
// gives no output schema guarantees; callers impose structure via the prompt
// and defensive parsing.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip=true every call returns a canned reply,
// which keeps dev environments usable without an API key.
func New(baseURL, apiKey, model string, skip bool) *Client {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 60 * time.Second, // completions can be slow
		},
	}
}

// Complete sends a single-turn prompt and returns the raw response text.
// In skip mode the canned reply matches the prompt's shape: analysis prompts
// ask for the JSON contract and get JSON back, everything else gets a plain
// sentence so conversational replies stay readable.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.Skip {
		if strings.Contains(prompt, `"toolToUse"`) {
			return `{"intention":"general_question","toolToUse":"none","params":{},"sentimentAnalysis":"neutral","explanation":"mock"}`, nil
		}
		return "I'm running in offline mode right now, but I'm happy to help with attendance. Try /help to see what I can do.", nil
	}
	if prompt == "" {
		return "", fmt.Errorf("prompt required")
	}

	body, _ := json.Marshal(map[string]any{
		"contents": []map[string]any{
			{"role": "user", "parts": []map[string]string{{"text": prompt}}},
		},
	})

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.BaseURL, c.Model, c.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("completion service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("completion service returned no candidates")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}
