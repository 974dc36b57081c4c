// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// OpenAI endpoints. Package-level vars for test substitution.
var (
	openAIChatURL      = "https://api.openai.com/v1/chat/completions"
	openAIResponsesURL = "https://api.openai.com/v1/responses"
)

// OpenAIBackend calls the Responses API for reasoning models and Chat
// Completions for everything else.
type OpenAIBackend struct {
	Options
}

// usesResponsesAPI reports whether model must go through /v1/responses.
func usesResponsesAPI(model string) bool {
	m := strings.ToLower(model)
	return strings.HasPrefix(m, "gpt-5") || strings.HasPrefix(m, "o1")
}

type responsesRequest struct {
	Model string          `json:"model"`
	Input []responsesTurn `json:"input"`
}

type responsesTurn struct {
	Role    string              `json:"role"`
	Content []responsesTextPart `json:"content"`
}

type responsesTextPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responsesResponse struct {
	OutputText string `json:"output_text"`
	Output     []struct {
		Type    string              `json:"type"`
		Content []responsesTextPart `json:"content"`
	} `json:"output"`
}

// text returns output_text, or the output_text parts of the first message
// item that has any.
func (r responsesResponse) text() string {
	if r.OutputText != "" {
		return r.OutputText
	}
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		var parts []string
		for _, c := range item.Content {
			if c.Type == "output_text" {
				parts = append(parts, c.Text)
			}
		}
		if len(parts) > 0 {
			return strings.TrimSpace(strings.Join(parts, "\n"))
		}
	}
	return ""
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
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

// Generate dispatches on the model family.
func (o *OpenAIBackend) Generate(ctx context.Context, prompt, model, apiKey string) (string, error) {
	if usesResponsesAPI(model) {
		return o.generateResponses(ctx, prompt, model, apiKey)
	}
	return o.generateChat(ctx, prompt, model, apiKey)
}

func (o *OpenAIBackend) generateResponses(ctx context.Context, prompt, model, apiKey string) (string, error) {
	payload := responsesRequest{
		Model: model,
		Input: []responsesTurn{
			{Role: "system", Content: []responsesTextPart{{Type: "input_text", Text: systemPrompt}}},
			{Role: "user", Content: []responsesTextPart{{Type: "input_text", Text: prompt}}},
		},
	}
	var out responsesResponse
	if err := o.post(ctx, openAIResponsesURL, apiKey, payload, &out); err != nil {
		return "", err
	}
	return out.text(), nil
}

func (o *OpenAIBackend) generateChat(ctx context.Context, prompt, model, apiKey string) (string, error) {
	payload := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: temperature,
	}
	var out chatResponse
	if err := o.post(ctx, openAIChatURL, apiKey, payload, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", decodeError(OpenAI, "response has no choices")
	}
	return out.Choices[0].Message.Content, nil
}

func (o *OpenAIBackend) post(ctx context.Context, url, apiKey string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := o.do(ctx, req)
	if err != nil {
		return transportError(OpenAI, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return statusError(OpenAI, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return decodeError(OpenAI, "decoding response: %v", err)
	}
	return nil
}
