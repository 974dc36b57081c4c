// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// geminiAPIBase is the Generative Language API root. Package-level var for test substitution.
var geminiAPIBase = "https://generativelanguage.googleapis.com/v1beta"

// GeminiBackend calls the Gemini generateContent endpoint. The API key
// travels as a query parameter, so error text is always redacted.
type GeminiBackend struct {
	Options
}

var (
	nonWordRe   = regexp.MustCompile(`[^\w]+`)
	hyphenRunRe = regexp.MustCompile(`-+`)
)

var geminiAliases = map[string]string{
	"gemini-2-5-flash": "gemini-2.5-flash",
	"gemini-2-5-pro":   "gemini-2.5-pro",
	"gemini-25-flash":  "gemini-2.5-flash",
	"gemini-25-pro":    "gemini-2.5-pro",
	"gemini-1-5-flash": "gemini-1.5-flash",
	"gemini-1-5-pro":   "gemini-1.5-pro",
	"gemini-15-flash":  "gemini-1.5-flash",
	"gemini-15-pro":    "gemini-1.5-pro",
	"gemini-flash":     "gemini-2.5-flash",
	"gemini-pro":       "gemini-2.5-pro",
}

// NormalizeGeminiModel maps free-form names such as "Gemini 2.5 Flash" to
// API model ids.
func NormalizeGeminiModel(model string) string {
	raw := strings.TrimSpace(model)
	if raw == "" {
		return model
	}
	cleaned := nonWordRe.ReplaceAllString(strings.ToLower(raw), "-")
	cleaned = strings.Trim(hyphenRunRe.ReplaceAllString(cleaned, "-"), "-")
	if alias, ok := geminiAliases[cleaned]; ok {
		return alias
	}
	return cleaned
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Generate returns the first part of the first candidate, or "" when the
// model returned no candidates.
func (g *GeminiBackend) Generate(ctx context.Context, prompt, model, apiKey string) (string, error) {
	payload := geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}}
	payload.GenerationConfig.Temperature = temperature

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		geminiAPIBase, url.PathEscape(NormalizeGeminiModel(model)), url.QueryEscape(apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", decodeError(Gemini, "creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.do(ctx, req)
	if err != nil {
		return "", transportError(Gemini, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return "", statusError(Gemini, resp)
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", decodeError(Gemini, "decoding response: %v", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}
