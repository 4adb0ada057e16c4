package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultModel  = "gemini-1.5-flash"
)

// GeminiClient implements Client using Google's Gemini API.
type GeminiClient struct {
	apiKey string
	model  string
	http   *resty.Client
}

func NewGeminiClient(apiKey string) *GeminiClient {
	client := resty.New()
	client.SetBaseURL(geminiBaseURL)
	client.SetTimeout(30 * time.Second)
	client.SetHeader("content-type", "application/json")
	return &GeminiClient{
		apiKey: apiKey,
		model:  defaultModel,
		http:   client,
	}
}

// WithModel allows changing the model (e.g., "gemini-1.5-pro")
func (g *GeminiClient) WithModel(model string) *GeminiClient {
	g.model = model
	return g
}

// WithBaseURL points the client at another endpoint.
func (g *GeminiClient) WithBaseURL(base string) *GeminiClient {
	g.http.SetBaseURL(base)
	return g
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

func (g *GeminiClient) callAPI(ctx context.Context, prompt string) (string, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      0.4,
			MaxOutputTokens:  600,
			ResponseMIMEType: "application/json",
		},
	}

	var out geminiResponse
	res, err := g.http.R().
		SetContext(ctx).
		SetQueryParam("key", g.apiKey).
		SetBody(reqBody).
		SetResult(&out).
		SetError(&out).
		Post("/" + g.model + ":generateContent")
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}

	if out.Error != nil {
		return "", fmt.Errorf("gemini API error: %s (code: %d)", out.Error.Message, out.Error.Code)
	}
	if res.IsError() {
		return "", fmt.Errorf("gemini API error: status %d", res.StatusCode())
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from Gemini")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

func (g *GeminiClient) Recommend(ctx context.Context, req RecommendRequest) ([]Recommendation, error) {
	subject := req.subject()
	if subject == "" {
		return nil, fmt.Errorf("nothing to recommend for")
	}
	n := req.Limit
	if n <= 0 || n > 10 {
		n = 5
	}

	prompt := fmt.Sprintf(`You suggest follow-up searches for a %s search engine.

Return JSON only: an array of at most %d objects with this exact structure:
[{"title": "short label", "reason": "one sentence", "search_query": "query to run next"}]

Rules:
- Suggestions must be different from the results the user already saw
- search_query must be usable as-is in the same %s search
- reason: max 20 words

User searched for: %s
Already seen:
%s`, req.Vertical, n, req.Vertical, subject, truncateText(strings.Join(req.Seen, "\n"), 800))

	response, err := g.callAPI(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var recs []Recommendation
	if err := json.Unmarshal([]byte(cleanJSON(response)), &recs); err != nil {
		return nil, fmt.Errorf("failed to parse recommendations: %w (response: %s)", err, truncateText(response, 200))
	}
	return limit(recs, n), nil
}

// truncateText limits text to maxLen bytes
func truncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "..."
}

// cleanJSON removes markdown code blocks if present
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
