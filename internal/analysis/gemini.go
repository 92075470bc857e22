package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/hkfcheung/regintel-sub001/internal/pipeline"
)

const defaultGeminiModel = "gemini-2.0-flash"

const analysisPrompt = `You are a regulatory analyst. Given the document
metadata below, produce a JSON object with exactly these fields:
  "summary": two or three sentences describing what the document says,
  "impact": one sentence on who is affected and how,
  "citations": an array of statute, rule, or docket references mentioned.
Respond with only the JSON object.

Title: %s
Source: %s
Category: %s
URL: %s`

// Gemini analyzes items through the Google GenAI API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates the Gemini capability. An empty API key yields a nil
// capability, which the orchestrator surfaces as service-unavailable.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = defaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Available reports whether the client is usable.
func (g *Gemini) Available() bool {
	return g != nil && g.client != nil
}

// Analyze prompts the model and parses its JSON reply.
func (g *Gemini) Analyze(ctx context.Context, item pipeline.SourceItem) (Finding, map[string]string, error) {
	prompt := fmt.Sprintf(analysisPrompt, item.Title, item.Source, item.Category, item.URL)
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return Finding{}, nil, fmt.Errorf("generate content: %w", err)
	}

	finding, err := parseFinding(resp.Text())
	if err != nil {
		return Finding{}, nil, err
	}
	meta := map[string]string{"provider": "gemini", "model": g.model}
	return finding, meta, nil
}

// parseFinding decodes the model reply, tolerating markdown code fences.
func parseFinding(text string) (Finding, error) {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	}
	var finding Finding
	if err := json.Unmarshal([]byte(cleaned), &finding); err != nil {
		return Finding{}, fmt.Errorf("parse analysis reply: %w", err)
	}
	if finding.Summary == "" {
		return Finding{}, fmt.Errorf("analysis reply missing summary")
	}
	return finding, nil
}
