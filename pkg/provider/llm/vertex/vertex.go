// Package vertex provides an LLM provider backed by Gemini models on Google
// Cloud Vertex AI. Authentication uses Application Default Credentials.
package vertex

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/MrWong99/sitereport/pkg/provider/llm"
)

// DefaultModel is used when New receives an empty model name.
const DefaultModel = "gemini-1.5-flash"

// Provider implements llm.Provider on top of a Vertex AI genai client.
type Provider struct {
	client *genai.Client
	model  string
}

// New dials Vertex AI for the given project and region.
func New(ctx context.Context, projectID, region, model string) (*Provider, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("vertex: projectID and region must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("vertex: new client: %w", err)
	}
	return &Provider{client: client, model: model}, nil
}

// Close releases the underlying client.
func (p *Provider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// Complete implements llm.Provider. A fresh GenerativeModel handle is built
// for every call because its configuration fields are not safe to share
// between concurrent requests.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := p.client.GenerativeModel(p.model)
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemPrompt)}}
	}
	model.GenerationConfig = generationConfig(req)

	parts := make([]genai.Part, 0, len(req.Messages))
	for _, m := range req.Messages {
		parts = append(parts, genai.Text(m.Content))
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("vertex: generate content: %w", err)
	}
	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	out := &llm.CompletionResponse{Content: text, Model: p.model}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func generationConfig(req llm.CompletionRequest) genai.GenerationConfig {
	cfg := genai.GenerationConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = genai.Ptr(int32(req.MaxTokens))
	}
	if req.JSONOutput {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("vertex: empty candidates in response")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

var _ llm.Provider = (*Provider)(nil)
