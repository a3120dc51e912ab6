package triage

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// LLMConfig holds configuration for the model-backed generator.
type LLMConfig struct {
	// BaseURL is the chat completions endpoint. Any OpenAI-compatible
	// server works, including local inference runtimes.
	BaseURL string

	// Model is the chat model name.
	Model string

	// APIKey is the API key (optional for local servers).
	APIKey string

	// Temperature controls sampling. Low values keep resolutions
	// procedural.
	Temperature float64
}

// LLMGenerator produces resolutions with a chat model instead of the
// rule table. It implements the same Generator contract, so the engine
// and confidence model are unchanged when it is selected.
type LLMGenerator struct {
	llm    llms.Model
	config LLMConfig
}

// NewLLMGenerator creates a model-backed generator.
func NewLLMGenerator(config LLMConfig) (*LLMGenerator, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("llm generator: base URL required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("llm generator: model required")
	}

	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(config.BaseURL),
		openai.WithModel(config.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating LLM client: %w", err)
	}

	return &LLMGenerator{llm: llm, config: config}, nil
}

// Generate prompts the model with the incident and retrieved context.
//
// Unlike the rule-based generator this can fail (network, model errors);
// the engine surfaces such failures to the caller rather than degrading.
func (g *LLMGenerator) Generate(ctx context.Context, incident *Incident, contextDocs []string) (string, string, error) {
	prompt := g.buildPrompt(incident, contextDocs)

	completion, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt,
		llms.WithTemperature(g.config.Temperature),
	)
	if err != nil {
		return "", "", fmt.Errorf("llm completion: %w", err)
	}

	resolution, reasoning := splitCompletion(completion)
	if reasoning == "" {
		reasoning = fmt.Sprintf("Generated by %s from %d similar incident(s)", g.config.Model, len(contextDocs))
	}
	return resolution, reasoning, nil
}

// buildPrompt assembles the triage prompt from the incident and context.
func (g *LLMGenerator) buildPrompt(incident *Incident, contextDocs []string) string {
	var b strings.Builder
	b.WriteString("You are a T1 IT support agent. Propose a step-by-step resolution for the incident below.\n")
	b.WriteString("Answer with a RESOLUTION: section of numbered steps followed by a REASONING: section of one line.\n\n")
	b.WriteString("Incident summary: ")
	b.WriteString(incident.Summary)
	b.WriteString("\nIncident description: ")
	b.WriteString(incident.Description)
	b.WriteString("\n")

	if len(contextDocs) > 0 {
		b.WriteString("\nSimilar past incidents and their resolutions:\n")
		for i, doc := range contextDocs {
			fmt.Fprintf(&b, "--- %d ---\n%s\n", i+1, doc)
		}
	}
	return b.String()
}

// splitCompletion separates the RESOLUTION and REASONING sections.
// When the model ignores the format, the whole completion becomes the
// resolution and reasoning is left empty for the caller to fill.
func splitCompletion(completion string) (resolution, reasoning string) {
	upper := strings.ToUpper(completion)
	idx := strings.LastIndex(upper, "REASONING:")
	if idx < 0 {
		return strings.TrimSpace(completion), ""
	}

	resolution = completion[:idx]
	// The resolution label can arrive in any case; locate it the same way
	// as the reasoning marker and slice past it.
	if labelIdx := strings.Index(upper[:idx], "RESOLUTION:"); labelIdx >= 0 {
		resolution = resolution[labelIdx+len("RESOLUTION:"):]
	}
	resolution = strings.TrimSpace(resolution)
	reasoning = strings.TrimSpace(completion[idx+len("REASONING:"):])
	return resolution, reasoning
}

// Ensure LLMGenerator implements Generator.
var _ Generator = (*LLMGenerator)(nil)
