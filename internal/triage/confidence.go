package triage

import "strings"

// Confidence scoring weights. The additive model starts from a neutral
// base and adjusts for retrieval evidence, structured steps, substantive
// reasoning, and self-recommended escalation.
const (
	confidenceBase    = 0.5
	contextBoost      = 0.20
	stepsBoost        = 0.15
	reasoningBoost    = 0.15
	escalationPenalty = 0.30

	// minReasoningLen is the length above which reasoning counts as
	// substantive.
	minReasoningLen = 20
)

// Scorer scores a generated resolution against heuristics and retrieval
// evidence. Output is always in [0,1].
type Scorer interface {
	Score(resolution, reasoning string, contextDocs []string) float64
}

// HeuristicScorer is the deterministic additive confidence model.
//
// Incident category and user metadata deliberately do not participate in
// the score; see DESIGN.md for the per-category calibration question.
type HeuristicScorer struct{}

// Score computes the confidence for a generated resolution.
func (HeuristicScorer) Score(resolution, reasoning string, contextDocs []string) float64 {
	score := confidenceBase

	// Retrieval found evidence.
	if len(contextDocs) > 0 {
		score += contextBoost
	}

	// Resolution has a structured multi-step procedure.
	if strings.Contains(resolution, "1.") && strings.Contains(resolution, "2.") {
		score += stepsBoost
	}

	// Reasoning is substantive.
	if len(reasoning) > minReasoningLen {
		score += reasoningBoost
	}

	// The generator recommended escalation in its own output.
	lower := strings.ToLower(resolution)
	if strings.Contains(lower, "escalat") || strings.Contains(lower, "specialist") {
		score -= escalationPenalty
	}

	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Ensure HeuristicScorer implements Scorer.
var _ Scorer = HeuristicScorer{}
