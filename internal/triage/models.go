// Package triage implements the incident resolution engine: semantic
// retrieval over past resolutions, rule-based resolution generation,
// confidence scoring, and the escalation decision.
package triage

// Incident is a support ticket submitted for first-line resolution.
// It is immutable for the duration of a Resolve call.
type Incident struct {
	// ID identifies the incident in the caller's ticket system.
	ID string `json:"id"`

	// Summary is the free-text one-line summary.
	Summary string `json:"summary"`

	// Description is the free-text detail.
	Description string `json:"description"`

	// Category is an optional tag. The engine carries it through without
	// interpreting it.
	Category string `json:"category,omitempty"`

	// User describes the submitting user. Opaque to the engine.
	User map[string]string `json:"user,omitempty"`

	// Metadata is an opaque passthrough mapping. Keys the engine does not
	// use are preserved verbatim.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// QueryText returns the text used to query the knowledge store.
func (i *Incident) QueryText() string {
	return i.Summary + "\n" + i.Description
}

// Resolution is the engine's answer for a single incident.
type Resolution struct {
	// Confidence is the engine's self-assessed score in [0,1].
	Confidence float64 `json:"confidence"`

	// Resolution is the resolution narrative (numbered steps or free text).
	Resolution string `json:"resolution"`

	// Reasoning explains why this resolution was chosen.
	Reasoning string `json:"reasoning"`

	// SimilarIncidents lists the knowledge base ids retrieved as evidence
	// for this call.
	SimilarIncidents []string `json:"similar_incidents"`

	// ShouldEscalate is true when confidence fell below the threshold.
	ShouldEscalate bool `json:"should_escalate"`

	// EscalationReason states the numeric confidence and threshold.
	// Set iff ShouldEscalate is true.
	EscalationReason string `json:"escalation_reason,omitempty"`

	// TokensInput and TokensOutput are approximate token counts for the
	// inputs consumed and text produced. Estimated at 4 chars/token; not
	// suitable for exact billing.
	TokensInput  int `json:"tokens_input"`
	TokensOutput int `json:"tokens_output"`
}
