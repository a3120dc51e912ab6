package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/opsforgelabs/triaged/internal/knowledge"
	"github.com/opsforgelabs/triaged/internal/tokens"
)

var engineTracer = otel.Tracer("triaged.triage.engine")

// DefaultConfidenceThreshold is the escalation cutoff: resolutions scoring
// below it are handed to a human.
const DefaultConfidenceThreshold = 0.70

// maxRetrievedDocs caps how many similar incidents are pulled per resolve.
const maxRetrievedDocs = 5

// EngineConfig configures an Engine. Zero-value fields fall back to the
// rule-based generator, heuristic scorer, chars/4 estimator, and the
// default threshold.
type EngineConfig struct {
	Store     knowledge.Store
	Generator Generator
	Scorer    Scorer
	Estimator tokens.Estimator
	Logger    *zap.Logger
	Metrics   *Metrics

	// Threshold is the escalation cutoff in (0,1].
	Threshold float64
}

// Engine is the incident resolution engine. It orchestrates retrieval,
// generation, confidence scoring, the escalation decision, and usage
// accounting. Engines are stateless per call beyond the knowledge store
// and safe for concurrent use.
type Engine struct {
	store     knowledge.Store
	generator Generator
	scorer    Scorer
	estimator tokens.Estimator
	logger    *zap.Logger
	metrics   *Metrics
	threshold float64
}

// NewEngine creates an engine from config.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Generator == nil {
		cfg.Generator = NewRuleBasedGenerator()
	}
	if cfg.Scorer == nil {
		cfg.Scorer = HeuristicScorer{}
	}
	if cfg.Estimator == nil {
		cfg.Estimator = tokens.CharEstimator{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		cfg.Threshold = DefaultConfidenceThreshold
	}

	return &Engine{
		store:     cfg.Store,
		generator: cfg.Generator,
		scorer:    cfg.Scorer,
		estimator: cfg.Estimator,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		threshold: cfg.Threshold,
	}
}

// Resolve attempts an automatic first-line resolution for the incident.
//
// Retrieval failure degrades to an empty context rather than failing the
// request; only caller cancellation and generator failure surface as
// errors. No partial Resolution is ever returned alongside an error.
func (e *Engine) Resolve(ctx context.Context, incident *Incident) (*Resolution, error) {
	ctx, span := engineTracer.Start(ctx, "Engine.Resolve")
	defer span.End()

	span.SetAttributes(attribute.String("incident_id", incident.ID))

	similarIncidents := []string{}
	contextDocs := []string{}

	if e.store != nil {
		if count := e.store.Count(); count > 0 {
			k := maxRetrievedDocs
			if count < k {
				k = count
			}
			results, err := e.store.Query(ctx, incident.QueryText(), k)
			switch {
			case err == nil:
				for _, r := range results {
					similarIncidents = append(similarIncidents, r.ID)
					contextDocs = append(contextDocs, r.Content)
				}
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				// Caller gave up; don't fabricate a degraded answer.
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			default:
				// Degrade to the empty-context path. Never surfaced.
				e.logger.Warn("knowledge retrieval failed, continuing without context",
					zap.String("incident_id", incident.ID),
					zap.Error(err),
				)
			}
		}
	}

	span.SetAttributes(attribute.Int("similar_incidents", len(similarIncidents)))

	resolutionText, reasoning, err := e.generator.Generate(ctx, incident, contextDocs)
	if err != nil {
		e.metrics.observeResolutionError()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("generating resolution: %w", err)
	}

	confidence := e.scorer.Score(resolutionText, reasoning, contextDocs)

	inputText := incident.QueryText()
	if len(contextDocs) > 0 {
		inputText += strings.Join(contextDocs, "\n")
	}

	result := &Resolution{
		Confidence:       confidence,
		Resolution:       resolutionText,
		Reasoning:        reasoning,
		SimilarIncidents: similarIncidents,
		ShouldEscalate:   confidence < e.threshold,
		TokensInput:      e.estimator.Estimate(inputText),
		TokensOutput:     e.estimator.Estimate(resolutionText + reasoning),
	}
	if result.ShouldEscalate {
		result.EscalationReason = fmt.Sprintf("Confidence %.2f below threshold %.2f", confidence, e.threshold)
	}

	e.metrics.observeResolution(confidence, result.ShouldEscalate)
	span.SetAttributes(
		attribute.Float64("confidence", confidence),
		attribute.Bool("should_escalate", result.ShouldEscalate),
	)
	span.SetStatus(codes.Ok, "success")

	e.logger.Info("incident resolved",
		zap.String("incident_id", incident.ID),
		zap.Float64("confidence", confidence),
		zap.Bool("should_escalate", result.ShouldEscalate),
		zap.Int("similar_incidents", len(similarIncidents)),
	)

	return result, nil
}

// AddKnowledge records a resolved incident into the knowledge base and
// returns its new identifier. Identifier assignment is serialized inside
// the store, so concurrent calls always receive distinct ids.
func (e *Engine) AddKnowledge(ctx context.Context, entry knowledge.Entry) (string, error) {
	ctx, span := engineTracer.Start(ctx, "Engine.AddKnowledge")
	defer span.End()

	if e.store == nil {
		span.SetStatus(codes.Error, "store unavailable")
		return "", knowledge.ErrStoreUnavailable
	}

	id, err := e.store.Add(ctx, entry)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("adding knowledge entry: %w", err)
	}

	e.metrics.observeKBAdd()
	span.SetAttributes(attribute.String("entry_id", id))
	span.SetStatus(codes.Ok, "success")

	e.logger.Info("knowledge entry added",
		zap.String("id", id),
		zap.String("category", entry.Category),
	)

	return id, nil
}

// KnowledgeCount reports the knowledge base size, 0 when no store is
// attached. Used for health reporting.
func (e *Engine) KnowledgeCount() int {
	if e.store == nil {
		return 0
	}
	return e.store.Count()
}

// StoreReady reports whether a knowledge store is attached.
func (e *Engine) StoreReady() bool {
	return e.store != nil
}
