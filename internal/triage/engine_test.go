package triage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsforgelabs/triaged/internal/knowledge"
)

// mockStore implements knowledge.Store with func fields.
type mockStore struct {
	queryFunc func(ctx context.Context, text string, k int) ([]knowledge.Result, error)
	addFunc   func(ctx context.Context, entry knowledge.Entry) (string, error)
	countFunc func() int
}

func (m *mockStore) Query(ctx context.Context, text string, k int) ([]knowledge.Result, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, text, k)
	}
	return nil, nil
}

func (m *mockStore) Add(ctx context.Context, entry knowledge.Entry) (string, error) {
	if m.addFunc != nil {
		return m.addFunc(ctx, entry)
	}
	return "kb_1", nil
}

func (m *mockStore) Count() int {
	if m.countFunc != nil {
		return m.countFunc()
	}
	return 0
}

func (m *mockStore) Close() error { return nil }

func TestEngine_Resolve_PasswordIncident_EmptyKB(t *testing.T) {
	engine := NewEngine(EngineConfig{Store: knowledge.NewMemoryStore()})

	res, err := engine.Resolve(context.Background(), &Incident{
		ID:      "INC-1",
		Summary: "user forgot password",
	})
	require.NoError(t, err)

	// base 0.5 + steps 0.15 + substantive reasoning 0.15; no context boost.
	assert.InDelta(t, 0.80, res.Confidence, 1e-9)
	assert.False(t, res.ShouldEscalate)
	assert.Empty(t, res.EscalationReason)
	assert.Contains(t, res.Resolution, "password reset portal")
	assert.Empty(t, res.SimilarIncidents)

	// Input: "user forgot password\n" = 21 chars -> 5 tokens.
	assert.Equal(t, 5, res.TokensInput)
	assert.Equal(t, (len(res.Resolution)+len(res.Reasoning))/4, res.TokensOutput)
}

func TestEngine_Resolve_UnrecognizedIncident_EmptyKB(t *testing.T) {
	engine := NewEngine(EngineConfig{Store: knowledge.NewMemoryStore()})

	res, err := engine.Resolve(context.Background(), &Incident{
		ID:      "INC-2",
		Summary: "strange beeping from server room",
	})
	require.NoError(t, err)

	// base 0.5 + steps 0.15 + reasoning 0.15 - escalation 0.30.
	assert.InDelta(t, 0.50, res.Confidence, 1e-9)
	assert.True(t, res.ShouldEscalate)
	assert.Equal(t, "Confidence 0.50 below threshold 0.70", res.EscalationReason)
	assert.Contains(t, res.Resolution, "escalated to a human agent")
}

func TestEngine_Resolve_UsesRetrievedContext(t *testing.T) {
	store := &mockStore{
		countFunc: func() int { return 2 },
		queryFunc: func(ctx context.Context, text string, k int) ([]knowledge.Result, error) {
			assert.Equal(t, "vpn drops hourly\n", text)
			assert.Equal(t, 2, k, "k is capped at corpus size")
			return []knowledge.Result{
				{ID: "kb_2", Content: "vpn drops\n\nResolution:\nupdate client", Score: 0.9},
				{ID: "kb_1", Content: "vpn slow\n\nResolution:\nswitch gateway", Score: 0.4},
			}, nil
		},
	}
	engine := NewEngine(EngineConfig{Store: store})

	res, err := engine.Resolve(context.Background(), &Incident{Summary: "vpn drops hourly"})
	require.NoError(t, err)

	assert.Equal(t, []string{"kb_2", "kb_1"}, res.SimilarIncidents)
	assert.Contains(t, res.Resolution, "update client")
	// base 0.5 + context 0.2 + reasoning 0.15 (no numbered steps in quoted doc).
	assert.InDelta(t, 0.85, res.Confidence, 1e-9)
	assert.False(t, res.ShouldEscalate)
}

func TestEngine_Resolve_RequestsAtMostFive(t *testing.T) {
	store := &mockStore{
		countFunc: func() int { return 40 },
		queryFunc: func(ctx context.Context, text string, k int) ([]knowledge.Result, error) {
			assert.Equal(t, 5, k)
			return nil, nil
		},
	}
	engine := NewEngine(EngineConfig{Store: store})

	_, err := engine.Resolve(context.Background(), &Incident{Summary: "anything"})
	require.NoError(t, err)
}

func TestEngine_Resolve_NoStore_Degrades(t *testing.T) {
	engine := NewEngine(EngineConfig{})

	res, err := engine.Resolve(context.Background(), &Incident{Summary: "printer offline"})
	require.NoError(t, err)
	assert.Empty(t, res.SimilarIncidents)
	assert.Contains(t, res.Resolution, "print queue")
}

func TestEngine_Resolve_RetrievalFailure_Degrades(t *testing.T) {
	store := &mockStore{
		countFunc: func() int { return 3 },
		queryFunc: func(ctx context.Context, text string, k int) ([]knowledge.Result, error) {
			return nil, errors.New("index corrupted")
		},
	}
	engine := NewEngine(EngineConfig{Store: store})

	res, err := engine.Resolve(context.Background(), &Incident{Summary: "user forgot password"})
	require.NoError(t, err, "retrieval failure must not fail the request")
	assert.Empty(t, res.SimilarIncidents)
	assert.InDelta(t, 0.80, res.Confidence, 1e-9)
}

func TestEngine_Resolve_ContextCancelled_Surfaces(t *testing.T) {
	store := &mockStore{
		countFunc: func() int { return 3 },
		queryFunc: func(ctx context.Context, text string, k int) ([]knowledge.Result, error) {
			return nil, context.Canceled
		},
	}
	engine := NewEngine(EngineConfig{Store: store})

	res, err := engine.Resolve(context.Background(), &Incident{Summary: "anything"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res, "no partial resolution on failure")
}

// failingGenerator always errors, standing in for a model-backed generator.
type failingGenerator struct{}

func (failingGenerator) Generate(ctx context.Context, incident *Incident, contextDocs []string) (string, string, error) {
	return "", "", errors.New("model unavailable")
}

func TestEngine_Resolve_GeneratorFailure_Surfaces(t *testing.T) {
	engine := NewEngine(EngineConfig{Generator: failingGenerator{}})

	res, err := engine.Resolve(context.Background(), &Incident{Summary: "anything"})
	assert.ErrorContains(t, err, "model unavailable")
	assert.Nil(t, res)
}

func TestEngine_AddKnowledge(t *testing.T) {
	engine := NewEngine(EngineConfig{Store: knowledge.NewMemoryStore()})

	id, err := engine.AddKnowledge(context.Background(), knowledge.Entry{
		Summary:    "vpn drops hourly",
		Resolution: "update the client",
		Category:   "network",
		Confidence: 0.9,
	})
	require.NoError(t, err)
	assert.Equal(t, "kb_1", id)
	assert.Equal(t, 1, engine.KnowledgeCount())
}

func TestEngine_AddKnowledge_NoStore(t *testing.T) {
	engine := NewEngine(EngineConfig{})

	_, err := engine.AddKnowledge(context.Background(), knowledge.Entry{
		Summary:    "s",
		Resolution: "r",
	})
	assert.ErrorIs(t, err, knowledge.ErrStoreUnavailable)
	assert.False(t, engine.StoreReady())
	assert.Equal(t, 0, engine.KnowledgeCount())
}

func TestEngine_AddKnowledge_ConcurrentDistinctIDs(t *testing.T) {
	engine := NewEngine(EngineConfig{Store: knowledge.NewMemoryStore()})
	ctx := context.Background()

	const writers = 16
	ids := make([]string, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := engine.AddKnowledge(ctx, knowledge.Entry{Summary: "s", Resolution: "r"})
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, writers)
	for _, id := range ids {
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

// An entry added through AddKnowledge is retrievable by a later Resolve
// with a similar query, and its id appears in SimilarIncidents.
func TestEngine_RoundTrip(t *testing.T) {
	engine := NewEngine(EngineConfig{Store: knowledge.NewMemoryStore()})
	ctx := context.Background()

	id, err := engine.AddKnowledge(ctx, knowledge.Entry{
		Summary:    "conference room projector flickering",
		Resolution: "replaced the HDMI cable",
		Category:   "av",
		Confidence: 0.8,
	})
	require.NoError(t, err)

	res, err := engine.Resolve(ctx, &Incident{
		Summary: "projector flickering in conference room",
	})
	require.NoError(t, err)
	assert.Contains(t, res.SimilarIncidents, id)
	assert.Contains(t, res.Resolution, "replaced the HDMI cable")
}

// SimilarIncidents reflects only the current call's retrieval, not prior
// calls.
func TestEngine_Resolve_SimilarIncidentsNotCumulative(t *testing.T) {
	calls := 0
	store := &mockStore{
		countFunc: func() int { return 1 },
		queryFunc: func(ctx context.Context, text string, k int) ([]knowledge.Result, error) {
			calls++
			if calls == 1 {
				return []knowledge.Result{{ID: "kb_1", Content: "doc one"}}, nil
			}
			return []knowledge.Result{{ID: "kb_2", Content: "doc two"}}, nil
		},
	}
	engine := NewEngine(EngineConfig{Store: store})
	ctx := context.Background()

	first, err := engine.Resolve(ctx, &Incident{Summary: "q"})
	require.NoError(t, err)
	second, err := engine.Resolve(ctx, &Incident{Summary: "q"})
	require.NoError(t, err)

	assert.Equal(t, []string{"kb_1"}, first.SimilarIncidents)
	assert.Equal(t, []string{"kb_2"}, second.SimilarIncidents)
}

func TestNewEngine_Defaults(t *testing.T) {
	engine := NewEngine(EngineConfig{Threshold: 2.5})
	assert.Equal(t, DefaultConfidenceThreshold, engine.threshold)

	engine = NewEngine(EngineConfig{Threshold: 0.9})
	assert.Equal(t, 0.9, engine.threshold)
}
