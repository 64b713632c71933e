package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civiclens/registry-cli/internal/config"
	"github.com/civiclens/registry-cli/internal/inference"
	"github.com/civiclens/registry-cli/internal/model"
	"github.com/civiclens/registry-cli/internal/resilience"
)

// fakePort returns canned responses and records calls.
type fakePort struct {
	response json.RawMessage
	err      error
	calls    int
	lastTask inference.Task
}

func (f *fakePort) Infer(_ context.Context, task inference.Task, _ any) (json.RawMessage, error) {
	f.calls++
	f.lastTask = task
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func testMatchConfig() config.MatchConfig {
	return config.MatchConfig{
		FastPathThreshold: 0.9,
		MatchedThreshold:  0.7,
		ReviewThreshold:   0.5,
		ShortlistLimit:    5,
		MaxConcurrent:     2,
	}
}

func TestMatch_EmptyShortlist(t *testing.T) {
	port := &fakePort{}
	m := New(port, testMatchConfig())

	decision, err := m.Match(context.Background(), model.CandidateRecord{RawName: "Taro Yamada"}, nil)

	require.NoError(t, err)
	assert.Equal(t, model.MatchStatusNoMatch, decision.Status)
	assert.Nil(t, decision.EntityID)
	assert.Zero(t, port.calls)
}

func TestMatch_RuleFastPath_SkipsInference(t *testing.T) {
	port := &fakePort{}
	m := New(port, testMatchConfig())

	candidate := model.CandidateRecord{RawName: "Taro Yamada"}
	shortlist := []model.Member{
		{ID: 42, Name: "Taro Yamada"},
		{ID: 7, Name: "Hanako Suzuki"},
	}

	decision, err := m.Match(context.Background(), candidate, shortlist)

	require.NoError(t, err)
	assert.Equal(t, model.MatchStatusMatched, decision.Status)
	require.NotNil(t, decision.EntityID)
	assert.Equal(t, int64(42), *decision.EntityID)
	assert.GreaterOrEqual(t, decision.Confidence, 0.9)
	assert.Zero(t, port.calls, "fast path must not call the inference port")
}

func TestMatch_InferenceBanding(t *testing.T) {
	// Confidence at a threshold belongs to the band it opens.
	cases := []struct {
		confidence float64
		want       model.MatchStatus
	}{
		{0.95, model.MatchStatusMatched},
		{0.7, model.MatchStatusMatched},
		{0.69, model.MatchStatusNeedsReview},
		{0.5, model.MatchStatusNeedsReview},
		{0.49, model.MatchStatusNoMatch},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("confidence_%.2f", tc.confidence), func(t *testing.T) {
			port := &fakePort{
				response: json.RawMessage(fmt.Sprintf(
					`{"should_match": true, "entity_id": 7, "confidence": %v, "rationale": "name variant"}`,
					tc.confidence)),
			}
			m := New(port, testMatchConfig())

			candidate := model.CandidateRecord{RawName: "T. Yamada"}
			shortlist := []model.Member{{ID: 7, Name: "Taro Yamada Sato"}}

			decision, err := m.Match(context.Background(), candidate, shortlist)

			require.NoError(t, err)
			assert.Equal(t, tc.want, decision.Status)
			assert.Equal(t, 1, port.calls)
			if tc.want == model.MatchStatusNoMatch {
				assert.Nil(t, decision.EntityID)
			} else {
				require.NotNil(t, decision.EntityID)
				assert.Equal(t, int64(7), *decision.EntityID)
			}
		})
	}
}

func TestMatch_ShouldMatchFalse(t *testing.T) {
	port := &fakePort{
		response: json.RawMessage(`{"should_match": false, "entity_id": null, "confidence": 0.2, "rationale": "different person"}`),
	}
	m := New(port, testMatchConfig())

	decision, err := m.Match(context.Background(),
		model.CandidateRecord{RawName: "Jiro Tanaka"},
		[]model.Member{{ID: 7, Name: "Taro Yamada Sato"}})

	require.NoError(t, err)
	assert.Equal(t, model.MatchStatusNoMatch, decision.Status)
	assert.Nil(t, decision.EntityID)
	assert.Equal(t, "different person", decision.Rationale)
}

func TestMatch_EntityIDOutsideShortlist_Invalid(t *testing.T) {
	port := &fakePort{
		response: json.RawMessage(`{"should_match": true, "entity_id": 999, "confidence": 0.9, "rationale": "hallucinated"}`),
	}
	m := New(port, testMatchConfig())

	decision, err := m.Match(context.Background(),
		model.CandidateRecord{RawName: "Jiro Tanaka"},
		[]model.Member{{ID: 7, Name: "Taro Yamada Sato"}})

	require.NoError(t, err)
	assert.Equal(t, model.MatchStatusNoMatch, decision.Status)
	assert.Nil(t, decision.EntityID)
	assert.Equal(t, 0.0, decision.Confidence)
	assert.Equal(t, "inference output failed validation", decision.Rationale)
}

func TestMatch_ValidationErrorRecovered(t *testing.T) {
	port := &fakePort{
		err: resilience.NewValidationError(errors.New("non-JSON output")),
	}
	m := New(port, testMatchConfig())

	decision, err := m.Match(context.Background(),
		model.CandidateRecord{RawName: "Jiro Tanaka"},
		[]model.Member{{ID: 7, Name: "Taro Yamada Sato"}})

	require.NoError(t, err)
	assert.Equal(t, model.MatchStatusNoMatch, decision.Status)
	assert.Equal(t, "inference output failed validation", decision.Rationale)
}

func TestMatch_TransientErrorPropagates(t *testing.T) {
	port := &fakePort{
		err: resilience.NewTransientError(errors.New("rate limited"), 429),
	}
	m := New(port, testMatchConfig())

	_, err := m.Match(context.Background(),
		model.CandidateRecord{RawName: "Jiro Tanaka"},
		[]model.Member{{ID: 7, Name: "Taro Yamada Sato"}})

	require.Error(t, err)
}

func TestMatch_ShortlistTruncated(t *testing.T) {
	port := &fakePort{
		response: json.RawMessage(`{"should_match": false, "entity_id": null, "confidence": 0.1, "rationale": "none"}`),
	}
	cfg := testMatchConfig()
	cfg.ShortlistLimit = 2
	m := New(port, cfg)

	shortlist := make([]model.Member, 10)
	for i := range shortlist {
		shortlist[i] = model.Member{ID: int64(i + 1), Name: fmt.Sprintf("Person %d", i+1)}
	}

	_, err := m.Match(context.Background(), model.CandidateRecord{RawName: "Unrelated Name"}, shortlist)
	require.NoError(t, err)
	assert.Equal(t, 1, port.calls)
}

func TestMatchAll_PreservesOrder(t *testing.T) {
	port := &fakePort{
		response: json.RawMessage(`{"should_match": false, "entity_id": null, "confidence": 0.1, "rationale": "none"}`),
	}
	m := New(port, testMatchConfig())

	candidates := []model.CandidateRecord{
		{RawName: "Alpha Aoki"},
		{RawName: "Beta Baba"},
		{RawName: "Gamma Goto"},
	}
	shortlistFor := func(_ context.Context, _ model.CandidateRecord) ([]model.Member, error) {
		return []model.Member{{ID: 1, Name: "Zeta Zushi"}}, nil
	}

	decisions, err := m.MatchAll(context.Background(), candidates, shortlistFor)

	require.NoError(t, err)
	require.Len(t, decisions, 3)
	for i, d := range decisions {
		assert.Equal(t, candidates[i].RawName, d.Candidate.RawName)
	}
}

func TestMatchAll_ShortlistErrorAborts(t *testing.T) {
	port := &fakePort{}
	m := New(port, testMatchConfig())

	shortlistFor := func(_ context.Context, _ model.CandidateRecord) ([]model.Member, error) {
		return nil, errors.New("store unavailable")
	}

	_, err := m.MatchAll(context.Background(),
		[]model.CandidateRecord{{RawName: "Alpha Aoki"}}, shortlistFor)

	require.Error(t, err)
}
