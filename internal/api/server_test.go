package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civiclens/registry-cli/internal/model"
	"github.com/civiclens/registry-cli/internal/store"
)

type fakeRunner struct {
	mu    sync.Mutex
	seeds []string
	done  chan struct{}
}

func (f *fakeRunner) Run(_ context.Context, seeds []string) (*model.CrawlSummary, error) {
	f.mu.Lock()
	f.seeds = seeds
	f.mu.Unlock()
	if f.done != nil {
		close(f.done)
	}
	return &model.CrawlSummary{PagesVisited: len(seeds)}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *store.MemoryStore, *fakeRunner) {
	t.Helper()
	st := store.NewMemory()
	runner := &fakeRunner{done: make(chan struct{})}
	srv := httptest.NewServer(NewServer(st, runner).Handler())
	t.Cleanup(srv.Close)
	return srv, st, runner
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestStartCrawl(t *testing.T) {
	srv, _, runner := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/crawl", "application/json",
		strings.NewReader(`{"seeds": ["https://example.org/"]}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	<-runner.done
	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, []string{"https://example.org/"}, runner.seeds)
}

func TestStartCrawl_NoSeeds(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/crawl", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetMember(t *testing.T) {
	srv, st, _ := newTestServer(t)

	m := model.Member{Name: "Taro Yamada", Party: "Liberal Party"}
	require.NoError(t, st.CreateMember(context.Background(), &m))

	resp, err := http.Get(srv.URL + "/api/members/1")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got model.Member
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "Taro Yamada", got.Name)
}

func TestGetMember_NotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/members/999")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetMember_BadID(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/members/abc")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetMemberHistory(t *testing.T) {
	srv, st, _ := newTestServer(t)

	m := model.Member{Name: "Taro Yamada"}
	require.NoError(t, st.CreateMember(context.Background(), &m))
	entityID := m.ID
	_, err := st.AppendExtractionLog(context.Background(), &model.ExtractionLogEntry{
		EntityType:      model.EntityTypeMember,
		EntityID:        &entityID,
		PipelineVersion: "v1",
		ExtractedData:   json.RawMessage(`{"raw_name":"Taro Yamada"}`),
		ConfidenceScore: 0.9,
	})
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/api/members/1/history")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got struct {
		EntityID int64                      `json:"entity_id"`
		Entries  []model.ExtractionLogEntry `json:"entries"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, int64(1), got.EntityID)
	require.Len(t, got.Entries, 1)
	assert.Equal(t, "v1", got.Entries[0].PipelineVersion)
}

func TestVerifyMember(t *testing.T) {
	srv, st, _ := newTestServer(t)

	m := model.Member{Name: "Taro Yamada", Role: "Member"}
	require.NoError(t, st.CreateMember(context.Background(), &m))

	resp, err := http.Post(srv.URL+"/api/members/1/verify", "application/json",
		strings.NewReader(`{"role": "Chair"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got model.Member
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "Chair", got.Role)
	assert.Equal(t, "Taro Yamada", got.Name, "omitted fields keep their values")
	assert.True(t, got.IsManuallyVerified)
}
