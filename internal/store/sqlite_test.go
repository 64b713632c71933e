package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civiclens/registry-cli/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteStore_MemberRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	m := &model.Member{Name: "Taro Yamada", Role: "Chair", Party: "Liberal Party", District: "3rd"}
	require.NoError(t, s.CreateMember(ctx, m))
	require.NotZero(t, m.ID)

	got, err := s.GetMember(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Taro Yamada", got.Name)
	assert.Equal(t, int64(1), got.Version)
	assert.False(t, got.IsManuallyVerified)
}

func TestSQLiteStore_GetMember_NotFound(t *testing.T) {
	s := newTestSQLite(t)

	got, err := s.GetMember(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_SearchMembers(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	for _, name := range []string{"Taro Yamada", "Hanako Yamada", "Jiro Tanaka"} {
		require.NoError(t, s.CreateMember(ctx, &model.Member{Name: name}))
	}

	got, err := s.SearchMembers(ctx, "Yamada", 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSQLiteStore_UpdateMemberGuarded(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	m := &model.Member{Name: "Taro Yamada"}
	require.NoError(t, s.CreateMember(ctx, m))

	m.Role = "Chair"
	updated, err := s.UpdateMemberGuarded(ctx, m)
	require.NoError(t, err)
	assert.True(t, updated)

	got, err := s.GetMember(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Chair", got.Role)
	assert.Equal(t, int64(2), got.Version)

	// Stale version loses.
	updated, err = s.UpdateMemberGuarded(ctx, m)
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestSQLiteStore_GuardBlocksAutomatedUpdate(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	m := &model.Member{Name: "Protected Person"}
	require.NoError(t, s.CreateMember(ctx, m))
	require.NoError(t, s.VerifyMember(ctx, m))

	cur, err := s.GetMember(ctx, m.ID)
	require.NoError(t, err)
	require.True(t, cur.IsManuallyVerified)

	cur.Name = "Renamed"
	updated, err := s.UpdateMemberGuarded(ctx, cur)
	require.NoError(t, err)
	assert.False(t, updated, "guarded update must not touch verified members")

	got, err := s.GetMember(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Protected Person", got.Name)
}

func TestSQLiteStore_ExtractionLogAppendOnly(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	entityID := int64(7)
	for i := 0; i < 3; i++ {
		entry := &model.ExtractionLogEntry{
			EntityType:      model.EntityTypeMember,
			EntityID:        &entityID,
			PipelineVersion: "v1",
			ExtractedData:   json.RawMessage(`{"raw_name":"Taro Yamada"}`),
			ConfidenceScore: 0.9,
			Metadata:        map[string]any{"match_status": "matched"},
			CreatedAt:       time.Date(2026, 8, 1, 12, i, 0, 0, time.UTC),
		}
		_, err := s.AppendExtractionLog(ctx, entry)
		require.NoError(t, err)
	}

	entries, err := s.ListExtractionLog(ctx, model.EntityTypeMember, entityID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].CreatedAt.Before(entries[i-1].CreatedAt))
	}
	assert.Equal(t, "matched", entries[0].Metadata["match_status"])
}

func TestSQLiteStore_PageCache(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	page := model.FetchedPage{URL: "https://example.org/", Title: "Home", Text: "hello"}
	require.NoError(t, s.SetCachedPage(ctx, page.URL, page, time.Hour))

	got, err := s.GetCachedPage(ctx, page.URL)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Home", got.Page.Title)

	// Upsert replaces.
	page.Title = "Updated"
	require.NoError(t, s.SetCachedPage(ctx, page.URL, page, time.Hour))
	got, err = s.GetCachedPage(ctx, page.URL)
	require.NoError(t, err)
	assert.Equal(t, "Updated", got.Page.Title)
}

func TestSQLiteStore_PageCacheExpiry(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	page := model.FetchedPage{URL: "https://example.org/", Text: "stale"}
	require.NoError(t, s.SetCachedPage(ctx, page.URL, page, -time.Minute))

	got, err := s.GetCachedPage(ctx, page.URL)
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := s.DeleteExpiredPages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
