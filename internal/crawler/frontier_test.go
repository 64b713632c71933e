package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civiclens/registry-cli/internal/model"
)

func TestFrontier_FIFO(t *testing.T) {
	f := NewFrontier()

	assert.True(t, f.Enqueue(model.FrontierItem{URL: "https://a.example.org/"}))
	assert.True(t, f.Enqueue(model.FrontierItem{URL: "https://b.example.org/"}))

	first, ok := f.Pop()
	require.True(t, ok)
	assert.Equal(t, "https://a.example.org/", first.URL)

	second, ok := f.Pop()
	require.True(t, ok)
	assert.Equal(t, "https://b.example.org/", second.URL)

	_, ok = f.Pop()
	assert.False(t, ok)
}

func TestFrontier_DuplicateEnqueueRejected(t *testing.T) {
	f := NewFrontier()

	assert.True(t, f.Enqueue(model.FrontierItem{URL: "https://example.org/members"}))
	assert.False(t, f.Enqueue(model.FrontierItem{URL: "https://example.org/members"}))
	// Normalization catches fragment and missing-path variants too.
	assert.False(t, f.Enqueue(model.FrontierItem{URL: "https://example.org/members#top"}))
	assert.Equal(t, 1, f.Len())
}

func TestFrontier_PopMarksVisited(t *testing.T) {
	f := NewFrontier()
	require.True(t, f.Enqueue(model.FrontierItem{URL: "https://example.org/"}))

	assert.False(t, f.Visited("https://example.org/"))
	item, ok := f.Pop()
	require.True(t, ok)
	assert.Equal(t, model.FrontierStatusVisited, item.Status)
	assert.True(t, f.Visited("https://example.org/"))

	// A popped URL cannot re-enter the queue.
	assert.False(t, f.Enqueue(model.FrontierItem{URL: "https://example.org/"}))
}

func TestFrontier_InvalidURLRejected(t *testing.T) {
	f := NewFrontier()
	assert.False(t, f.Enqueue(model.FrontierItem{URL: "http://[::1]:namedport"}))
	assert.Equal(t, 0, f.Len())
}
