package crawler

import (
	"sync"

	"github.com/civiclens/registry-cli/internal/fetch"
	"github.com/civiclens/registry-cli/internal/model"
)

// Frontier is a FIFO queue of discovered URLs with a visited set. A URL
// enters the queue at most once across the life of a run: Enqueue is
// idempotent against both the queue and the visited set.
type Frontier struct {
	mu      sync.Mutex
	queue   []model.FrontierItem
	seen    map[string]bool
	visited map[string]bool
}

// NewFrontier creates an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		seen:    make(map[string]bool),
		visited: make(map[string]bool),
	}
}

// Enqueue adds a URL unless it was already enqueued this run. The URL is
// normalized first so trailing slashes and fragments cannot smuggle in
// duplicates. Returns whether the item was accepted.
func (f *Frontier) Enqueue(item model.FrontierItem) bool {
	norm, err := fetch.NormalizeURL(item.URL)
	if err != nil {
		return false
	}
	item.URL = norm
	item.Status = model.FrontierStatusPending

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.seen[item.URL] {
		return false
	}
	f.seen[item.URL] = true
	f.queue = append(f.queue, item)
	return true
}

// Pop removes and returns the oldest pending item, marking it visited
// before it is handed to the caller. Marking early means a page that links
// to itself, or two pages linking to each other, cannot re-enter the queue.
func (f *Frontier) Pop() (model.FrontierItem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return model.FrontierItem{}, false
	}
	item := f.queue[0]
	f.queue = f.queue[1:]
	item.Status = model.FrontierStatusVisited
	f.visited[item.URL] = true
	return item, true
}

// Visited reports whether a URL has already been popped this run.
func (f *Frontier) Visited(url string) bool {
	norm, err := fetch.NormalizeURL(url)
	if err != nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visited[norm]
}

// Len returns the number of pending items.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}
