// Package fetch provides the page-fetcher port and its HTTP implementation.
package fetch

import (
	"context"
	"fmt"

	"github.com/civiclens/registry-cli/internal/model"
)

// Fetcher retrieves raw content for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*model.FetchedPage, error)
}

// Error is a fetch failure carrying its retryability class. Transient
// failures (timeouts, 5xx) may be retried by the caller; permanent failures
// (404, bot blocks, malformed URLs) must not be.
type Error struct {
	URL       string
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("fetch %s (%s): %v", e.URL, kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
