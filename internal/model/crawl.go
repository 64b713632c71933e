package model

// FrontierStatus tracks a frontier item's lifecycle.
type FrontierStatus string

const (
	FrontierStatusPending FrontierStatus = "pending"
	FrontierStatusVisited FrontierStatus = "visited"
	FrontierStatusFailed  FrontierStatus = "failed"
)

// FrontierItem is a discovered URL awaiting traversal. Depth is
// non-decreasing along any DiscoveredFrom chain.
type FrontierItem struct {
	URL            string         `json:"url"`
	Depth          int            `json:"depth"`
	DiscoveredFrom string         `json:"discovered_from,omitempty"`
	Status         FrontierStatus `json:"status"`
}

// CrawlError records a single non-fatal failure during a crawl run.
type CrawlError struct {
	URL   string `json:"url"`
	Stage string `json:"stage"` // fetch, classify, extract, match, reconcile
	Err   string `json:"error"`
}

// CrawlSummary is the batch result of a crawl run. A run enumerates its
// errors here instead of aborting on the first one.
type CrawlSummary struct {
	PagesVisited     int          `json:"pages_visited"`
	MembersExtracted int          `json:"members_extracted"`
	MembersUpdated   int          `json:"members_updated"`
	Errors           []CrawlError `json:"errors,omitempty"`
}
