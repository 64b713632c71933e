package model

import "time"

// PageCategory is a classified page category.
type PageCategory string

const (
	PageCategoryIndex      PageCategory = "index"
	PageCategoryMemberList PageCategory = "member_list"
	PageCategoryIrrelevant PageCategory = "irrelevant"
)

// AllPageCategories returns every defined page category.
func AllPageCategories() []PageCategory {
	return []PageCategory{
		PageCategoryIndex,
		PageCategoryMemberList,
		PageCategoryIrrelevant,
	}
}

// FetchedPage is the raw result of fetching a URL.
type FetchedPage struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Text        string `json:"text"`
	HTML        string `json:"html,omitempty"`
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type,omitempty"`
}

// PageClassification labels a fetched page. Produced once per fetch and
// never mutated; RawSignal records which pass decided (url_pattern,
// tiny_page, inference).
type PageClassification struct {
	URL        string       `json:"url"`
	Category   PageCategory `json:"category"`
	Confidence float64      `json:"confidence"`
	RawSignal  string       `json:"raw_signal,omitempty"`
}

// PageCache is a cached fetch result with its expiry.
type PageCache struct {
	ID        string      `json:"id"`
	URL       string      `json:"url"`
	Page      FetchedPage `json:"page"`
	FetchedAt time.Time   `json:"fetched_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}
