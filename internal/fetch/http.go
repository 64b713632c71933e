package fetch

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/civiclens/registry-cli/internal/config"
	"github.com/civiclens/registry-cli/internal/model"
	"github.com/civiclens/registry-cli/internal/resilience"
)

// HTTPFetcher fetches pages via net/http with a shared politeness rate
// limiter. All crawl traffic funnels through one limiter so concurrent
// fetches cannot hammer a site.
type HTTPFetcher struct {
	client       *http.Client
	limiter      *rate.Limiter
	userAgent    string
	maxBodyBytes int64
}

// NewHTTPFetcher creates an HTTPFetcher from config.
func NewHTTPFetcher(cfg config.FetchConfig) *HTTPFetcher {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 4.0
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 512 * 1024
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "Mozilla/5.0 (compatible; RegistryBot/1.0)"
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		limiter:      rate.NewLimiter(rate.Limit(rps), 1),
		userAgent:    ua,
		maxBodyBytes: maxBody,
	}
}

// Fetch retrieves a URL, detects bot blocks, and strips HTML to plaintext.
func (f *HTTPFetcher) Fetch(ctx context.Context, targetURL string) (*model.FetchedPage, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, &Error{URL: targetURL, Transient: false, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, &Error{URL: targetURL, Transient: false, Err: eris.Wrap(err, "create request")}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &Error{URL: targetURL, Transient: resilience.IsTransient(err), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return nil, &Error{URL: targetURL, Transient: true, Err: eris.Wrap(err, "read body")}
	}

	if blocked, blockType := DetectBlock(resp, body); blocked {
		return nil, &Error{URL: targetURL, Transient: false, Err: eris.Errorf("blocked (%s)", blockType)}
	}

	if resp.StatusCode >= 400 {
		return nil, &Error{
			URL:       targetURL,
			Transient: resilience.IsTransientHTTPStatus(resp.StatusCode),
			Err:       eris.Errorf("status %d", resp.StatusCode),
		}
	}

	html := string(body)
	return &model.FetchedPage{
		URL:         targetURL,
		Title:       ExtractTitle(body),
		Text:        StripHTML(html),
		HTML:        html,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
