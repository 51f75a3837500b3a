package acquire

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"reqcraft/internal/domain"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/mmcdole/gofeed"
	"mvdan.cc/xurls/v2"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

	defaultFetchTimeout = 30 * time.Second
	defaultCacheTTL     = 10 * time.Minute
	maxBodyBytes        = 20 << 20
)

//nolint:gochecknoglobals // Compiled once, read-only.
var httpURLRe = mustStrictMatchingScheme(`https?://`)

func mustStrictMatchingScheme(scheme string) *regexp.Regexp {
	re, err := xurls.StrictMatchingScheme(scheme)
	if err != nil {
		panic(fmt.Sprintf("create regexp: %v", err))
	}

	return re
}

// Renderer returns the HTML of a page after its scripts have run.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

type Config struct {
	FetchTimeout    time.Duration
	CacheMaxEntries int
	CacheTTL        time.Duration
}

type Acquirer struct {
	client     *http.Client
	renderer   Renderer
	feedParser *gofeed.Parser
	cache      *expirable.LRU[string, string]
	log        *slog.Logger
}

// New builds an Acquirer. A nil renderer makes HTML pages use the fetched
// body as is, without running scripts.
func New(cfg Config, renderer Renderer, log *slog.Logger) *Acquirer {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	return &Acquirer{
		client:     &http.Client{Timeout: timeout},
		renderer:   renderer,
		feedParser: gofeed.NewParser(),
		cache:      newPageCache(cfg.CacheMaxEntries, ttl),
		log:        log,
	}
}

// newPageCache returns nil when caching is disabled.
func newPageCache(maxEntries int, ttl time.Duration) *expirable.LRU[string, string] {
	if maxEntries <= 0 {
		return nil
	}

	return expirable.NewLRU[string, string](maxEntries, nil, ttl)
}

// IsURL reports whether the whole trimmed input is a single http(s) URL.
func IsURL(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}

	loc := httpURLRe.FindStringIndex(s)

	return loc != nil && loc[0] == 0 && loc[1] == len(s)
}

// Acquire returns non-URL input unchanged; URL input is fetched and reduced
// to plain text.
func (a *Acquirer) Acquire(ctx context.Context, input string) (string, error) {
	if !IsURL(input) {
		return input, nil
	}

	pageURL := strings.TrimSpace(input)
	start := time.Now()

	if text, ok := a.cachedText(pageURL); ok {
		a.log.DebugContext(ctx, "Page text is cached",
			"url", pageURL,
			"textLen", len(text))

		return text, nil
	}

	text, err := a.fetchText(ctx, pageURL)
	if err != nil {
		return "", &domain.FetchError{URL: pageURL, Err: err}
	}

	if strings.TrimSpace(text) == "" {
		return "", &domain.EmptyInputError{Stage: "fetch " + pageURL}
	}

	if a.cache != nil {
		a.cache.Add(pageURL, text)
	}

	a.log.InfoContext(ctx, "Page text is acquired",
		"url", pageURL,
		"textLen", len(text),
		"elapsedSeconds", time.Since(start).Seconds())

	return text, nil
}

func (a *Acquirer) cachedText(pageURL string) (string, bool) {
	if a.cache == nil {
		return "", false
	}

	return a.cache.Get(pageURL)
}

func (a *Acquirer) fetchText(ctx context.Context, pageURL string) (string, error) {
	if _, err := url.Parse(pageURL); err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req) //nolint:gosec // URL is user supplied by design of the form.
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			a.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"url", pageURL,
				"operation", "fetchText")
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	switch documentKind(resp.Header.Get("Content-Type"), pageURL) {
	case kindPDF:
		return pdfText(body)
	case kindFeed:
		return feedText(a.feedParser, body)
	case kindText:
		return normalizeText(string(body)), nil
	default:
		return a.pageText(ctx, pageURL, body)
	}
}

func (a *Acquirer) pageText(ctx context.Context, pageURL string, body []byte) (string, error) {
	if a.renderer == nil {
		return htmlText(bytes.NewReader(body))
	}

	html, err := a.renderer.Render(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("render page: %w", err)
	}

	return htmlText(strings.NewReader(html))
}

type docKind int

const (
	kindHTML docKind = iota
	kindPDF
	kindFeed
	kindText
)

func documentKind(contentType string, pageURL string) docKind {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = ""
	}

	switch mediaType {
	case "application/pdf":
		return kindPDF
	case "application/rss+xml", "application/atom+xml", "application/feed+json",
		"application/xml", "text/xml":
		return kindFeed
	case "text/plain", "text/markdown":
		return kindText
	case "text/html", "application/xhtml+xml":
		return kindHTML
	}

	if u, parseErr := url.Parse(pageURL); parseErr == nil && strings.HasSuffix(strings.ToLower(u.Path), ".pdf") {
		return kindPDF
	}

	return kindHTML
}
