package webrag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/licium/licium/internal/security"
)

const (
	defaultFetchTimeout = 3 * time.Second
	defaultUserAgent    = "Mozilla/5.0 (compatible; LiciumBot/1.0)"

	// maxBodyBytes bounds how much of a page is read. Enough for article
	// text; protects against endless streams.
	maxBodyBytes = 2 << 20
)

var errEmptyPage = errors.New("no text content extracted")

// scraper fetches a page and extracts its main text content.
type scraper struct {
	client    *http.Client
	userAgent string

	// validate guards every fetch target. Search result URLs are untrusted
	// input; nil disables the guard (tests against loopback servers).
	validate func(rawURL string) error
}

func newScraper(timeoutMs int, userAgent string) *scraper {
	timeout := defaultFetchTimeout
	if timeoutMs > 0 {
		timeout = time.Duration(timeoutMs) * time.Millisecond
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	guard := security.NewURL()
	return &scraper{
		client: &http.Client{
			Timeout:       timeout,
			CheckRedirect: guard.ValidateRedirect,
		},
		userAgent: userAgent,
		validate:  guard.Validate,
	}
}

// fetch downloads pageURL and returns its main text. Extraction tries the
// readability algorithm first and falls back to stripping boilerplate
// elements from the raw document.
func (s *scraper) fetch(ctx context.Context, pageURL string) (string, error) {
	if s.validate != nil {
		if err := s.validate(pageURL); err != nil {
			return "", err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("building request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetching %s: unexpected status %s", pageURL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", pageURL, err)
	}

	if text := extractReadable(body, pageURL); text != "" {
		return text, nil
	}
	if text := extractStripped(body); text != "" {
		return text, nil
	}
	return "", fmt.Errorf("%w from %s", errEmptyPage, pageURL)
}

// extractReadable runs the readability article extractor. Returns "" when
// the page has no recognizable article body.
func extractReadable(body []byte, pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		parsed = nil
	}
	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		return ""
	}
	return collapseWhitespace(article.TextContent)
}

// extractStripped removes scripts, styles, and page chrome, then takes the
// remaining body text. Cruder than readability but works on pages that are
// not articles.
func extractStripped(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript, nav, header, footer, aside").Remove()
	return collapseWhitespace(doc.Find("body").Text())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
