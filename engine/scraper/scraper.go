// Package scraper fetches a web page and extracts its paragraph text so
// it can enter the ingestion pipeline like any uploaded file. Requests
// are rate-limited per scraper instance to stay polite to remote hosts.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/docsage-ai/docsage/engine/domain"
)

const defaultUserAgent = "DocsageBot/1.0"

// Config configures the page scraper.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// RequestsPerSecond caps the outbound request rate. Zero means
	// one request per second.
	RequestsPerSecond float64
}

// Scraper fetches pages and extracts paragraph text.
type Scraper struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// New creates a Scraper.
func New(cfg Config) *Scraper {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 1
	}
	return &Scraper{
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		userAgent: cfg.UserAgent,
	}
}

// Scrape fetches the URL and returns its paragraph text, one paragraph
// per line. A page with no paragraph text is an error, not an empty
// document.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (string, error) {
	if err := domain.ValidateScrapeURL(rawURL); err != nil {
		return "", err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("scraper: rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("scraper: build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("scraper: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("scraper: fetch %s: status %d", rawURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("scraper: parse %s: %w", rawURL, err)
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) == 0 {
		return "", fmt.Errorf("scraper: %s contains no paragraph text", rawURL)
	}
	return strings.Join(paragraphs, "\n"), nil
}

// Filename returns the generated filename for a scrape performed at t.
func Filename(t time.Time) string {
	return "scraped_" + t.Format("20060102150405") + ".txt"
}
