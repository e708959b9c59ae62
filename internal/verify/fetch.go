package verify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/net/html"

	"github.com/arbiterhq/arbiter/internal/util"
)

const maxPageBytes = 512 * 1024

// maxExcerptRunes bounds how much scraped text is attached to evidence.
const maxExcerptRunes = 2000

// PageFetcher retrieves a search result's page and reduces it to visible
// text, honoring robots.txt per host.
type PageFetcher struct {
	httpClient *http.Client
	userAgent  string

	mu     sync.RWMutex
	robots map[string]*robotstxt.RobotsData
}

// NewPageFetcher creates a fetcher. Proxy settings fall back to the
// environment when empty.
func NewPageFetcher(timeout time.Duration, userAgent, httpProxy, httpsProxy string) *PageFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PageFetcher{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(httpProxy, httpsProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent: userAgent,
		robots:    make(map[string]*robotstxt.RobotsData),
	}
}

// Excerpt fetches rawURL and returns its visible text, truncated. Disallowed
// or unfetchable pages return an error; callers treat the excerpt as
// best-effort extra context, never required evidence.
func (f *PageFetcher) Excerpt(ctx context.Context, rawURL string) (string, error) {
	allowed, err := f.allowed(ctx, rawURL)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", fmt.Errorf("disallowed by robots.txt: %s", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	text, err := visibleText(string(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	runes := []rune(text)
	if len(runes) > maxExcerptRunes {
		text = string(runes[:maxExcerptRunes])
	}
	return text, nil
}

// allowed checks robots.txt for the URL's host, caching per host. An
// unreachable robots.txt allows by default; a 404 allows everything.
func (f *PageFetcher) allowed(ctx context.Context, rawURL string) (bool, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("parse URL: %w", err)
	}

	f.mu.RLock()
	data, ok := f.robots[parsed.Host]
	f.mu.RUnlock()

	if !ok {
		data = f.fetchRobots(ctx, parsed)
		f.mu.Lock()
		f.robots[parsed.Host] = data
		f.mu.Unlock()
	}

	if data == nil {
		return true, nil
	}
	return data.TestAgent(parsed.Path, f.userAgent), nil
}

func (f *PageFetcher) fetchRobots(ctx context.Context, page *url.URL) *robotstxt.RobotsData {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", page.Scheme, page.Host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		data, _ := robotstxt.FromStatusAndBytes(http.StatusNotFound, nil)
		return data
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return data
}

// visibleText flattens an HTML document to its text nodes, skipping
// script/style subtrees.
func visibleText(htmlContent string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.TrimSpace(buf.String()), nil
}
