package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"
)

// Resolver discovers the feed's websocket endpoint.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// StaticResolver returns a fixed, preconfigured endpoint.
type StaticResolver string

func (r StaticResolver) Resolve(context.Context) (string, error) {
	return string(r), nil
}

// The endpoint is published as <meta name="action-cable-url" content="wss://...">
// on the chat application page; attribute order varies.
var cableURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`<meta[^>]*\bname="action-cable-url"[^>]*\bcontent="([^"]+)"`),
	regexp.MustCompile(`<meta[^>]*\bcontent="([^"]+)"[^>]*\bname="action-cable-url"`),
}

// PageResolver scrapes the chat application page for the websocket endpoint.
// The session cookie is required; without it the page serves no endpoint.
type PageResolver struct {
	Client  *http.Client
	PageURL string
	Cookie  string
}

func (r *PageResolver) Resolve(ctx context.Context) (string, error) {
	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.PageURL, nil)
	if err != nil {
		return "", fmt.Errorf("resolve feed endpoint: %w", err)
	}
	req.Header.Set("User-Agent",
		"Mozilla/5.0 (X11; Linux x86_64; rv:124.0) Gecko/20100101 Firefox/124.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if r.Cookie != "" {
		req.Header.Set("Cookie", r.Cookie)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("resolve feed endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("resolve feed endpoint: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("resolve feed endpoint: read page: %w", err)
	}

	for _, pat := range cableURLPatterns {
		if m := pat.FindSubmatch(body); m != nil {
			return string(m[1]), nil
		}
	}
	return "", fmt.Errorf("resolve feed endpoint: action-cable-url meta tag not found")
}
