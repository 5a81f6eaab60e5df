package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"dealwatch/config"
	"dealwatch/httputil"
	"dealwatch/models"
)

// headerSets are rotated per request so consecutive pages do not present an
// identical fingerprint.
var headerSets = []map[string]string{
	{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	},
	{
		"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
	},
	{
		"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.7",
	},
}

// HTTPHandler is the direct-HTTP fallback strategy: a plain GET per results
// page with browser-like headers, no client-side rendering.
type HTTPHandler struct {
	cfg    *config.Config
	client *http.Client
}

func NewHTTPHandler(cfg *config.Config) *HTTPHandler {
	return &HTTPHandler{
		cfg:    cfg,
		client: httputil.NewClients(&cfg.Proxy).Scraping,
	}
}

func (h *HTTPHandler) Name() string {
	return "http"
}

func (h *HTTPHandler) Search(ctx context.Context, q Query) ([]models.Fragment, error) {
	var all []models.Fragment
	var lastErr error
	blocked := false

	for page := 1; page <= q.MaxPages; page++ {
		frags, err := h.searchPage(ctx, q, page)
		if err != nil {
			// A failed page is skipped so earlier pages still count.
			log.Printf("http: page %d failed: %v", page, err)
			if errors.Is(err, ErrBlocked) {
				blocked = true
			}
			lastErr = err
			continue
		}

		all = append(all, frags...)
		log.Printf("http: page %d: %d fragments (total: %d)", page, len(frags), len(all))

		if page < q.MaxPages {
			h.pageDelay()
		}
	}

	if len(all) == 0 {
		if blocked {
			return nil, ErrBlocked
		}
		if lastErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransport, lastErr)
		}
		return nil, ErrBlocked
	}

	return all, nil
}

func (h *HTTPHandler) searchPage(ctx context.Context, q Query, page int) ([]models.Fragment, error) {
	searchURL := h.buildSearchURL(q, page)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headerSets[rand.Intn(len(headerSets))] {
		req.Header.Set(k, v)
	}
	req.Header.Set("Connection", "keep-alive")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusForbidden {
		return nil, ErrBlocked
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	content := string(body)
	if isBlockPage(content) {
		return nil, ErrBlocked
	}

	return splitFragments(content, page)
}

func (h *HTTPHandler) buildSearchURL(q Query, page int) string {
	params := url.Values{}
	params.Set("k", q.Keyword)
	params.Set("page", fmt.Sprintf("%d", page))
	if q.CategoryID != "" {
		params.Set("rh", "n:"+q.CategoryID)
	}
	return h.cfg.Scraper.BaseURL + "/s?" + params.Encode()
}

func (h *HTTPHandler) pageDelay() {
	min, max := h.cfg.Scraper.DelayMinMS, h.cfg.Scraper.DelayMaxMS
	if max <= min {
		time.Sleep(time.Duration(min) * time.Millisecond)
		return
	}
	delay := min + rand.Intn(max-min)
	time.Sleep(time.Duration(delay) * time.Millisecond)
}
