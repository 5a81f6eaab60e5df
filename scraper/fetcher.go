package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"

	"dealwatch/config"
	"dealwatch/models"
)

const (
	minPages = 1
	maxPages = 5
)

// Fetcher tries an ordered list of strategies and stops at the first one
// that yields fragments. The browser strategy failing in any way (engine
// missing, timeout, zero results) hands over to the HTTP strategy
// unconditionally; the reverse never happens.
type Fetcher struct {
	handlers []Handler
}

func NewFetcher(cfg *config.Config) *Fetcher {
	return &Fetcher{handlers: NewHandlers(cfg)}
}

// NewFetcherWithHandlers wires an explicit strategy list, used by tests and
// by callers that already built handlers.
func NewFetcherWithHandlers(handlers []Handler) *Fetcher {
	return &Fetcher{handlers: handlers}
}

// Fetch retrieves raw listing fragments for the query. The page count is
// clamped to 1-5 to bound load on the target. When every strategy comes up
// empty the error distinguishes a blocked/empty result from a transport
// failure so callers can decide whether a later retry is worthwhile.
func (f *Fetcher) Fetch(ctx context.Context, q Query) ([]models.Fragment, string, error) {
	if q.MaxPages < minPages {
		q.MaxPages = minPages
	}
	if q.MaxPages > maxPages {
		q.MaxPages = maxPages
	}

	blocked := false
	var lastErr error

	for _, handler := range f.handlers {
		frags, err := handler.Search(ctx, q)
		if err == nil && len(frags) > 0 {
			log.Printf("fetch: strategy %q returned %d fragments", handler.Name(), len(frags))
			return frags, handler.Name(), nil
		}

		if err != nil {
			log.Printf("fetch: strategy %q failed: %v", handler.Name(), err)
			if errors.Is(err, ErrBlocked) {
				blocked = true
			}
			lastErr = err
		}
	}

	if blocked {
		return nil, "", fmt.Errorf("every strategy blocked or empty: %w", ErrBlocked)
	}
	if lastErr != nil {
		if errors.Is(lastErr, ErrTransport) {
			return nil, "", lastErr
		}
		return nil, "", fmt.Errorf("%w: %v", ErrTransport, lastErr)
	}
	return nil, "", ErrBlocked
}
