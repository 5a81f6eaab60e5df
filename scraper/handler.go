package scraper

import (
	"context"

	"dealwatch/config"
	"dealwatch/models"
)

// Query holds the parameters of one search. CategoryID is the site's node id
// resolved from the category name, empty for an unfiltered search.
type Query struct {
	Keyword    string
	Category   string
	CategoryID string
	MaxPages   int
}

// Handler is one fetch strategy. Search returns the raw listing fragments of
// up to MaxPages result pages; a failed page is skipped, not propagated, so a
// partial result is a valid result.
type Handler interface {
	Name() string
	Search(ctx context.Context, q Query) ([]models.Fragment, error)
}

// NewHandlers returns the fetch strategies in fallback order: the browser
// strategy first, plain HTTP second. The browser strategy is omitted when
// disabled in config (e.g. no browser runtime installed).
func NewHandlers(cfg *config.Config) []Handler {
	var handlers []Handler
	if cfg.Scraper.BrowserEnabled {
		handlers = append(handlers, NewBrowserHandler(cfg))
	}
	handlers = append(handlers, NewHTTPHandler(cfg))
	return handlers
}
