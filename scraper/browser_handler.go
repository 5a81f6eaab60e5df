package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/url"
	"time"

	"github.com/playwright-community/playwright-go"

	"dealwatch/config"
	"dealwatch/models"
)

// BrowserHandler is the primary strategy: it drives a real Chromium engine
// so client-rendered result cards are present and block pages are less
// likely. The whole browser session is scoped to one Search call and torn
// down on every exit path.
type BrowserHandler struct {
	cfg *config.Config
}

func NewBrowserHandler(cfg *config.Config) *BrowserHandler {
	return &BrowserHandler{cfg: cfg}
}

func (h *BrowserHandler) Name() string {
	return "browser"
}

type browserSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
}

func (s *browserSession) close() {
	if s.page != nil {
		s.page.Close()
	}
	if s.browser != nil {
		s.browser.Close()
	}
	if s.pw != nil {
		s.pw.Stop()
	}
}

func (h *BrowserHandler) Search(ctx context.Context, q Query) ([]models.Fragment, error) {
	session, err := h.openSession()
	if err != nil {
		return nil, fmt.Errorf("%w: browser unavailable: %v", ErrTransport, err)
	}
	defer session.close()

	var all []models.Fragment
	blocked := false

	for page := 1; page <= q.MaxPages; page++ {
		if ctx.Err() != nil {
			break
		}

		frags, err := h.searchPage(session, q, page)
		if err != nil {
			log.Printf("browser: page %d failed: %v", page, err)
			if errors.Is(err, ErrBlocked) {
				blocked = true
			}
			continue
		}

		all = append(all, frags...)
		log.Printf("browser: page %d: %d fragments (total: %d)", page, len(frags), len(all))

		if page < q.MaxPages {
			humanDelay(h.cfg.Scraper.DelayMinMS, h.cfg.Scraper.DelayMaxMS)
		}
	}

	if len(all) == 0 {
		if blocked {
			return nil, ErrBlocked
		}
		return nil, fmt.Errorf("%w: no result pages rendered", ErrBlocked)
	}

	return all, nil
}

func (h *BrowserHandler) openSession() (*browserSession, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(h.cfg.Scraper.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	page, err := browser.NewPage()
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	return &browserSession{pw: pw, browser: browser, page: page}, nil
}

func (h *BrowserHandler) searchPage(session *browserSession, q Query, pageNum int) ([]models.Fragment, error) {
	page := session.page

	searchURL := h.buildSearchURL(q, pageNum)
	if _, err := page.Goto(searchURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(h.cfg.Scraper.PageTimeoutMS)),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return nil, fmt.Errorf("navigation failed: %w", err)
	}

	simulateHumanBehavior(page)

	if err := page.Locator(resultSelector).First().WaitFor(playwright.LocatorWaitForOptions{
		Timeout: playwright.Float(float64(h.cfg.Scraper.PageTimeoutMS)),
	}); err != nil {
		content, _ := page.Content()
		if isBlockPage(content) {
			return nil, ErrBlocked
		}
		return nil, fmt.Errorf("results never appeared: %w", err)
	}

	content, err := page.Content()
	if err != nil {
		return nil, err
	}
	if isBlockPage(content) {
		return nil, ErrBlocked
	}

	return splitFragments(content, pageNum)
}

func (h *BrowserHandler) buildSearchURL(q Query, page int) string {
	params := url.Values{}
	params.Set("k", q.Keyword)
	params.Set("page", fmt.Sprintf("%d", page))
	if q.CategoryID != "" {
		params.Set("rh", "n:"+q.CategoryID)
	}
	return h.cfg.Scraper.BaseURL + "/s?" + params.Encode()
}

func simulateHumanBehavior(page playwright.Page) {
	page.Mouse().Move(float64(300+rand.Intn(400)), float64(200+rand.Intn(300)))
	page.WaitForTimeout(float64(200 + rand.Intn(300)))
	page.Evaluate(fmt.Sprintf(`window.scrollBy(0, %d)`, 100+rand.Intn(300)))
}

func humanDelay(minMs, maxMs int) {
	if maxMs <= minMs {
		time.Sleep(time.Duration(minMs) * time.Millisecond)
		return
	}
	delay := minMs + rand.Intn(maxMs-minMs)
	time.Sleep(time.Duration(delay) * time.Millisecond)
}
