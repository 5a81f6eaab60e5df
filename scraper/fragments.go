package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"dealwatch/models"
)

const resultSelector = `div[data-component-type="s-search-result"]`

// Search pages render each listing as a self-contained result card; both
// strategies hand full page HTML to this splitter so the parser only ever
// sees one card at a time.
func splitFragments(pageHTML string, pageNum int) ([]models.Fragment, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, err
	}

	var fragments []models.Fragment
	doc.Find(resultSelector).Each(func(_ int, s *goquery.Selection) {
		html, err := goquery.OuterHtml(s)
		if err != nil || strings.TrimSpace(html) == "" {
			return
		}
		fragments = append(fragments, models.Fragment{HTML: html, Page: pageNum})
	})

	return fragments, nil
}

var blockMarkers = []string{
	"Enter the characters you see below",
	"Type the characters you see in this image",
	"api-services-support@amazon.com",
	"Robot Check",
	"To discuss automated access to Amazon data",
}

// isBlockPage reports whether content looks like an anti-bot interstitial
// rather than a results page.
func isBlockPage(content string) bool {
	if strings.Contains(content, "s-search-result") {
		return false
	}
	for _, marker := range blockMarkers {
		if strings.Contains(content, marker) {
			return true
		}
	}
	return false
}
