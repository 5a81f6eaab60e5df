package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"dealwatch/models"
)

var (
	asinPattern   = regexp.MustCompile(`/dp/([A-Z0-9]{10})`)
	ratingPattern = regexp.MustCompile(`([0-9]+(?:[.,][0-9])?) out of 5`)
	digitsPattern = regexp.MustCompile(`[0-9][0-9.,]*`)
)

// ParseFragment extracts a Product from one raw result card. It returns nil
// when the fragment lacks a title, which is how sponsored placeholders and
// layout shims present themselves. Every field is extracted best-effort: a
// value that cannot be parsed becomes nil, never an error.
func ParseFragment(frag models.Fragment) *models.Product {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(frag.HTML))
	if err != nil {
		return nil
	}

	root := doc.Find(resultSelector).First()
	if root.Length() == 0 {
		root = doc.Selection
	}

	title := strings.TrimSpace(root.Find("h2 a span").First().Text())
	if title == "" {
		title = strings.TrimSpace(root.Find("h2 span").First().Text())
	}
	if title == "" {
		return nil
	}

	p := &models.Product{Title: title}

	if asin, ok := root.Attr("data-asin"); ok && asin != "" {
		p.ASIN = asin
	}

	if href, ok := root.Find("h2 a").First().Attr("href"); ok && href != "" {
		p.ProductURL = absoluteURL(href)
		if p.ASIN == "" {
			if m := asinPattern.FindStringSubmatch(p.ProductURL); m != nil {
				p.ASIN = m[1]
			}
		}
	}

	// Current price first; the struck-through a-text-price block is the
	// pre-discount price.
	p.Price = parseMoney(root.Find("span.a-price:not(.a-text-price) span.a-offscreen").First().Text())
	if p.Price == nil {
		p.Price = parseMoney(root.Find("span.a-price-whole").First().Text())
	}
	p.OriginalPrice = parseMoney(root.Find("span.a-price.a-text-price span.a-offscreen").First().Text())

	p.Rating = parseRating(root.Find("span.a-icon-alt").First().Text())
	p.ReviewCount = parseReviewCount(root)

	if src, ok := root.Find("img.s-image").First().Attr("src"); ok {
		p.ImageURL = src
	}

	return p
}

// ParseAll parses every fragment, silently dropping those that do not
// resolve to a product. It returns the products plus the total seen and
// valid counts for search metadata.
func ParseAll(fragments []models.Fragment) (products []models.Product, total, valid int) {
	total = len(fragments)
	for _, frag := range fragments {
		if p := ParseFragment(frag); p != nil {
			products = append(products, *p)
			valid++
		}
	}
	return products, total, valid
}

func absoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return "https://www.amazon.com" + href
}

// parseMoney turns a displayed price ("$1,299.99", "1.299,99 €") into a
// value. Negative or unparsable amounts come back nil.
func parseMoney(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") {
		return nil
	}

	m := digitsPattern.FindString(s)
	if m == "" {
		return nil
	}

	lastDot := strings.LastIndex(m, ".")
	lastComma := strings.LastIndex(m, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		// Both separators: the later one is the decimal mark.
		if lastComma > lastDot {
			m = strings.ReplaceAll(m, ".", "")
			m = strings.Replace(m, ",", ".", 1)
		} else {
			m = strings.ReplaceAll(m, ",", "")
		}
	case lastComma >= 0:
		// A single comma with two trailing digits reads as a decimal mark,
		// anything else as a thousands separator.
		if strings.Count(m, ",") == 1 && len(m)-lastComma-1 == 2 {
			m = strings.Replace(m, ",", ".", 1)
		} else {
			m = strings.ReplaceAll(m, ",", "")
		}
	}

	v, err := strconv.ParseFloat(m, 64)
	if err != nil || v < 0 {
		return nil
	}
	return &v
}

// parseRating reads "4.5 out of 5 stars" (or the "4,5" locale form) and
// rejects values outside [0, 5] rather than clamping them.
func parseRating(s string) *float64 {
	m := ratingPattern.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil || v < 0 || v > 5.0 {
		return nil
	}
	return &v
}

func parseReviewCount(root *goquery.Selection) *int {
	candidates := []string{
		root.Find("span.a-size-base.s-underline-text").First().Text(),
		root.Find(`a[href*="#customerReviews"]`).First().Text(),
	}
	for _, text := range candidates {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		cleaned := strings.NewReplacer(",", "", ".", "", "(", "", ")", "").Replace(text)
		n, err := strconv.Atoi(cleaned)
		if err != nil || n < 0 {
			continue
		}
		return &n
	}
	return nil
}
