package models

import "time"

// Fragment is one raw, unparsed search-result card as retrieved from the
// source site, before any field extraction.
type Fragment struct {
	HTML string
	Page int
}

// Product is one parsed listing. Pointer fields are nil when the source
// fragment did not carry a usable value; nil is never collapsed to zero.
type Product struct {
	ASIN          string   `json:"asin,omitempty"`
	Title         string   `json:"title"`
	Price         *float64 `json:"price,omitempty"`
	OriginalPrice *float64 `json:"original_price,omitempty"`
	Rating        *float64 `json:"rating,omitempty"`
	ReviewCount   *int     `json:"review_count,omitempty"`
	ImageURL      string   `json:"image_url,omitempty"`
	ProductURL    string   `json:"product_url,omitempty"`
}

// Discount returns the fractional discount and true when both prices are
// present and the original price is strictly higher.
func (p *Product) Discount() (float64, bool) {
	if p.Price == nil || p.OriginalPrice == nil || *p.OriginalPrice <= *p.Price {
		return 0, false
	}
	return (*p.OriginalPrice - *p.Price) / *p.OriginalPrice, true
}

type SearchMetadata struct {
	Keyword       string    `json:"keyword"`
	Category      string    `json:"category,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	TotalProducts int       `json:"total_products"`
	ValidProducts int       `json:"valid_products"`
}

// RankedProduct pairs a product with the scalar score that produced its
// position in a ranking.
type RankedProduct struct {
	Product Product `json:"product"`
	Score   float64 `json:"score"`
}

type AnalysisResult struct {
	Metadata     SearchMetadata  `json:"metadata"`
	BestRated    []RankedProduct `json:"best_rated"`
	BestDiscount []RankedProduct `json:"best_discount"`
	BestSelling  []RankedProduct `json:"best_selling"`
	Summary      string          `json:"summary"`
}

// TopPicks returns the leading title of each non-empty ranking, used for
// compact run-history summaries.
func (r *AnalysisResult) TopPicks() []string {
	var picks []string
	for _, ranking := range [][]RankedProduct{r.BestRated, r.BestDiscount, r.BestSelling} {
		if len(ranking) > 0 {
			picks = append(picks, ranking[0].Product.Title)
		}
	}
	return picks
}
