package analyzer

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"dealwatch/models"
)

// ErrNoProducts is the only analyzer failure: an empty input set leaves
// nothing to rank. Every other degenerate case (all ratings missing, no
// discounts present) degrades to an empty ranking plus a summary note.
var ErrNoProducts = errors.New("no products to analyze")

// TopN is how many entries each ranking keeps after the full eligible set
// has been ordered.
const TopN = 5

// Analyze computes the three rankings over an immutable product set. The
// result is deterministic for a fixed input: candidates are ordered by score
// with explicit tie-breaks ending in insertion order, then truncated, so
// ties at the cutoff never depend on arrival order.
func Analyze(keyword, category string, products []models.Product, total int) (*models.AnalysisResult, error) {
	if len(products) == 0 {
		return nil, ErrNoProducts
	}

	result := &models.AnalysisResult{
		Metadata: models.SearchMetadata{
			Keyword:       keyword,
			Category:      category,
			Timestamp:     time.Now(),
			TotalProducts: total,
			ValidProducts: len(products),
		},
		BestRated:    bestRated(products),
		BestDiscount: bestDiscount(products),
		BestSelling:  bestSelling(products),
	}
	result.Summary = summarize(result)

	return result, nil
}

type candidate struct {
	product models.Product
	score   float64
	order   int
}

// bestRated scores rating damped by review volume: a handful of five-star
// reviews must not outrank a marginally lower rating carried by thousands.
// log1p keeps the damping strictly monotonic in review count.
func bestRated(products []models.Product) []models.RankedProduct {
	var cands []candidate
	for i, p := range products {
		if p.Rating == nil || p.ReviewCount == nil {
			continue
		}
		score := *p.Rating * math.Log1p(float64(*p.ReviewCount))
		cands = append(cands, candidate{product: p, score: score, order: i})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		ri, rj := *cands[i].product.ReviewCount, *cands[j].product.ReviewCount
		if ri != rj {
			return ri > rj
		}
		return cands[i].order < cands[j].order
	})

	return truncate(cands)
}

// bestDiscount ranks by fractional discount, breaking ties by absolute
// savings. Products missing either price, or not actually discounted, are
// ineligible.
func bestDiscount(products []models.Product) []models.RankedProduct {
	var cands []candidate
	for i, p := range products {
		discount, ok := p.Discount()
		if !ok {
			continue
		}
		cands = append(cands, candidate{product: p, score: discount, order: i})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		si := *cands[i].product.OriginalPrice - *cands[i].product.Price
		sj := *cands[j].product.OriginalPrice - *cands[j].product.Price
		if si != sj {
			return si > sj
		}
		return cands[i].order < cands[j].order
	})

	return truncate(cands)
}

// bestSelling uses review count as the sales-volume proxy, rating breaking
// ties with a missing rating sorting lowest.
func bestSelling(products []models.Product) []models.RankedProduct {
	var cands []candidate
	for i, p := range products {
		if p.ReviewCount == nil {
			continue
		}
		cands = append(cands, candidate{product: p, score: float64(*p.ReviewCount), order: i})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		ri, rj := ratingOrZero(cands[i].product), ratingOrZero(cands[j].product)
		if ri != rj {
			return ri > rj
		}
		return cands[i].order < cands[j].order
	})

	return truncate(cands)
}

func ratingOrZero(p models.Product) float64 {
	if p.Rating == nil {
		return 0
	}
	return *p.Rating
}

func truncate(cands []candidate) []models.RankedProduct {
	n := len(cands)
	if n > TopN {
		n = TopN
	}
	ranked := make([]models.RankedProduct, 0, n)
	for _, c := range cands[:n] {
		ranked = append(ranked, models.RankedProduct{Product: c.product, Score: c.score})
	}
	return ranked
}

func summarize(r *models.AnalysisResult) string {
	var parts []string

	if len(r.BestRated) > 0 {
		top := r.BestRated[0].Product
		parts = append(parts, fmt.Sprintf("Best rated: %s (%.1f/5.0, %d reviews)",
			shorten(top.Title), *top.Rating, *top.ReviewCount))
	} else {
		parts = append(parts, "Best rated: no eligible products")
	}

	if len(r.BestDiscount) > 0 {
		top := r.BestDiscount[0]
		parts = append(parts, fmt.Sprintf("Best discount: %s (%.0f%% off)",
			shorten(top.Product.Title), top.Score*100))
	} else {
		parts = append(parts, "Best discount: no eligible products")
	}

	if len(r.BestSelling) > 0 {
		top := r.BestSelling[0].Product
		parts = append(parts, fmt.Sprintf("Best selling: %s (%d reviews)",
			shorten(top.Title), *top.ReviewCount))
	} else {
		parts = append(parts, "Best selling: no eligible products")
	}

	return strings.Join(parts, "\n")
}

func shorten(title string) string {
	const limit = 60
	if len(title) <= limit {
		return title
	}
	return title[:limit] + "..."
}
