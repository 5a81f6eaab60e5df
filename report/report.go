package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"dealwatch/models"
	"dealwatch/urlutil"
)

// Renderer turns an AnalysisResult into human-readable reports. Product URLs
// are affiliate-tagged here because the rendered report is a system
// boundary.
type Renderer struct {
	affiliateTag string
}

func New(affiliateTag string) *Renderer {
	return &Renderer{affiliateTag: affiliateTag}
}

// Markdown renders the result as a Markdown document.
func (r *Renderer) Markdown(result *models.AnalysisResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Product Report: %s\n\n", result.Metadata.Keyword)
	fmt.Fprintf(&b, "Generated: %s\n\n", result.Metadata.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Products scanned: %d (%d usable)\n\n",
		result.Metadata.TotalProducts, result.Metadata.ValidProducts)

	r.markdownSection(&b, "Best Rated", result.BestRated, func(rp models.RankedProduct) string {
		return fmt.Sprintf("rating score %.2f", rp.Score)
	})
	r.markdownSection(&b, "Best Discount", result.BestDiscount, func(rp models.RankedProduct) string {
		return fmt.Sprintf("%.0f%% off", rp.Score*100)
	})
	r.markdownSection(&b, "Best Selling", result.BestSelling, func(rp models.RankedProduct) string {
		return fmt.Sprintf("%.0f reviews", rp.Score)
	})

	b.WriteString("## Summary\n\n")
	b.WriteString(result.Summary)
	b.WriteString("\n")

	return b.String()
}

func (r *Renderer) markdownSection(b *strings.Builder, title string, ranked []models.RankedProduct, scoreLabel func(models.RankedProduct) string) {
	fmt.Fprintf(b, "## %s\n\n", title)
	if len(ranked) == 0 {
		b.WriteString("No eligible products.\n\n")
		return
	}
	for i, rp := range ranked {
		p := rp.Product
		line := fmt.Sprintf("%d. **%s**", i+1, p.Title)
		if p.Price != nil {
			line += fmt.Sprintf(" — $%.2f", *p.Price)
		}
		line += fmt.Sprintf(" (%s)", scoreLabel(rp))
		if p.ProductURL != "" {
			line += fmt.Sprintf(" — [link](%s)", urlutil.WithAffiliateTag(p.ProductURL, r.affiliateTag))
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")
}

var htmlTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>Product Report: {{.Keyword}}</title>
<style>
body { font-family: Arial, sans-serif; margin: 20px; background-color: #f5f5f5; }
.container { max-width: 800px; margin: 0 auto; background-color: white; padding: 20px; border-radius: 10px; }
.header { background-color: #232f3e; color: white; padding: 20px; text-align: center; border-radius: 5px; }
.card { border: 1px solid #ddd; border-radius: 8px; padding: 15px; margin: 15px 0; background-color: #fafafa; }
.title { font-size: 16px; font-weight: bold; color: #0066c0; }
.price { font-size: 18px; color: #B12704; font-weight: bold; }
.section { font-size: 20px; color: #232f3e; border-bottom: 2px solid #ff9900; padding-bottom: 5px; margin: 20px 0 10px 0; }
.summary { background-color: #e8f4fd; padding: 15px; border-radius: 5px; white-space: pre-line; }
.no-data { color: #666; font-style: italic; }
</style>
</head>
<body>
<div class="container">
<div class="header">
<h1>Product Report</h1>
<p>Keyword: <strong>{{.Keyword}}</strong></p>
<p>{{.Timestamp}}</p>
<p>Products scanned: {{.Total}} ({{.Valid}} usable)</p>
</div>
<div class="summary">{{.Summary}}</div>
{{range .Sections}}
<div class="section">{{.Title}}</div>
{{if .Items}}{{range .Items}}
<div class="card">
<div class="title">{{.Title}}</div>
<p>{{if .Price}}<span class="price">{{.Price}}</span> {{end}}{{.ScoreLabel}}</p>
{{if .URL}}<p><a href="{{.URL}}" target="_blank">View product</a></p>{{end}}
</div>
{{end}}{{else}}<p class="no-data">No eligible products.</p>{{end}}
{{end}}
</div>
</body>
</html>
`))

type htmlItem struct {
	Title      string
	Price      string
	ScoreLabel string
	URL        string
}

type htmlSection struct {
	Title string
	Items []htmlItem
}

type htmlData struct {
	Keyword   string
	Timestamp string
	Total     int
	Valid     int
	Summary   string
	Sections  []htmlSection
}

// HTML renders the result as a self-contained HTML document suitable for an
// email body.
func (r *Renderer) HTML(result *models.AnalysisResult) (string, error) {
	data := htmlData{
		Keyword:   result.Metadata.Keyword,
		Timestamp: result.Metadata.Timestamp.Format("2006-01-02 15:04:05"),
		Total:     result.Metadata.TotalProducts,
		Valid:     result.Metadata.ValidProducts,
		Summary:   result.Summary,
		Sections: []htmlSection{
			{Title: "Best Rated", Items: r.htmlItems(result.BestRated, func(rp models.RankedProduct) string {
				return fmt.Sprintf("rating score %.2f", rp.Score)
			})},
			{Title: "Best Discount", Items: r.htmlItems(result.BestDiscount, func(rp models.RankedProduct) string {
				return fmt.Sprintf("%.0f%% off", rp.Score*100)
			})},
			{Title: "Best Selling", Items: r.htmlItems(result.BestSelling, func(rp models.RankedProduct) string {
				return fmt.Sprintf("%.0f reviews", rp.Score)
			})},
		},
	}

	var buf bytes.Buffer
	if err := htmlTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (r *Renderer) htmlItems(ranked []models.RankedProduct, scoreLabel func(models.RankedProduct) string) []htmlItem {
	items := make([]htmlItem, 0, len(ranked))
	for _, rp := range ranked {
		item := htmlItem{
			Title:      rp.Product.Title,
			ScoreLabel: scoreLabel(rp),
		}
		if rp.Product.Price != nil {
			item.Price = fmt.Sprintf("$%.2f", *rp.Product.Price)
		}
		if rp.Product.ProductURL != "" {
			item.URL = urlutil.WithAffiliateTag(rp.Product.ProductURL, r.affiliateTag)
		}
		items = append(items, item)
	}
	return items
}
