package narrate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopassist/shopassist/internal/query"
)

// TemplateNarrator renders results locally without calling the generation
// service.
type TemplateNarrator struct{}

func NewTemplateNarrator() TemplateNarrator {
	return TemplateNarrator{}
}

func (TemplateNarrator) Narrate(_ context.Context, _ string, result query.Result) (string, error) {
	records := result.Records()
	if len(records) == 0 {
		return "", fmt.Errorf("nothing to narrate")
	}
	if len(records) == 1 {
		return describeProduct(records[0]), nil
	}
	lines := make([]string, 0, len(records))
	for i, record := range records {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, ProductLine(record)))
	}
	return strings.Join(lines, "\n"), nil
}

// ProductLine renders one record as
// "Title: Rs. PRICE (X percent off), Rating: AVG_RATING <link>".
// Records without a title fall back to a key/value listing.
func ProductLine(record query.Record) string {
	title := formatText(record["title"])
	if title == "" {
		return genericLine(record)
	}
	var b strings.Builder
	b.WriteString(title)
	if price, ok := record["price"]; ok && price != nil {
		fmt.Fprintf(&b, ": Rs. %s", formatNumber(price))
	}
	if discount, ok := toFloat(record["discount"]); ok {
		fmt.Fprintf(&b, " (%d percent off)", DiscountPercent(discount))
	}
	if rating, ok := record["avg_rating"]; ok && rating != nil {
		fmt.Fprintf(&b, ", Rating: %s", formatNumber(rating))
	}
	if link := formatText(record["product_link"]); link != "" {
		fmt.Fprintf(&b, " <%s>", link)
	}
	return b.String()
}

func describeProduct(record query.Record) string {
	title := formatText(record["title"])
	if title == "" {
		return genericLine(record)
	}
	var b strings.Builder
	b.WriteString(title)
	if brand := formatText(record["brand"]); brand != "" {
		fmt.Fprintf(&b, " by %s", brand)
	}
	if price, ok := record["price"]; ok && price != nil {
		fmt.Fprintf(&b, " costs Rs. %s", formatNumber(price))
		if discount, ok := toFloat(record["discount"]); ok {
			fmt.Fprintf(&b, " (%d percent off)", DiscountPercent(discount))
		}
	}
	if rating, ok := record["avg_rating"]; ok && rating != nil {
		fmt.Fprintf(&b, " and is rated %s", formatNumber(rating))
		if total, ok := record["total_ratings"]; ok && total != nil {
			fmt.Fprintf(&b, " from %s ratings", formatNumber(total))
		}
	}
	b.WriteString(".")
	if link := formatText(record["product_link"]); link != "" {
		fmt.Fprintf(&b, " <%s>", link)
	}
	return b.String()
}

func genericLine(record query.Record) string {
	keys := make([]string, 0, len(record))
	for key := range record {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", key, record[key]))
	}
	return strings.Join(parts, ", ")
}
