package narrate

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopassist/shopassist/internal/query"
)

// Narrator turns a non-empty result into an answer for the shopper. It must
// only state facts present in the result.
type Narrator interface {
	Narrate(ctx context.Context, question string, result query.Result) (string, error)
}

// DiscountPercent converts a fractional discount to whole percent, rounding
// half away from zero.
func DiscountPercent(fraction float64) int {
	return int(math.Round(fraction * 100))
}

func toFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

func formatNumber(value any) string {
	f, ok := toFloat(value)
	if !ok {
		return fmt.Sprint(value)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatText(value any) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}
