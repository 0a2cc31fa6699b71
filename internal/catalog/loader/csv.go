package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/shopassist/shopassist/internal/catalog"
)

// ReadCSV parses a flat catalog export. The header must name every product
// field; extra columns are ignored and column order is free.
func ReadCSV(r io.Reader) ([]catalog.Product, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("csv is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	columns, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	var products []catalog.Product
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		if isBlankRecord(record) {
			continue
		}
		product, err := parseProduct(record, columns)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		products = append(products, product)
	}
	return products, nil
}

func headerIndex(header []string) (map[string]int, error) {
	schema := catalog.ProductSchema()
	columns := make(map[string]int, len(header))
	for i, raw := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff")))
		if !schema.HasField(name) {
			continue
		}
		if _, dup := columns[name]; dup {
			return nil, fmt.Errorf("csv header repeats column %q", name)
		}
		columns[name] = i
	}
	var missing []string
	for _, name := range schema.FieldNames() {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("csv header missing columns: %s", strings.Join(missing, ", "))
	}
	return columns, nil
}

func parseProduct(record []string, columns map[string]int) (catalog.Product, error) {
	cell := func(name string) string {
		idx := columns[name]
		if idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	price, err := parseWhole(cell("price"))
	if err != nil {
		return catalog.Product{}, fmt.Errorf("price: %w", err)
	}
	discount, err := parseFloat(cell("discount"))
	if err != nil {
		return catalog.Product{}, fmt.Errorf("discount: %w", err)
	}
	if discount < 0 || discount > 1 {
		return catalog.Product{}, fmt.Errorf("discount %v outside [0,1]", discount)
	}
	rating, err := parseFloat(cell("avg_rating"))
	if err != nil {
		return catalog.Product{}, fmt.Errorf("avg_rating: %w", err)
	}
	totalRatings, err := parseWhole(cell("total_ratings"))
	if err != nil {
		return catalog.Product{}, fmt.Errorf("total_ratings: %w", err)
	}

	title := cell("title")
	if title == "" {
		return catalog.Product{}, fmt.Errorf("title is required")
	}
	return catalog.Product{
		ProductLink:  cell("product_link"),
		Title:        title,
		Brand:        cell("brand"),
		Price:        price,
		Discount:     discount,
		AvgRating:    rating,
		TotalRatings: totalRatings,
	}, nil
}

func parseFloat(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%q is not a finite number", raw)
	}
	return value, nil
}

// parseWhole accepts integers written as floats ("1299.0"), as dataframe
// exports commonly do.
func parseWhole(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		parsed, floatErr := parseFloat(raw)
		if floatErr != nil {
			return 0, floatErr
		}
		value = int64(math.Round(parsed))
		if parsed < 0 {
			value = -1
		}
	}
	if value < 0 {
		return 0, fmt.Errorf("%q is negative", raw)
	}
	return value, nil
}

func isBlankRecord(record []string) bool {
	for _, value := range record {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}
