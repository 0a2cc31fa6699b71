package catalog

import (
	"fmt"
	"strings"
)

const ProductTable = "product"

type FieldType string

const (
	TypeString   FieldType = "string"
	TypeInteger  FieldType = "integer"
	TypeFloat    FieldType = "float"
	TypeFraction FieldType = "fraction"
)

type Field struct {
	Name    string    `json:"name"`
	Type    FieldType `json:"type"`
	Meaning string    `json:"meaning"`
}

type Schema struct {
	Table  string  `json:"table"`
	Fields []Field `json:"fields"`
}

// Product is one row of the product table.
type Product struct {
	ProductLink  string  `json:"product_link" parquet:"product_link"`
	Title        string  `json:"title" parquet:"title"`
	Brand        string  `json:"brand" parquet:"brand"`
	Price        int64   `json:"price" parquet:"price"`
	Discount     float64 `json:"discount" parquet:"discount"`
	AvgRating    float64 `json:"avg_rating" parquet:"avg_rating"`
	TotalRatings int64   `json:"total_ratings" parquet:"total_ratings"`
}

var productFields = []Field{
	{Name: "product_link", Type: TypeString, Meaning: "hyperlink to product"},
	{Name: "title", Type: TypeString, Meaning: "name of the product"},
	{Name: "brand", Type: TypeString, Meaning: "brand of the product"},
	{Name: "price", Type: TypeInteger, Meaning: "price of the product in Indian Rupees"},
	{Name: "discount", Type: TypeFraction, Meaning: "discount on the product. 10 percent discount is represented as 0.1, 20 percent as 0.2, and such"},
	{Name: "avg_rating", Type: TypeFloat, Meaning: "average rating of the product. Range 0-5, 5 is the highest"},
	{Name: "total_ratings", Type: TypeInteger, Meaning: "total number of ratings for the product"},
}

// ProductSchema returns the descriptor of the only queryable table. The
// returned value is a copy; callers may not mutate the shared definition.
func ProductSchema() Schema {
	fields := make([]Field, len(productFields))
	copy(fields, productFields)
	return Schema{Table: ProductTable, Fields: fields}
}

func (s Schema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, field := range s.Fields {
		names = append(names, field.Name)
	}
	return names
}

func (s Schema) HasField(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, field := range s.Fields {
		if field.Name == name {
			return true
		}
	}
	return false
}

func (s Schema) Field(name string) (Field, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, field := range s.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// PromptBlock renders the schema in the tagged form embedded in generation
// instructions.
func (s Schema) PromptBlock() string {
	var b strings.Builder
	b.WriteString("<schema>\n")
	fmt.Fprintf(&b, "table: %s\n\nfields:\n", s.Table)
	for _, field := range s.Fields {
		fmt.Fprintf(&b, "%s - %s (%s)\n", field.Name, promptType(field.Type), field.Meaning)
	}
	b.WriteString("</schema>")
	return b.String()
}

func promptType(t FieldType) string {
	if t == TypeFraction {
		return string(TypeFloat)
	}
	return string(t)
}
