package nl2sql

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopassist/shopassist/internal/catalog"
	"github.com/shopassist/shopassist/internal/llm"
)

// StatementGenerator asks the generation service for a delimited statement.
// The returned text is not validated.
type StatementGenerator interface {
	Generate(ctx context.Context, question string) (RawOutput, error)
}

const DefaultTemperature = 0.2

type GeneratorConfig struct {
	Temperature float64
	Schema      *catalog.Schema
}

type LLMGenerator struct {
	client       llm.ChatCompleter
	temperature  float64
	systemPrompt string
}

func NewLLMGenerator(client llm.ChatCompleter, cfg GeneratorConfig) (*LLMGenerator, error) {
	if client == nil {
		return nil, fmt.Errorf("chat client is required")
	}
	schema := catalog.ProductSchema()
	if cfg.Schema != nil {
		schema = *cfg.Schema
	}
	temperature := cfg.Temperature
	if temperature < 0 {
		return nil, fmt.Errorf("temperature must be >= 0")
	}
	return &LLMGenerator{
		client:       client,
		temperature:  temperature,
		systemPrompt: GenerationPrompt(schema),
	}, nil
}

func (g *LLMGenerator) Generate(ctx context.Context, question string) (RawOutput, error) {
	resp, err := g.client.Complete(ctx, llm.ChatRequest{
		System:      g.systemPrompt,
		User:        strings.TrimSpace(question),
		Temperature: g.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("generate statement: %w", err)
	}
	return RawOutput(resp.Content), nil
}

// GenerationPrompt is the instruction sent with every question. It embeds the
// schema block and the output contract the validator enforces.
func GenerationPrompt(schema catalog.Schema) string {
	var b strings.Builder
	b.WriteString("You are an expert in understanding the database schema and generating SQL queries for a natural language question asked pertaining to the data you have. ")
	b.WriteString("The schema is provided in the schema tags.\n")
	b.WriteString(schema.PromptBlock())
	b.WriteString("\n\nRules:\n")
	fmt.Fprintf(&b, "- Create a single SQL query that reads only from the %s table.\n", schema.Table)
	b.WriteString("- Always select every field with SELECT *. Never write INSERT, UPDATE, DELETE or any other statement.\n")
	b.WriteString("- The brand name can be in any case, so match brands and titles with LIKE '%...%'. Never use ILIKE.\n")
	b.WriteString("- Do not use joins, subqueries, comments or more than one statement.\n")
	b.WriteString("- Return only the SQL, inside <SQL></SQL> tags.")
	return b.String()
}
