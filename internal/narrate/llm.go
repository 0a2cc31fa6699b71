package narrate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopassist/shopassist/internal/llm"
	"github.com/shopassist/shopassist/internal/query"
)

const comprehensionPrompt = `You will receive QUESTION: and DATA:. DATA holds the product rows that answer the question. Respond ONLY based on DATA and never add products, prices or ratings that are not in it. Do not mention the data, tables or any other technical words.
When returning multiple products, list them one per line, never as a paragraph, formatted like:
1. Title: Rs. PRICE (X percent off), Rating: AVG_RATING <link>
Use the discount_percent value for X. When DATA holds a single product or a single value, answer in one plain sentence.`

type LLMNarrator struct {
	client      llm.ChatCompleter
	temperature float64
}

func NewLLMNarrator(client llm.ChatCompleter, temperature float64) (*LLMNarrator, error) {
	if client == nil {
		return nil, fmt.Errorf("chat client is required")
	}
	return &LLMNarrator{client: client, temperature: temperature}, nil
}

func (n *LLMNarrator) Narrate(ctx context.Context, question string, result query.Result) (string, error) {
	records := result.Records()
	if len(records) == 0 {
		return "", fmt.Errorf("nothing to narrate")
	}
	data, err := json.Marshal(withDiscountPercent(records))
	if err != nil {
		return "", fmt.Errorf("marshal records: %w", err)
	}
	resp, err := n.client.Complete(ctx, llm.ChatRequest{
		System:      comprehensionPrompt,
		User:        fmt.Sprintf("QUESTION: %s. DATA: %s", strings.TrimSpace(question), data),
		Temperature: n.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("narrate result: %w", err)
	}
	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return "", fmt.Errorf("narrate result: empty answer")
	}
	return answer, nil
}

// withDiscountPercent copies records adding the rounded whole-percent
// discount so the model never computes it.
func withDiscountPercent(records []query.Record) []query.Record {
	out := make([]query.Record, len(records))
	for i, record := range records {
		augmented := make(query.Record, len(record)+1)
		for key, value := range record {
			augmented[key] = value
		}
		if discount, ok := toFloat(record["discount"]); ok {
			augmented["discount_percent"] = DiscountPercent(discount)
		}
		out[i] = augmented
	}
	return out
}
