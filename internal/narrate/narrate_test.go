package narrate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopassist/shopassist/internal/llm"
	"github.com/shopassist/shopassist/internal/query"
)

var productColumns = []string{"product_link", "title", "brand", "price", "discount", "avg_rating", "total_ratings"}

func productResult(rows ...[]any) query.Result {
	return query.Result{Columns: productColumns, Rows: rows}
}

func TestDiscountPercentRoundsHalfAwayFromZero(t *testing.T) {
	cases := map[float64]int{0.35: 35, 0.1: 10, 0: 0, 0.125: 13, 0.994: 99, 1: 100}
	for fraction, want := range cases {
		if got := DiscountPercent(fraction); got != want {
			t.Fatalf("DiscountPercent(%v) = %d, want %d", fraction, got, want)
		}
	}
}

func TestTemplateNarratorNumbersMultipleProducts(t *testing.T) {
	result := productResult(
		[]any{"https://shop/p1", "Campus Women Running Shoes", "Campus", int64(1104), 0.35, 4.4, int64(210)},
		[]any{"https://shop/p2", "Puma Runner", "Puma", int64(2499), 0.2, 4.1, int64(80)},
	)
	answer, err := NewTemplateNarrator().Narrate(context.Background(), "running shoes", result)
	if err != nil {
		t.Fatalf("Narrate() error = %v", err)
	}
	want := "1. Campus Women Running Shoes: Rs. 1104 (35 percent off), Rating: 4.4 <https://shop/p1>\n" +
		"2. Puma Runner: Rs. 2499 (20 percent off), Rating: 4.1 <https://shop/p2>"
	if answer != want {
		t.Fatalf("Narrate() = %q, want %q", answer, want)
	}
}

func TestTemplateNarratorDescribesSingleProductInASentence(t *testing.T) {
	result := productResult([]any{"https://shop/p1", "Puma Runner", "Puma", int64(2499), 0.35, 4.2, int64(120)})
	answer, err := NewTemplateNarrator().Narrate(context.Background(), "cheapest puma", result)
	if err != nil {
		t.Fatalf("Narrate() error = %v", err)
	}
	want := "Puma Runner by Puma costs Rs. 2499 (35 percent off) and is rated 4.2 from 120 ratings. <https://shop/p1>"
	if answer != want {
		t.Fatalf("Narrate() = %q, want %q", answer, want)
	}
}

func TestTemplateNarratorRejectsEmptyResult(t *testing.T) {
	if _, err := NewTemplateNarrator().Narrate(context.Background(), "q", productResult()); err == nil {
		t.Fatal("expected error for empty result")
	}
}

func TestProductLineFallsBackForNonProductRows(t *testing.T) {
	line := ProductLine(query.Record{"n": int64(3), "brand": "Nike"})
	if line != "brand: Nike, n: 3" {
		t.Fatalf("ProductLine() = %q", line)
	}
}

type fakeChat struct {
	got  llm.ChatRequest
	resp llm.ChatResponse
	err  error
}

func (f *fakeChat) Complete(_ context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	f.got = req
	return f.resp, f.err
}

func TestLLMNarratorSendsQuestionAndAugmentedData(t *testing.T) {
	chat := &fakeChat{resp: llm.ChatResponse{Content: "  1. Puma Runner: Rs. 2499 (35 percent off), Rating: 4.2 <https://shop/p1>  "}}
	narrator, err := NewLLMNarrator(chat, 0.2)
	if err != nil {
		t.Fatalf("NewLLMNarrator() error = %v", err)
	}
	result := productResult([]any{"https://shop/p1", "Puma Runner", "Puma", int64(2499), 0.35, 4.2, int64(120)})
	answer, err := narrator.Narrate(context.Background(), "Puma running shoes under ₹3000", result)
	if err != nil {
		t.Fatalf("Narrate() error = %v", err)
	}
	if strings.HasPrefix(answer, " ") || strings.HasSuffix(answer, " ") {
		t.Fatalf("answer not trimmed: %q", answer)
	}
	if !strings.HasPrefix(chat.got.User, "QUESTION: Puma running shoes under ₹3000. DATA: [") {
		t.Fatalf("user message = %q", chat.got.User)
	}
	if !strings.Contains(chat.got.User, `"discount_percent":35`) {
		t.Fatalf("user message missing discount_percent: %q", chat.got.User)
	}
	if !strings.Contains(chat.got.System, "Rs. PRICE (X percent off), Rating: AVG_RATING <link>") {
		t.Fatalf("system prompt = %q", chat.got.System)
	}
	if len(result.Records()[0]) != len(productColumns) {
		t.Fatal("augmentation leaked into the caller's records")
	}
}

func TestLLMNarratorFailures(t *testing.T) {
	result := productResult([]any{"l", "t", "b", int64(1), 0.1, 4.0, int64(1)})

	failing, _ := NewLLMNarrator(&fakeChat{err: errors.New("timeout")}, 0.2)
	if _, err := failing.Narrate(context.Background(), "q", result); err == nil {
		t.Fatal("expected generation error")
	}
	blank, _ := NewLLMNarrator(&fakeChat{resp: llm.ChatResponse{Content: "  "}}, 0.2)
	if _, err := blank.Narrate(context.Background(), "q", result); err == nil {
		t.Fatal("expected empty answer error")
	}
	if _, err := NewLLMNarrator(nil, 0.2); err == nil {
		t.Fatal("expected nil client error")
	}
}
