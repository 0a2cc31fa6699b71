package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopassist/shopassist/internal/narrate"
	"github.com/shopassist/shopassist/internal/nl2sql"
	"github.com/shopassist/shopassist/internal/observability"
	"github.com/shopassist/shopassist/internal/query"
	"github.com/shopassist/shopassist/internal/router"
)

const (
	MessageEmptyQuestion     = "Please ask a question about our products or policies."
	MessageUnsupported       = "Sorry, this type of question isn't supported yet."
	MessageGenerationFailed  = "Sorry, could not generate SQL for your query."
	MessageExecutionFailed   = "Sorry, there was a problem finding matching products."
	MessageNoMatchingProduct = "No matching products found for your query."
	MessageAnswerFailed      = "Sorry, something went wrong while preparing your answer. Please try again."
)

// Stage names where a request stopped.
type Stage string

const (
	StageEmptyQuestion    Stage = "empty_question"
	StageUnroutable       Stage = "unroutable"
	StageUnsupportedRoute Stage = "unsupported_route"
	StageGenerationFailed Stage = "generation_failed"
	StageNoStatement      Stage = "no_statement"
	StageInvalidStatement Stage = "invalid_statement"
	StageExecutionFailed  Stage = "execution_failed"
	StageEmptyResult      Stage = "empty_result"
	StageNarrationFailed  Stage = "narration_failed"
	StageFAQFailed        Stage = "faq_failed"
	StageAnswered         Stage = "answered"
)

// FAQResponder answers policy questions. Retrieval lives outside this module.
type FAQResponder interface {
	Answer(ctx context.Context, question string) (string, error)
}

type StatementExtractor interface {
	Extract(raw nl2sql.RawOutput) (nl2sql.Statement, error)
}

type Outcome struct {
	Answer   string
	Route    router.Route
	Stage    Stage
	SQL      string
	RowCount int
	Duration time.Duration
}

// Assistant runs one question through routing and, for product searches,
// generate, extract, execute and narrate. It never returns an error to the
// caller: every failure maps to a fixed message.
type Assistant struct {
	Router    router.Router
	Generator nl2sql.StatementGenerator
	Validator StatementExtractor
	Engine    query.Engine
	Narrator  narrate.Narrator
	FAQ       FAQResponder
	RowLimit  int
	Logger    *slog.Logger
}

func New(a Assistant) (*Assistant, error) {
	switch {
	case a.Router == nil:
		return nil, fmt.Errorf("router is required")
	case a.Generator == nil:
		return nil, fmt.Errorf("statement generator is required")
	case a.Engine == nil:
		return nil, fmt.Errorf("query engine is required")
	case a.Narrator == nil:
		return nil, fmt.Errorf("narrator is required")
	case a.RowLimit < 0:
		return nil, fmt.Errorf("row limit must be >= 0")
	}
	if a.Validator == nil {
		a.Validator = nl2sql.NewValidator(nl2sql.ValidatorOptions{})
	}
	return &a, nil
}

func (a *Assistant) Answer(ctx context.Context, question string) string {
	return a.Ask(ctx, question).Answer
}

func (a *Assistant) Ask(ctx context.Context, question string) Outcome {
	start := time.Now()
	logger := observability.RequestLogger(ctx, a.Logger)
	question = strings.TrimSpace(question)

	outcome := Outcome{Answer: MessageEmptyQuestion, Stage: StageEmptyQuestion}
	if question != "" {
		outcome = a.route(ctx, logger, question)
	}

	outcome.Duration = time.Since(start)
	observability.ObservePipelineOutcome(string(outcome.Route), string(outcome.Stage), outcome.Duration)
	logger.Info("question answered",
		slog.String("route", string(outcome.Route)),
		slog.String("stage", string(outcome.Stage)),
		slog.Int("row_count", outcome.RowCount),
		slog.Int64("duration_ms", outcome.Duration.Milliseconds()),
	)
	return outcome
}

func (a *Assistant) route(ctx context.Context, logger *slog.Logger, question string) Outcome {
	if a.Router == nil {
		return Outcome{Answer: MessageUnsupported, Stage: StageUnroutable}
	}
	route, err := a.Router.Route(ctx, question)
	if err != nil {
		if errors.Is(err, router.ErrNoRoute) {
			logger.Debug("no route matched")
		} else {
			logger.Warn("routing failed", slog.Any("error", err))
		}
		return Outcome{Answer: MessageUnsupported, Stage: StageUnroutable}
	}
	logger.Debug("question routed", slog.String("route", string(route)))

	var outcome Outcome
	switch route {
	case router.RouteSQL:
		outcome = a.searchProducts(ctx, logger, question)
	case router.RouteFAQ:
		outcome = a.answerFAQ(ctx, logger, question)
	case router.RouteSmallTalk:
		outcome = Outcome{Answer: MessageUnsupported, Stage: StageUnsupportedRoute}
	default:
		logger.Warn("route has no pipeline", slog.String("route", string(route)))
		outcome = Outcome{Answer: MessageUnsupported, Stage: StageUnsupportedRoute}
	}
	outcome.Route = route
	return outcome
}

func (a *Assistant) answerFAQ(ctx context.Context, logger *slog.Logger, question string) Outcome {
	if a.FAQ == nil {
		return Outcome{Answer: MessageUnsupported, Stage: StageUnsupportedRoute}
	}
	answer, err := a.FAQ.Answer(ctx, question)
	if err != nil || strings.TrimSpace(answer) == "" {
		logger.Warn("faq answer failed", slog.Any("error", err))
		return Outcome{Answer: MessageAnswerFailed, Stage: StageFAQFailed}
	}
	return Outcome{Answer: strings.TrimSpace(answer), Stage: StageAnswered}
}

func (a *Assistant) searchProducts(ctx context.Context, logger *slog.Logger, question string) Outcome {
	if a.Generator == nil || a.Engine == nil || a.Narrator == nil {
		return Outcome{Answer: MessageUnsupported, Stage: StageUnsupportedRoute}
	}

	raw, err := a.Generator.Generate(ctx, question)
	if err != nil {
		logger.Warn("statement generation failed", slog.Any("error", err))
		return Outcome{Answer: MessageGenerationFailed, Stage: StageGenerationFailed}
	}
	logger.Debug("statement generated", slog.Int("raw_length", len(raw)))

	extractor := a.Validator
	if extractor == nil {
		extractor = nl2sql.NewValidator(nl2sql.ValidatorOptions{})
	}
	stmt, err := extractor.Extract(raw)
	if err != nil {
		stage := StageInvalidStatement
		if errors.Is(err, nl2sql.ErrNoStatementFound) {
			stage = StageNoStatement
		}
		logger.Warn("generated statement rejected", slog.String("stage", string(stage)), slog.Any("error", err))
		return Outcome{Answer: MessageGenerationFailed, Stage: stage}
	}
	logger.Debug("statement extracted", slog.String("sql", stmt.String()))

	result, err := a.Engine.Execute(ctx, query.Request{SQL: stmt.String(), RowLimit: a.RowLimit})
	if err != nil {
		logger.Warn("statement execution failed", slog.String("sql", stmt.String()), slog.Any("error", err))
		return Outcome{Answer: MessageExecutionFailed, Stage: StageExecutionFailed, SQL: stmt.String()}
	}
	observability.ObserveQuery(len(result.Rows), result.Duration)
	logger.Debug("statement executed", slog.Int("row_count", len(result.Rows)))
	if result.Empty() {
		return Outcome{Answer: MessageNoMatchingProduct, Stage: StageEmptyResult, SQL: stmt.String()}
	}

	answer, err := a.Narrator.Narrate(ctx, question, result)
	if err != nil || strings.TrimSpace(answer) == "" {
		logger.Warn("narration failed", slog.Any("error", err))
		return Outcome{Answer: MessageAnswerFailed, Stage: StageNarrationFailed, SQL: stmt.String(), RowCount: len(result.Rows)}
	}
	return Outcome{Answer: answer, Stage: StageAnswered, SQL: stmt.String(), RowCount: len(result.Rows)}
}
