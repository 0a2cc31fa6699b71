package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/shopassist/shopassist/internal/config"
	"github.com/shopassist/shopassist/internal/observability"
)

const (
	maxAskBodyBytes      = 16 << 10
	maxQuestionRuneCount = 1000
)

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer   string `json:"answer"`
	Route    string `json:"route,omitempty"`
	Outcome  string `json:"outcome"`
	TraceID  string `json:"trace_id"`
	SQL      string `json:"sql,omitempty"`
	RowCount *int   `json:"row_count,omitempty"`
}

// handleAsk always answers 200 once the question is accepted; pipeline
// fallbacks are answers, not transport errors.
func handleAsk(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASSISTANT_NOT_CONFIGURED", "assistant is not configured", false, nil)
		return
	}

	var request askRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAskBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	question := strings.TrimSpace(request.Question)
	if question == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}
	if utf8.RuneCountInString(question) > maxQuestionRuneCount {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_TOO_LONG", "question is too long", false, map[string]any{"max_characters": maxQuestionRuneCount})
		return
	}

	outcome := deps.Assistant.Ask(r.Context(), question)
	response := askResponse{
		Answer:  outcome.Answer,
		Route:   string(outcome.Route),
		Outcome: string(outcome.Stage),
		TraceID: observability.TraceIDFromContext(r.Context()),
	}
	if cfg.API.ExposeSQL {
		response.SQL = outcome.SQL
		rowCount := outcome.RowCount
		response.RowCount = &rowCount
	}
	writeJSON(w, http.StatusOK, response)
}
