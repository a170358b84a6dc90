package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coderTtxi12/model-rag/internal/rag"
)

// maxQuestionBody caps the request body. Questions are short; anything
// beyond this is rejected rather than buffered.
const maxQuestionBody = 64 << 10 // 64 KiB

// noResultsAnswer is served with status 200 when no retrieved passage was
// graded relevant. The terminal is a defined answer, not an error.
const noResultsAnswer = "I couldn't find relevant information in the indexed documents to answer your question."

// Runner executes the question-answering workflow for one question.
type Runner interface {
	Run(ctx context.Context, question string) (rag.Result, error)
}

// generateHandler serves POST /generate.
type generateHandler struct {
	workflow Runner
	logger   *slog.Logger
}

// generateRequest is the request body of POST /generate.
type generateRequest struct {
	Question string `json:"question"`
}

// generate runs the workflow and returns the raw answer text.
//
// Malformed body or a blank question is a 400. Workflow failures,
// retries-exhausted included, are a 500 with a fixed generic message so
// provider errors never leak to clients.
func (h *generateHandler) generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest

	body := http.MaxBytesReader(w, r.Body, maxQuestionBody)
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", h.logger)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}
	// Reject trailing content after the JSON object.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeError(w, http.StatusBadRequest, "empty_question", "question must not be empty", h.logger)
		return
	}

	result, err := h.workflow.Run(r.Context(), question)
	if err != nil {
		requestID, _ := requestIDFromContext(r.Context())
		h.logger.Error("workflow failed",
			"error", err,
			"request_id", requestID,
			"retries_exhausted", errors.Is(err, rag.ErrRetriesExhausted),
		)
		writeError(w, http.StatusInternalServerError, "generation_failed", "failed to generate an answer", h.logger)
		return
	}

	answer := result.Answer
	if result.Outcome == rag.OutcomeNoResults {
		answer = noResultsAnswer
	}
	writeText(w, http.StatusOK, answer, h.logger)
}
