package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pavelanni/answergrader/internal/evaluate"
	appI18n "github.com/pavelanni/answergrader/internal/i18n"
	"github.com/pavelanni/answergrader/internal/ingest"
	"github.com/pavelanni/answergrader/internal/model"
	"github.com/pavelanni/answergrader/internal/observability"
	"github.com/pavelanni/answergrader/internal/ocr"
	"github.com/pavelanni/answergrader/internal/report"
	"github.com/pavelanni/answergrader/internal/store"
)

const maxJSONBody = 1 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store   *store.Store
	aligner *evaluate.Aligner
	ocr     ocr.Engine
	metrics *observability.Metrics
}

// New creates a new Handler. engine and metrics may be nil.
func New(s *store.Store, a *evaluate.Aligner, engine ocr.Engine, metrics *observability.Metrics) *Handler {
	return &Handler{store: s, aligner: a, ocr: engine, metrics: metrics}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/status", h.handleStatus)
	r.Get("/questions", h.handleListQuestions)
	r.Get("/questions/{number}", h.handleGetQuestion)
	r.Post("/evaluations", h.handleEvaluate)
	r.Post("/evaluations/scan", h.handleScan)
	r.Get("/evaluations", h.handleListEvaluations)
	r.Get("/evaluations/{id}", h.handleGetEvaluation)
	r.Get("/evaluations/{id}/report", h.handleReport)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Put("/questions", h.handleReplaceQuestions)
		r.Put("/answer-key", h.handleReplaceAnswerKey)
		r.Post("/reset", h.handleReset)
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.store.Status()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	st.Evaluator = h.aligner.EvaluatorName()
	st.OCRAvailable = h.ocr != nil && h.ocr.Available()
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	sub, err := ingest.LoadSubmission(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		badRequest(w, r, err)
		return
	}
	e, err := h.evaluateSubmission(r.Context(), sub)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// evaluateSubmission grades sub against the stored paper and key and saves
// the result.
func (h *Handler) evaluateSubmission(ctx context.Context, sub model.Submission) (model.Evaluation, error) {
	questions, err := h.store.ListQuestions()
	if err != nil {
		return model.Evaluation{}, fmt.Errorf("list questions: %w", err)
	}
	key, err := h.store.ListAnswerKey()
	if err != nil {
		return model.Evaluation{}, fmt.Errorf("list answer key: %w", err)
	}

	result, err := h.aligner.Evaluate(ctx, questions, key, sub.Answers)
	if err != nil {
		return model.Evaluation{}, err
	}

	e := model.Evaluation{
		ID:          uuid.NewString(),
		StudentName: sub.StudentName,
		CreatedAt:   time.Now().UTC(),
		Result:      result,
	}
	if err := h.store.SaveEvaluation(e); err != nil {
		return model.Evaluation{}, fmt.Errorf("save evaluation: %w", err)
	}
	slog.Info("evaluation saved",
		"id", e.ID,
		"student", e.StudentName,
		"evaluator", result.EvaluationMethod,
		"percentage", result.Percentage,
		"grade", result.Grade,
	)
	return e, nil
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	qs, err := h.store.ListQuestions()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if qs == nil {
		qs = []model.Question{}
	}
	writeJSON(w, http.StatusOK, qs)
}

func (h *Handler) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number < 1 {
		badRequest(w, r, fmt.Errorf("invalid question number %q", chi.URLParam(r, "number")))
		return
	}
	q, err := h.store.GetQuestion(number)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, errorBody{
			Error: appI18n.Td(r.Context(), "ErrQuestionNotFound", map[string]any{"Number": number}),
		})
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) handleListEvaluations(w http.ResponseWriter, r *http.Request) {
	evals, err := h.store.ListEvaluations()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if evals == nil {
		evals = []model.Evaluation{}
	}
	writeJSON(w, http.StatusOK, evals)
}

func (h *Handler) handleGetEvaluation(w http.ResponseWriter, r *http.Request) {
	e, err := h.store.GetEvaluation(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		badRequest(w, r, err)
		return
	}
	e, err := h.store.GetEvaluation(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ext := "txt"
	if format == report.FormatMarkdown {
		ext = "md"
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="evaluation-%s.%s"`, e.ID, ext))
	if err := report.Render(r.Context(), w, e, format); err != nil {
		slog.Error("render error", "error", err)
	}
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// badRequest reports a rejected request body or parameter. The localized
// message goes in error, the validation text in detail.
func badRequest(w http.ResponseWriter, r *http.Request, err error) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Error:  appI18n.T(r.Context(), "ErrBadRequest"),
		Detail: err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps domain errors to status codes with a localized message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	var missing *model.MissingInputError
	var unavailable *model.EvaluatorUnavailableError
	switch {
	case errors.As(err, &missing):
		msg := appI18n.T(ctx, "ErrNoAnswerKey")
		if missing.Input == model.InputQuestionPaper {
			msg = appI18n.T(ctx, "ErrNoQuestionPaper")
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
	case errors.As(err, &unavailable):
		slog.Error("evaluator unavailable", "evaluator", unavailable.Evaluator, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: appI18n.T(ctx, "ErrEvaluatorUnavailable")})
	case errors.Is(err, ingest.ErrInsufficientText):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: appI18n.T(ctx, "ErrInsufficientText")})
	case errors.Is(err, sql.ErrNoRows):
		writeJSON(w, http.StatusNotFound, errorBody{Error: appI18n.T(ctx, "ErrNotFound")})
	default:
		slog.Error("request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
