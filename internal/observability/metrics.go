// Package observability exposes Prometheus metrics for grading and the HTTP API.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pavelanni/answergrader/internal/model"
)

// Metrics holds the grading service collectors.
type Metrics struct {
	// QuestionsEvaluated counts graded questions.
	// Labels: evaluator, outcome (scored|not_answered|key_missing|scoring_error)
	QuestionsEvaluated *prometheus.CounterVec

	// QuestionDuration measures per-question evaluation time in seconds.
	// Labels: evaluator
	QuestionDuration *prometheus.HistogramVec

	// Evaluations counts completed answer-set evaluations.
	// Labels: evaluator
	Evaluations *prometheus.CounterVec

	// EvaluationPercentage is the distribution of overall percentages.
	// Labels: evaluator
	EvaluationPercentage *prometheus.HistogramVec

	// EvaluationDuration measures whole-submission evaluation time in seconds.
	// Labels: evaluator
	EvaluationDuration *prometheus.HistogramVec

	// OCRExtractions counts OCR runs.
	// Labels: engine, status (success|error|insufficient_text)
	OCRExtractions *prometheus.CounterVec

	// HTTPRequestDuration measures API latency.
	// Labels: method, route, status_code
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		QuestionsEvaluated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "answergrader_questions_evaluated_total",
			Help: "Questions graded, by evaluator and outcome.",
		}, []string{"evaluator", "outcome"}),
		QuestionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "answergrader_question_duration_seconds",
			Help:    "Time to grade one question.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		}, []string{"evaluator"}),
		Evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "answergrader_evaluations_total",
			Help: "Answer sets graded.",
		}, []string{"evaluator"}),
		EvaluationPercentage: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "answergrader_evaluation_percentage",
			Help:    "Overall percentage of graded answer sets.",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}, []string{"evaluator"}),
		EvaluationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "answergrader_evaluation_duration_seconds",
			Help:    "Time to grade one answer set.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 600},
		}, []string{"evaluator"}),
		OCRExtractions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "answergrader_ocr_extractions_total",
			Help: "OCR runs on uploaded answer sheets.",
		}, []string{"engine", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "answergrader_http_request_duration_seconds",
			Help:    "HTTP API request latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"method", "route", "status_code"}),
	}
}

// ObserveQuestion records one graded question.
func (m *Metrics) ObserveQuestion(evaluator string, outcome model.Outcome, elapsed time.Duration) {
	m.QuestionsEvaluated.WithLabelValues(evaluator, string(outcome)).Inc()
	m.QuestionDuration.WithLabelValues(evaluator).Observe(elapsed.Seconds())
}

// ObserveEvaluation records one graded answer set.
func (m *Metrics) ObserveEvaluation(evaluator string, percentage float64, elapsed time.Duration) {
	m.Evaluations.WithLabelValues(evaluator).Inc()
	m.EvaluationPercentage.WithLabelValues(evaluator).Observe(percentage)
	m.EvaluationDuration.WithLabelValues(evaluator).Observe(elapsed.Seconds())
}

// RecordOCR counts one OCR run.
func (m *Metrics) RecordOCR(engine, status string) {
	m.OCRExtractions.WithLabelValues(engine, status).Inc()
}

// Middleware times requests, labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
