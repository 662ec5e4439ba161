package handler

import (
	"log/slog"
	"net/http"

	"github.com/pavelanni/answergrader/internal/ingest"
)

type replaceResponse struct {
	Count int `json:"count"`
}

func (h *Handler) handleReplaceQuestions(w http.ResponseWriter, r *http.Request) {
	qs, err := ingest.LoadQuestions(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		badRequest(w, r, err)
		return
	}
	if err := h.store.ReplaceQuestions(qs); err != nil {
		h.writeError(w, r, err)
		return
	}
	slog.Info("question paper replaced", "count", len(qs))
	writeJSON(w, http.StatusOK, replaceResponse{Count: len(qs)})
}

func (h *Handler) handleReplaceAnswerKey(w http.ResponseWriter, r *http.Request) {
	key, err := ingest.LoadAnswerKey(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		badRequest(w, r, err)
		return
	}
	if err := h.store.ReplaceAnswerKey(key); err != nil {
		h.writeError(w, r, err)
		return
	}
	slog.Info("answer key replaced", "count", len(key))
	writeJSON(w, http.StatusOK, replaceResponse{Count: len(key)})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Clear(); err != nil {
		h.writeError(w, r, err)
		return
	}
	slog.Info("question paper and answer key cleared")
	w.WriteHeader(http.StatusNoContent)
}
