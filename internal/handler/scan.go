package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pavelanni/answergrader/internal/ingest"
	"github.com/pavelanni/answergrader/internal/model"
)

const maxScanUpload = 20 << 20

type scanResponse struct {
	model.Evaluation
	ExtractedAnswers []model.StudentAnswer `json:"extracted_answers"`
}

// handleScan grades an uploaded image of a handwritten answer sheet.
func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	if h.ocr == nil || !h.ocr.Available() {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "OCR is not available on this server"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxScanUpload)
	if err := r.ParseMultipartForm(maxScanUpload); err != nil {
		badRequest(w, r, fmt.Errorf("invalid upload: %w", err))
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		badRequest(w, r, errors.New("missing file field"))
		return
	}
	defer file.Close()

	text, err := h.ocr.Extract(r.Context(), file)
	if err != nil {
		h.recordOCR("error")
		slog.Error("OCR failed", "engine", h.ocr.Name(), "file", hdr.Filename, "error", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "could not read the answer sheet"})
		return
	}

	answers, err := ingest.SplitAnswers(text)
	if err != nil {
		if errors.Is(err, ingest.ErrInsufficientText) {
			h.recordOCR("insufficient_text")
		}
		h.writeError(w, r, err)
		return
	}
	h.recordOCR("success")
	slog.Info("answer sheet transcribed", "engine", h.ocr.Name(), "file", hdr.Filename, "answers", len(answers))

	e, err := h.evaluateSubmission(r.Context(), model.Submission{
		StudentName: r.FormValue("student_name"),
		Answers:     answers,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, scanResponse{Evaluation: e, ExtractedAnswers: answers})
}

func (h *Handler) recordOCR(status string) {
	if h.metrics != nil {
		h.metrics.RecordOCR(h.ocr.Name(), status)
	}
}
