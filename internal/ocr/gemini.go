package ocr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const transcribePrompt = "Transcribe all handwritten and printed text on this answer sheet exactly as written. " +
	"Keep question numbers and line breaks. Output only the transcribed text."

// Gemini transcribes images with a Gemini vision model.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini OCR engine.
func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini OCR: API key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	return &Gemini{client: client, model: modelName}, nil
}

func (g *Gemini) Name() string { return "gemini/" + g.model }

func (g *Gemini) Available() bool { return g.client != nil }

func (g *Gemini) Close() error { return g.client.Close() }

// Extract sends the image with a transcription instruction.
func (g *Gemini) Extract(ctx context.Context, r io.Reader) (string, error) {
	img, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(img) == 0 {
		return "", errors.New("empty image")
	}

	m := g.client.GenerativeModel(g.model)
	m.SetTemperature(0)
	resp, err := m.GenerateContent(ctx,
		genai.Text(transcribePrompt),
		genai.Blob{MIMEType: http.DetectContentType(img), Data: img},
	)
	if err != nil {
		return "", fmt.Errorf("gemini OCR: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini OCR: empty response")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String(), nil
}
