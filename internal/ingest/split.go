package ingest

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pavelanni/answergrader/internal/model"
)

// MinTextLength is the shortest OCR text worth splitting.
const MinTextLength = 20

// minAnswerLength drops fragments such as stray page numbers.
const minAnswerLength = 10

// ErrInsufficientText is returned for OCR output too short to hold answers.
var ErrInsufficientText = errors.New("insufficient text extracted from answer sheet")

var (
	tagRegex       = regexp.MustCompile(`<[^>]+>`)
	pageBreakRegex = regexp.MustCompile(`(?i)-{2,}\s*page\s*\d+\s*-{2,}`)
	spaceRegex     = regexp.MustCompile(`\s+`)
	// An answer starts a line with an optional "Answer", "Ans", "Q" or "A"
	// label, the question number and a ".", ")" or ":" separator.
	markerRegex = regexp.MustCompile(`(?im)^[ \t]*(?:answer|ans|q|a)?[ \t]*(\d{1,3})[ \t]*[.):][ \t]*`)
)

// SplitAnswers splits transcribed answer-sheet text into numbered answers,
// sorted by question number. When a number appears twice the longer answer
// is kept.
func SplitAnswers(text string) ([]model.StudentAnswer, error) {
	if len(strings.TrimSpace(text)) < MinTextLength {
		return nil, ErrInsufficientText
	}
	text = tagRegex.ReplaceAllString(text, " ")
	text = pageBreakRegex.ReplaceAllString(text, "\n")

	locs := markerRegex.FindAllStringSubmatchIndex(text, -1)
	byNum := make(map[int]string, len(locs))
	for i, loc := range locs {
		num, err := strconv.Atoi(text[loc[2]:loc[3]])
		if err != nil || num < 1 {
			continue
		}
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		answer := strings.TrimSpace(spaceRegex.ReplaceAllString(text[loc[1]:end], " "))
		if len(answer) <= minAnswerLength {
			continue
		}
		if len(answer) > len(byNum[num]) {
			byNum[num] = answer
		}
	}

	answers := make([]model.StudentAnswer, 0, len(byNum))
	for num, a := range byNum {
		answers = append(answers, model.StudentAnswer{QuestionNumber: num, StudentAnswer: a})
	}
	sort.Slice(answers, func(i, j int) bool {
		return answers[i].QuestionNumber < answers[j].QuestionNumber
	})
	return answers, nil
}
