package genai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"serafin/internal/domain/observation"
)

type analysisPayload struct {
	Title          string `json:"title"`
	Content        string `json:"content"`
	Severity       string `json:"severity"`
	NeedsAttention bool   `json:"needsAttention"`
}

// ParseAnalysis decodes a structured scene assessment from model output.
// Models wrap JSON in code fences or chatter around it often enough that the
// parser extracts the outermost object before decoding. Any payload that is
// not exactly the expected shape is an error; the caller falls back rather
// than persisting a half-parsed record.
func ParseAnalysis(raw string) (observation.Analysis, error) {
	body, err := extractJSONObject(raw)
	if err != nil {
		return observation.Analysis{}, err
	}

	var payload analysisPayload
	decoder := json.NewDecoder(strings.NewReader(body))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		return observation.Analysis{}, fmt.Errorf("decode analysis: %w", err)
	}

	if strings.TrimSpace(payload.Title) == "" {
		return observation.Analysis{}, errors.New("analysis title is empty")
	}
	if strings.TrimSpace(payload.Content) == "" {
		return observation.Analysis{}, errors.New("analysis content is empty")
	}

	severity, err := observation.ParseThreadSeverity(payload.Severity)
	if err != nil {
		return observation.Analysis{}, err
	}

	return observation.Analysis{
		Title:          strings.TrimSpace(payload.Title),
		Content:        strings.TrimSpace(payload.Content),
		Severity:       severity,
		NeedsAttention: payload.NeedsAttention,
	}, nil
}

func extractJSONObject(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", errors.New("response is empty")
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return "", errors.New("response contains no JSON object")
	}
	return text[start : end+1], nil
}
