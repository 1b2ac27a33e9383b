package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"serafin/internal/bootstrap/logging"
	"serafin/internal/errs"
	"serafin/internal/ports"
)

const assistantSystemPrompt = "You are Artemis, an AI security assistant. Keep responses concise, under 5 lines. No symbols."

const maxResponseLines = 5

// Canned replies used when the assistant endpoint fails entirely.
var assistantFallbackReplies = []string{
	"I've analyzed your request and found no security concerns at this time. Your system appears to be functioning normally.",
	"Based on the information provided, I recommend updating your security protocols to address potential vulnerabilities.",
	"Your recent activity shows normal patterns. No suspicious behavior has been detected in the monitored areas.",
	"I've processed your query and can confirm that all systems are currently operational with no alerts to report.",
	"The data suggests everything is working as expected. No immediate action is required at this time.",
}

// CameraChat answers a question about a camera's live view. A fresh frame
// is captured best-effort and sent inline with the question. Endpoint
// failures never propagate; they come back as in-band plain-text replies
// with distinct wording per failure class.
func (s *Service) CameraChat(ctx context.Context, cameraID int, message string) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if strings.TrimSpace(message) == "" {
		return "", errors.New("message is required")
	}
	if s.chat == nil {
		return chatErrorMessage(ports.ErrMissingCredentials), nil
	}

	camera, ok := s.Camera(cameraID)
	if !ok {
		return "", fmt.Errorf("camera %d not found", cameraID)
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.monitor.chat"),
		slog.Int("camera_id", cameraID),
	)

	request := ports.ChatRequest{
		Message: cameraChatPrompt(message),
	}
	if s.frames != nil {
		if frame, err := s.frames.Capture(ctx, camera); err == nil {
			request.Frame = &frame
		} else {
			logging.Warn(logCtx, "chat frame capture failed, answering without image", slog.Any("error", errs.Loggable(err)))
		}
	}

	reply, err := s.chat.Respond(ctx, request)
	if err != nil {
		logging.Warn(logCtx, "camera chat failed", slog.Any("error", errs.Loggable(err)))
		return chatErrorMessage(err), nil
	}
	return reply, nil
}

// AssistantChat answers a free-form question, optionally about an attached
// image. Replies are truncated to five lines; on endpoint failure one of
// the canned replies is returned instead.
func (s *Service) AssistantChat(ctx context.Context, message string, frame *ports.Frame) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if strings.TrimSpace(message) == "" {
		return "", errors.New("message is required")
	}
	if s.chat == nil {
		return s.assistantFallback(), nil
	}

	reply, err := s.chat.Respond(ctx, ports.ChatRequest{
		Message:      message,
		SystemPrompt: assistantSystemPrompt,
		Frame:        frame,
	})
	if err != nil {
		logging.Warn(
			logging.WithAttrs(ctx, slog.String("component", "usecase.monitor.chat")),
			"assistant chat failed, using canned reply",
			slog.Any("error", errs.Loggable(err)),
		)
		return s.assistantFallback(), nil
	}
	return truncateLines(reply, maxResponseLines), nil
}

func (s *Service) assistantFallback() string {
	index := int(s.draw() * float64(len(assistantFallbackReplies)))
	if index >= len(assistantFallbackReplies) {
		index = len(assistantFallbackReplies) - 1
	}
	return assistantFallbackReplies[index]
}

func cameraChatPrompt(message string) string {
	return fmt.Sprintf("You're analyzing a live traffic camera feed. Based on this snapshot, answer the user's camera-related question: %q\nComment on traffic flow, visibility, road conditions, incidents, or anything observable from the camera image that helps address the user's query.", message)
}

func chatErrorMessage(err error) string {
	switch {
	case errors.Is(err, ports.ErrMissingCredentials):
		return "I can't analyze the image because the API key is missing. Please configure the SERAFIN_GENAI_API_KEY environment variable."
	case errors.Is(err, ports.ErrUnauthorized):
		return "I can't analyze the image due to API authentication issues. Please check if your API key has access to the configured model."
	case errors.Is(err, ports.ErrQuotaExceeded):
		return "I can't analyze the image right now. The API quota has been exceeded. Please try again later."
	case errors.Is(err, ports.ErrModelNotFound):
		return "I can't analyze the image. There's an issue with the model configuration. Please report this to the development team."
	default:
		return "I'm having trouble analyzing the image right now. The view shows the traffic situation, but I can't provide specific details at the moment."
	}
}

func truncateLines(text string, limit int) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= limit {
		return text
	}
	return strings.Join(lines[:limit], "\n")
}
