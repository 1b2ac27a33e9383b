package monitor

import (
	"context"
	"strings"
	"testing"

	"serafin/internal/ports"
)

func TestCameraChatSendsFrameAndPrompt(t *testing.T) {
	fx := setupService(t)
	fx.chat.reply = "Traffic is light, visibility is good."

	reply, err := fx.service.CameraChat(context.Background(), testCamera.ID, "How does traffic look?")
	if err != nil {
		t.Fatalf("CameraChat() error = %v", err)
	}
	if reply != "Traffic is light, visibility is good." {
		t.Errorf("reply = %q", reply)
	}
	if fx.chat.last.Frame == nil {
		t.Error("chat request has no frame, want captured snapshot attached")
	}
	if !strings.Contains(fx.chat.last.Message, "How does traffic look?") {
		t.Errorf("prompt %q does not embed the user question", fx.chat.last.Message)
	}
}

func TestCameraChatAnswersWithoutFrameOnCaptureFailure(t *testing.T) {
	fx := setupService(t)
	fx.frames.err = ports.ErrNoFrame
	fx.chat.reply = "View unavailable, but the area is usually quiet now."

	reply, err := fx.service.CameraChat(context.Background(), testCamera.ID, "Anything happening?")
	if err != nil {
		t.Fatalf("CameraChat() error = %v", err)
	}
	if reply == "" {
		t.Error("reply is empty")
	}
	if fx.chat.last.Frame != nil {
		t.Error("chat request carries a frame after capture failure")
	}
}

func TestCameraChatSurfacesClassifiedErrorsInBand(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"missing credentials", ports.ErrMissingCredentials, "API key is missing"},
		{"unauthorized", ports.ErrUnauthorized, "authentication issues"},
		{"quota", ports.ErrQuotaExceeded, "quota has been exceeded"},
		{"model not found", ports.ErrModelNotFound, "model configuration"},
		{"other", errBackendDown, "having trouble analyzing"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := setupService(t)
			fx.chat.err = tc.err

			reply, err := fx.service.CameraChat(context.Background(), testCamera.ID, "Status?")
			if err != nil {
				t.Fatalf("CameraChat() error = %v, want in-band message", err)
			}
			if !strings.Contains(reply, tc.want) {
				t.Errorf("reply = %q, want substring %q", reply, tc.want)
			}
		})
	}
}

func TestCameraChatRejectsUnknownCamera(t *testing.T) {
	fx := setupService(t)

	if _, err := fx.service.CameraChat(context.Background(), 9999, "Status?"); err == nil {
		t.Error("CameraChat(unknown camera) succeeded, want error")
	}
}

func TestAssistantChatTruncatesToFiveLines(t *testing.T) {
	fx := setupService(t)
	fx.chat.reply = "one\ntwo\nthree\nfour\nfive\nsix\nseven"

	reply, err := fx.service.AssistantChat(context.Background(), "Summarize the situation", nil)
	if err != nil {
		t.Fatalf("AssistantChat() error = %v", err)
	}
	if got := strings.Count(reply, "\n"); got != 4 {
		t.Errorf("reply has %d newlines, want 4 (five lines)", got)
	}
	if !strings.HasSuffix(reply, "five") {
		t.Errorf("reply = %q, want truncation after the fifth line", reply)
	}
	if fx.chat.last.SystemPrompt != assistantSystemPrompt {
		t.Errorf("system prompt = %q", fx.chat.last.SystemPrompt)
	}
}

func TestAssistantChatFallsBackToCannedReply(t *testing.T) {
	fx := setupService(t)
	fx.chat.err = errBackendDown
	fixedDraws(fx.service, 0)

	reply, err := fx.service.AssistantChat(context.Background(), "Anything to report?", nil)
	if err != nil {
		t.Fatalf("AssistantChat() error = %v", err)
	}
	if reply != assistantFallbackReplies[0] {
		t.Errorf("reply = %q, want first canned reply for draw 0", reply)
	}
}
