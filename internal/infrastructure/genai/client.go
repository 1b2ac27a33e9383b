package genai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"serafin/internal/bootstrap/config"
	"serafin/internal/bootstrap/logging"
	"serafin/internal/domain/observation"
	"serafin/internal/errs"
	"serafin/internal/ports"
)

const defaultChatSystemPrompt = "You are Artemis, a helpful AI assistant. Keep your responses concise, under 5 lines. Do not use symbols like * or #."

// Client talks to an OpenAI-compatible generative endpoint for both scene
// analysis and conversational responses. A client with no API key is still
// constructible; every call then fails with ErrMissingCredentials so the
// caller can route to the fallback path.
type Client struct {
	api    openai.Client
	cfg    config.GenAIConfig
	hasKey bool
}

var (
	_ ports.SceneAnalyzer = (*Client)(nil)
	_ ports.ChatResponder = (*Client)(nil)
)

func NewClient(cfg config.GenAIConfig) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		api:    openai.NewClient(opts...),
		cfg:    cfg,
		hasKey: strings.TrimSpace(cfg.APIKey) != "",
	}
}

func (c *Client) AnalyzeScene(ctx context.Context, frame ports.Frame, camera observation.Camera, at observation.TimeOfCapture) (observation.Analysis, error) {
	if ctx == nil {
		return observation.Analysis{}, errors.New("context is required")
	}
	if !c.hasKey {
		return observation.Analysis{}, ports.ErrMissingCredentials
	}
	if len(frame.Data) == 0 {
		return observation.Analysis{}, errors.New("frame is empty")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "infrastructure.genai"))

	response, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.cfg.SceneModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(scenePrompt(camera, at)),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: frameDataURL(frame),
				}),
			}),
		},
		Temperature: openai.Float(c.cfg.Temperature),
		MaxTokens:   openai.Int(c.cfg.MaxOutputTokens),
	})
	if err != nil {
		return observation.Analysis{}, classifyError(err)
	}
	if len(response.Choices) == 0 {
		return observation.Analysis{}, errors.New("scene response has no choices")
	}

	analysis, err := ParseAnalysis(response.Choices[0].Message.Content)
	if err != nil {
		return observation.Analysis{}, errs.Wrap(err, "parse scene response")
	}

	logging.Info(
		logCtx,
		"scene analyzed",
		slog.Int("camera_id", camera.ID),
		slog.String("severity", string(analysis.Severity)),
		slog.Bool("needs_attention", analysis.NeedsAttention),
	)
	return analysis, nil
}

func (c *Client) Respond(ctx context.Context, request ports.ChatRequest) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if !c.hasKey {
		return "", ports.ErrMissingCredentials
	}
	if strings.TrimSpace(request.Message) == "" {
		return "", errors.New("message is empty")
	}

	systemPrompt := request.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultChatSystemPrompt
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
	}
	if request.Frame != nil && len(request.Frame.Data) > 0 {
		messages = append(messages, openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(request.Message),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: frameDataURL(*request.Frame),
			}),
		}))
	} else {
		messages = append(messages, openai.UserMessage(request.Message))
	}

	response, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.cfg.ChatModel),
		Messages:    messages,
		Temperature: openai.Float(c.cfg.Temperature),
		MaxTokens:   openai.Int(c.cfg.MaxOutputTokens),
	})
	if err != nil {
		return "", classifyError(err)
	}
	if len(response.Choices) == 0 {
		return "", errors.New("chat response has no choices")
	}

	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

// scenePrompt asks for a structured assessment of one snapshot. The model is
// told the camera, the location and the time window so rush-hour context
// shapes the answer, and is pinned to the exact JSON shape ParseAnalysis
// expects.
func scenePrompt(camera observation.Camera, at observation.TimeOfCapture) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this traffic camera snapshot from %s in %s during %s.\n", camera.Name(), camera.Location(), at.Context())
	b.WriteString("Create a detailed summary of traffic conditions, any incidents, weather conditions, and overall safety.\n")
	b.WriteString("Be realistic and dynamic - don't just say everything is normal all the time.\n")
	b.WriteString("Consider time of day - rush hour (7-9am, 4-6pm) typically has more traffic.\n")
	b.WriteString("Consider weather visible in the image.\n")
	b.WriteString("Consider the day of week - weekends typically have less commuter traffic.\n\n")
	b.WriteString("Assess the situation severity and determine if immediate attention is needed.\n\n")
	b.WriteString("Format your response exactly like this JSON:\n")
	b.WriteString("{\n")
	b.WriteString("  \"title\": \"Your observation title here\",\n")
	b.WriteString("  \"content\": \"Your detailed analysis here\",\n")
	b.WriteString("  \"severity\": \"info|low|medium|high\",\n")
	b.WriteString("  \"needsAttention\": true|false\n")
	b.WriteString("}\n\n")
	b.WriteString("IMPORTANT: Use severity levels:\n")
	b.WriteString("- \"info\" for normal conditions with no concerns\n")
	b.WriteString("- \"low\" for minor slowdowns or weather starting to impact visibility\n")
	b.WriteString("- \"medium\" for significant congestion, visibility issues, or potential hazards\n")
	b.WriteString("- \"high\" for dangerous conditions, accidents, stranded vehicles, or severe weather impacts\n\n")
	b.WriteString("Set \"needsAttention\" to true for any \"medium\" or \"high\" severity situations, or occasionally for \"low\" if it requires monitoring.\n\n")
	b.WriteString("Only return valid JSON, nothing else.")
	return b.String()
}

func frameDataURL(frame ports.Frame) string {
	mime := frame.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(frame.Data)
}

// classifyError maps provider failures onto the port sentinels while keeping
// the provider message in the chain.
func classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return fmt.Errorf("%v: %w", err, ports.ErrUnauthorized)
		case 404:
			return fmt.Errorf("%v: %w", err, ports.ErrModelNotFound)
		case 429:
			return fmt.Errorf("%v: %w", err, ports.ErrQuotaExceeded)
		}
	}
	return errs.Wrap(err, "generative request")
}
