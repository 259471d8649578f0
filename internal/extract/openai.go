package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"

	rlog "rapport/internal/log"
	"rapport/internal/report"
)

const systemPrompt = `Du extrahierst Auftragsdaten aus dem Sprachmemo eines Handwerkers.
Antworte ausschließlich mit einem JSON-Objekt mit den Feldern:
"kunde_name", "adresse", "problem_detail", "dringlichkeit", "netto", "datum".
"netto" ist der Nettobetrag in Euro als Zahl, "datum" im Format TT.MM.JJJJ.
Unbekannte Felder bleiben leere Strings.`

// OpenAIConfig configures the OpenAI collaborator.
type OpenAIConfig struct {
	APIKey string
	// Model is the chat model used for field extraction.
	Model              string
	TranscriptionModel string
	// Language hints the spoken language to the transcription model.
	Language    string
	BaseURL     string
	Temperature float32
	MaxRetries  int
	Logger      *slog.Logger
}

// OpenAI transcribes audio with Whisper and extracts fields with a chat model.
type OpenAI struct {
	client *openai.Client
	cfg    OpenAIConfig
	logger *slog.Logger
}

var (
	_ Transcriber = (*OpenAI)(nil)
	_ Extractor   = (*OpenAI)(nil)
)

func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("missing OpenAI API key")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.TranscriptionModel == "" {
		cfg.TranscriptionModel = openai.Whisper1
	}
	if cfg.Language == "" {
		cfg.Language = "de"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(oc),
		cfg:    cfg,
		logger: rlog.OrDefault(cfg.Logger, rlog.ComponentExtract),
	}, nil
}

func (o *OpenAI) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.cfg.TranscriptionModel,
		FilePath: filename,
		Reader:   audio,
		Language: o.cfg.Language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", filename, err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrEmptyTranscript
	}
	o.logger.InfoContext(ctx, "Audio transcribed", "file", filename, "chars", len(text))
	return text, nil
}

// Extract asks the chat model for the report fields. Unparsable answers
// are retried up to MaxRetries times.
func (o *OpenAI) Extract(ctx context.Context, transcript string) (report.Draft, error) {
	if strings.TrimSpace(transcript) == "" {
		return report.Draft{}, ErrEmptyTranscript
	}

	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxRetries; attempt++ {
		resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       o.cfg.Model,
			Temperature: o.cfg.Temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: transcript},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			o.logger.WarnContext(ctx, "Extraction request failed, retrying",
				"attempt", attempt, rlog.FieldError, err)
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = errors.New("no choices in completion")
			continue
		}

		d, err := DecodeDraft(resp.Choices[0].Message.Content)
		if err != nil {
			lastErr = err
			o.logger.WarnContext(ctx, "Model output not usable, retrying",
				"attempt", attempt, rlog.FieldError, err)
			continue
		}
		return d, nil
	}
	return report.Draft{}, fmt.Errorf("extract report fields: %w", lastErr)
}
