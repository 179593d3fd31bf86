package stt

import (
	"context"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/mrsingh-rishi/meeting-report/config"
	"github.com/mrsingh-rishi/meeting-report/logger"
	"github.com/mrsingh-rishi/meeting-report/model"
)

// WhisperClient transcribes files through an OpenAI-compatible
// /audio/transcriptions endpoint.
type WhisperClient struct {
	client   *openai.Client
	model    string
	language string
	log      *logger.Logger
}

func NewWhisperClient(cfg config.Transcription, log *logger.Logger) (*WhisperClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("API key is required for the whisper backend")
	}
	if cfg.Model == "" {
		return nil, errors.New("model is required")
	}
	if log == nil {
		log = logger.Nop()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &WhisperClient{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		language: cfg.Language,
		log:      log.WithComponent("stt.whisper"),
	}, nil
}

func (w *WhisperClient) Transcribe(ctx context.Context, path string) (model.Transcript, error) {
	if _, err := os.Stat(path); err != nil {
		return model.Transcript{}, errors.Wrap(err, "reading audio file")
	}

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: path,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: w.language,
	})
	if err != nil {
		return model.Transcript{}, errors.Wrap(err, "whisper transcription")
	}

	w.log.Debug("transcription complete", map[string]interface{}{
		"language": resp.Language,
		"duration": resp.Duration,
	})
	return model.Transcript{Text: resp.Text, DetectedLanguage: resp.Language}, nil
}
