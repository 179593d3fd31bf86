// Package stt wraps the speech-to-text backends behind one Transcriber
// interface. A backend is chosen once at startup and shared by all requests.
package stt

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/meeting-report/config"
	"github.com/mrsingh-rishi/meeting-report/logger"
	"github.com/mrsingh-rishi/meeting-report/model"
)

//go:generate mockgen -destination=../mocks/mock_transcriber.go -package=mocks github.com/mrsingh-rishi/meeting-report/stt Transcriber

// Transcriber converts a stored audio file into a transcript. Implementations
// must be safe for concurrent use.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (model.Transcript, error)
}

// New returns the backend selected by cfg.Backend.
func New(cfg config.Transcription, log *logger.Logger) (Transcriber, error) {
	switch cfg.Backend {
	case config.BackendWhisper:
		return NewWhisperClient(cfg, log)
	case config.BackendDeepgram:
		return NewDeepgramClient(cfg, log)
	default:
		return nil, errors.Errorf("unknown transcription backend %q", cfg.Backend)
	}
}
