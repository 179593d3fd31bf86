// Package llm wraps the text-generation backend used to analyse transcripts.
package llm

import "context"

//go:generate mockgen -destination=../mocks/mock_generator.go -package=mocks github.com/mrsingh-rishi/meeting-report/llm Generator,StreamGenerator

// Generator turns one prompt into one generated text. Implementations must
// be safe for concurrent use and keep no state between calls.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// StreamGenerator additionally emits complete sentences on sentences while
// the text is being generated. The returned text is the full output.
type StreamGenerator interface {
	Generator
	Stream(ctx context.Context, prompt string, sentences chan<- string) (string, error)
}
