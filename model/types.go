package model

import "time"

// UploadedAudio is the raw audio payload of one upload request.
type UploadedAudio struct {
	Filename string
	Data     []byte
}

// Transcript represents text produced by a transcription backend.
type Transcript struct {
	Text             string `json:"text"`
	DetectedLanguage string `json:"language,omitempty"`
}

// AnalysisKind names the category of a generated text.
type AnalysisKind string

const (
	Summary     AnalysisKind = "summary"
	ActionItems AnalysisKind = "action_items"
	Custom      AnalysisKind = "custom"
)

// Label returns a human-readable name for the kind.
func (k AnalysisKind) Label() string {
	switch k {
	case ActionItems:
		return "action items"
	case Custom:
		return "custom analysis"
	default:
		return string(k)
	}
}

// AnalysisResult is the output of exactly one generation call.
type AnalysisResult struct {
	Kind AnalysisKind `json:"kind"`
	Text string       `json:"text"`
}

// Report aggregates a transcript with its analyses. It is never persisted.
type Report struct {
	Transcript Transcript
	Analyses   map[AnalysisKind]AnalysisResult
	// Failures holds the error text of analyses that failed when partial
	// results are allowed.
	Failures map[AnalysisKind]string
}

// Text returns the generated text for kind, or "" when it is absent.
func (r Report) Text(kind AnalysisKind) string {
	return r.Analyses[kind].Text
}

// RenderedDocument is an exported report document.
type RenderedDocument struct {
	Data        []byte
	Filename    string
	ContentType string
	GeneratedAt time.Time
}
