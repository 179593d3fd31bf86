// Package types holds the JSON shapes exchanged with HTTP and websocket
// clients.
package types

// ProcessResponse is returned by POST /process-audio.
type ProcessResponse struct {
	Transcript  string `json:"transcript"`
	Summary     string `json:"summary"`
	ActionItems string `json:"action_items"`
	Language    string `json:"language,omitempty"`
	// FailedAnalyses lists analyses that failed under the partial policy.
	FailedAnalyses map[string]string `json:"failed_analyses,omitempty"`
}

// CustomAnalysisRequest is the body of POST /custom-analysis and of every
// websocket message on /ws/custom-analysis.
type CustomAnalysisRequest struct {
	Transcript   string `json:"transcript" validate:"required"`
	CustomPrompt string `json:"custom_prompt" validate:"required"`
}

type CustomAnalysisResponse struct {
	Result string `json:"result"`
}

// ExportRequest is the body of POST /export-pdf. Format is "pdf" (default)
// or "txt".
type ExportRequest struct {
	Summary     string `json:"summary"`
	ActionItems string `json:"action_items"`
	Format      string `json:"format,omitempty"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Stream event names.
const (
	EventSentence = "sentence"
	EventResult   = "result"
	EventError    = "error"
)

// StreamEvent is one message written to a websocket client.
type StreamEvent struct {
	Event  string `json:"event"`
	Text   string `json:"text,omitempty"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
}

type HealthResponse struct {
	Status              string `json:"status"`
	GenerationAvailable bool   `json:"generation_available"`
}
