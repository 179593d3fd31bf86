package llm

import (
	"fmt"
	"strings"

	"github.com/mrsingh-rishi/meeting-report/model"
)

// SystemInstructions is sent ahead of every prompt.
const SystemInstructions = "You analyse meeting transcripts. Stay faithful to what was said and never invent names, dates or commitments."

// NoneFound is the marker an empty action-items section must contain.
const NoneFound = "None found."

func SummaryPrompt(t model.Transcript) string {
	return fmt.Sprintf(`Write a concise, faithful summary of the following meeting transcript.
Cover the main topics, the positions taken and the outcome. Do not add information that is not in the transcript.

Transcript:
"%s"`, t.Text)
}

// ActionItemsPrompt asks for two labeled bulleted sections so the exported
// document is always well formed, even when a section is empty.
func ActionItemsPrompt(t model.Transcript) string {
	return fmt.Sprintf(`Analyze the following transcript and extract two lists in markdown format:
1. Under the heading "Action Items", a bulleted list of all specific action items or tasks.
2. Under the heading "Decisions", a bulleted list of all key decisions that were made.

If no action items or decisions are found, state %q for that section.

Transcript:
"%s"`, NoneFound, t.Text)
}

// CustomPrompt embeds a caller instruction and a transcript between labeled
// delimiters so the instruction cannot be mistaken for transcript content.
func CustomPrompt(instruction string, t model.Transcript) string {
	var b strings.Builder
	b.WriteString("Follow the instruction below using only the meeting transcript that follows it.\n\n")
	b.WriteString("=== INSTRUCTION ===\n")
	b.WriteString(instruction)
	b.WriteString("\n=== END INSTRUCTION ===\n\n")
	b.WriteString("=== TRANSCRIPT ===\n")
	b.WriteString(t.Text)
	b.WriteString("\n=== END TRANSCRIPT ===\n")
	return b.String()
}

// PromptFor returns the built-in prompt for kind. Custom analyses need an
// instruction and are built with CustomPrompt instead.
func PromptFor(kind model.AnalysisKind, t model.Transcript) (string, error) {
	switch kind {
	case model.Summary:
		return SummaryPrompt(t), nil
	case model.ActionItems:
		return ActionItemsPrompt(t), nil
	default:
		return "", fmt.Errorf("no built-in prompt for analysis kind %q", kind)
	}
}
