package llm

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/mrsingh-rishi/meeting-report/config"
	"github.com/mrsingh-rishi/meeting-report/logger"
)

// ErrEmptyResponse is returned when the backend produced no text.
var ErrEmptyResponse = errors.New("generation backend returned an empty response")

var sentenceRe = regexp.MustCompile(`[^\.!\?]*[\.!\?]`)

// OpenAIClient talks to any OpenAI-compatible chat completion endpoint,
// including Gemini's. The underlying client is shared by all requests;
// every call sends its own message list.
type OpenAIClient struct {
	client             *openai.Client
	provider           string
	model              string
	systemInstructions string
	log                *logger.Logger
}

var _ StreamGenerator = (*OpenAIClient)(nil)

func NewOpenAIClient(cfg config.Generation, log *logger.Logger) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.Errorf("API key is required for generation provider %q", cfg.Provider)
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

	return &OpenAIClient{
		client:             openai.NewClientWithConfig(clientCfg),
		provider:           cfg.Provider,
		model:              cfg.Model,
		systemInstructions: SystemInstructions,
		log:                log.WithComponent("llm"),
	}, nil
}

func (c *OpenAIClient) Model() string { return c.model }

// Verify checks that the credential is accepted by listing models.
func (c *OpenAIClient) Verify(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return errors.Wrapf(err, "verifying %s credentials", c.provider)
	}
	return nil
}

// IsCredentialError reports whether err is the backend rejecting the API key.
func IsCredentialError(err error) bool {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// Generate returns the full generated text for prompt.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	return c.Stream(ctx, prompt, nil)
}

// Stream sends prompt and reads the streamed answer, emitting every complete
// sentence on sentences when it is non-nil.
func (c *OpenAIClient) Stream(ctx context.Context, prompt string, sentences chan<- string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.systemInstructions},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream: true,
	}

	c.log.Debug("sending prompt", map[string]interface{}{"model": c.model, "prompt_chars": len(prompt)})
	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", errors.Wrap(err, "creating chat completion stream")
	}
	defer stream.Close()

	full := &strings.Builder{}
	buffer := &strings.Builder{}

	if err := c.readAndProcess(ctx, stream, full, buffer, sentences); err != nil {
		return "", err
	}
	if err := flushRemaining(ctx, buffer, sentences); err != nil {
		return "", err
	}

	text := strings.TrimSpace(full.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// readAndProcess receives every chunk, keeps the full text and emits
// complete sentences as they form.
func (c *OpenAIClient) readAndProcess(
	ctx context.Context,
	stream *openai.ChatCompletionStream,
	full *strings.Builder,
	buffer *strings.Builder,
	sentences chan<- string,
) error {
	for {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "generation stream cancelled")
		}
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "receiving chat completion chunk")
		}
		if len(resp.Choices) == 0 {
			continue
		}
		chunk := resp.Choices[0].Delta.Content
		if chunk == "" {
			continue
		}
		full.WriteString(chunk)

		if sentences == nil {
			continue
		}
		for _, s := range processChunk(buffer, chunk) {
			if err := emit(ctx, sentences, s); err != nil {
				return err
			}
		}
	}
}

// processChunk appends chunk to buffer and returns every complete sentence,
// leaving the unfinished tail in buffer.
func processChunk(buffer *strings.Builder, chunk string) []string {
	buffer.WriteString(chunk)
	text := buffer.String()

	var out []string
	for {
		loc := sentenceRe.FindStringIndex(text)
		if loc == nil {
			break
		}
		sentence := strings.TrimSpace(text[:loc[1]])
		if sentence != "" {
			out = append(out, sentence)
		}
		text = text[loc[1]:]
	}

	buffer.Reset()
	buffer.WriteString(text)
	return out
}

func flushRemaining(ctx context.Context, buffer *strings.Builder, sentences chan<- string) error {
	leftover := strings.TrimSpace(buffer.String())
	buffer.Reset()
	if leftover == "" || sentences == nil {
		return nil
	}
	return emit(ctx, sentences, leftover)
}

func emit(ctx context.Context, sentences chan<- string, s string) error {
	select {
	case sentences <- s:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "generation stream cancelled")
	}
}
