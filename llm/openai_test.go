package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mrsingh-rishi/meeting-report/config"
)

// fakeChatServer streams chunks as OpenAI-style server-sent events.
func fakeChatServer(t *testing.T, chunks []string, gotPrompt *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/models":
			if r.Header.Get("Authorization") != "Bearer test-key" {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"object":"list","data":[{"id":"test-model","object":"model"}]}`)
		case "/v1/chat/completions":
			body, _ := io.ReadAll(r.Body)
			var req struct {
				Messages []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
			}
			if err := json.Unmarshal(body, &req); err != nil {
				t.Errorf("bad request body: %v", err)
			}
			if gotPrompt != nil && len(req.Messages) > 0 {
				*gotPrompt = req.Messages[len(req.Messages)-1].Content
			}

			w.Header().Set("Content-Type", "text/event-stream")
			for _, c := range chunks {
				payload, _ := json.Marshal(map[string]any{
					"id":      "chatcmpl-1",
					"object":  "chat.completion.chunk",
					"created": 1,
					"model":   "test-model",
					"choices": []map[string]any{{"index": 0, "delta": map[string]string{"content": c}}},
				})
				fmt.Fprintf(w, "data: %s\n\n", payload)
			}
			fmt.Fprint(w, "data: [DONE]\n\n")
		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestClient(t *testing.T, url string) *OpenAIClient {
	t.Helper()
	c, err := NewOpenAIClient(config.Generation{
		Provider: config.ProviderOpenAI,
		APIKey:   "test-key",
		BaseURL:  url + "/v1",
		Model:    "test-model",
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	_, err := NewOpenAIClient(config.Generation{Provider: config.ProviderGemini, Model: "m"}, nil)
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestGenerate_ReturnsFullText(t *testing.T) {
	var prompt string
	srv := fakeChatServer(t, []string{"The team ", "agreed to ship. ", "Bob owns QA"}, &prompt)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	got, err := c.Generate(context.Background(), "summarise this")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "The team agreed to ship. Bob owns QA" {
		t.Errorf("unexpected text %q", got)
	}
	if prompt != "summarise this" {
		t.Errorf("expected prompt to be sent verbatim, got %q", prompt)
	}
}

func TestStream_EmitsSentences(t *testing.T) {
	srv := fakeChatServer(t, []string{"First point. Sec", "ond point! Trailing"}, nil)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	sentences := make(chan string, 10)
	text, err := c.Stream(context.Background(), "go", sentences)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	close(sentences)

	var got []string
	for s := range sentences {
		got = append(got, s)
	}
	want := []string{"First point.", "Second point!", "Trailing"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("expected sentences %v, got %v", want, got)
	}
	if text != "First point. Second point! Trailing" {
		t.Errorf("unexpected full text %q", text)
	}
}

func TestGenerate_EmptyOutputIsError(t *testing.T) {
	srv := fakeChatServer(t, []string{"", "  "}, nil)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if _, err := c.Generate(context.Background(), "x"); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestGenerate_BackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"quota exceeded","type":"rate_limit"}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Generate(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("expected quota error, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	srv := fakeChatServer(t, nil, nil)
	defer srv.Close()

	if err := newTestClient(t, srv.URL).Verify(context.Background()); err != nil {
		t.Errorf("expected valid key, got %v", err)
	}

	bad, err := NewOpenAIClient(config.Generation{APIKey: "wrong", BaseURL: srv.URL + "/v1", Model: "m"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := bad.Verify(context.Background()); err == nil {
		t.Error("expected verify to fail for a rejected key")
	}
}

func TestProcessChunk(t *testing.T) {
	buf := &strings.Builder{}
	if got := processChunk(buf, "Hello wor"); len(got) != 0 {
		t.Errorf("expected no sentence yet, got %v", got)
	}
	got := processChunk(buf, "ld. How are you? Fine")
	if len(got) != 2 || got[0] != "Hello world." || got[1] != "How are you?" {
		t.Errorf("unexpected sentences %v", got)
	}
	if buf.String() != " Fine" {
		t.Errorf("expected leftover %q, got %q", " Fine", buf.String())
	}
}

func TestIsCredentialError(t *testing.T) {
	srv := fakeChatServer(t, nil, nil)
	defer srv.Close()

	bad, err := NewOpenAIClient(config.Generation{APIKey: "wrong", BaseURL: srv.URL + "/v1", Model: "m"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	verifyErr := bad.Verify(context.Background())
	if !IsCredentialError(verifyErr) {
		t.Errorf("expected rejected key to be a credential error, got %v", verifyErr)
	}

	limited := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"quota exceeded","type":"rate_limit"}}`)
	}))
	defer limited.Close()

	_, genErr := newTestClient(t, limited.URL).Generate(context.Background(), "x")
	if genErr == nil || IsCredentialError(genErr) {
		t.Errorf("expected rate limit not to be a credential error, got %v", genErr)
	}
	if IsCredentialError(nil) || IsCredentialError(errors.New("dial tcp: refused")) {
		t.Error("expected plain errors not to be credential errors")
	}
}
