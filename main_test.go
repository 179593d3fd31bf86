package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mrsingh-rishi/meeting-report/apperr"
	"github.com/mrsingh-rishi/meeting-report/config"
	"github.com/mrsingh-rishi/meeting-report/llm"
	"github.com/mrsingh-rishi/meeting-report/logger"
	"github.com/mrsingh-rishi/meeting-report/model"
	"github.com/mrsingh-rishi/meeting-report/pipeline"
)

// fakeModelsServer accepts only "good-key" on the model listing endpoint.
func fakeModelsServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)
			return
		}
		fmt.Fprint(w, `{"object":"list","data":[{"id":"test-model","object":"model"}]}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, generationURL, generationKey string) *config.Config {
	t.Helper()
	return &config.Config{
		Server:   config.Server{Port: 5001, BodyLimitMB: 1, AllowOrigins: "*"},
		Artifact: config.Artifact{Dir: t.TempDir()},
		Transcription: config.Transcription{
			Backend: config.BackendWhisper,
			APIKey:  "stt-key",
			Model:   "whisper-1",
			Timeout: time.Second,
			Workers: 1,
		},
		Generation: config.Generation{
			Provider:        config.ProviderOpenAI,
			APIKey:          generationKey,
			BaseURL:         generationURL + "/v1",
			Model:           "test-model",
			Timeout:         time.Second,
			Workers:         1,
			VerifyOnStartup: true,
		},
		Pipeline: config.Pipeline{AnalysisPolicy: config.PolicyAllOrNothing},
	}
}

func TestBuildDeps_MissingGenerationKey(t *testing.T) {
	srv := fakeModelsServer(t)
	cfg := testConfig(t, srv.URL, "")

	deps, err := buildDeps(context.Background(), cfg, logger.Nop())
	if err != nil {
		t.Fatalf("expected startup to continue without a generation key, got %v", err)
	}
	if deps.GeneratorErr == nil || deps.Generator != nil {
		t.Fatalf("expected cached generator error, got generator=%v err=%v", deps.Generator, deps.GeneratorErr)
	}

	orch, err := pipeline.New(deps, pipeline.OptionsFromConfig(cfg))
	if err != nil {
		t.Fatal(err)
	}
	orch.Start()
	defer orch.Stop()

	if orch.GeneratorAvailable() {
		t.Error("expected generator to be unavailable")
	}
	_, err = orch.Process(context.Background(), model.UploadedAudio{Filename: "a.wav", Data: []byte("RIFF")})
	if !apperr.IsCode(err, apperr.CodeConfiguration) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}

func TestBuildDeps_RejectedGenerationKey(t *testing.T) {
	srv := fakeModelsServer(t)

	deps, err := buildDeps(context.Background(), testConfig(t, srv.URL, "revoked-key"), logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if !llm.IsCredentialError(deps.GeneratorErr) {
		t.Errorf("expected rejected credential to be cached, got %v", deps.GeneratorErr)
	}
	if deps.Generator != nil {
		t.Error("expected no generator for a rejected key")
	}
}

func TestBuildDeps_AcceptedGenerationKey(t *testing.T) {
	srv := fakeModelsServer(t)

	deps, err := buildDeps(context.Background(), testConfig(t, srv.URL, "good-key"), logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if deps.GeneratorErr != nil || deps.Generator == nil {
		t.Errorf("expected a ready generator, got err=%v", deps.GeneratorErr)
	}
}

func TestBuildDeps_UnreachableGenerationKeepsGenerator(t *testing.T) {
	srv := fakeModelsServer(t)
	url := srv.URL
	srv.Close()

	deps, err := buildDeps(context.Background(), testConfig(t, url, "good-key"), logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if deps.GeneratorErr != nil || deps.Generator == nil {
		t.Errorf("expected generator to be kept when the backend is unreachable, got err=%v", deps.GeneratorErr)
	}
}

func TestBuildDeps_SkipsVerifyWhenDisabled(t *testing.T) {
	srv := fakeModelsServer(t)
	cfg := testConfig(t, srv.URL, "revoked-key")
	cfg.Generation.VerifyOnStartup = false

	deps, err := buildDeps(context.Background(), cfg, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if deps.GeneratorErr != nil {
		t.Errorf("expected no startup check, got %v", deps.GeneratorErr)
	}
}

func TestBuildDeps_MissingTranscriptionKeyIsFatal(t *testing.T) {
	srv := fakeModelsServer(t)
	cfg := testConfig(t, srv.URL, "good-key")
	cfg.Transcription.APIKey = ""

	if _, err := buildDeps(context.Background(), cfg, logger.Nop()); err == nil {
		t.Fatal("expected error for missing transcription key")
	}
}

func TestRunDoctor(t *testing.T) {
	srv := fakeModelsServer(t)

	var out bytes.Buffer
	if err := runDoctor(context.Background(), testConfig(t, srv.URL, "good-key"), &out); err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out.String())
	}
	if strings.Contains(out.String(), "[FAIL]") {
		t.Errorf("expected every check to pass, got:\n%s", out.String())
	}

	out.Reset()
	cfg := testConfig(t, srv.URL, "revoked-key")
	cfg.Transcription.APIKey = ""
	if err := runDoctor(context.Background(), cfg, &out); err == nil {
		t.Fatal("expected doctor to fail")
	}
	for _, want := range []string{"[FAIL] transcription", "[FAIL] generation", "[ OK ] artifact directory"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected %q in output:\n%s", want, out.String())
		}
	}
}
