package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mrsingh-rishi/meeting-report/artifact"
	"github.com/mrsingh-rishi/meeting-report/config"
	"github.com/mrsingh-rishi/meeting-report/llm"
	"github.com/mrsingh-rishi/meeting-report/logger"
	"github.com/mrsingh-rishi/meeting-report/pipeline"
	"github.com/mrsingh-rishi/meeting-report/report"
	"github.com/mrsingh-rishi/meeting-report/stt"
)

const verifyTimeout = 15 * time.Second

// buildDeps assembles the handles shared by every request. Only a broken
// transcription backend is fatal; a generation failure is kept in
// GeneratorErr and reported per request.
func buildDeps(ctx context.Context, cfg *config.Config, log *logger.Logger) (pipeline.Deps, error) {
	store, err := artifact.NewStore(cfg.Artifact.Dir)
	if err != nil {
		return pipeline.Deps{}, fmt.Errorf("initializing artifact store: %w", err)
	}

	transcriber, err := stt.New(cfg.Transcription, log)
	if err != nil {
		return pipeline.Deps{}, fmt.Errorf("initializing %s transcription: %w", cfg.Transcription.Backend, err)
	}
	log.Info("transcription backend ready", map[string]interface{}{"backend": cfg.Transcription.Backend, "model": cfg.Transcription.Model})

	deps := pipeline.Deps{
		Store:       store,
		Transcriber: transcriber,
		Renderer:    report.NewRenderer(),
		Logger:      log,
	}
	generator, err := newGenerator(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Warn("generation backend unavailable, analysis requests will fail")
		deps.GeneratorErr = err
		return deps, nil
	}
	deps.Generator = generator
	log.Info("generation backend ready", map[string]interface{}{"provider": cfg.Generation.Provider, "model": generator.Model()})
	return deps, nil
}

// newGenerator builds the generation client and, when configured, checks
// the credential against the backend once. Only a rejected credential
// disables generation; an unreachable backend is retried per request.
func newGenerator(ctx context.Context, cfg *config.Config, log *logger.Logger) (*llm.OpenAIClient, error) {
	generator, err := llm.NewOpenAIClient(cfg.Generation, log)
	if err != nil {
		return nil, err
	}
	if !cfg.Generation.VerifyOnStartup {
		return generator, nil
	}

	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()
	if err := generator.Verify(ctx); err != nil {
		if llm.IsCredentialError(err) {
			return nil, err
		}
		log.WithError(err).Warn("could not verify generation credential")
	}
	return generator, nil
}

// runDoctor checks every backend the service depends on and writes one line
// per check to out.
func runDoctor(ctx context.Context, cfg *config.Config, out io.Writer) error {
	ok := true
	check := func(name string, err error, detail string) {
		if err != nil {
			ok = false
			fmt.Fprintf(out, "[FAIL] %s: %v\n", name, err)
			return
		}
		fmt.Fprintf(out, "[ OK ] %s: %s\n", name, detail)
	}

	_, err := stt.New(cfg.Transcription, logger.Nop())
	check("transcription", err, cfg.Transcription.Backend+" / "+cfg.Transcription.Model)

	generator, err := llm.NewOpenAIClient(cfg.Generation, logger.Nop())
	if err == nil {
		vctx, cancel := context.WithTimeout(ctx, verifyTimeout)
		err = generator.Verify(vctx)
		cancel()
	}
	check("generation", err, cfg.Generation.Provider+" / "+cfg.Generation.Model)

	err = os.MkdirAll(cfg.Artifact.Dir, 0o755)
	check("artifact directory", err, cfg.Artifact.Dir)

	if !ok {
		return fmt.Errorf("some checks failed")
	}
	return nil
}
