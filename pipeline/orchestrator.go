// Package pipeline sequences the per-request stages of the meeting report
// service: store the upload, transcribe it, analyse the transcript and
// assemble the report, removing the stored upload on every exit path.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/mrsingh-rishi/meeting-report/apperr"
	"github.com/mrsingh-rishi/meeting-report/artifact"
	"github.com/mrsingh-rishi/meeting-report/config"
	"github.com/mrsingh-rishi/meeting-report/llm"
	"github.com/mrsingh-rishi/meeting-report/logger"
	"github.com/mrsingh-rishi/meeting-report/model"
	"github.com/mrsingh-rishi/meeting-report/report"
	"github.com/mrsingh-rishi/meeting-report/stt"
	"github.com/mrsingh-rishi/meeting-report/workers"
)

// Deps are the long-lived handles shared by every request.
type Deps struct {
	Store       *artifact.Store
	Transcriber stt.Transcriber
	Generator   llm.Generator
	// GeneratorErr is the startup failure of the generation backend. When set,
	// every operation that needs Generator fails with a configuration error.
	GeneratorErr error
	Renderer     *report.Renderer
	Logger       *logger.Logger
}

type Options struct {
	TranscribeTimeout time.Duration
	GenerateTimeout   time.Duration
	TranscribeWorkers int
	GenerateWorkers   int
	Policy            string
}

// OptionsFromConfig maps service configuration onto pipeline options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TranscribeTimeout: cfg.Transcription.Timeout,
		GenerateTimeout:   cfg.Generation.Timeout,
		TranscribeWorkers: cfg.Transcription.Workers,
		GenerateWorkers:   cfg.Generation.Workers,
		Policy:            cfg.Pipeline.AnalysisPolicy,
	}
}

// reportKinds are the analyses produced for every upload.
var reportKinds = []model.AnalysisKind{model.Summary, model.ActionItems}

type Orchestrator struct {
	store        *artifact.Store
	transcriber  stt.Transcriber
	generator    llm.Generator
	generatorErr error
	renderer     *report.Renderer
	log          *logger.Logger

	// rejected latches a credential the backend refused at request time.
	rejected atomic.Pointer[apperr.Error]

	opts    Options
	sttPool *workers.Pool
	genPool *workers.Pool
}

func New(deps Deps, opts Options) (*Orchestrator, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("artifact store is required")
	}
	if deps.Transcriber == nil {
		return nil, fmt.Errorf("transcriber is required")
	}
	if deps.Generator == nil && deps.GeneratorErr == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if deps.Renderer == nil {
		deps.Renderer = report.NewRenderer()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	switch opts.Policy {
	case "":
		opts.Policy = config.PolicyAllOrNothing
	case config.PolicyAllOrNothing, config.PolicyPartial:
	default:
		return nil, fmt.Errorf("unknown analysis policy %q", opts.Policy)
	}
	if opts.TranscribeTimeout <= 0 || opts.GenerateTimeout <= 0 {
		return nil, fmt.Errorf("transcribe and generate timeouts must be positive")
	}

	sttPool, err := workers.NewPool("transcription", opts.TranscribeWorkers, deps.Logger)
	if err != nil {
		return nil, err
	}
	genPool, err := workers.NewPool("generation", opts.GenerateWorkers, deps.Logger)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		store:        deps.Store,
		transcriber:  deps.Transcriber,
		generator:    deps.Generator,
		generatorErr: deps.GeneratorErr,
		renderer:     deps.Renderer,
		log:          deps.Logger.WithComponent("pipeline"),
		opts:         opts,
		sttPool:      sttPool,
		genPool:      genPool,
	}, nil
}

func (o *Orchestrator) Start() {
	o.sttPool.Start()
	o.genPool.Start()
}

// Stop waits for in-flight backend calls and stops the pools.
func (o *Orchestrator) Stop() {
	o.sttPool.Stop()
	o.genPool.Stop()
}

// GeneratorAvailable reports whether the generation backend was configured
// and its credential has not been rejected.
func (o *Orchestrator) GeneratorAvailable() bool {
	return o.generatorFailure() == nil
}

func (o *Orchestrator) generatorFailure() error {
	if o.generatorErr != nil {
		return apperr.Configuration(o.generatorErr)
	}
	if rejected := o.rejected.Load(); rejected != nil {
		return rejected
	}
	return nil
}

// Process runs an upload through every stage and returns the report. The
// stored upload is removed before Process returns, whatever the outcome.
// Cancellation of ctx is not propagated to backend calls; their own
// deadlines are.
func (o *Orchestrator) Process(ctx context.Context, upload model.UploadedAudio) (*model.Report, error) {
	ctx = context.WithoutCancel(ctx)
	requestID := RequestID(ctx)
	ctx = WithRequestID(ctx, requestID)
	log := o.requestLogger(requestID)

	if len(upload.Data) == 0 {
		return nil, apperr.MissingInput("audioFile")
	}
	if err := o.generatorFailure(); err != nil {
		return nil, err
	}

	path, err := o.save(ctx, requestID, upload)
	if err != nil {
		log.WithError(err).Error("storing upload failed", stageField(StageStore))
		return nil, err
	}
	defer o.cleanup(ctx, requestID, path)

	transcript, err := o.transcribe(ctx, requestID, path)
	if err != nil {
		log.WithError(err).Error("transcription failed", stageField(StageTranscribe))
		return nil, err
	}

	analyses, failures, err := o.analyze(ctx, requestID, transcript)
	if err != nil {
		log.WithError(err).Error("analysis failed", stageField(StageAnalyze))
		return nil, err
	}

	_, span := startStage(ctx, requestID, StageAssemble)
	rep := report.Assemble(transcript, analyses)
	if len(failures) > 0 {
		rep.Failures = failures
	}
	span.end(nil)

	log.Info("upload processed", map[string]interface{}{
		"transcript_chars": len(transcript.Text),
		"analyses":         len(rep.Analyses),
		"failed":           len(failures),
	})
	return &rep, nil
}

// Analyze runs a caller instruction against a caller-supplied transcript.
func (o *Orchestrator) Analyze(ctx context.Context, transcript, instruction string) (model.AnalysisResult, error) {
	return o.StreamAnalyze(ctx, transcript, instruction, nil)
}

// StreamAnalyze is Analyze that also emits complete sentences on sentences
// while the text is generated. A generator that cannot stream emits the
// whole text once. sentences may be nil.
func (o *Orchestrator) StreamAnalyze(ctx context.Context, transcript, instruction string, sentences chan<- string) (model.AnalysisResult, error) {
	ctx = context.WithoutCancel(ctx)
	requestID := RequestID(ctx)
	ctx = WithRequestID(ctx, requestID)

	if strings.TrimSpace(transcript) == "" {
		return model.AnalysisResult{}, apperr.MissingInput("transcript")
	}
	if strings.TrimSpace(instruction) == "" {
		return model.AnalysisResult{}, apperr.MissingInput("custom_prompt")
	}
	if err := o.generatorFailure(); err != nil {
		return model.AnalysisResult{}, err
	}

	prompt := llm.CustomPrompt(instruction, model.Transcript{Text: transcript})
	text, err := o.generate(ctx, requestID, model.Custom, prompt, sentences)
	if err != nil {
		o.requestLogger(requestID).WithError(err).Error("custom analysis failed", stageField(StageGenerate))
		return model.AnalysisResult{}, err
	}
	return model.AnalysisResult{Kind: model.Custom, Text: text}, nil
}

// Export renders previously produced summary and action-item text. It never
// touches the artifact store.
func (o *Orchestrator) Export(ctx context.Context, format report.Format, summary, actionItems string) (model.RenderedDocument, error) {
	requestID := RequestID(ctx)
	_, span := startStage(ctx, requestID, StageRender, attribute.String("export.format", string(format)))

	doc, err := o.renderer.Render(format, summary, actionItems)
	if err != nil {
		err = apperr.Render(err)
		span.end(err)
		o.requestLogger(requestID).WithError(err).Error("export failed", stageField(StageRender))
		return model.RenderedDocument{}, err
	}
	span.end(nil)
	return doc, nil
}

func (o *Orchestrator) save(ctx context.Context, requestID string, upload model.UploadedAudio) (string, error) {
	_, span := startStage(ctx, requestID, StageStore, attribute.Int("upload.bytes", len(upload.Data)))
	path, err := o.store.Save(upload.Filename, upload.Data)
	if err != nil {
		err = apperr.Internal(errors.Wrap(err, "storing upload"))
	}
	span.end(err)
	return path, err
}

// cleanup removes the stored upload. Backend panics come back from the
// worker pools as errors, so this runs on every exit path.
func (o *Orchestrator) cleanup(ctx context.Context, requestID, path string) {
	_, span := startStage(ctx, requestID, StageCleanup)
	err := o.store.Remove(path)
	span.end(err)
	if err != nil {
		o.requestLogger(requestID).WithError(err).Error("removing upload failed", stageField(StageCleanup))
	}
}

func (o *Orchestrator) transcribe(ctx context.Context, requestID, path string) (model.Transcript, error) {
	ctx, span := startStage(ctx, requestID, StageTranscribe)
	ctx, cancel := context.WithTimeout(ctx, o.opts.TranscribeTimeout)
	defer cancel()

	t, err := workers.Do(ctx, o.sttPool, func(ctx context.Context) (model.Transcript, error) {
		return o.transcriber.Transcribe(ctx, path)
	})
	if err != nil {
		err = apperr.Transcription(o.deadline(ctx, err, o.opts.TranscribeTimeout))
	}
	span.end(err)
	return t, err
}

// analyze runs every report kind concurrently. Under the all-or-nothing
// policy the first failure fails the request; under the partial policy
// failed kinds are returned in failures and the request only fails when
// every kind failed.
func (o *Orchestrator) analyze(ctx context.Context, requestID string, t model.Transcript) ([]model.AnalysisResult, map[model.AnalysisKind]string, error) {
	ctx, span := startStage(ctx, requestID, StageAnalyze)

	results := make([]model.AnalysisResult, len(reportKinds))
	errs := make([]error, len(reportKinds))
	allOrNothing := o.opts.Policy == config.PolicyAllOrNothing

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range reportKinds {
		i, kind := i, kind
		g.Go(func() error {
			prompt, err := llm.PromptFor(kind, t)
			if err != nil {
				errs[i] = apperr.Internal(err)
				return errs[i]
			}
			text, err := o.generate(gctx, requestID, kind, prompt, nil)
			if err != nil {
				errs[i] = err
				if allOrNothing {
					return err
				}
				return nil
			}
			results[i] = model.AnalysisResult{Kind: kind, Text: text}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.end(err)
		return nil, nil, err
	}

	var (
		ok       []model.AnalysisResult
		failures map[model.AnalysisKind]string
		firstErr error
	)
	for i, kind := range reportKinds {
		if errs[i] == nil {
			ok = append(ok, results[i])
			continue
		}
		if failures == nil {
			failures = make(map[model.AnalysisKind]string)
		}
		failures[kind] = apperr.From(errs[i]).Detail()
		if firstErr == nil {
			firstErr = errs[i]
		}
		o.requestLogger(requestID).WithError(errs[i]).Warn("analysis skipped", map[string]interface{}{
			logger.FieldStage: StageGenerate,
			"kind":            string(kind),
		})
	}
	if len(ok) == 0 {
		span.end(firstErr)
		return nil, nil, firstErr
	}
	span.end(nil)
	return ok, failures, nil
}

func (o *Orchestrator) generate(ctx context.Context, requestID string, kind model.AnalysisKind, prompt string, sentences chan<- string) (string, error) {
	ctx, span := startStage(ctx, requestID, StageGenerate, attribute.String(attrKind, string(kind)))
	ctx, cancel := context.WithTimeout(ctx, o.opts.GenerateTimeout)
	defer cancel()

	text, err := workers.Do(ctx, o.genPool, func(ctx context.Context) (string, error) {
		if sentences == nil {
			return o.generator.Generate(ctx, prompt)
		}
		if sg, ok := o.generator.(llm.StreamGenerator); ok {
			return sg.Stream(ctx, prompt, sentences)
		}
		text, err := o.generator.Generate(ctx, prompt)
		if err != nil {
			return "", err
		}
		select {
		case sentences <- text:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return text, nil
	})
	if err == nil && strings.TrimSpace(text) == "" {
		err = llm.ErrEmptyResponse
	}
	switch {
	case err == nil:
	case llm.IsCredentialError(err):
		cfgErr := apperr.Configuration(err)
		o.rejected.CompareAndSwap(nil, cfgErr)
		err = cfgErr
	default:
		err = apperr.Generation(kind.Label(), o.deadline(ctx, err, o.opts.GenerateTimeout))
	}
	span.end(err)
	return text, err
}

// deadline rewrites err when the stage deadline was hit so callers see the
// timeout rather than a transport error.
func (o *Orchestrator) deadline(ctx context.Context, err error, limit time.Duration) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Wrapf(err, "timed out after %s", limit)
	}
	return err
}

func (o *Orchestrator) requestLogger(requestID string) *logger.Logger {
	return o.log.WithFields(map[string]interface{}{logger.FieldRequestID: requestID})
}

func stageField(stage string) map[string]interface{} {
	return map[string]interface{}{logger.FieldStage: stage}
}
