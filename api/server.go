// Package api exposes the meeting report pipeline over HTTP and websocket.
package api

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"

	"github.com/mrsingh-rishi/meeting-report/config"
	"github.com/mrsingh-rishi/meeting-report/logger"
	"github.com/mrsingh-rishi/meeting-report/model"
	"github.com/mrsingh-rishi/meeting-report/report"
)

// Pipeline is the request processing the handlers delegate to.
type Pipeline interface {
	Process(ctx context.Context, upload model.UploadedAudio) (*model.Report, error)
	Analyze(ctx context.Context, transcript, instruction string) (model.AnalysisResult, error)
	StreamAnalyze(ctx context.Context, transcript, instruction string, sentences chan<- string) (model.AnalysisResult, error)
	Export(ctx context.Context, format report.Format, summary, actionItems string) (model.RenderedDocument, error)
	GeneratorAvailable() bool
}

type Server struct {
	app      *fiber.App
	pipeline Pipeline
	validate *validator.Validate
	log      *logger.Logger
}

func NewServer(cfg config.Server, p Pipeline, log *logger.Logger) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("api")

	bodyLimit := cfg.BodyLimitMB
	if bodyLimit <= 0 {
		bodyLimit = 100
	}
	origins := cfg.AllowOrigins
	if origins == "" {
		origins = "*"
	}

	app := fiber.New(fiber.Config{
		AppName:               "meeting-report",
		BodyLimit:             bodyLimit * 1024 * 1024,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(log),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{AllowOrigins: origins}))

	s := &Server{app: app, pipeline: p, validate: newValidator(), log: log}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.app.Get("/health", s.health)
	s.app.Post("/process-audio", s.processAudio)
	s.app.Post("/custom-analysis", s.customAnalysis)
	s.app.Post("/export-pdf", s.exportDocument)

	// require a websocket upgrade on /ws
	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws/custom-analysis", websocket.New(s.streamAnalysis))
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(port int) error {
	s.log.Info("listening", map[string]interface{}{"port": port})
	return s.app.Listen(fmt.Sprintf(":%d", port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
