package api

import (
	"context"
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/mrsingh-rishi/meeting-report/apperr"
	"github.com/mrsingh-rishi/meeting-report/model"
	"github.com/mrsingh-rishi/meeting-report/pipeline"
	"github.com/mrsingh-rishi/meeting-report/report"
	"github.com/mrsingh-rishi/meeting-report/session"
	"github.com/mrsingh-rishi/meeting-report/types"
)

const audioField = "audioFile"

func requestContext(c *fiber.Ctx) context.Context {
	return pipeline.WithRequestID(c.UserContext(), requestID(c))
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(types.HealthResponse{
		Status:              "ok",
		GenerationAvailable: s.pipeline.GeneratorAvailable(),
	})
}

// POST /process-audio
func (s *Server) processAudio(c *fiber.Ctx) error {
	fh, err := c.FormFile(audioField)
	if err != nil {
		return apperr.MissingInput(audioField)
	}
	f, err := fh.Open()
	if err != nil {
		return apperr.InvalidInput("The uploaded file could not be read.", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return apperr.InvalidInput("The uploaded file could not be read.", err)
	}

	rep, err := s.pipeline.Process(requestContext(c), model.UploadedAudio{Filename: fh.Filename, Data: data})
	if err != nil {
		return err
	}

	resp := types.ProcessResponse{
		Transcript:  rep.Transcript.Text,
		Summary:     rep.Text(model.Summary),
		ActionItems: rep.Text(model.ActionItems),
		Language:    rep.Transcript.DetectedLanguage,
	}
	if len(rep.Failures) > 0 {
		resp.FailedAnalyses = make(map[string]string, len(rep.Failures))
		for kind, msg := range rep.Failures {
			resp.FailedAnalyses[string(kind)] = msg
		}
	}
	return c.JSON(resp)
}

// POST /custom-analysis
func (s *Server) customAnalysis(c *fiber.Ctx) error {
	var req types.CustomAnalysisRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.InvalidInput("The request body must be JSON.", err)
	}
	if err := validateBody(s.validate, req); err != nil {
		return err
	}

	result, err := s.pipeline.Analyze(requestContext(c), req.Transcript, req.CustomPrompt)
	if err != nil {
		return err
	}
	return c.JSON(types.CustomAnalysisResponse{Result: result.Text})
}

// POST /export-pdf
func (s *Server) exportDocument(c *fiber.Ctx) error {
	var req types.ExportRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.InvalidInput("The request body must be JSON.", err)
	}
	if err := validateBody(s.validate, req); err != nil {
		return err
	}
	format, err := report.ParseFormat(req.Format)
	if err != nil {
		return apperr.InvalidInput("Unsupported export format.", err)
	}

	doc, err := s.pipeline.Export(requestContext(c), format, req.Summary, req.ActionItems)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, doc.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, doc.Filename))
	return c.Send(doc.Data)
}

// GET /ws/custom-analysis
func (s *Server) streamAnalysis(conn *websocket.Conn) {
	sess, err := session.NewSession(conn, s.pipeline, s.log)
	if err != nil {
		s.log.WithError(err).Error("session setup failed")
		conn.Close()
		return
	}
	sess.Start()
}
