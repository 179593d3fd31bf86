// Package session serves streaming custom analyses over one websocket
// connection.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/mrsingh-rishi/meeting-report/apperr"
	"github.com/mrsingh-rishi/meeting-report/logger"
	"github.com/mrsingh-rishi/meeting-report/model"
	"github.com/mrsingh-rishi/meeting-report/output"
	"github.com/mrsingh-rishi/meeting-report/pipeline"
	"github.com/mrsingh-rishi/meeting-report/types"
)

// Conn is the subset of a websocket connection a session uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	Close() error
}

// Analyzer runs one custom analysis, emitting sentences as they form.
type Analyzer interface {
	StreamAnalyze(ctx context.Context, transcript, instruction string, sentences chan<- string) (model.AnalysisResult, error)
}

// Session reads analysis requests from a client and answers each with
// sentence events followed by a result or error event. Requests on one
// connection are handled in order.
type Session struct {
	ID           string
	ws           Conn
	analyzer     Analyzer
	events       chan types.StreamEvent
	OutputWorker *output.SocketOutput
	log          *logger.Logger

	ctx         context.Context
	cancel      context.CancelFunc
	cleanupOnce sync.Once
}

func NewSession(ws Conn, analyzer Analyzer, log *logger.Logger) (*Session, error) {
	if ws == nil {
		return nil, fmt.Errorf("connection is required")
	}
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer is required")
	}
	if log == nil {
		log = logger.Nop()
	}

	id := uuid.NewString()
	log = log.WithComponent("session").WithFields(map[string]interface{}{"session_id": id})
	events := make(chan types.StreamEvent)
	outputWorker, err := output.NewSocketOutput(ws, events, log)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:           id,
		ws:           ws,
		analyzer:     analyzer,
		events:       events,
		OutputWorker: outputWorker,
		log:          log,
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Start serves the connection until the client disconnects. It blocks and
// releases every resource before returning.
func (s *Session) Start() {
	defer s.CleanupResources()

	s.OutputWorker.Start()
	s.log.Info("session started")

	for {
		_, msg, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Info("session closed by client")
			} else {
				s.log.WithError(err).Warn("session read failed")
			}
			return
		}
		s.handle(msg)
	}
}

func (s *Session) handle(msg []byte) {
	var req types.CustomAnalysisRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		s.sendError(apperr.InvalidInput("Messages must be JSON objects with transcript and custom_prompt.", err))
		return
	}

	requestID := uuid.NewString()
	ctx := pipeline.WithRequestID(s.ctx, requestID)

	sentences := make(chan string)
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for text := range sentences {
			s.send(types.StreamEvent{Event: types.EventSentence, Text: text})
		}
	}()

	result, err := s.analyzer.StreamAnalyze(ctx, req.Transcript, req.CustomPrompt, sentences)
	close(sentences)
	<-forwarded

	if err != nil {
		s.sendError(err)
		return
	}
	s.send(types.StreamEvent{Event: types.EventResult, Result: result.Text})
}

func (s *Session) sendError(err error) {
	appErr := apperr.From(err)
	s.send(types.StreamEvent{
		Event:  types.EventError,
		Error:  appErr.Message,
		Code:   string(appErr.Code),
		Detail: appErr.Detail(),
	})
}

// send hands an event to the output worker unless the session is closing.
func (s *Session) send(ev types.StreamEvent) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// CleanupResources flushes pending events and releases the connection. It
// is safe to call more than once.
func (s *Session) CleanupResources() {
	s.cleanupOnce.Do(func() {
		close(s.events)
		if err := s.OutputWorker.Wait(); err != nil {
			s.log.WithError(err).Debug("pending events dropped")
		}
		s.OutputWorker.Stop()
		s.cancel()
		if s.ws != nil {
			s.ws.Close()
		}
		s.log.Info("session ended")
	})
}
