package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	gws "github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/mrsingh-rishi/meeting-report/config"
	"github.com/mrsingh-rishi/meeting-report/logger"
	"github.com/mrsingh-rishi/meeting-report/model"
	"github.com/mrsingh-rishi/meeting-report/queue"
)

const (
	DefaultDeepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	deepgramChunkSize       = 32 * 1024
)

var closeStreamMessage = []byte(`{"type":"CloseStream"}`)

// TranscriptionMessage is one Deepgram live result.
type TranscriptionMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string   `json:"transcript"`
			Confidence float64  `json:"confidence"`
			Languages  []string `json:"languages"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// DeepgramClient streams a stored file through Deepgram's live endpoint and
// joins the final segments. Each call opens its own connection.
type DeepgramClient struct {
	APIKey   string
	Endpoint string
	dialer   *gws.Dialer
	language string
	log      *logger.Logger
}

func NewDeepgramClient(cfg config.Transcription, log *logger.Logger) (*DeepgramClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("API key is required for the deepgram backend")
	}
	if log == nil {
		log = logger.Nop()
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultDeepgramEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "parsing deepgram endpoint")
	}
	q := u.Query()
	q.Set("model", cfg.Model)
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	if cfg.Language != "" {
		q.Set("language", cfg.Language)
	} else {
		q.Set("detect_language", "true")
	}
	u.RawQuery = q.Encode()

	return &DeepgramClient{
		APIKey:   cfg.APIKey,
		Endpoint: u.String(),
		dialer:   gws.DefaultDialer,
		language: cfg.Language,
		log:      log.WithComponent("stt.deepgram"),
	}, nil
}

func (dg *DeepgramClient) Transcribe(ctx context.Context, path string) (model.Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Transcript{}, errors.Wrap(err, "reading audio file")
	}
	defer f.Close()

	header := http.Header{
		"Authorization": {fmt.Sprintf("Token %s", dg.APIKey)},
	}
	conn, _, err := dg.dialer.DialContext(ctx, dg.Endpoint, header)
	if err != nil {
		return model.Transcript{}, errors.Wrap(err, "deepgram dial")
	}
	defer conn.Close()

	segments := queue.New[string]()
	var detected string

	g, gctx := errgroup.WithContext(ctx)
	// unblock the reader on deadline or when the sender fails
	stop := context.AfterFunc(gctx, func() { conn.Close() })
	defer stop()

	g.Go(func() error {
		return dg.sendAudio(gctx, conn, f)
	})
	g.Go(func() error {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if gws.IsCloseError(err, gws.CloseNormalClosure) {
					return nil
				}
				if ctx.Err() != nil {
					return errors.Wrap(ctx.Err(), "deepgram transcription")
				}
				return errors.Wrap(err, "reading deepgram response")
			}
			for _, result := range parseDeepgramMessage(msg) {
				if !result.IsFinal || len(result.Channel.Alternatives) == 0 {
					continue
				}
				alt := result.Channel.Alternatives[0]
				if alt.Transcript != "" {
					segments.Enqueue(alt.Transcript)
				}
				if detected == "" && len(alt.Languages) > 0 {
					detected = alt.Languages[0]
				}
			}
		}
	})
	if err := g.Wait(); err != nil {
		return model.Transcript{}, err
	}

	if detected == "" {
		detected = dg.language
	}
	text := strings.Join(segments.Drain(), " ")
	dg.log.Debug("transcription complete", map[string]interface{}{"chars": len(text), "language": detected})
	return model.Transcript{Text: text, DetectedLanguage: detected}, nil
}

// sendAudio writes the file in binary chunks and asks Deepgram to flush and
// close the stream.
func (dg *DeepgramClient) sendAudio(ctx context.Context, conn *gws.Conn, r io.Reader) error {
	buf := make([]byte, deepgramChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			if werr := conn.WriteMessage(gws.BinaryMessage, buf[:n]); werr != nil {
				return errors.Wrap(werr, "deepgram write")
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "reading audio file")
		}
	}
	if err := conn.WriteMessage(gws.TextMessage, closeStreamMessage); err != nil {
		return errors.Wrap(err, "deepgram close stream")
	}
	return nil
}

// parseDeepgramMessage accepts a single result object or an array of them.
func parseDeepgramMessage(msg []byte) []TranscriptionMessage {
	if len(msg) == 0 {
		return nil
	}
	switch msg[0] {
	case '[':
		var arr []TranscriptionMessage
		if err := json.Unmarshal(msg, &arr); err != nil {
			return nil
		}
		return arr
	case '{':
		var resp TranscriptionMessage
		if err := json.Unmarshal(msg, &resp); err != nil {
			return nil
		}
		return []TranscriptionMessage{resp}
	default:
		return nil
	}
}
