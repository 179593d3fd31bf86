package output

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mrsingh-rishi/meeting-report/logger"
	"github.com/mrsingh-rishi/meeting-report/types"
)

// JSONWriter is the write side of a websocket connection.
type JSONWriter interface {
	WriteJSON(v interface{}) error
}

// SocketOutput is the only writer on a connection: it drains an event
// channel and writes each event in order.
type SocketOutput struct {
	ctx     context.Context
	cancel  context.CancelFunc
	Events  <-chan types.StreamEvent
	ws      JSONWriter
	log     *logger.Logger
	done    chan struct{}
	once    sync.Once
	started atomic.Bool
	err     error
}

func NewSocketOutput(ws JSONWriter, events <-chan types.StreamEvent, log *logger.Logger) (*SocketOutput, error) {
	if ws == nil {
		return nil, fmt.Errorf("connection is required")
	}
	if events == nil {
		return nil, fmt.Errorf("events channel is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SocketOutput{
		ctx:    ctx,
		cancel: cancel,
		Events: events,
		ws:     ws,
		log:    log.WithComponent("output"),
		done:   make(chan struct{}),
	}, nil
}

// Start writes events until the channel closes or Stop is called.
func (o *SocketOutput) Start() {
	o.once.Do(func() {
		o.started.Store(true)
		go o.run()
	})
}

func (o *SocketOutput) run() {
	defer close(o.done)
	for {
		select {
		case <-o.ctx.Done():
			return
		case ev, ok := <-o.Events:
			if !ok {
				return
			}
			if err := o.ws.WriteJSON(ev); err != nil {
				o.log.WithError(err).Warn("socket write failed", map[string]interface{}{"event": ev.Event})
				o.err = err
				// keep draining so producers never block on a dead socket
				o.drain()
				return
			}
		}
	}
}

func (o *SocketOutput) drain() {
	for {
		select {
		case <-o.ctx.Done():
			return
		case _, ok := <-o.Events:
			if !ok {
				return
			}
		}
	}
}

// Wait blocks until every event has been written or writing stopped, and
// returns the first write error. It returns at once if Start was never
// called.
func (o *SocketOutput) Wait() error {
	if !o.started.Load() {
		return nil
	}
	<-o.done
	return o.err
}

func (o *SocketOutput) Stop() {
	o.cancel()
}
