package output

import (
	"errors"
	"sync"
	"testing"

	"github.com/mrsingh-rishi/meeting-report/types"
)

type recordingWriter struct {
	mu     sync.Mutex
	events []types.StreamEvent
	failAt int
}

func (w *recordingWriter) WriteJSON(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failAt > 0 && len(w.events)+1 == w.failAt {
		return errors.New("broken pipe")
	}
	w.events = append(w.events, v.(types.StreamEvent))
	return nil
}

func TestSocketOutput_WritesInOrder(t *testing.T) {
	w := &recordingWriter{}
	events := make(chan types.StreamEvent)
	out, err := NewSocketOutput(w, events, nil)
	if err != nil {
		t.Fatal(err)
	}
	out.Start()

	for _, text := range []string{"a", "b", "c"} {
		events <- types.StreamEvent{Event: types.EventSentence, Text: text}
	}
	close(events)
	if err := out.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(w.events) != 3 || w.events[0].Text != "a" || w.events[2].Text != "c" {
		t.Errorf("unexpected events %+v", w.events)
	}
}

func TestSocketOutput_KeepsDrainingAfterWriteError(t *testing.T) {
	w := &recordingWriter{failAt: 1}
	events := make(chan types.StreamEvent)
	out, err := NewSocketOutput(w, events, nil)
	if err != nil {
		t.Fatal(err)
	}
	out.Start()

	// none of these sends may block even though the socket is dead
	for i := 0; i < 5; i++ {
		events <- types.StreamEvent{Event: types.EventSentence}
	}
	close(events)

	if err := out.Wait(); err == nil {
		t.Error("expected write error")
	}
}

func TestSocketOutput_WaitWithoutStart(t *testing.T) {
	out, err := NewSocketOutput(&recordingWriter{}, make(chan types.StreamEvent), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := out.Wait(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestNewSocketOutput_Validation(t *testing.T) {
	if _, err := NewSocketOutput(nil, make(chan types.StreamEvent), nil); err == nil {
		t.Error("expected error for nil writer")
	}
	if _, err := NewSocketOutput(&recordingWriter{}, nil, nil); err == nil {
		t.Error("expected error for nil channel")
	}
}
