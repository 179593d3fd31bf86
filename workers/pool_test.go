package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewPool_Validation(t *testing.T) {
	if _, err := NewPool("", 1, nil); err == nil {
		t.Error("expected error for empty name")
	}
	if _, err := NewPool("gen", 0, nil); err == nil {
		t.Error("expected error for zero size")
	}
}

func TestDo_ReturnsResult(t *testing.T) {
	p, err := NewPool("gen", 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	p.Start()
	defer p.Stop()

	got, err := Do(context.Background(), p, func(ctx context.Context) (string, error) {
		return "done", nil
	})
	if err != nil || got != "done" {
		t.Errorf("expected done, got %q (%v)", got, err)
	}

	boom := errors.New("boom")
	_, err = Do(context.Background(), p, func(ctx context.Context) (int, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	const size = 2
	p, err := NewPool("stt", size, nil)
	if err != nil {
		t.Fatal(err)
	}
	p.Start()
	defer p.Stop()

	var running, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Submit(context.Background(), func(ctx context.Context) error {
				n := atomic.AddInt32(&running, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if peak > size {
		t.Errorf("expected at most %d concurrent jobs, saw %d", size, peak)
	}
}

func TestPool_SubmitHonorsContext(t *testing.T) {
	p, err := NewPool("gen", 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	// not started: no worker will ever take the job
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var ran bool
	err = p.Submit(ctx, func(ctx context.Context) error {
		ran = true
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if ran {
		t.Error("job should not have run")
	}
}

func TestPool_SubmitAfterStop(t *testing.T) {
	p, err := NewPool("gen", 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	p.Start()
	p.Stop()
	p.Stop()

	err = p.Submit(context.Background(), func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrPoolStopped) {
		t.Errorf("expected ErrPoolStopped, got %v", err)
	}
}

func TestPool_RecoversJobPanic(t *testing.T) {
	p, err := NewPool("stt", 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	p.Start()
	defer p.Stop()

	_, err = Do(context.Background(), p, func(ctx context.Context) (string, error) {
		panic("decoder bug")
	})
	var perr *PanicError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PanicError, got %v", err)
	}
	if perr.Value != "decoder bug" || len(perr.Stack) == 0 {
		t.Errorf("unexpected panic error %+v", perr)
	}

	// the single worker must still serve jobs
	got, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		return 7, nil
	})
	if err != nil || got != 7 {
		t.Errorf("expected 7 after panic, got %d (%v)", got, err)
	}
}
