package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"copytoask/src/selection"
)

func TestPoolRunsCapture(t *testing.T) {
	p := New(0, func(ctx context.Context) selection.Captured {
		return selection.Captured{Text: "hello", Provenance: selection.ProvenanceAccessibility}
	})
	defer p.Close()

	done := make(chan selection.Captured, 1)
	if !p.Submit(context.Background(), func(c selection.Captured, err error) {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		done <- c
	}) {
		t.Fatal("Submit on idle pool should succeed")
	}
	select {
	case c := <-done:
		if c.Text != "hello" {
			t.Errorf("text = %q", c.Text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback not invoked")
	}
}

func TestPoolBackPressure(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 4)
	p := New(1, func(ctx context.Context) selection.Captured {
		started <- struct{}{}
		<-release
		return selection.Captured{Provenance: selection.ProvenanceNone}
	})

	cb := func(selection.Captured, error) {}
	if !p.Submit(context.Background(), cb) {
		t.Fatal("first submit should succeed")
	}
	<-started
	if !p.Submit(context.Background(), cb) {
		t.Fatal("second submit should fill the queue slot")
	}
	if p.Submit(context.Background(), cb) {
		t.Error("third submit should be dropped while worker and slot are busy")
	}
	close(release)
	p.Close()
}

func TestPoolExpiredJob(t *testing.T) {
	called := false
	p := New(1, func(ctx context.Context) selection.Captured {
		called = true
		return selection.Captured{}
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	errCh := make(chan error, 1)
	p.Submit(ctx, func(c selection.Captured, err error) {
		if !c.Empty() {
			t.Errorf("expired job should yield empty capture, got %+v", c)
		}
		errCh <- err
	})
	err := <-errCh
	p.Close()
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if called {
		t.Error("capture should not run for an expired job")
	}
}
