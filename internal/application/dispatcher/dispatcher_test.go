package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/garyjia/ethics-review/internal/domain/event"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func (m *mockLogger) HasInfo(msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, info := range m.infos {
		if info == msg {
			return true
		}
	}
	return false
}

func TestSubscribeNamed(t *testing.T) {
	t.Run("lists handlers without their funcs", func(t *testing.T) {
		d := NewDispatcher()
		called := false
		d.SubscribeNamed(event.TypeSubmitted, "notifier", func(ctx context.Context, evt *event.Event) error {
			called = true
			return nil
		})

		if err := d.Dispatch(context.Background(), event.NewEvent(event.TypeSubmitted, 1, nil)); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
		if !called {
			t.Error("expected handler to be called")
		}

		handlers := d.ListHandlers(event.TypeSubmitted)
		if len(handlers) != 1 || handlers[0].Name != "notifier" || handlers[0].Handler != nil {
			t.Errorf("unexpected handlers: %+v", handlers)
		}
		if got := d.ListHandlers(event.TypeStalled); len(got) != 0 {
			t.Errorf("unexpected stalled handlers: %+v", got)
		}
	})

	t.Run("handlers run in registration order", func(t *testing.T) {
		d := NewDispatcher()
		var order []string
		for _, name := range []string{"first", "second", "third"} {
			n := name
			d.SubscribeNamed(event.TypeAdvanced, n, func(ctx context.Context, evt *event.Event) error {
				order = append(order, n)
				return nil
			})
		}

		if err := d.Dispatch(context.Background(), event.NewEvent(event.TypeAdvanced, 1, nil)); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
		if fmt.Sprint(order) != "[first second third]" {
			t.Errorf("order = %v", order)
		}
	})
}

func TestSubscribeAll(t *testing.T) {
	d := NewDispatcher()
	var count atomic.Int32
	d.SubscribeAll(event.AllTypes(), "notifier", func(ctx context.Context, evt *event.Event) error {
		count.Add(1)
		return nil
	})

	for _, typ := range event.AllTypes() {
		if err := d.Dispatch(context.Background(), event.NewEvent(typ, 1, nil)); err != nil {
			t.Fatalf("dispatch %s failed: %v", typ, err)
		}
	}

	if got := int(count.Load()); got != len(event.AllTypes()) {
		t.Errorf("handler called %d times, want %d", got, len(event.AllTypes()))
	}
}

func TestDispatch(t *testing.T) {
	t.Run("stops at first error", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		secondCalled := false
		boom := errors.New("boom")

		d.SubscribeNamed(event.TypeRejected, "failing", func(ctx context.Context, evt *event.Event) error {
			return boom
		})
		d.SubscribeNamed(event.TypeRejected, "after", func(ctx context.Context, evt *event.Event) error {
			secondCalled = true
			return nil
		})

		err := d.Dispatch(context.Background(), event.NewEvent(event.TypeRejected, 1, nil))
		if !errors.Is(err, boom) {
			t.Errorf("expected wrapped boom error, got %v", err)
		}
		if secondCalled {
			t.Error("handler after failure should not run")
		}
		if logger.ErrorCount() != 1 {
			t.Errorf("expected 1 error log, got %d", logger.ErrorCount())
		}
	})

	t.Run("recovers handler panic", func(t *testing.T) {
		d := NewDispatcher(WithLogger(&mockLogger{}))
		d.SubscribeNamed(event.TypeAdvanced, "panicky", func(ctx context.Context, evt *event.Event) error {
			panic("unexpected")
		})

		err := d.Dispatch(context.Background(), event.NewEvent(event.TypeAdvanced, 1, nil))
		if err == nil {
			t.Fatal("expected error from panicking handler")
		}
	})

	t.Run("no handlers is not an error", func(t *testing.T) {
		d := NewDispatcher()
		if err := d.Dispatch(context.Background(), event.NewEvent(event.TypeResubmitted, 1, nil)); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestClose(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))

	if err := d.Close(); err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	if err := d.Close(); err == nil {
		t.Error("second close should fail")
	}
	if err := d.Dispatch(context.Background(), event.NewEvent(event.TypeSubmitted, 1, nil)); !errors.Is(err, ErrClosed) {
		t.Errorf("dispatch after close error = %v, want ErrClosed", err)
	}
	if !logger.HasInfo("Dispatcher closed") {
		t.Error("expected close to be logged")
	}
}

func TestConcurrency(t *testing.T) {
	d := NewDispatcher()
	var count atomic.Int64
	d.SubscribeNamed(event.TypeAdvanced, "counter", func(ctx context.Context, evt *event.Event) error {
		count.Add(1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_ = d.Dispatch(context.Background(), event.NewEvent(event.TypeAdvanced, id, nil))
		}(int64(i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.SubscribeNamed(event.TypeStalled, "noop", func(ctx context.Context, evt *event.Event) error { return nil })
		}()
	}
	wg.Wait()

	if got := count.Load(); got != 50 {
		t.Errorf("expected 50 calls, got %d", got)
	}
}
