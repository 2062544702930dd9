package inbound

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"
)

type orderRunner struct {
	mu      sync.Mutex
	delay   time.Duration
	byPhone map[string][]string
}

func newOrderRunner(delay time.Duration) *orderRunner {
	return &orderRunner{delay: delay, byPhone: make(map[string][]string)}
}

func (r *orderRunner) Process(_ context.Context, msg InboundMessage) error {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byPhone[msg.Phone] = append(r.byPhone[msg.Phone], msg.Text)
	return nil
}

func (r *orderRunner) seen(phone string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.byPhone[phone]))
	copy(out, r.byPhone[phone])
	return out
}

func TestDispatcherKeepsPerPhoneOrder(t *testing.T) {
	runner := newOrderRunner(2 * time.Millisecond)
	d := NewDispatcher(nil, runner, 4)

	var want []string
	for i := 1; i <= 5; i++ {
		text := fmt.Sprintf("msg-%d", i)
		want = append(want, text)
		d.Enqueue(InboundMessage{Phone: "51911111111", Text: text})
		d.Enqueue(InboundMessage{Phone: "51922222222", Text: text})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	for _, phone := range []string{"51911111111", "51922222222"} {
		if got := runner.seen(phone); !reflect.DeepEqual(got, want) {
			t.Fatalf("order for %s = %v, want %v", phone, got, want)
		}
	}
}

func TestDispatcherBoundedConcurrencyStillDrains(t *testing.T) {
	runner := newOrderRunner(time.Millisecond)
	d := NewDispatcher(nil, runner, 1)

	for i := 0; i < 4; i++ {
		d.Enqueue(InboundMessage{Phone: fmt.Sprintf("519%08d", i), Text: "hola"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	total := 0
	for i := 0; i < 4; i++ {
		total += len(runner.seen(fmt.Sprintf("519%08d", i)))
	}
	if total != 4 {
		t.Fatalf("processed = %d, want 4", total)
	}
}

func TestDispatcherDropsAfterClose(t *testing.T) {
	runner := newOrderRunner(0)
	d := NewDispatcher(nil, runner, 2)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	d.Enqueue(InboundMessage{Phone: "51911111111", Text: "tarde"})
	time.Sleep(10 * time.Millisecond)
	if got := runner.seen("51911111111"); len(got) != 0 {
		t.Fatalf("message processed after close: %v", got)
	}
}
