package discovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/notfartdev/zdoge-shielded-core/internal/field"
)

// fakeSource returns a fixed batch once, then nothing, with an optional
// forced error to exercise backoff.
type fakeSource struct {
	mu       sync.Mutex
	events   [][]Event
	callIdx  int
	failOnce bool
}

func (f *fakeSource) PollEvents(ctx context.Context) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOnce {
		f.failOnce = false
		return nil, errors.New("simulated rpc rejection")
	}
	if f.callIdx >= len(f.events) {
		return nil, nil
	}
	ev := f.events[f.callIdx]
	f.callIdx++
	return ev, nil
}

func TestDedupeAcrossPolls(t *testing.T) {
	ev := Event{Kind: EventShield, Commitment: field.FromUint64(1), TxHash: "0xabc"}
	src := &fakeSource{events: [][]Event{{ev}, {ev}}} // same event observed twice

	var mu sync.Mutex
	var got []Event
	cfg := Config{PollInterval: 10 * time.Millisecond, BatchWindow: 30 * time.Millisecond, DedupeCacheSize: 100, MaxBackoff: time.Second}
	loop := New(cfg, src, func(batch []Event) {
		mu.Lock()
		got = append(got, batch...)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	loop.Start(ctx)
	time.Sleep(100 * time.Millisecond)
	cancel()
	loop.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 deduplicated event, got %d", len(got))
	}
}

func TestStopFlushesPending(t *testing.T) {
	ev := Event{Kind: EventShield, Commitment: field.FromUint64(2), TxHash: "0xdef"}
	src := &fakeSource{events: [][]Event{{ev}}}

	var mu sync.Mutex
	var got []Event
	// A long batch window that would never fire on its own within the test.
	cfg := Config{PollInterval: 10 * time.Millisecond, BatchWindow: time.Hour, DedupeCacheSize: 100, MaxBackoff: time.Second}
	loop := New(cfg, src, func(batch []Event) {
		mu.Lock()
		got = append(got, batch...)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	loop.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	cancel()
	loop.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("expected Stop to flush the one pending event, got %d", len(got))
	}
}

func TestBackoffDoublesOnError(t *testing.T) {
	src := &fakeSource{failOnce: true}
	cfg := DefaultConfig()
	loop := New(cfg, src, func([]Event) {})
	loop.backoffTick()
	if loop.currentInterval() != cfg.PollInterval {
		t.Fatalf("expected first backoff to equal the base poll interval")
	}
	loop.backoffTick()
	if loop.currentInterval() != 2*cfg.PollInterval {
		t.Fatalf("expected second backoff to double")
	}
}
