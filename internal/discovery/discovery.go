// Package discovery implements the note-discovery loop (spec.md §4.7):
// a single poll goroutine reads Shield/Transfer/Unshield events from one
// LogSource, deduplicates what it sees, batches notifications over a short
// window, and backs off under RPC pressure. There are no separate
// per-event-kind monitors. The mutex-guarded
// collection and Config/NewX constructor shape follows the teacher's
// internal/mempool/mempool.go; the poll-loop/backoff shape is new (the
// teacher has no equivalent polling component) and is built in the same
// plain sync.Mutex + context.Context idiom the teacher uses elsewhere.
package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/notfartdev/zdoge-shielded-core/internal/field"
)

// EventKind names which pool event a log entry came from.
type EventKind uint8

const (
	EventShield EventKind = iota
	EventTransfer
	EventUnshield
)

// Event is one pool log entry translated into the client's vocabulary.
type Event struct {
	Kind        EventKind
	Commitment  field.Fr
	LeafIndex   uint64
	Nullifier   *field.Fr // nil for shield (no input spent)
	TxHash      string
	BlockNumber uint64
	Memo        []byte
}

func (e Event) dedupeKey() string {
	b := e.Commitment.Bytes()
	return string(b[:]) + "|" + e.TxHash
}

// LogSource is the adapter capability discovery polls — an ethclient-
// backed implementation lives in internal/adapters; tests use a fake.
type LogSource interface {
	// PollEvents returns events observed since the last call (the
	// implementation tracks its own fromBlock cursor). An error is
	// treated as transient RPC pressure and triggers backoff.
	PollEvents(ctx context.Context) ([]Event, error)
}

// Config tunes the loop's cadence, matching the constants spec.md §4.7
// and §5 name explicitly.
type Config struct {
	PollInterval      time.Duration // default 5s
	BatchWindow       time.Duration // default 8s
	DedupeCacheSize   int           // default 100, FIFO eviction
	MaxBackoff        time.Duration // default 30s
}

// DefaultConfig returns the cadence spec.md §4.7/§5 specify.
func DefaultConfig() Config {
	return Config{
		PollInterval:    5 * time.Second,
		BatchWindow:     8 * time.Second,
		DedupeCacheSize: 100,
		MaxBackoff:      30 * time.Second,
	}
}

// Loop runs one poll goroutine and one batch-flush goroutine and delivers
// deduplicated, batched events of every kind to a notify callback.
type Loop struct {
	cfg    Config
	source LogSource
	notify func([]Event)

	mu        sync.Mutex
	seen      map[string]struct{}
	seenOrder []string // FIFO eviction order, parallel to seen

	backoff time.Duration

	cancel context.CancelFunc
	done   chan struct{}

	pendingMu sync.Mutex
	pending   []Event
}

// New constructs a Loop. notify is called from the loop's own goroutine
// whenever the batch window elapses with at least one new event; it must
// not block for long.
func New(cfg Config, source LogSource, notify func([]Event)) *Loop {
	return &Loop{
		cfg:    cfg,
		source: source,
		notify: notify,
		seen:   make(map[string]struct{}),
	}
}

// Start begins polling in a background goroutine. Calling Start twice
// without an intervening Stop is a programming error the caller must
// avoid; Start does not guard against it.
func (l *Loop) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})

	go l.pollLoop(ctx)
	go l.batchLoop(ctx)
}

// Stop cancels both loops and flushes whatever is pending immediately,
// rather than waiting for the batch window to elapse (spec.md §4.7).
func (l *Loop) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	if l.done != nil {
		<-l.done
	}
	l.flush()
}

func (l *Loop) pollLoop(ctx context.Context) {
	defer close(l.done)

	interval := l.cfg.PollInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			events, err := l.source.PollEvents(ctx)
			if err != nil {
				l.backoffTick()
				interval = l.currentInterval()
				ticker.Reset(interval)
				continue
			}
			if l.backoff != 0 {
				l.resetBackoff()
				interval = l.cfg.PollInterval
				ticker.Reset(interval)
			}
			l.enqueue(events)
		}
	}
}

// backoffTick halves the effective poll rate (doubles the interval) up to
// MaxBackoff, the back-pressure response spec.md §4.7 calls for on RPC
// rejection.
func (l *Loop) backoffTick() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.backoff == 0 {
		l.backoff = l.cfg.PollInterval
	} else {
		l.backoff *= 2
	}
	if l.backoff > l.cfg.MaxBackoff {
		l.backoff = l.cfg.MaxBackoff
	}
}

func (l *Loop) resetBackoff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.backoff = 0
}

func (l *Loop) currentInterval() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.backoff == 0 {
		return l.cfg.PollInterval
	}
	return l.backoff
}

// enqueue deduplicates events against the FIFO cache and stages novel
// ones for the next batch flush.
func (l *Loop) enqueue(events []Event) {
	l.mu.Lock()
	var fresh []Event
	for _, ev := range events {
		key := ev.dedupeKey()
		if _, dup := l.seen[key]; dup {
			continue
		}
		l.seen[key] = struct{}{}
		l.seenOrder = append(l.seenOrder, key)
		if len(l.seenOrder) > l.cfg.DedupeCacheSize {
			evict := l.seenOrder[0]
			l.seenOrder = l.seenOrder[1:]
			delete(l.seen, evict)
		}
		fresh = append(fresh, ev)
	}
	l.mu.Unlock()

	if len(fresh) == 0 {
		return
	}
	l.pendingMu.Lock()
	l.pending = append(l.pending, fresh...)
	l.pendingMu.Unlock()
}

func (l *Loop) batchLoop(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.BatchWindow)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.flush()
		}
	}
}

func (l *Loop) flush() {
	l.pendingMu.Lock()
	batch := l.pending
	l.pending = nil
	l.pendingMu.Unlock()

	if len(batch) > 0 && l.notify != nil {
		l.notify(batch)
	}
}
