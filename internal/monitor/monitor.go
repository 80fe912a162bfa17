package monitor

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/bassamsdata/fsmonitor/internal/logging"
)

var monitorLog = logging.ForComponent(logging.CompMonitor)

// Monitor is the engine behind a single session: it owns the content cache,
// the change log, and — while watching — the OS watch handle and debounce
// timer (spec §3, "Session... Owns its Monitor; Monitor owns its cache, its
// OS watch handle, its debounce timer, its pending-events set, and its
// change log").
type Monitor struct {
	root     string
	cfg      Config
	toolName string

	cache  *Cache
	log    *ChangeLog
	ignore *IgnoreFilter
	reader *Reader

	mu       sync.Mutex
	intake   *intake
	watching bool

	batches chan batchItem
	batchWg sync.WaitGroup
	loopCtx    context.Context
	loopCancel context.CancelFunc

	subsMu sync.RWMutex
	subs   []func(Event)
}

// EventKind identifies one of the four named events of spec §6.
type EventKind string

const (
	EventStarted      EventKind = "started"
	EventStopped      EventKind = "stopped"
	EventCheckpoint   EventKind = "checkpoint"
	EventFileChanged  EventKind = "file_changed"
)

// Event is dispatched to subscribers synchronously with respect to the
// operation that produced it (spec §6: "dispatch is synchronous... does not
// return to the OS event loop between the append and the event emit").
type Event struct {
	Kind       EventKind
	Change     *Change
	Checkpoint *Checkpoint
}

// New creates a Monitor rooted at root with the given tool-name label
// (default attribution for changes observed without an explicit tool).
func New(root string, cfg Config, toolName string, ignore *IgnoreFilter) *Monitor {
	cfg = cfg.WithDefaults()
	m := &Monitor{
		root:     root,
		cfg:      cfg,
		toolName: toolName,
		cache:    NewCache(cfg.MaxCacheBytes),
		log:      NewChangeLog(),
		ignore:   ignore,
		reader:   NewReader(cfg.MaxFileSize),
	}
	return m
}

// Subscribe registers a callback invoked for every Event this Monitor emits.
func (m *Monitor) Subscribe(fn func(Event)) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	m.subs = append(m.subs, fn)
}

func (m *Monitor) publish(ev Event) {
	m.subsMu.RLock()
	defer m.subsMu.RUnlock()
	for _, fn := range m.subs {
		fn(ev)
	}
}

// StartOpts configures a Start/Resume call.
type StartOpts struct {
	Prepopulate bool
	Recursive   bool
	OnReady     func(PrepopulateStats)
}

// Start establishes the OS watch, schedules prepopulation if requested, and
// begins debounced event processing. Refuses to create a second watch while
// one is active — callers get ok=true with no error in that case, and the
// existing watch stays in place (spec §4.9: "Refuses to create a second
// watch for the same root; returns the existing watch handle").
func (m *Monitor) Start(ctx context.Context, opts StartOpts) (ok bool, err error) {
	m.mu.Lock()
	if m.watching {
		m.mu.Unlock()
		return true, nil
	}

	m.loopCtx, m.loopCancel = context.WithCancel(ctx)
	m.batches = make(chan batchItem, 64)

	in, err := newIntake(m.root, m.cfg.DebounceMs, m.enqueueBatch)
	if err != nil {
		m.mu.Unlock()
		return false, ErrWatchStartFailure
	}
	if startErr := in.start(opts.Recursive, m.ignore.ShouldIgnore); startErr != nil {
		m.mu.Unlock()
		return false, ErrWatchStartFailure
	}
	m.intake = in
	m.watching = true
	m.mu.Unlock()

	m.batchWg.Add(1)
	go m.runBatchLoop()

	if opts.Prepopulate {
		go func() {
			stats := Prepopulate(m.loopCtx, m.root, m.ignore, m.reader, m.cache, m.cfg.MaxDepth, m.cfg.MaxPrepopulateFiles)
			if opts.OnReady != nil {
				opts.OnReady(stats)
			}
		}()
	}

	m.publish(Event{Kind: EventStarted})
	monitorLog.Info("monitor_started", slog.String("root", m.root))
	return true, nil
}

// batchItem travels through Monitor.batches. A nil paths map with a non-nil
// done channel is a barrier: runBatchLoop closes done once every batch
// enqueued ahead of it has finished processing, which is how Flush
// implements its synchronization contract without a second lock.
type batchItem struct {
	paths map[string]struct{}
	done  chan struct{}
}

// enqueueBatch is the intake's dispatch callback. It never blocks the OS
// event-delivery goroutine for long: it only hands the batch to the
// processing loop's channel.
func (m *Monitor) enqueueBatch(batch map[string]struct{}) {
	m.mu.Lock()
	ch := m.batches
	m.mu.Unlock()
	if ch == nil {
		return
	}
	ch <- batchItem{paths: batch}
}

// runBatchLoop drains batches strictly in order: the processor for an
// entire batch completes (including all its async reads) before the next
// batch is admitted, which is the ordering guarantee of spec §5 ("the
// earlier batch sequences entirely before the later batch").
func (m *Monitor) runBatchLoop() {
	defer m.batchWg.Done()

	proc := NewProcessor(m.root, m.ignore, m.reader, m.cache, m.log, func(c Change) {
		cc := c
		m.publish(Event{Kind: EventFileChanged, Change: &cc})
	})

	for {
		select {
		case <-m.loopCtx.Done():
			return
		case item, ok := <-m.batches:
			if !ok {
				return
			}
			if item.paths == nil {
				if item.done != nil {
					close(item.done)
				}
				continue
			}
			m.processBatch(proc, item.paths)
		}
	}
}

func (m *Monitor) processBatch(proc *Processor, batch map[string]struct{}) {
	var wg sync.WaitGroup
	for absPath := range batch {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			proc.Process(p, m.toolName)
		}(absPath)
	}
	wg.Wait()
}

// Flush forces the debounce timer to fire immediately and blocks until the
// pending paths at the time of the call have been fully processed (spec
// §4.7, §9 "Flush semantics": "must not return the current snapshot before
// pending reads complete, or viewers will see stale content").
func (m *Monitor) Flush() {
	m.mu.Lock()
	in := m.intake
	ch := m.batches
	m.mu.Unlock()
	if in == nil || ch == nil {
		return
	}

	in.flush() // synchronously enqueues the pending batch, if any, onto ch

	barrier := batchItem{done: make(chan struct{})}
	ch <- barrier
	<-barrier.done
}

// Pause halts event intake, flushes all pending paths through the
// processor (awaiting the async reads they trigger), and destroys the watch
// handle, preserving log and checkpoints (spec §4.9).
func (m *Monitor) Pause() {
	m.mu.Lock()
	in := m.intake
	m.watching = false
	m.mu.Unlock()
	if in == nil {
		return
	}

	in.disable()
	m.drainPending(in)
	in.stop()

	if m.loopCancel != nil {
		m.loopCancel()
	}
	m.batchWg.Wait()

	m.mu.Lock()
	m.intake = nil
	m.batches = nil
	m.mu.Unlock()

	m.publish(Event{Kind: EventStopped})
}

// Destroy stops the watch if any, awaits outstanding async operations, and
// clears the cache. The change log is left untouched; the owning Session
// decides whether to discard it.
func (m *Monitor) Destroy() {
	m.mu.Lock()
	in := m.intake
	m.watching = false
	m.mu.Unlock()

	if in != nil {
		in.disable()
		m.drainPending(in)
		in.stop()
	}
	if m.loopCancel != nil {
		m.loopCancel()
	}
	m.batchWg.Wait()
	m.cache.Clear()
}

// drainPending forces in's debounce timer to fire and blocks until every
// batch enqueued as a result — and everything enqueued before it — has been
// fully processed. Reads that complete after this point belong to a
// cancelled loop and their results are dropped (spec §5: "Reads that
// complete after destroy begins must detect the disabled state and drop
// their results").
func (m *Monitor) drainPending(in *intake) {
	m.mu.Lock()
	ch := m.batches
	m.mu.Unlock()
	if ch == nil {
		return
	}

	in.flush()

	barrier := batchItem{done: make(chan struct{})}
	ch <- barrier
	<-barrier.done
}

// IsWatching reports whether this Monitor currently owns an active watch.
func (m *Monitor) IsWatching() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watching
}

// Log returns the Monitor's change log.
func (m *Monitor) Log() *ChangeLog { return m.log }

// Cache returns the Monitor's content cache.
func (m *Monitor) Cache() *Cache { return m.cache }

// Root returns the absolute watch root.
func (m *Monitor) Root() string { return m.root }

// CreateCheckpoint stamps a checkpoint and emits EventCheckpoint (spec
// §4.7).
func (m *Monitor) CreateCheckpoint(label string) Checkpoint {
	cp := m.log.CreateCheckpoint(label)
	cc := cp
	m.publish(Event{Kind: EventCheckpoint, Checkpoint: &cc})
	return cp
}

// FlushPendingAndGet forces pending debounce timers to fire, awaits
// processor completion for all pending paths, then returns a snapshot of
// the full log (spec §4.7).
func (m *Monitor) FlushPendingAndGet() []Change {
	m.Flush()
	return m.log.AllChanges()
}

// TagChangesInRange attributes every change in [startNs, endNs] to tool
// (spec §4.7).
func (m *Monitor) TagChangesInRange(startNs, endNs int64, tool string, args TagArgs) {
	m.log.TagChangesInRange(startNs, endNs, tool, args)
}

// Stats assembles a Stats snapshot (spec §4.7).
func (m *Monitor) Stats() Stats {
	active := 0
	if m.IsWatching() {
		active = 1
	}
	return m.log.Stats(active, m.cache.Bytes())
}

// AbsPath resolves a root-relative path to an absolute one, confined to the
// reader/writer boundary per spec §3 ("Conversion to absolute paths is
// confined to the reader/writer boundaries").
func (m *Monitor) AbsPath(relPath string) string {
	return filepath.Join(m.root, filepath.FromSlash(relPath))
}
