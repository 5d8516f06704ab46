// Package progress defines the depth/XP reporting boundary. The simulation
// reports unconditionally; whether a report lands in a local calculator,
// a database, or a remote service is decided by whoever composes the sink.
package progress

import (
	"log/slog"
	"sync"
)

// Sink receives progression updates. Implementations must not block the
// caller for long; wrap slow sinks in Async.
type Sink interface {
	DepthReached(depth int) // New maximum depth below the surface, in tiles
	OreSold(value int)      // Cash value of one ore sale
}

// Nop discards every report.
type Nop struct{}

func (Nop) DepthReached(int) {}
func (Nop) OreSold(int)      {}

// Multi fans every report out to each sink in order.
type Multi []Sink

func (m Multi) DepthReached(depth int) {
	for _, s := range m {
		s.DepthReached(depth)
	}
}

func (m Multi) OreSold(value int) {
	for _, s := range m {
		s.OreSold(value)
	}
}

// XP curve.
const (
	XPPerDepth   = 10 // XP for each new tile of maximum depth
	XPPerCashDiv = 10 // One XP per this much cash from sales
)

// Local computes experience and level in-process.
type Local struct {
	mu       sync.Mutex
	maxDepth int
	xp       int
}

// NewLocal creates an empty local calculator.
func NewLocal() *Local { return &Local{} }

// DepthReached awards XP for depth beyond the previous maximum.
func (l *Local) DepthReached(depth int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if depth <= l.maxDepth {
		return
	}
	l.xp += (depth - l.maxDepth) * XPPerDepth
	l.maxDepth = depth
}

// OreSold awards XP for a sale.
func (l *Local) OreSold(value int) {
	if value <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.xp += value / XPPerCashDiv
}

// XP returns accumulated experience.
func (l *Local) XP() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.xp
}

// Level returns the level for the current XP. Level n needs 50·n·(n-1) XP.
func (l *Local) Level() int {
	return LevelFor(l.XP())
}

// LevelFor maps an XP total to a level starting at 1.
func LevelFor(xp int) int {
	level := 1
	for need := 100; xp >= need; need += 100 * level {
		level++
	}
	return level
}

// report is one queued update for Async.
type report struct {
	depth   bool
	value   int
	flushed chan struct{} // Set on flush markers only
}

// Async forwards reports to a slow sink from a background goroutine.
// When the queue is full the report is dropped and logged; the caller
// never waits on the underlying sink.
type Async struct {
	next Sink
	ch   chan report
	done chan struct{}
	once sync.Once
}

// NewAsync starts a forwarding goroutine with the given queue size.
func NewAsync(next Sink, queue int) *Async {
	a := &Async{
		next: next,
		ch:   make(chan report, queue),
		done: make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for r := range a.ch {
		if r.flushed != nil {
			close(r.flushed)
			continue
		}
		if r.depth {
			a.next.DepthReached(r.value)
		} else {
			a.next.OreSold(r.value)
		}
	}
}

func (a *Async) DepthReached(depth int) { a.offer(report{depth: true, value: depth}) }
func (a *Async) OreSold(value int)      { a.offer(report{value: value}) }

func (a *Async) offer(r report) {
	select {
	case a.ch <- r:
	default:
		slog.Warn("progress report dropped", "depth", r.depth, "value", r.value)
	}
}

// Flush waits until every report queued before the call has reached the
// underlying sink. Unlike reports, the marker is never dropped.
func (a *Async) Flush() {
	done := make(chan struct{})
	a.ch <- report{flushed: done}
	<-done
}

// Close stops accepting reports and waits for the queue to drain.
// Reports after Close panic, so close only after the simulation stops.
func (a *Async) Close() {
	a.once.Do(func() { close(a.ch) })
	<-a.done
}
