package profiler

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/jmalloc/twelf/src/twelf"
)

// Reporter returns a one-line summary of a component's counters.
type Reporter func() string

// namedReporter pairs a reporter with the label it is printed under.
type namedReporter struct {
	name   string
	report Reporter
}

// Snapshot is one interval's worth of statistics.
type Snapshot struct {
	Unit        string
	Rate        float64 // counted events per second
	HeapMB      float64
	AllocRateMB float64
	GCCount     uint32
	LastPauseUs uint64
	MaxPauseUs  uint64
	SysMB       float64
	Reports     []string // "name: summary", in registration order
}

// String renders the snapshot on one line, the way it is logged.
func (s Snapshot) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/s: %.2f | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
		s.Unit, s.Rate, s.HeapMB, s.AllocRateMB, s.GCCount, s.LastPauseUs, s.MaxPauseUs, s.SysMB)
	for _, r := range s.Reports {
		b.WriteString(" | ")
		b.WriteString(r)
	}
	return b.String()
}

// Profiler tracks an event rate, memory statistics and component counters.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	mu sync.Mutex

	count          int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	unit      string
	reporters []namedReporter
	logger    twelf.Logger

	now     func() time.Time
	readMem func(*runtime.MemStats)
}

// NewProfiler creates a new Profiler with default settings, then applies the options.
// Update interval defaults to 1 second and the counted unit to "sectors".
//
// Parameters:
//   - options: variadic ProfilerBuilderOption functions
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		updateInterval: time.Second,
		unit:           "sectors",
		logger:         &twelf.StandardLogger{},
		now:            time.Now,
		readMem:        runtime.ReadMemStats,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// Add counts n events towards the current interval's rate.
//
// Parameters:
//   - n: the number of events
func (p *Profiler) Add(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count += n
}

// Interval returns the update interval.
func (p *Profiler) Interval() time.Duration {
	return p.updateInterval
}

// Tick logs performance statistics when the update interval has elapsed.
// Statistics include: event rate, heap usage, allocation rate, GC count/pause times,
// total memory and every registered reporter.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	s, ok := p.sample()
	if !ok {
		return false
	}
	p.logger.Log("[Profiler] %s", s)
	return true
}

// sample takes a snapshot and starts a new interval if the current one has elapsed.
func (p *Profiler) sample() (Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval || elapsed <= 0 {
		return Snapshot{}, false
	}

	p.readMem(&p.memStats)
	// Alloc: Bytes of allocated heap objects (live memory)
	// TotalAlloc: Cumulative bytes allocated for heap objects (increases forever, tracks churn)
	// Sys: Total bytes of memory obtained from the OS (actual process footprint)
	s := Snapshot{
		Unit:    p.unit,
		Rate:    float64(p.count) / elapsed.Seconds(),
		HeapMB:  float64(p.memStats.Alloc) / 1024 / 1024,
		SysMB:   float64(p.memStats.Sys) / 1024 / 1024,
		GCCount: p.memStats.NumGC,
	}

	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	s.AllocRateMB = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	if s.GCCount > 0 {
		// PauseNs is a circular buffer of last 256 GC pauses
		s.LastPauseUs = p.memStats.PauseNs[(s.GCCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if s.GCCount-startIdx > 256 {
			startIdx = s.GCCount - 256
		}
		for i := startIdx; i < s.GCCount; i++ {
			if pause := p.memStats.PauseNs[i%256] / 1000; pause > s.MaxPauseUs {
				s.MaxPauseUs = pause
			}
		}
	}

	for _, r := range p.reporters {
		s.Reports = append(s.Reports, r.name+": "+r.report())
	}

	p.count = 0
	p.lastTime = currentTime
	p.lastGCCount = s.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return s, true
}

// Run calls Tick every interval until ctx is done.
//
// Parameters:
//   - ctx: stops the loop when done
func (p *Profiler) Run(ctx context.Context) {
	ticker := time.NewTicker(p.updateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick()
		}
	}
}
