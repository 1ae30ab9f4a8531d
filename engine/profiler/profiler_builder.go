package profiler

import (
	"time"

	"github.com/jmalloc/twelf/src/twelf"
)

// ProfilerBuilderOption is a functional option for configuring a Profiler via NewProfiler.
type ProfilerBuilderOption func(*Profiler)

// WithInterval sets how often statistics are logged.
//
// Parameters:
//   - d: the update interval, ignored unless positive
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the interval option
func WithInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// WithUnit sets the name of the events counted by Add.
func WithUnit(unit string) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.unit = unit
	}
}

// WithLogger sets the logger statistics are written to.
func WithLogger(logger twelf.Logger) ProfilerBuilderOption {
	return func(p *Profiler) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithReporter appends a component summary to every logged line.
//
// Parameters:
//   - name: the label printed before the summary
//   - report: produces the summary
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the reporter option
func WithReporter(name string, report Reporter) ProfilerBuilderOption {
	return func(p *Profiler) {
		if report != nil {
			p.reporters = append(p.reporters, namedReporter{name: name, report: report})
		}
	}
}
