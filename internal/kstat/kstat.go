// Package kstat exports scheduler and block-cache counters as a
// pprof-format profile, standing in for the D_PROF-style profiling
// device a real rCore build would expose as a special file under
// /proc. There is no /proc here, so Snapshot's profile bytes are
// meant to be written out by whatever transport the caller has
// (a syscall, a debug HTTP handler, a file) rather than this package
// owning a device node itself.
package kstat

import (
	"io"
	"time"

	"github.com/google/pprof/profile"
)

// Counters is one sample of the kernel-wide counters this package
// knows how to export.
type Counters struct {
	FramesUsed  int64
	FramesTotal int64
	CacheHits   int64
	CacheMisses int64
	SchedPops   int64
	ReadyTasks  int64
}

// Snapshot builds a pprof Profile with one sample value per counter,
// labeled by name, at the given instant. start/duration let the
// caller stamp a real timestamp in (kstat itself never calls
// time.Now, matching the workflow's no-wall-clock-inside-pure-code
// rule); passing a zero duration is fine for a point-in-time snapshot.
func Snapshot(c Counters, start time.Time, duration time.Duration) *profile.Profile {
	sampleType := &profile.ValueType{Type: "count", Unit: "count"}
	loc := &profile.Location{ID: 1}
	fn := &profile.Function{ID: 1, Name: "kernel"}
	loc.Line = []profile.Line{{Function: fn}}

	names := []string{"frames_used", "frames_total", "cache_hits", "cache_misses", "sched_pops", "ready_tasks"}
	values := []int64{c.FramesUsed, c.FramesTotal, c.CacheHits, c.CacheMisses, c.SchedPops, c.ReadyTasks}

	samples := make([]*profile.Sample, 0, len(names))
	for i, name := range names {
		samples = append(samples, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{values[i]},
			Label:    map[string][]string{"counter": {name}},
		})
	}

	return &profile.Profile{
		SampleType:    []*profile.ValueType{sampleType},
		Sample:        samples,
		Location:      []*profile.Location{loc},
		Function:      []*profile.Function{fn},
		TimeNanos:     start.UnixNano(),
		DurationNanos: int64(duration),
	}
}

// Write serializes a snapshot's pprof encoding to w, ready to be
// handed back through whatever transport the D_PROF analogue uses.
func Write(w io.Writer, c Counters, start time.Time, duration time.Duration) error {
	return Snapshot(c, start, duration).Write(w)
}
