// Package telemetrytest provides a telemetry.API that records every report so tests can
// assert on what a component logged at its containment boundaries.
package telemetrytest

import (
	"strings"
	"sync"
)

type Level int

const (
	LevelBroken Level = iota
	LevelWarning
	LevelInfo
	LevelDebug
	LevelCount
)

type Report struct {
	Level  Level
	ID     string
	Params []any
	Count  int64
}

// Recorder implements telemetry.API, it is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	reports []Report
}

func (r *Recorder) add(rep Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, rep)
}

func (r *Recorder) ReportBroken(id string, params ...any) {
	r.add(Report{Level: LevelBroken, ID: id, Params: params})
}

func (r *Recorder) ReportWarning(id string, params ...any) {
	r.add(Report{Level: LevelWarning, ID: id, Params: params})
}

func (r *Recorder) ReportInfo(msg string, params ...any) {
	r.add(Report{Level: LevelInfo, ID: msg, Params: params})
}

func (r *Recorder) ReportDebug(msg string, params ...any) {
	r.add(Report{Level: LevelDebug, ID: msg, Params: params})
}

func (r *Recorder) ReportCount(id string, count int64) {
	r.add(Report{Level: LevelCount, ID: id, Count: count})
}

// Reports returns a copy of everything reported so far.
func (r *Recorder) Reports() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Report, len(r.reports))
	copy(out, r.reports)
	return out
}

// Find returns the reports of the given level whose id ends with suffix (scoped ids carry a
// namespace prefix).
func (r *Recorder) Find(level Level, suffix string) []Report {
	var out []Report
	for _, rep := range r.Reports() {
		if rep.Level == level && strings.HasSuffix(rep.ID, suffix) {
			out = append(out, rep)
		}
	}
	return out
}
