// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package reconcile

import (
	"errors"
	"sync"
	"time"

	"github.com/sigil-dev/tome/pkg/health"
)

// Mode distinguishes a full rebuild from an incremental sync.
type Mode string

const (
	ModeBuild Mode = "build"
	ModeSync  Mode = "sync"
)

// Op names the mutation applied to one file.
type Op string

const (
	OpDelete Op = "delete"
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpRead   Op = "read"
)

// Outcome is the result of one planned operation.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// ErrEmptyFile is recorded for files skipped because they have no content.
var ErrEmptyFile = errors.New("file is empty")

// FileError records why one file was skipped or failed.
type FileError struct {
	Path string
	Op   Op
	Err  error
}

func (e FileError) Error() string { return string(e.Op) + " " + e.Path + ": " + e.Err.Error() }
func (e FileError) Unwrap() error { return e.Err }

// Event is delivered to an Observer after each applied operation.
type Event struct {
	Op      Op
	Path    string
	Outcome Outcome
	Err     error
}

// Observer receives progress during a run. Calls are serialized.
type Observer interface {
	OnPlanned(total int)
	OnApplied(ev Event)
}

// Report summarizes one build or sync run.
type Report struct {
	RunID      string
	Mode       Mode
	Deleted    int
	Added      int
	Updated    int
	Unchanged  int
	Skipped    int
	Failed     int
	Failures   []FileError
	Skips      []FileError
	StartedAt  time.Time
	FinishedAt time.Time
	Embedding  health.Metrics
}

// Changed reports whether the run mutated the store.
func (r *Report) Changed() bool {
	return r.Deleted+r.Added+r.Updated > 0
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// recorder accumulates outcomes from concurrent workers into a Report and
// forwards them to the observer.
type recorder struct {
	mu       sync.Mutex
	report   *Report
	observer Observer
}

func (r *recorder) planned(total int) {
	if r.observer == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer.OnPlanned(total)
}

func (r *recorder) record(op Op, path string, outcome Outcome, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch outcome {
	case OutcomeApplied:
		switch op {
		case OpDelete:
			r.report.Deleted++
		case OpAdd:
			r.report.Added++
		case OpUpdate:
			r.report.Updated++
		}
	case OutcomeSkipped:
		r.report.Skipped++
		r.report.Skips = append(r.report.Skips, FileError{Path: path, Op: op, Err: err})
	case OutcomeFailed:
		r.report.Failed++
		r.report.Failures = append(r.report.Failures, FileError{Path: path, Op: op, Err: err})
	}
	syncFilesTotal.WithLabelValues(string(op), string(outcome)).Inc()

	if r.observer != nil {
		r.observer.OnApplied(Event{Op: op, Path: path, Outcome: outcome, Err: err})
	}
}
