// Package progress carries import progress snapshots to the configured sinks.
//
// Delivery is best-effort: a sink that fails is logged and the import carries on.
package progress

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Phase string

const (
	PhaseAuthenticating Phase = "authenticating"
	PhaseScanning       Phase = "scanning"
	PhaseSaving         Phase = "saving"
	PhaseCompleted      Phase = "completed"
	PhaseFailed         Phase = "failed"
)

// Totals counts modules, subjects and items (lessons and tests)
type Totals struct {
	Modules  int `json:"modules" bson:"modules"`
	Subjects int `json:"subjects" bson:"subjects"`
	Lessons  int `json:"lessons" bson:"lessons"`
}

// Sum returns the number of units across all levels
func (t Totals) Sum() int {
	return t.Modules + t.Subjects + t.Lessons
}

// Snapshot is the state of one import run at a point in time
type Snapshot struct {
	ImportID    string    `json:"import_id" bson:"import_id"`
	CourseID    string    `json:"course_id" bson:"course_id"`
	FolderID    string    `json:"folder_id,omitempty" bson:"folder_id,omitempty"`
	Phase       Phase     `json:"phase" bson:"phase"`
	CurrentStep string    `json:"current_step,omitempty" bson:"current_step,omitempty"`
	CurrentItem string    `json:"current_item,omitempty" bson:"current_item,omitempty"`
	Totals      Totals    `json:"totals" bson:"totals"`
	Processed   Totals    `json:"processed" bson:"processed"`
	Percentage  int       `json:"percentage" bson:"percentage"`
	Errors      []string  `json:"errors,omitempty" bson:"errors,omitempty"`
	Completed   bool      `json:"completed" bson:"completed"`
	Error       string    `json:"error,omitempty" bson:"error,omitempty"`
	At          time.Time `json:"at" bson:"at"`
}

// Reporter receives snapshots
type Reporter interface {
	Report(ctx context.Context, snap Snapshot) error
}

// ReporterFunc adapts a function to Reporter
type ReporterFunc func(ctx context.Context, snap Snapshot) error

func (f ReporterFunc) Report(ctx context.Context, snap Snapshot) error {
	return f(ctx, snap)
}

// Nop discards snapshots
var Nop Reporter = ReporterFunc(func(context.Context, Snapshot) error { return nil })

// Percentage returns round(100*done/total), 0 when total is 0
func Percentage(done, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}

type multi struct {
	reporters []Reporter
}

// Multi fans a snapshot out to every reporter and joins their errors
func Multi(reporters ...Reporter) Reporter {
	var rs []Reporter
	for _, r := range reporters {
		if r != nil {
			rs = append(rs, r)
		}
	}
	return &multi{reporters: rs}
}

func (m *multi) Report(ctx context.Context, snap Snapshot) error {
	var errs []error
	for _, r := range m.reporters {
		if err := r.Report(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Tracker holds the current snapshot of one run and emits it after each change.
// Percentage is recomputed from Processed and Totals on every update, so it may dip
// while deeper listings raise the totals.
type Tracker struct {
	mu       sync.Mutex
	snap     Snapshot
	reporter Reporter
	logger   *zap.Logger
	now      func() time.Time
}

// NewTracker starts tracking a run
func NewTracker(importID, courseID string, reporter Reporter, logger *zap.Logger) *Tracker {
	if reporter == nil {
		reporter = Nop
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		snap:     Snapshot{ImportID: importID, CourseID: courseID},
		reporter: reporter,
		logger:   logger.Named("progress"),
		now:      time.Now,
	}
}

// Update applies fn to the snapshot and emits the result
func (t *Tracker) Update(ctx context.Context, fn func(s *Snapshot)) {
	t.mu.Lock()
	fn(&t.snap)
	if !t.snap.Completed {
		t.snap.Percentage = Percentage(t.snap.Processed.Sum(), t.snap.Totals.Sum())
	}
	t.snap.At = t.now()
	snap := t.copyLocked()
	t.mu.Unlock()

	if err := t.reporter.Report(ctx, snap); err != nil {
		t.logger.Warn("failed to report progress",
			zap.String("import_id", snap.ImportID),
			zap.String("phase", string(snap.Phase)),
			zap.Error(err),
		)
	}
}

// Phase switches to a new phase and resets the counters
func (t *Tracker) Phase(ctx context.Context, phase Phase, step string) {
	t.Update(ctx, func(s *Snapshot) {
		s.Phase = phase
		s.CurrentStep = step
		s.CurrentItem = ""
		s.Totals = Totals{}
		s.Processed = Totals{}
	})
}

// AddError records a non-fatal error message
func (t *Tracker) AddError(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Errors = append(t.snap.Errors, msg)
}

// Complete emits the terminal successful snapshot
func (t *Tracker) Complete(ctx context.Context, step string) {
	t.Update(ctx, func(s *Snapshot) {
		s.Phase = PhaseCompleted
		s.CurrentStep = step
		s.CurrentItem = ""
		s.Completed = true
		s.Percentage = 100
	})
}

// Fail emits the terminal failed snapshot
func (t *Tracker) Fail(ctx context.Context, err error) {
	t.Update(ctx, func(s *Snapshot) {
		s.Phase = PhaseFailed
		s.CurrentItem = ""
		s.Completed = true
		s.Error = err.Error()
	})
}

// Snapshot returns a copy of the current state
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.copyLocked()
}

func (t *Tracker) copyLocked() Snapshot {
	snap := t.snap
	snap.Errors = append([]string(nil), t.snap.Errors...)
	return snap
}
