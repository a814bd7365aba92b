// Package progress reports long-running pipeline stages to the host.
//
// A stage starts a Task and must end it on every exit path. A task told to
// Abort is shown as failed; Abort never interrupts in-flight work.
//
//	err := progress.Run(reporter, "Detecting assembly references", func() error {
//	    return finder.extract(files)
//	})
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/simonhull/apiport/pkg/logger"
)

// Reporter starts named tasks and collects issues worth showing the user.
type Reporter interface {
	StartTask(name string) Task
	ReportIssue(issue string)
	Issues() []string
}

// Task is the handle of a running stage. End completes the task unless Abort
// was called first; both are safe to call more than once.
type Task interface {
	Abort()
	End()
}

// Run executes fn inside a task. The task is aborted when fn returns an error
// or panics, and ended in every case.
func Run(r Reporter, name string, fn func() error) (err error) {
	task := r.StartTask(name)
	defer task.End()

	defer func() {
		if rec := recover(); rec != nil {
			task.Abort()
			panic(rec)
		}
	}()

	if err = fn(); err != nil {
		task.Abort()
	}
	return err
}

// NewReporter picks a spinner when w is a terminal and a log-backed reporter
// otherwise.
func NewReporter(w io.Writer, log logger.Logger) Reporter {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return NewSpinnerReporter(w)
	}
	return NewLogReporter(log)
}

// issueList is embedded by reporters to implement ReportIssue/Issues.
type issueList struct {
	mu     sync.Mutex
	issues []string
}

func (l *issueList) ReportIssue(issue string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.issues = append(l.issues, issue)
}

func (l *issueList) Issues() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.issues))
	copy(out, l.issues)
	return out
}

// taskState guards the single transition of a task.
type taskState struct {
	once    sync.Once
	aborted bool
	mu      sync.Mutex
}

func (s *taskState) abort() {
	s.mu.Lock()
	s.aborted = true
	s.mu.Unlock()
}

func (s *taskState) finish(fn func(aborted bool)) {
	s.once.Do(func() {
		s.mu.Lock()
		aborted := s.aborted
		s.mu.Unlock()
		fn(aborted)
	})
}

// LogReporter reports task transitions through a logger.
type LogReporter struct {
	issueList
	log logger.Logger
}

// NewLogReporter creates a reporter writing to log.
func NewLogReporter(log logger.Logger) *LogReporter {
	if log == nil {
		log = logger.Default()
	}
	return &LogReporter{log: log}
}

// StartTask logs the start of name.
func (r *LogReporter) StartTask(name string) Task {
	r.log.Info(name + "...")
	return &logTask{name: name, log: r.log, started: time.Now()}
}

type logTask struct {
	taskState
	name    string
	log     logger.Logger
	started time.Time
}

func (t *logTask) Abort() { t.abort() }

func (t *logTask) End() {
	t.finish(func(aborted bool) {
		elapsed := time.Since(t.started).Round(time.Millisecond)
		if aborted {
			t.log.Warn(t.name+" aborted", logger.F("elapsed", elapsed))
			return
		}
		t.log.Info(t.name+" done", logger.F("elapsed", elapsed))
	})
}

// Nop is a reporter that records issues and ignores tasks.
type Nop struct{ issueList }

// StartTask returns a task that does nothing.
func (*Nop) StartTask(string) Task { return nopTask{} }

type nopTask struct{}

func (nopTask) Abort() {}
func (nopTask) End()   {}

// Event is one transition seen by a Recorder.
type Event struct {
	Task string
	Kind string // "start", "end" or "abort"
}

// String formats the event as "kind:task".
func (e Event) String() string { return fmt.Sprintf("%s:%s", e.Kind, e.Task) }

// Recorder keeps every task transition in order. It backs telemetry sinks and
// tests.
type Recorder struct {
	issueList
	mu     sync.Mutex
	events []Event
}

// StartTask records a start event.
func (r *Recorder) StartTask(name string) Task {
	r.record(Event{Task: name, Kind: "start"})
	return &recordedTask{name: name, r: r}
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

type recordedTask struct {
	taskState
	name string
	r    *Recorder
}

func (t *recordedTask) Abort() { t.abort() }

func (t *recordedTask) End() {
	t.finish(func(aborted bool) {
		kind := "end"
		if aborted {
			kind = "abort"
		}
		t.r.record(Event{Task: t.name, Kind: kind})
	})
}
