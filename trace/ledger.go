package trace

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fractalmesh/fractal/logging"
)

// LedgerOptions configure a Ledger.
type LedgerOptions struct {
	// OutputPath is an optional file path template for trace output.
	// `{run_id}` and `{timestamp}` placeholders are resolved per run, so
	// concurrent runs sharing a template still write distinct files.
	OutputPath string
	// AutoExport appends each event to the resolved output file as it is
	// recorded (default true when OutputPath is set).
	AutoExport bool
	Logger     logging.Logger
}

// Ledger is an append-only, run-scoped event log. One ledger instance backs
// one agent; during delegation the delegate records into the delegator's
// ledger through a Scope, so the whole call tree shares a single run.
//
// The ledger is safe for concurrent use: sibling delegates and parallel tool
// batches record from separate goroutines.
type Ledger struct {
	mu           sync.Mutex
	events       []Event
	runID        string
	pathTemplate string
	path         string // resolved for the current run
	autoExport   bool
	logger       logging.Logger
}

// NewLedger creates an empty ledger.
func NewLedger(optFns ...func(o *LedgerOptions)) *Ledger {
	opts := LedgerOptions{AutoExport: true}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Ledger{
		pathTemplate: opts.OutputPath,
		autoExport:   opts.AutoExport,
		logger:       logging.OrNoOp(opts.Logger),
	}
}

// StartRun begins a new run: previous events are cleared, a fresh run id is
// generated and the output path template is resolved. Called exactly once
// per top-level invocation; delegates attach to the active run instead.
func (l *Ledger) StartRun() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = l.events[:0]
	l.runID = strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	if l.pathTemplate != "" {
		ts := time.Now().Format("20060102_150405")
		l.path = strings.NewReplacer("{run_id}", l.runID, "{timestamp}", ts).Replace(l.pathTemplate)
	} else {
		l.path = ""
	}

	return l.runID
}

// EndRun marks the current run finished. Events remain readable until the
// next StartRun.
func (l *Ledger) EndRun() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runID = ""
}

// RunID returns the active run id, or "" when no run is active.
func (l *Ledger) RunID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.runID
}

// Record appends an event, stamping it with the active run id. When
// auto-export is on the event is also appended to the resolved output file;
// export failures are logged and never break the agent.
func (l *Ledger) Record(ev Event) {
	l.mu.Lock()
	if ev.RunID == "" {
		ev.RunID = l.runID
	}
	l.events = append(l.events, ev)
	path := ""
	if l.autoExport {
		path = l.path
	}
	l.mu.Unlock()

	if path != "" {
		if err := appendLine(path, ev.JSON()); err != nil {
			l.logger.Warn("trace.export.failed", "path", path, "error", err.Error())
		}
	}
}

// Trace returns a copy of all recorded events in append order.
func (l *Ledger) Trace() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Export writes every recorded event to path as JSON Lines, one event per
// line in append order.
func (l *Ledger) Export(path string) error {
	events := l.Trace()

	var b strings.Builder
	for _, ev := range events {
		b.WriteString(ev.JSON())
		b.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("trace export: %w", err)
	}
	return nil
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteString(line + "\n")
	return err
}
