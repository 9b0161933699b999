// Package telemetry appends structured orchestration events to a JSON-lines
// file for offline failure analysis.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventKind names a telemetry event.
type EventKind string

const (
	EventPlannerNonJSON     EventKind = "PLANNER_NON_JSON"
	EventPlanEmptyOrUseless EventKind = "PLAN_EMPTY_OR_USELESS"
	EventExecToolFail       EventKind = "EXEC_TOOL_FAIL"
	EventExecParamInvalid   EventKind = "EXEC_PARAM_INVALID"
	EventBudgetExceeded     EventKind = "BUDGET_EXCEEDED"
	EventAskUserIgnored     EventKind = "ASK_USER_IGNORED"
	EventAskUserOpen        EventKind = "ASK_USER_OPEN"
	EventAskUserResume      EventKind = "ASK_USER_RESUME"
	EventSessionMismatch    EventKind = "SESSION_MISMATCH"
	EventJudgeLoop          EventKind = "JUDGE_LOOP"
	EventSpecMismatch       EventKind = "SPEC_MISMATCH"
	EventWriteOutOfSandbox  EventKind = "WRITE_OUT_OF_SANDBOX"
)

// Stage is the orchestration stage an event was observed in.
type Stage string

const (
	StagePlan    Stage = "plan"
	StageAct     Stage = "act"
	StageJudge   Stage = "judge"
	StageAskUser Stage = "ask_user"
)

// Record is one telemetry line.
type Record struct {
	Timestamp time.Time      `json:"ts"`
	Event     EventKind      `json:"event"`
	Stage     Stage          `json:"stage"`
	SessionID string         `json:"session_id"`
	TaskID    string         `json:"task_id,omitempty"`
	Hash      string         `json:"hash,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// Sink receives telemetry records. Implementations must be safe for
// concurrent use.
type Sink interface {
	Emit(rec Record)
	Close() error
}

// Hash derives the short content hash binding records to a query and plan.
func Hash(userQuery, planGoal string) string {
	sum := sha256.Sum256([]byte(userQuery + planGoal))
	return hex.EncodeToString(sum[:])[:12]
}

// FileSink appends records as JSON lines to a single file.
type FileSink struct {
	mu     sync.Mutex
	f      *os.File
	logger *slog.Logger
}

// NewFileSink opens (creating directories as needed) the telemetry file in
// append mode.
func NewFileSink(path string, logger *slog.Logger) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating telemetry dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening telemetry file: %w", err)
	}
	return &FileSink{f: f, logger: logger}, nil
}

// Emit writes the record as one JSON line. Write failures are logged, never
// propagated: telemetry must not break orchestration.
func (s *FileSink) Emit(rec Record) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	line, err := json.Marshal(rec)
	if err != nil {
		s.logger.Warn("failed to marshal telemetry record", "event", rec.Event, "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.f.Write(append(line, '\n')); err != nil {
		s.logger.Warn("failed to write telemetry record", "event", rec.Event, "error", err)
	}
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// NopSink discards everything. Used in tests and when telemetry is disabled.
type NopSink struct{}

func (NopSink) Emit(Record) {}
func (NopSink) Close() error { return nil }

// MemSink collects records in memory for assertions.
type MemSink struct {
	mu      sync.Mutex
	records []Record
}

func (s *MemSink) Emit(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

func (s *MemSink) Close() error { return nil }

// Records returns a copy of everything emitted so far.
func (s *MemSink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Kinds returns the event kinds in emission order.
func (s *MemSink) Kinds() []EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]EventKind, len(s.records))
	for i, r := range s.records {
		kinds[i] = r.Event
	}
	return kinds
}
