package models

import (
	"time"
)

// Expiry windows enforced by the cleanup loop.
const (
	TaskExpiry    = time.Hour
	SessionExpiry = 24 * time.Hour
)

// MaxHistoryEntries bounds the conversation ring kept on a session.
const MaxHistoryEntries = 20

// AskExpect hints what kind of answer an ask_user question wants. It drives
// the artifact key the answer is stored under on resume.
type AskExpect string

const (
	AskExpectCity   AskExpect = "city"
	AskExpectDate   AskExpect = "date"
	AskExpectAnswer AskExpect = "answer"
)

// AnswerKey maps the expectation to its user-input artifact key.
func (e AskExpect) AnswerKey() string {
	switch e {
	case AskExpectCity:
		return "user_city"
	case AskExpectDate:
		return "user_date"
	default:
		return "user_answer"
	}
}

// ArtifactKeyAskUserPending is the reserved artifact key the executor writes
// when a slice suspends waiting for user input.
const ArtifactKeyAskUserPending = "ask_user_pending"

// AskUserPending is the suspension marker stored in ExecutionState.Artifacts.
type AskUserPending struct {
	AskID     string    `json:"ask_id"`
	Questions []string  `json:"questions"`
	Expects   AskExpect `json:"expects"`
	StepID    string    `json:"step_id"`
	OutputKey string    `json:"output_key,omitempty"`
}

// AnswerKey returns the artifact key the user's answer should land under.
// An explicit output_key on the marker wins over the expectation mapping.
func (a *AskUserPending) AnswerKey() string {
	if a.OutputKey != "" {
		return a.OutputKey
	}
	return a.Expects.AnswerKey()
}

// PendingAsk is the session-level record of an open ask_user question.
type PendingAsk struct {
	AskID     string    `json:"ask_id"`
	TaskID    string    `json:"task_id"`
	Questions []string  `json:"questions"`
	Expects   AskExpect `json:"expects"`
	AskedAt   time.Time `json:"asked_at"`
}

// ActiveTask is a suspended or in-flight orchestration task bound to a
// session.
type ActiveTask struct {
	TaskID         string          `json:"task_id"`
	UserQuery      string          `json:"user_query"`
	Plan           *Plan           `json:"plan,omitempty"`
	State          *ExecutionState `json:"state"`
	PlanIterations int             `json:"plan_iterations"`
	TotalToolCalls int             `json:"total_tool_calls"`
	AskedQuestions []string        `json:"asked_questions"`
	CreatedAt      time.Time       `json:"created_at"`
	LastActivity   time.Time       `json:"last_activity"`
}

// Touch records task activity, resetting the expiry clock.
func (t *ActiveTask) Touch(now time.Time) {
	t.LastActivity = now
}

// Expired reports whether the task has been inactive past the task expiry
// window. A task that was never touched falls back to its creation time.
func (t *ActiveTask) Expired(now time.Time) bool {
	last := t.LastActivity
	if last.IsZero() {
		last = t.CreatedAt
	}
	return now.Sub(last) > TaskExpiry
}

// HistoryEntry is one turn of the session's conversation ring.
type HistoryEntry struct {
	Role    string    `json:"role"` // "user" or "assistant"
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Session is the unit of isolation: its own history, pending ask, and at
// most one active task. All mutation goes through the session manager.
type Session struct {
	ID           string         `json:"id"`
	ActiveTask   *ActiveTask    `json:"active_task,omitempty"`
	PendingAsk   *PendingAsk    `json:"pending_ask,omitempty"`
	History      []HistoryEntry `json:"history"`
	CreatedAt    time.Time      `json:"created_at"`
	LastActivity time.Time      `json:"last_activity"`
}

// AppendHistory adds a turn, trimming the ring to MaxHistoryEntries.
func (s *Session) AppendHistory(role, content string, at time.Time) {
	s.History = append(s.History, HistoryEntry{Role: role, Content: content, At: at})
	if len(s.History) > MaxHistoryEntries {
		s.History = s.History[len(s.History)-MaxHistoryEntries:]
	}
}

// Expired reports whether the session has been idle past the session window.
func (s *Session) Expired(now time.Time) bool {
	return now.Sub(s.LastActivity) > SessionExpiry
}
