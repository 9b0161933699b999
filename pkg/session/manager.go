// Package session owns conversation state: the session map, message
// classification, ask_user resume, and the per-session single-slice rule.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/triad-ai/triad/pkg/models"
	"github.com/triad-ai/triad/pkg/telemetry"
)

var (
	// ErrSessionBusy rejects a message while a slice is already running.
	ErrSessionBusy = errors.New("session is busy processing a previous message")
	// ErrAskMismatch rejects an answer carrying a stale or foreign ask_id.
	ErrAskMismatch = errors.New("answer does not match the pending question")
	// ErrSessionNotFound reports an unknown session ID.
	ErrSessionNotFound = errors.New("session not found")
)

// Manager is the process-wide session registry.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	busy     map[string]bool
	now      func() time.Time
	sink     telemetry.Sink
	logger   *slog.Logger
}

// NewManager returns an empty manager. A nil now defaults to time.Now.
func NewManager(sink telemetry.Sink, logger *slog.Logger, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{
		sessions: make(map[string]*models.Session),
		busy:     make(map[string]bool),
		now:      now,
		sink:     sink,
		logger:   logger,
	}
}

// GetOrCreate returns the session, creating it when id is unknown. An empty
// id gets a fresh UUID.
func (m *Manager) GetOrCreate(id string) *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == "" {
		id = uuid.NewString()
	}
	if sess, ok := m.sessions[id]; ok {
		sess.LastActivity = m.now()
		return sess
	}
	sess := &models.Session{
		ID:           id,
		CreatedAt:    m.now(),
		LastActivity: m.now(),
	}
	m.sessions[id] = sess
	m.logger.Info("session created", "session_id", id)
	return sess
}

// Get returns an existing session.
func (m *Manager) Get(id string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// Acquire claims the session's single processing slot.
func (m *Manager) Acquire(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy[id] {
		return fmt.Errorf("%w: %s", ErrSessionBusy, id)
	}
	m.busy[id] = true
	return nil
}

// Release frees the session's processing slot.
func (m *Manager) Release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.busy, id)
}

// Sweep drops expired sessions and expired tasks on live sessions. It
// returns the number of sessions and tasks removed.
func (m *Manager) Sweep() (sessions, tasks int) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sess := range m.sessions {
		if m.busy[id] {
			continue
		}
		if sess.Expired(now) {
			delete(m.sessions, id)
			sessions++
			continue
		}
		if sess.ActiveTask != nil && sess.ActiveTask.Expired(now) {
			m.logger.Info("expiring stale task", "session_id", id, "task_id", sess.ActiveTask.TaskID)
			sess.ActiveTask = nil
			sess.PendingAsk = nil
			tasks++
		}
	}
	return sessions, tasks
}

// Count reports the live session total.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// MessageKind classifies an incoming message against the session state.
type MessageKind string

const (
	// KindAnswer resumes the pending ask with the message as the answer.
	KindAnswer MessageKind = "answer"
	// KindNewTask starts a fresh task.
	KindNewTask MessageKind = "new_task"
	// KindOverride abandons the pending ask because the user moved on.
	KindOverride MessageKind = "override"
	// KindContinuation continues the conversation with no pending ask.
	KindContinuation MessageKind = "continuation"
)

// overrideKeywords abandon a pending question when the message starts a
// different task instead of answering.
var overrideKeywords = []string{
	"new task", "new question", "never mind", "nevermind", "forget it",
	"forget that", "reset", "clear", "stop", "cancel", "something else",
	"different question",
}

func hasOverrideKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range overrideKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Classify decides what an incoming message means for this session. The
// ask_id invariant is checked first: an explicit ask_id that does not match
// the pending ask is rejected outright, with no state change.
func (m *Manager) Classify(sess *models.Session, text, askID string) (MessageKind, error) {
	if sess.PendingAsk != nil {
		if askID != "" && askID != sess.PendingAsk.AskID {
			m.sink.Emit(telemetry.Record{
				Event:     telemetry.EventSessionMismatch,
				Stage:     telemetry.StageAskUser,
				SessionID: sess.ID,
				TaskID:    sess.PendingAsk.TaskID,
				Detail:    map[string]any{"got_ask_id": askID, "want_ask_id": sess.PendingAsk.AskID},
			})
			return "", fmt.Errorf("%w: got %s", ErrAskMismatch, askID)
		}
		if hasOverrideKeyword(text) {
			m.sink.Emit(telemetry.Record{
				Event:     telemetry.EventAskUserIgnored,
				Stage:     telemetry.StageAskUser,
				SessionID: sess.ID,
				TaskID:    sess.PendingAsk.TaskID,
				Detail:    map[string]any{"ask_id": sess.PendingAsk.AskID},
			})
			return KindOverride, nil
		}
		return KindAnswer, nil
	}
	// No pending ask: an explicit ask_id is stale (its question was already
	// answered or discarded). Rejecting here keeps resume idempotent.
	if askID != "" {
		m.sink.Emit(telemetry.Record{
			Event:     telemetry.EventSessionMismatch,
			Stage:     telemetry.StageAskUser,
			SessionID: sess.ID,
			Detail:    map[string]any{"got_ask_id": askID},
		})
		return "", fmt.Errorf("%w: no pending question for %s", ErrAskMismatch, askID)
	}
	if sess.ActiveTask != nil {
		return KindContinuation, nil
	}
	return KindNewTask, nil
}

// Resume stores the user's answer into the task state under the key the
// ask marker dictates, clears the marker, and emits the resume telemetry.
// The caller re-runs the orchestrator afterwards.
func (m *Manager) Resume(sess *models.Session, answer string) (*models.ActiveTask, error) {
	if sess.PendingAsk == nil || sess.ActiveTask == nil {
		return nil, fmt.Errorf("no pending question on session %s", sess.ID)
	}
	task := sess.ActiveTask

	key := sess.PendingAsk.Expects.AnswerKey()
	if marker, ok := task.State.Artifact(models.ArtifactKeyAskUserPending); ok {
		if ask, ok := marker.(*models.AskUserPending); ok {
			key = ask.AnswerKey()
		}
	}
	task.State.SetArtifact(key, strings.TrimSpace(answer))
	delete(task.State.Artifacts, models.ArtifactKeyAskUserPending)

	m.sink.Emit(telemetry.Record{
		Event:     telemetry.EventAskUserResume,
		Stage:     telemetry.StageAskUser,
		SessionID: sess.ID,
		TaskID:    task.TaskID,
		Detail:    map[string]any{"ask_id": sess.PendingAsk.AskID, "answer_key": key},
	})
	sess.PendingAsk = nil
	return task, nil
}

// AbandonTask drops the active task and pending ask, e.g. on an override.
func (m *Manager) AbandonTask(sess *models.Session) {
	sess.ActiveTask = nil
	sess.PendingAsk = nil
}
