package session

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/triad-ai/triad/pkg/config"
	"github.com/triad-ai/triad/pkg/events"
	"github.com/triad-ai/triad/pkg/llm"
	"github.com/triad-ai/triad/pkg/models"
	"github.com/triad-ai/triad/pkg/observability"
	"github.com/triad-ai/triad/pkg/orchestrator"
	"github.com/triad-ai/triad/pkg/router"
)

const chatSystemPrompt = `You are a friendly assistant. Answer directly and concisely.`

// Service is the engine facade: it accepts user messages, routes them, and
// runs orchestration slices or one-shot chat replies, one at a time per
// session.
type Service struct {
	mgr     *Manager
	orch    *orchestrator.Orchestrator
	client  llm.Client
	cfg     *config.Config
	bus     *events.Bus
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires the facade. Metrics may be nil. A nil now defaults to
// time.Now.
func NewService(mgr *Manager, orch *orchestrator.Orchestrator, client llm.Client, cfg *config.Config, bus *events.Bus, metrics *observability.Metrics, logger *slog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		mgr:     mgr,
		orch:    orch,
		client:  client,
		cfg:     cfg,
		bus:     bus,
		metrics: metrics,
		logger:  logger,
		now:     now,
	}
}

// Manager exposes the session registry for the API layer.
func (s *Service) Manager() *Manager { return s.mgr }

// HandleMessage classifies and asynchronously processes one message. The
// returned session ID identifies the (possibly fresh) session. A busy
// session or an ask_id mismatch rejects the message synchronously.
func (s *Service) HandleMessage(sessionID, text, askID string) (string, error) {
	sess := s.mgr.GetOrCreate(sessionID)

	kind, err := s.mgr.Classify(sess, text, askID)
	if err != nil {
		return sess.ID, err
	}
	if err := s.mgr.Acquire(sess.ID); err != nil {
		return sess.ID, err
	}
	if s.metrics != nil {
		s.metrics.MessagesTotal.WithLabelValues(string(kind)).Inc()
	}

	sess.AppendHistory("user", text, s.now())
	go s.process(sess, kind, text)
	return sess.ID, nil
}

// process runs on the session's slice goroutine. The HTTP request that
// carried the message is long gone, so the slice gets its own context.
func (s *Service) process(sess *models.Session, kind MessageKind, text string) {
	defer s.mgr.Release(sess.ID)
	ctx := context.Background()
	pub := events.NewPublisher(s.bus, sess.ID)

	switch kind {
	case KindAnswer:
		askID := sess.PendingAsk.AskID
		task, err := s.mgr.Resume(sess, text)
		if err != nil {
			pub.PublishError(err.Error(), "RESUME_FAILED")
			return
		}
		pub.PublishAskUserClose(askID, true)
		s.runSlice(ctx, sess, task, true, pub)

	case KindOverride:
		if sess.PendingAsk != nil {
			pub.PublishAskUserClose(sess.PendingAsk.AskID, false)
		}
		s.mgr.AbandonTask(sess)
		s.route(ctx, sess, text, pub)

	case KindContinuation:
		// The live task is carried forward: its plan, artifacts, and
		// budgets continue rather than starting over.
		s.runSlice(ctx, sess, sess.ActiveTask, false, pub)

	case KindNewTask:
		s.route(ctx, sess, text, pub)
	}
}

// route applies the smart-vs-simple pre-router to a fresh request.
func (s *Service) route(ctx context.Context, sess *models.Session, text string, pub *events.Publisher) {
	decision := router.Decide(text)
	pub.PublishDebug("routing: smart=" + boolStr(decision.Smart) + " " + decision.Reason)
	query := router.StripOverride(text)

	if !decision.Smart {
		s.chat(ctx, sess, query, pub)
		return
	}

	task := &models.ActiveTask{
		TaskID:       uuid.NewString(),
		UserQuery:    query,
		State:        models.NewExecutionState(),
		CreatedAt:    s.now(),
		LastActivity: s.now(),
	}
	sess.ActiveTask = task
	s.runSlice(ctx, sess, task, false, pub)
}

// runSlice executes one orchestration slice and folds the result back into
// the session.
func (s *Service) runSlice(ctx context.Context, sess *models.Session, task *models.ActiveTask, resume bool, pub *events.Publisher) {
	res := s.orch.Run(ctx, orchestrator.RunInput{
		SessionID: sess.ID,
		Task:      task,
		Resume:    resume,
		Publisher: pub,
	})
	task.Touch(s.now())
	if s.metrics != nil {
		s.metrics.ObserveSlice(string(res.Status), res.Duration)
	}

	switch res.Status {
	case orchestrator.StateAskUser:
		sess.PendingAsk = &models.PendingAsk{
			AskID:     res.Ask.AskID,
			TaskID:    task.TaskID,
			Questions: res.Ask.Questions,
			Expects:   res.Ask.Expects,
			AskedAt:   s.now(),
		}
	case orchestrator.StateDone:
		sess.AppendHistory("assistant", res.FinalAnswer, s.now())
		sess.ActiveTask = nil
		sess.PendingAsk = nil
	case orchestrator.StateFailed:
		sess.ActiveTask = nil
		sess.PendingAsk = nil
	}
	sess.LastActivity = s.now()
}

// chat answers simple messages with a one-shot streamed completion over the
// recent conversation.
func (s *Service) chat(ctx context.Context, sess *models.Session, text string, pub *events.Publisher) {
	messages := []llm.Message{{Role: "system", Content: chatSystemPrompt}}
	for _, h := range sess.History {
		messages = append(messages, llm.Message{Role: h.Role, Content: h.Content})
	}
	// History already ends with the user's message; only append when it
	// was stripped of a routing prefix.
	if len(sess.History) == 0 || sess.History[len(sess.History)-1].Content != text {
		messages = append(messages, llm.Message{Role: "user", Content: text})
	}

	ch, err := s.client.Stream(ctx, llm.Request{
		Model:       s.cfg.ExecutorModel,
		Temperature: 0.7,
		MaxTokens:   s.cfg.MaxTokensPerStage,
		Messages:    messages,
	})
	if err != nil {
		pub.PublishError("chat failed: "+err.Error(), "CHAT_FAILED")
		return
	}

	var b strings.Builder
	for chunk := range ch {
		switch c := chunk.(type) {
		case *llm.TextChunk:
			b.WriteString(c.Content)
			pub.PublishAssistantDelta(c.Content)
		case *llm.ErrorChunk:
			pub.PublishError("chat failed: "+c.Message, "CHAT_FAILED")
			return
		}
	}

	answer := b.String()
	sess.AppendHistory("assistant", answer, s.now())
	sess.LastActivity = s.now()
	pub.PublishFinalAnswer(answer)
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
