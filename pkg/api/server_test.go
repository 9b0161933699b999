package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triad-ai/triad/pkg/agent"
	"github.com/triad-ai/triad/pkg/config"
	"github.com/triad-ai/triad/pkg/events"
	"github.com/triad-ai/triad/pkg/llm"
	"github.com/triad-ai/triad/pkg/models"
	"github.com/triad-ai/triad/pkg/orchestrator"
	"github.com/triad-ai/triad/pkg/session"
	"github.com/triad-ai/triad/pkg/telemetry"
	"github.com/triad-ai/triad/pkg/tools"
)

func testServer(t *testing.T, responses ...string) (*Server, *session.Service, *events.Bus) {
	t.Helper()
	cfg := &config.Config{
		PlannerModel:       "planner-m",
		JudgeModel:         "judge-m",
		ExecutorModel:      "exec-m",
		MaxTokensPerStage:  1024,
		MaxPlanIters:       2,
		MaxToolCallsPerAct: 3,
		MaxTotalToolCalls:  6,
		MaxExecutionTime:   20 * time.Second,
		DesktopDir:         t.TempDir(),
		Timezone:           "Europe/Amsterdam",
		LogLevel:           "info",
		Host:               "127.0.0.1",
		Port:               8080,
	}
	logger := slog.Default()
	sink := telemetry.NopSink{}
	client := llm.NewScriptedClient(responses...)
	reg := tools.NewBuiltinRegistry(cfg, sink, logger, tools.BuiltinOptions{})
	bus := events.NewBus(logger)

	orch := orchestrator.New(
		agent.NewPlanner(client, cfg, reg, sink, logger),
		agent.NewExecutor(client, cfg, reg, sink, logger, nil),
		agent.NewJudge(client, cfg, sink, logger),
		cfg, sink, logger,
	)
	mgr := session.NewManager(sink, logger, nil)
	svc := session.NewService(mgr, orch, client, cfg, bus, nil, logger, nil)
	return NewServer(svc, bus, cfg, nil, logger), svc, bus
}

func TestHealth(t *testing.T) {
	srv, _, _ := testServer(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestPostMessageValidation(t *testing.T) {
	srv, _, _ := testServer(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostMessageAccepted(t *testing.T) {
	srv, _, _ := testServer(t, "Hi!")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(`{"message": "hello"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	var resp MessageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "accepted", resp.Status)
}

func TestPostMessageBusyConflict(t *testing.T) {
	srv, svc, _ := testServer(t)
	sess := svc.Manager().GetOrCreate("busy")
	require.NoError(t, svc.Manager().Acquire(sess.ID))
	defer svc.Manager().Release(sess.ID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/busy/messages", strings.NewReader(`{"message": "hello"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPostMessageAskMismatch(t *testing.T) {
	srv, svc, _ := testServer(t)
	sess := svc.Manager().GetOrCreate("asked")
	sess.PendingAsk = &models.PendingAsk{AskID: "ask-1", TaskID: "t1"}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/asked/messages",
		strings.NewReader(`{"message": "Utrecht", "ask_id": "stale"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotNil(t, sess.PendingAsk)
}

func TestGetSession(t *testing.T) {
	srv, svc, _ := testServer(t)

	t.Run("unknown session", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/sessions/nope", nil)
		srv.Router().ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("summary includes pending ask", func(t *testing.T) {
		sess := svc.Manager().GetOrCreate("s1")
		sess.AppendHistory("user", "what's the weather", time.Now())
		sess.PendingAsk = &models.PendingAsk{AskID: "ask-1", TaskID: "t1", Questions: []string{"Which city?"}}
		sess.ActiveTask = &models.ActiveTask{TaskID: "t1", State: models.NewExecutionState(), PlanIterations: 1}

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/sessions/s1", nil)
		srv.Router().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var summary SessionSummary
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
		assert.Equal(t, "ask-1", summary.PendingAskID)
		assert.Equal(t, []string{"Which city?"}, summary.Questions)
		assert.Equal(t, "t1", summary.ActiveTaskID)
		assert.Equal(t, 1, summary.PlanIterations)
		require.Len(t, summary.History, 1)
		assert.Equal(t, "user", summary.History[0].Role)
	})
}

func TestWebSocketRequiresKnownSession(t *testing.T) {
	srv, _, _ := testServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ws?session_id=nope", nil)
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebSocketStreamsEvents(t *testing.T) {
	srv, svc, bus := testServer(t)
	sess := svc.Manager().GetOrCreate("ws-sess")

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?session_id=" + sess.ID
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	// The subscription is registered before the upgrade handshake returns
	// to the dialer, so publishing immediately is safe.
	require.Eventually(t, func() bool {
		return bus.SubscriberCount(sess.ID) == 1
	}, time.Second, 5*time.Millisecond)

	events.NewPublisher(bus, sess.ID).PublishFinalAnswer("done")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev events.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, events.EventFinalAnswer, ev.Type)
	require.NotNil(t, ev.FinalAnswer)
	assert.Equal(t, "done", ev.FinalAnswer.Content)
}
