package events

// Publisher wraps a bus with a session ID and typed publish methods, so
// callers cannot construct mismatched envelopes.
type Publisher struct {
	bus       *Bus
	sessionID string
}

// NewPublisher binds a publisher to one session.
func NewPublisher(bus *Bus, sessionID string) *Publisher {
	return &Publisher{bus: bus, sessionID: sessionID}
}

func (p *Publisher) publish(ev Event) {
	ev.SessionID = p.sessionID
	p.bus.Publish(ev)
}

// PublishAssistantDelta streams a piece of chat text.
func (p *Publisher) PublishAssistantDelta(delta string) {
	p.publish(Event{
		Type:             EventAssistantContent,
		AssistantContent: &AssistantContentPayload{Delta: delta},
	})
}

// PublishStatus reports a state transition.
func (p *Publisher) PublishStatus(state, detail string) {
	p.publish(Event{
		Type:   EventStatus,
		Status: &StatusPayload{State: state, Detail: detail},
	})
}

// PublishToolTrace reports a tool invocation outcome.
func (p *Publisher) PublishToolTrace(stepID, tool string, ok bool, latencyMs int64, summary string) {
	p.publish(Event{
		Type: EventToolTrace,
		ToolTrace: &ToolTracePayload{
			StepID:    stepID,
			Tool:      tool,
			Ok:        ok,
			LatencyMs: latencyMs,
			Summary:   summary,
		},
	})
}

// PublishDebug emits developer diagnostics.
func (p *Publisher) PublishDebug(message string) {
	p.publish(Event{
		Type:  EventDebug,
		Debug: &DebugPayload{Message: message},
	})
}

// PublishAskUserOpen suspends the slice on a question.
func (p *Publisher) PublishAskUserOpen(askID string, questions []string, expects string) {
	p.publish(Event{
		Type: EventAskUserOpen,
		AskUserOpen: &AskUserOpenPayload{
			AskID:     askID,
			Questions: questions,
			Expects:   expects,
		},
	})
}

// PublishAskUserClose closes a pending ask, either answered or discarded.
func (p *Publisher) PublishAskUserClose(askID string, accepted bool) {
	p.publish(Event{
		Type:         EventAskUserClose,
		AskUserClose: &AskUserClosePayload{AskID: askID, Accepted: accepted},
	})
}

// PublishFinalAnswer completes the slice.
func (p *Publisher) PublishFinalAnswer(content string) {
	p.publish(Event{
		Type:        EventFinalAnswer,
		FinalAnswer: &FinalAnswerPayload{Content: content},
	})
}

// PublishError terminates the slice with a failure.
func (p *Publisher) PublishError(message, code string) {
	p.publish(Event{
		Type:  EventError,
		Error: &ErrorPayload{Message: message, Code: code},
	})
}
