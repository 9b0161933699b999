package events

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeValidity(t *testing.T) {
	valid := []EventType{
		EventAssistantContent, EventStatus, EventToolTrace, EventDebug,
		EventAskUserOpen, EventAskUserClose, EventFinalAnswer, EventError,
	}
	for _, et := range valid {
		assert.True(t, et.IsValid(), string(et))
	}
	assert.False(t, EventType("heartbeat").IsValid())
}

func TestTerminalVariants(t *testing.T) {
	assert.True(t, EventAskUserOpen.Terminal())
	assert.True(t, EventFinalAnswer.Terminal())
	assert.True(t, EventError.Terminal())
	assert.False(t, EventStatus.Terminal())
	assert.False(t, EventAssistantContent.Terminal())
	assert.False(t, EventAskUserClose.Terminal())
}

func TestBusFanout(t *testing.T) {
	bus := NewBus(slog.Default())
	ch1, cancel1 := bus.Subscribe("s1")
	ch2, cancel2 := bus.Subscribe("s1")
	other, cancelOther := bus.Subscribe("s2")
	defer cancel2()
	defer cancelOther()

	pub := NewPublisher(bus, "s1")
	pub.PublishStatus("PLAN", "planning")

	for _, ch := range []<-chan Event{ch1, ch2} {
		ev := <-ch
		assert.Equal(t, EventStatus, ev.Type)
		assert.Equal(t, "s1", ev.SessionID)
		assert.Equal(t, "PLAN", ev.Status.State)
		assert.False(t, ev.Timestamp.IsZero())
	}
	select {
	case ev := <-other:
		t.Fatalf("s2 subscriber received event for s1: %+v", ev)
	default:
	}

	cancel1()
	_, open := <-ch1
	assert.False(t, open, "cancel closes the channel")
	assert.Equal(t, 1, bus.SubscriberCount("s1"))
}

func TestBusDropsWhenNoSubscriber(t *testing.T) {
	bus := NewBus(slog.Default())
	// Must not block or panic.
	NewPublisher(bus, "ghost").PublishFinalAnswer("done")
	assert.Equal(t, 0, bus.SubscriberCount("ghost"))
}

func TestBusDropsForSlowSubscriber(t *testing.T) {
	bus := NewBus(slog.Default())
	ch, cancel := bus.Subscribe("s1")
	defer cancel()

	pub := NewPublisher(bus, "s1")
	for i := 0; i < subscriberBuffer+10; i++ {
		pub.PublishDebug("spam")
	}
	// Buffer holds exactly subscriberBuffer events; the rest were dropped.
	assert.Len(t, ch, subscriberBuffer)
}

func TestPublisherPayloadShapes(t *testing.T) {
	bus := NewBus(slog.Default())
	ch, cancel := bus.Subscribe("s1")
	defer cancel()
	pub := NewPublisher(bus, "s1")

	pub.PublishAssistantDelta("hel")
	pub.PublishToolTrace("s2", "weather_get", true, 120, "21.5°C")
	pub.PublishAskUserOpen("ask-1", []string{"Which city?"}, "city")
	pub.PublishAskUserClose("ask-1", true)
	pub.PublishFinalAnswer("done")
	pub.PublishError("boom", "INTERNAL")

	ev := <-ch
	require.NotNil(t, ev.AssistantContent)
	assert.Equal(t, "hel", ev.AssistantContent.Delta)

	ev = <-ch
	require.NotNil(t, ev.ToolTrace)
	assert.Equal(t, "weather_get", ev.ToolTrace.Tool)
	assert.True(t, ev.ToolTrace.Ok)

	ev = <-ch
	require.NotNil(t, ev.AskUserOpen)
	assert.Equal(t, "ask-1", ev.AskUserOpen.AskID)
	assert.Equal(t, []string{"Which city?"}, ev.AskUserOpen.Questions)

	ev = <-ch
	require.NotNil(t, ev.AskUserClose)
	assert.True(t, ev.AskUserClose.Accepted)

	ev = <-ch
	require.NotNil(t, ev.FinalAnswer)
	assert.Equal(t, "done", ev.FinalAnswer.Content)

	ev = <-ch
	require.NotNil(t, ev.Error)
	assert.Equal(t, "INTERNAL", ev.Error.Code)
}
