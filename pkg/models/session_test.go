package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAskExpectAnswerKey(t *testing.T) {
	tests := []struct {
		expects AskExpect
		key     string
	}{
		{AskExpectCity, "user_city"},
		{AskExpectDate, "user_date"},
		{AskExpectAnswer, "user_answer"},
		{AskExpect("mood"), "user_answer"},
	}
	for _, tt := range tests {
		t.Run(string(tt.expects), func(t *testing.T) {
			assert.Equal(t, tt.key, tt.expects.AnswerKey())
		})
	}
}

func TestAskUserPendingAnswerKey(t *testing.T) {
	t.Run("output_key wins over expects", func(t *testing.T) {
		m := &AskUserPending{Expects: AskExpectCity, OutputKey: "preferred_city"}
		assert.Equal(t, "preferred_city", m.AnswerKey())
	})

	t.Run("falls back to expects mapping", func(t *testing.T) {
		m := &AskUserPending{Expects: AskExpectDate}
		assert.Equal(t, "user_date", m.AnswerKey())
	})
}

func TestTaskAndSessionExpiry(t *testing.T) {
	now := time.Now()

	task := &ActiveTask{CreatedAt: now.Add(-59 * time.Minute)}
	assert.False(t, task.Expired(now))
	task.CreatedAt = now.Add(-61 * time.Minute)
	assert.True(t, task.Expired(now))

	// A touch resets the inactivity clock even for an old task.
	task.Touch(now.Add(-time.Minute))
	assert.False(t, task.Expired(now))
	task.Touch(now.Add(-61 * time.Minute))
	assert.True(t, task.Expired(now))

	sess := &Session{LastActivity: now.Add(-23 * time.Hour)}
	assert.False(t, sess.Expired(now))
	sess.LastActivity = now.Add(-25 * time.Hour)
	assert.True(t, sess.Expired(now))
}

func TestHistoryRingBounded(t *testing.T) {
	sess := &Session{}
	for i := 0; i < MaxHistoryEntries+5; i++ {
		sess.AppendHistory("user", "msg", time.Now())
	}
	assert.Len(t, sess.History, MaxHistoryEntries)
}
