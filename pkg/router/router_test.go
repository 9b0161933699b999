package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name  string
		query string
		smart bool
	}{
		{"weather query", "what's the weather in Amsterdam", true},
		{"time query", "what time is it", true},
		{"relative date", "do I have meetings tomorrow", true},
		{"math inline", "what is 17*23", true},
		{"file task", "write a poem and save it to a file", true},
		{"search", "search for the latest Go release", true},
		{"short greeting", "hi there!", false},
		{"small talk", "how are you doing", false},
		{"short with instruction word", "make me laugh", true},
		{"long prose", "I've been thinking a lot about how language models decompose problems and whether that mirrors human planning in any meaningful way", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.query)
			assert.Equal(t, tt.smart, d.Smart, "reason: %s", d.Reason)
			assert.Greater(t, d.Confidence, 0.0)
			assert.NotEmpty(t, d.Reason)
		})
	}
}

func TestDecideOverrides(t *testing.T) {
	d := Decide("/chat what's the weather")
	assert.False(t, d.Smart)
	assert.Equal(t, 1.0, d.Confidence)

	d = Decide("/plan hello")
	assert.True(t, d.Smart)
	assert.Equal(t, 1.0, d.Confidence)
}

func TestStripOverride(t *testing.T) {
	assert.Equal(t, "what's up", StripOverride("/chat what's up"))
	assert.Equal(t, "hello", StripOverride("/plan hello"))
	assert.Equal(t, "no prefix", StripOverride("no prefix"))
}
