package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/triad-ai/triad/pkg/models"
)

// NewTimeTool reports the current time in the configured timezone. A nil
// now defaults to time.Now; tests inject a fixed clock.
func NewTimeTool(loc *time.Location, now func() time.Time) Definition {
	if now == nil {
		now = time.Now
	}
	return Definition{
		Name:        "time_now",
		Description: "Get the current date and time in the configured timezone. Takes no parameters.",
		Parameters:  json.RawMessage(`{"type":"object","additionalProperties":true}`),
		Timeout:     3 * time.Second,
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, *models.ToolError) {
			t := now().In(loc)
			return map[string]any{
				"iso_time":     t.Format(time.RFC3339),
				"current_time": t.Format("2006-01-02 15:04"),
				"local_time":   t.Format("15:04"),
				"date":         t.Format("2006-01-02"),
				"weekday":      t.Weekday().String(),
				"timezone":     loc.String(),
				"timestamp":    t.Unix(),
				"time_of_day":  timeOfDay(t.Hour()),
			}, nil
		},
	}
}

func timeOfDay(hour int) string {
	switch {
	case hour < 6:
		return "night"
	case hour < 12:
		return "morning"
	case hour < 18:
		return "afternoon"
	default:
		return "evening"
	}
}
