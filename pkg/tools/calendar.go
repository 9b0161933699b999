package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/triad-ai/triad/pkg/models"
)

// demoEvents keyed by weekday, standing in for a calendar integration.
var demoEvents = map[time.Weekday][]map[string]any{
	time.Monday:    {{"title": "Team standup", "start": "09:30", "end": "09:45"}},
	time.Tuesday:   {{"title": "1:1 with manager", "start": "14:00", "end": "14:30"}},
	time.Wednesday: {{"title": "Team standup", "start": "09:30", "end": "09:45"}, {"title": "Design review", "start": "15:00", "end": "16:00"}},
	time.Thursday:  {{"title": "Sprint planning", "start": "10:00", "end": "11:00"}},
	time.Friday:    {{"title": "Demo Friday", "start": "16:00", "end": "17:00"}},
}

// NewCalendarTool serves demo calendar events for a date.
func NewCalendarTool(loc *time.Location) Definition {
	return Definition{
		Name:        "calendar_read",
		Description: "List calendar events for a date (YYYY-MM-DD).",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"date": {"type": "string"}
			},
			"required": ["date"]
		}`),
		Timeout: 8 * time.Second,
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, *models.ToolError) {
			date, _ := args["date"].(string)
			t, err := time.ParseInLocation("2006-01-02", date, loc)
			if err != nil {
				return nil, &models.ToolError{
					Code:    models.ErrorCodeInvalidInput,
					Message: "date must be YYYY-MM-DD",
				}
			}
			events := demoEvents[t.Weekday()]
			items := make([]any, len(events))
			for i, e := range events {
				items[i] = e
			}
			return map[string]any{
				"date":   date,
				"events": items,
			}, nil
		},
	}
}
