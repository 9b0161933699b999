package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/triad-ai/triad/pkg/models"
)

// relativeTokens maps relative-date phrases to day offsets. Longer phrases
// are checked first so "day after tomorrow" wins over "tomorrow".
var relativeTokens = []struct {
	phrase string
	offset int
}{
	{"day after tomorrow", 2},
	{"overmorgen", 2},
	{"tomorrow", 1},
	{"morgen", 1},
	{"yesterday", -1},
	{"gisteren", -1},
	{"today", 0},
	{"tonight", 0},
	{"vandaag", 0},
	{"now", 0},
}

// dateLayouts are the absolute formats accepted, in priority order.
var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// NormalizeDate resolves a natural-language or formatted date to YYYY-MM-DD
// relative to now in loc. Shared with the executor's relative-date rewrite.
func NormalizeDate(input string, loc *time.Location, now time.Time) (string, error) {
	text := strings.ToLower(strings.TrimSpace(input))
	if text == "" {
		return "", fmt.Errorf("empty date")
	}
	base := now.In(loc)

	for _, tok := range relativeTokens {
		if strings.Contains(text, tok.phrase) {
			return base.AddDate(0, 0, tok.offset).Format("2006-01-02"), nil
		}
	}

	if wd, ok := parseWeekday(text); ok {
		days := (int(wd) - int(base.Weekday()) + 7) % 7
		if days == 0 || strings.Contains(text, "next") {
			days += 7
		}
		return base.AddDate(0, 0, days).Format("2006-01-02"), nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(input), loc); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", input)
}

func parseWeekday(text string) (time.Weekday, bool) {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if strings.Contains(text, strings.ToLower(wd.String())) {
			return wd, true
		}
	}
	return 0, false
}

// ContainsRelativeDate reports whether s mentions a relative-date phrase.
// Used by the executor to decide when to rewrite an argument.
func ContainsRelativeDate(s string) bool {
	text := strings.ToLower(s)
	for _, tok := range relativeTokens {
		if tok.phrase == "now" {
			// Too common as a plain word to treat as a date.
			continue
		}
		if strings.Contains(text, tok.phrase) {
			return true
		}
	}
	return false
}

// NewDateNormalizeTool wraps NormalizeDate as a registered tool.
func NewDateNormalizeTool(defaultLoc *time.Location, now func() time.Time) Definition {
	if now == nil {
		now = time.Now
	}
	return Definition{
		Name:        "date_normalize",
		Description: "Normalize a natural-language date (today, tomorrow, next friday, 24-08-2026) to YYYY-MM-DD.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"date": {"type": "string"},
				"timezone": {"type": "string"}
			},
			"required": ["date"]
		}`),
		Timeout: 3 * time.Second,
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, *models.ToolError) {
			input, _ := args["date"].(string)
			loc := defaultLoc
			if tz, ok := args["timezone"].(string); ok && tz != "" {
				parsed, err := time.LoadLocation(tz)
				if err != nil {
					return nil, &models.ToolError{
						Code:    models.ErrorCodeInvalidInput,
						Message: fmt.Sprintf("unknown timezone %q", tz),
					}
				}
				loc = parsed
			}
			normalized, err := NormalizeDate(input, loc, now())
			if err != nil {
				return nil, &models.ToolError{
					Code:    models.ErrorCodeInvalidInput,
					Message: err.Error(),
				}
			}
			return map[string]any{
				"normalized_date": normalized,
				"original_input":  input,
				"timezone":        loc.String(),
			}, nil
		},
	}
}
