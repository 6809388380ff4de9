package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateResolver implements llm.Tool, resolving a relative weekday/keyword
// reference ("Friday", "today", "tomorrow") against a reference time into
// an ISO-8601 date. It never touches the network or filesystem.
type DateResolver struct {
	// Now returns the reference time to resolve relative dates against.
	// Defaults to time.Now if nil.
	Now func() time.Time
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func (d *DateResolver) Name() string { return "resolve_date" }

func (d *DateResolver) Description() string {
	return "Resolves a relative date reference (a weekday name, \"today\", or \"tomorrow\") into an ISO-8601 date."
}

func (d *DateResolver) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"date": {"type": "string", "description": "Relative date reference, e.g. \"Friday\", \"today\", \"tomorrow\""}
		},
		"required": ["date"]
	}`)
}

// DateResolution is the structured result resolve_date returns.
type DateResolution struct {
	ResolvedDate string `json:"resolved_date"`
}

func (d *DateResolver) Invoke(_ context.Context, args map[string]any) (any, error) {
	raw, _ := args["date"].(string)
	ref := strings.ToLower(strings.TrimSpace(raw))
	if ref == "" {
		return nil, fmt.Errorf("resolve_date: missing \"date\" argument")
	}

	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	today := now().Truncate(24 * time.Hour)

	switch ref {
	case "today":
		return DateResolution{ResolvedDate: today.Format("2006-01-02")}, nil
	case "tomorrow":
		return DateResolution{ResolvedDate: today.AddDate(0, 0, 1).Format("2006-01-02")}, nil
	case "yesterday":
		return DateResolution{ResolvedDate: today.AddDate(0, 0, -1).Format("2006-01-02")}, nil
	}

	if weekday, ok := weekdays[ref]; ok {
		days := (int(weekday) - int(today.Weekday()) + 7) % 7
		if days == 0 {
			days = 7 // "this Friday" on a Friday means next week's Friday, not today
		}
		return DateResolution{ResolvedDate: today.AddDate(0, 0, days).Format("2006-01-02")}, nil
	}

	return nil, fmt.Errorf("resolve_date: unrecognized date reference %q", raw)
}
