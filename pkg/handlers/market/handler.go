// Package market provides market session information handlers.
package market

import (
	"context"
	"fmt"
	"time"

	"github.com/coreza/coreza/pkg/handlers"
)

const Service = "market"

func Register(reg *handlers.Registry) {
	reg.Register(Service, "market_info", Info)
}

// session describes a market type's regular trading window. Crypto and forex
// trade around the clock; the rest use a fixed daily session.
type session struct {
	open      string
	close     string
	alwaysOn  bool
	staleness time.Duration
}

var sessions = map[string]session{
	"stocks":      {open: "09:30:00", close: "16:00:00", staleness: time.Minute},
	"crypto":      {alwaysOn: true, staleness: 30 * time.Second},
	"forex":       {alwaysOn: true, staleness: time.Minute},
	"commodities": {open: "09:00:00", close: "14:30:00", staleness: 5 * time.Minute},
	"bonds":       {open: "08:00:00", close: "17:00:00", staleness: 5 * time.Minute},
}

// Info reports hours, status and cache staleness for a market type.
func Info(_ context.Context, inputs map[string]any) (map[string]any, error) {
	marketType, _ := inputs["market_type"].(string)

	s, ok := sessions[marketType]
	if !ok {
		return map[string]any{"error": fmt.Sprintf("unsupported market_type: %s", marketType)}, nil
	}

	timezone, _ := inputs["timezone"].(string)
	if timezone == "" {
		timezone = "UTC"
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return map[string]any{"error": fmt.Sprintf("unknown timezone: %s", timezone)}, nil
	}

	now := time.Now().In(loc)

	output := map[string]any{
		"market_type":  marketType,
		"timezone":     timezone,
		"as_of":        now.Format(time.RFC3339),
		"stale_after":  s.staleness.String(),
		"session_type": "regular",
	}

	if s.alwaysOn {
		output["status"] = "open"
		output["hours"] = map[string]any{"open": "00:00:00", "close": "24:00:00"}

		return output, nil
	}

	output["hours"] = map[string]any{"open": s.open, "close": s.close}
	output["status"] = statusAt(now, s)

	return output, nil
}

func statusAt(now time.Time, s session) string {
	clock := now.Format("15:04:05")

	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return "closed"
	}

	if clock >= s.open && clock < s.close {
		return "open"
	}

	return "closed"
}
