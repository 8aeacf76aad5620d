package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/sollane/worldstate-watcher/internal/worldstate"
)

// FormatMentions renders the owner-mention line prepended to a batched
// channel notification.
func FormatMentions(owners []string) string {
	parts := make([]string, 0, len(owners))
	for _, owner := range owners {
		parts = append(parts, "@"+owner)
	}
	return strings.Join(parts, " ")
}

// FormatFissureMessage renders one notification body for a new fissure.
func FormatFissureMessage(ev worldstate.Event, now time.Time) string {
	var sb strings.Builder

	difficulty := "normal"
	if ev.Hard {
		difficulty = "steel path"
	}

	location := ev.NodeName
	if ev.Planet != "" {
		location = fmt.Sprintf("%s (%s)", ev.NodeName, ev.Planet)
	}

	sb.WriteString("A fissure you watch just appeared\n")
	sb.WriteString(fmt.Sprintf("Mission: %s\n", ev.MissionType))
	sb.WriteString(fmt.Sprintf("Difficulty: %s\n", difficulty))
	sb.WriteString(fmt.Sprintf("Tier: %s\n", ev.Tier))
	sb.WriteString(fmt.Sprintf("Location: %s", location))

	if !ev.Expiry.IsZero() {
		left := ev.Expiry.Sub(now).Round(time.Minute)
		if left > 0 {
			sb.WriteString(fmt.Sprintf("\nTime left: %s", left))
		}
	}

	return sb.String()
}
