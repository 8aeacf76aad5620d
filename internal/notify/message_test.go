package notify

import (
	"time"

	"github.com/sollane/worldstate-watcher/internal/worldstate"
)

func sampleEvent(expiry time.Time) worldstate.Event {
	return worldstate.Event{
		Node:        "SolNode706",
		NodeName:    "Cordelia",
		MissionType: "MT_DEFENSE",
		Hard:        true,
		Tier:        "Neo",
		Planet:      "Uranus",
		Expiry:      expiry,
	}
}
