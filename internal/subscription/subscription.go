package subscription

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sollane/worldstate-watcher/internal/worldstate"
)

// Wildcard values accepted in filter fields.
const (
	DifficultyNormal = "normal"
	DifficultySteel  = "steel"
	DifficultyBoth   = "both"
	TierAll          = "all"
	PlanetAll        = "all"
)

// Subscription is a persisted filter plus delivery target. Records are
// immutable once created; changing criteria is modeled as remove + add.
type Subscription struct {
	ID           string  `json:"id"`
	Owner        string  `json:"owner"`
	Channel      string  `json:"channel"`
	MissionType  string  `json:"mission_type"`
	Difficulty   string  `json:"difficulty"`
	Tier         string  `json:"tier"`
	Planet       string  `json:"planet"`
	NodeFilter   string  `json:"node_filter,omitempty"`
	LastNotified float64 `json:"last_notified_time"`
	Created      float64 `json:"created_time"`
}

// New builds a subscription with defaults applied to empty filter fields.
func New(owner, channel, missionType, difficulty, tier, planet, nodeFilter string) Subscription {
	if difficulty == "" {
		difficulty = DifficultyNormal
	}
	if tier == "" {
		tier = TierAll
	}
	if planet == "" {
		planet = PlanetAll
	}
	return Subscription{
		ID:          uuid.New().String(),
		Owner:       owner,
		Channel:     channel,
		MissionType: missionType,
		Difficulty:  difficulty,
		Tier:        tier,
		Planet:      planet,
		NodeFilter:  nodeFilter,
		Created:     float64(time.Now().Unix()),
	}
}

// sameCriteria reports whether two subscriptions describe the identical
// (owner, channel, filter) tuple. Used for duplicate rejection.
func (s Subscription) sameCriteria(o Subscription) bool {
	return s.Owner == o.Owner &&
		s.Channel == o.Channel &&
		s.MissionType == o.MissionType &&
		s.Difficulty == o.Difficulty &&
		s.Tier == o.Tier &&
		s.Planet == o.Planet &&
		s.NodeFilter == o.NodeFilter
}

// Matches evaluates the subscription's criteria conjunctively against an
// event. Every field must pass for the subscription to match.
func (s Subscription) Matches(ev worldstate.Event) bool {
	if s.MissionType != ev.MissionType {
		return false
	}
	if s.Difficulty != DifficultyBoth && s.Difficulty != ev.Difficulty() {
		return false
	}
	if s.Tier != TierAll && s.Tier != ev.Tier {
		return false
	}
	if s.Planet != PlanetAll && s.Planet != ev.Planet {
		return false
	}
	if s.NodeFilter != "" {
		// Display names match case-insensitively; raw node paths are
		// matched verbatim.
		nameHit := strings.Contains(strings.ToLower(ev.NodeName), strings.ToLower(s.NodeFilter))
		pathHit := strings.Contains(ev.Node, s.NodeFilter)
		if !nameHit && !pathHit {
			return false
		}
	}
	return true
}
