package worldstate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// mongoDate is the upstream's extended-JSON timestamp shape:
// {"$date":{"$numberLong":"1700000000000"}}.
type mongoDate struct {
	Date struct {
		NumberLong string `json:"$numberLong"`
	} `json:"$date"`
}

func (d mongoDate) Time() time.Time {
	ms, err := strconv.ParseInt(d.Date.NumberLong, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Fissure is a raw active-mission record as the upstream serializes it.
// Only the fields the monitor reads are decoded.
type Fissure struct {
	Node        string    `json:"Node"`
	MissionType string    `json:"MissionType"`
	Hard        bool      `json:"Hard"`
	Modifier    string    `json:"Modifier"`
	Activation  mongoDate `json:"Activation"`
	Expiry      mongoDate `json:"Expiry"`
}

// State is the subset of the world-state payload the watcher consumes.
type State struct {
	ActiveMissions []Fissure `json:"ActiveMissions"`
}

// Snapshot is the full upstream payload captured at one fetch. The raw
// bytes are kept alongside the decoded state so secondary consumers can
// parse fields this package does not model.
type Snapshot struct {
	FetchedAt time.Time
	Raw       []byte
	State     State
}

// ParseSnapshot decodes a raw world-state body. The transport labels the
// body text/html; it is JSON regardless.
func ParseSnapshot(raw []byte, fetchedAt time.Time) (*Snapshot, error) {
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decoding world state: %w", err)
	}
	return &Snapshot{FetchedAt: fetchedAt, Raw: raw, State: st}, nil
}

// Stale reports whether the snapshot is older than ttl.
func (s *Snapshot) Stale(ttl time.Duration) bool {
	return time.Since(s.FetchedAt) >= ttl
}

// Resolver maps raw node paths to display names and planets. The real
// implementation lives in the chat bot's translation layer; the watcher
// only depends on this boundary.
type Resolver interface {
	NodeName(node string) string
	NodePlanet(node string) string
}

// RawResolver passes node paths through unresolved. Planet lookups
// return "" which only ever matches the "all" wildcard.
type RawResolver struct{}

func (RawResolver) NodeName(node string) string   { return node }
func (RawResolver) NodePlanet(node string) string { return "" }

// Event is a normalized fissure extracted from a snapshot.
type Event struct {
	Node        string // raw upstream node path, e.g. "SolNode123"
	NodeName    string // resolved display name
	MissionType string
	Hard        bool
	Tier        string
	Planet      string
	Activation  time.Time
	Expiry      time.Time
}

// Identity derives the dedup key for an event. Two polls observing the
// same still-active fissure must produce the same identity, so only
// fields stable for the lifetime of the occurrence participate.
func (e Event) Identity() string {
	return fmt.Sprintf("%s_%s_%t_%s_%d",
		e.Node, e.MissionType, e.Hard, e.Tier, e.Activation.UnixMilli())
}

// Difficulty returns "steel" for hard-mode fissures, "normal" otherwise.
func (e Event) Difficulty() string {
	if e.Hard {
		return "steel"
	}
	return "normal"
}

// Expired reports whether the event's expiry has passed.
func (e Event) Expired(now time.Time) bool {
	return !e.Expiry.IsZero() && now.After(e.Expiry)
}

// tierNames maps upstream void-tier modifiers to their display names.
var tierNames = map[string]string{
	"VoidT1": "Lith",
	"VoidT2": "Meso",
	"VoidT3": "Neo",
	"VoidT4": "Axi",
	"VoidT5": "Requiem",
	"VoidT6": "Omnia",
}

// TierName translates a raw modifier into its display name, falling back
// to a trimmed form of the raw value.
func TierName(modifier string) string {
	if name, ok := tierNames[modifier]; ok {
		return name
	}
	return strings.Replace(modifier, "VoidT", "T", 1)
}

// Events extracts normalized events from a snapshot, resolving node
// names and planets through the given resolver.
func (s *Snapshot) Events(r Resolver) []Event {
	events := make([]Event, 0, len(s.State.ActiveMissions))
	for _, f := range s.State.ActiveMissions {
		events = append(events, Event{
			Node:        f.Node,
			NodeName:    r.NodeName(f.Node),
			MissionType: f.MissionType,
			Hard:        f.Hard,
			Tier:        TierName(f.Modifier),
			Planet:      r.NodePlanet(f.Node),
			Activation:  f.Activation.Time(),
			Expiry:      f.Expiry.Time(),
		})
	}
	return events
}
