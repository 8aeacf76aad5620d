package worldstate

import (
	"testing"
	"time"
)

const sampleState = `{
	"WorldSeed": "ignored",
	"ActiveMissions": [
		{
			"_id": {"$oid": "abc"},
			"Region": 3,
			"Seed": 12345,
			"Activation": {"$date": {"$numberLong": "1700000000000"}},
			"Expiry": {"$date": {"$numberLong": "1700003600000"}},
			"Node": "SolNode123",
			"MissionType": "MT_DEFENSE",
			"Modifier": "VoidT1",
			"Hard": true
		},
		{
			"Activation": {"$date": {"$numberLong": "1700000100000"}},
			"Expiry": {"$date": {"$numberLong": "1700003700000"}},
			"Node": "SolNode45",
			"MissionType": "MT_SURVIVAL",
			"Modifier": "VoidT4"
		}
	]
}`

func TestParseSnapshot(t *testing.T) {
	snap, err := ParseSnapshot([]byte(sampleState), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(snap.State.ActiveMissions) != 2 {
		t.Fatalf("expected 2 missions, got %d", len(snap.State.ActiveMissions))
	}

	f := snap.State.ActiveMissions[0]
	if f.Node != "SolNode123" || f.MissionType != "MT_DEFENSE" || !f.Hard {
		t.Errorf("unexpected first mission: %+v", f)
	}
	if got := f.Activation.Time(); got.UnixMilli() != 1700000000000 {
		t.Errorf("unexpected activation: %v", got)
	}
}

func TestSnapshotStale(t *testing.T) {
	snap := &Snapshot{FetchedAt: time.Now().Add(-2 * time.Minute)}
	if !snap.Stale(time.Minute) {
		t.Error("expected snapshot older than ttl to be stale")
	}
	if snap.Stale(time.Hour) {
		t.Error("expected snapshot within ttl to be fresh")
	}
}

func TestParseSnapshot_Invalid(t *testing.T) {
	if _, err := ParseSnapshot([]byte("not json"), time.Now()); err == nil {
		t.Fatal("expected error for invalid payload")
	}
}

func TestEvents(t *testing.T) {
	snap, err := ParseSnapshot([]byte(sampleState), time.Now())
	if err != nil {
		t.Fatal(err)
	}

	events := snap.Events(RawResolver{})
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	ev := events[0]
	if ev.Tier != "Lith" {
		t.Errorf("expected tier Lith, got %s", ev.Tier)
	}
	if ev.Difficulty() != "steel" {
		t.Errorf("expected steel difficulty, got %s", ev.Difficulty())
	}
	if events[1].Difficulty() != "normal" {
		t.Errorf("expected normal difficulty for second event")
	}
	if events[1].Tier != "Axi" {
		t.Errorf("expected tier Axi, got %s", events[1].Tier)
	}
}

func TestIdentity_StableAcrossPolls(t *testing.T) {
	first, err := ParseSnapshot([]byte(sampleState), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	second, err := ParseSnapshot([]byte(sampleState), time.Now().Add(5*time.Minute))
	if err != nil {
		t.Fatal(err)
	}

	a := first.Events(RawResolver{})[0].Identity()
	b := second.Events(RawResolver{})[0].Identity()
	if a != b {
		t.Errorf("identity not stable across polls: %q vs %q", a, b)
	}
}

func TestIdentity_DistinguishesOccurrences(t *testing.T) {
	base := Event{
		Node:        "SolNode123",
		MissionType: "MT_DEFENSE",
		Hard:        false,
		Tier:        "Lith",
		Activation:  time.UnixMilli(1700000000000),
	}

	other := base
	other.Activation = time.UnixMilli(1700007200000)
	if base.Identity() == other.Identity() {
		t.Error("different activations must yield different identities")
	}

	harder := base
	harder.Hard = true
	if base.Identity() == harder.Identity() {
		t.Error("difficulty must participate in identity")
	}
}

func TestTierName(t *testing.T) {
	cases := map[string]string{
		"VoidT1": "Lith",
		"VoidT5": "Requiem",
		"VoidT6": "Omnia",
		"VoidT9": "T9",
	}
	for modifier, want := range cases {
		if got := TierName(modifier); got != want {
			t.Errorf("TierName(%q) = %q, want %q", modifier, got, want)
		}
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	ev := Event{Expiry: now.Add(-time.Minute)}
	if !ev.Expired(now) {
		t.Error("past expiry should report expired")
	}
	ev.Expiry = now.Add(time.Minute)
	if ev.Expired(now) {
		t.Error("future expiry should not report expired")
	}
	if (Event{}).Expired(now) {
		t.Error("zero expiry should never report expired")
	}
}
