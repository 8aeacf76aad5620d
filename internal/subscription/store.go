package subscription

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrDuplicate     = errors.New("identical subscription already exists")
	ErrQuotaExceeded = errors.New("subscription quota exceeded for owner")
)

// RemoveFilter narrows a removal. Zero-valued fields are wildcards.
type RemoveFilter struct {
	MissionType string
	Difficulty  string
	Tier        string
	Planet      string
	NodeFilter  string
}

// Store is the durable subscription collection. All mutations hold one
// mutex and re-read the durable file before rewriting it, so records
// added by another process on the same file are never clobbered. Pending
// last-notified times are kept by ID and replayed after every reload.
type Store struct {
	path        string
	maxPerOwner int
	logger      *zap.Logger

	mu      sync.Mutex
	subs    []Subscription
	pending map[string]float64
}

func NewStore(path string, maxPerOwner int, logger *zap.Logger) (*Store, error) {
	s := &Store{
		path:        path,
		maxPerOwner: maxPerOwner,
		logger:      logger,
		pending:     make(map[string]float64),
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	s.reload()
	return s, nil
}

// reload replaces the in-memory collection from the durable file and
// replays pending last-notified times. A missing or unreadable file
// yields an empty collection; individually malformed records are skipped
// with a warning. Callers must hold s.mu (NewStore excepted).
func (s *Store) reload() {
	subs := s.decodeFile()

	for i := range subs {
		if at, ok := s.pending[subs[i].ID]; ok {
			subs[i].LastNotified = at
		}
	}
	s.subs = subs

	s.logger.Debug("subscriptions loaded", zap.Int("count", len(s.subs)))
}

func (s *Store) decodeFile() []Subscription {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("subscription file unreadable, treating as empty", zap.Error(err))
		}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("subscription file unparsable, treating as empty", zap.Error(err))
		return nil
	}

	var subs []Subscription
	for i, rec := range raw {
		var sub Subscription
		if err := json.Unmarshal(rec, &sub); err != nil {
			s.logger.Warn("skipping malformed subscription record",
				zap.Int("index", i), zap.Error(err))
			continue
		}
		if sub.Owner == "" || sub.Channel == "" {
			s.logger.Warn("skipping subscription record without owner/channel",
				zap.Int("index", i))
			continue
		}
		subs = append(subs, sub)
	}
	return subs
}

// persist writes the whole collection to a temp file and atomically
// replaces the durable file. Callers must hold s.mu.
func (s *Store) persist() error {
	data, err := json.MarshalIndent(s.subs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding subscriptions: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replacing subscription file: %w", err)
	}

	s.logger.Debug("subscriptions persisted", zap.Int("count", len(s.subs)))
	return nil
}

// Add appends a subscription after duplicate and quota checks, then
// persists the full collection. The durable file is re-read first so the
// checks and the rewrite see records added by other processes.
func (s *Store) Add(sub Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reload()

	owned := 0
	for _, existing := range s.subs {
		if existing.sameCriteria(sub) {
			return ErrDuplicate
		}
		if existing.Owner == sub.Owner {
			owned++
		}
	}
	if owned >= s.maxPerOwner {
		return ErrQuotaExceeded
	}

	s.subs = append(s.subs, sub)
	if err := s.persist(); err != nil {
		return err
	}

	s.logger.Info("subscription added",
		zap.String("owner", sub.Owner),
		zap.String("channel", sub.Channel),
		zap.String("mission_type", sub.MissionType),
	)
	return nil
}

// Remove deletes every subscription matching (owner, channel) and all
// set fields of the filter, returning the removed records.
func (s *Store) Remove(owner, channel string, f RemoveFilter) []Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reload()

	var removed, remaining []Subscription
	for _, sub := range s.subs {
		match := sub.Owner == owner &&
			sub.Channel == channel &&
			(f.MissionType == "" || sub.MissionType == f.MissionType) &&
			(f.Difficulty == "" || sub.Difficulty == f.Difficulty) &&
			(f.Tier == "" || sub.Tier == f.Tier) &&
			(f.Planet == "" || sub.Planet == f.Planet) &&
			(f.NodeFilter == "" || sub.NodeFilter == f.NodeFilter)
		if match {
			removed = append(removed, sub)
		} else {
			remaining = append(remaining, sub)
		}
	}

	if len(removed) > 0 {
		s.subs = remaining
		if err := s.persist(); err != nil {
			s.logger.Error("persisting after removal failed", zap.Error(err))
		}
		s.logger.Info("subscriptions removed",
			zap.String("owner", owner),
			zap.Int("count", len(removed)),
		)
	}
	return removed
}

// ListByOwner returns the owner's subscriptions, optionally narrowed to
// one channel. Empty channel means all channels.
func (s *Store) ListByOwner(owner, channel string) []Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Subscription
	for _, sub := range s.subs {
		if sub.Owner == owner && (channel == "" || sub.Channel == channel) {
			out = append(out, sub)
		}
	}
	return out
}

// ListByChannel returns every subscription targeting the channel.
func (s *Store) ListByChannel(channel string) []Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Subscription
	for _, sub := range s.subs {
		if sub.Channel == channel {
			out = append(out, sub)
		}
	}
	return out
}

// All returns a copy of the full collection.
func (s *Store) All() []Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Subscription, len(s.subs))
	copy(out, s.subs)
	return out
}

// Touch records a notification time on the given subscriptions without
// writing to disk. Flush persists the batch; the monitor calls it once
// per cycle so write amplification stays bounded.
func (s *Store) Touch(ids []string, at time.Time) {
	if len(ids) == 0 {
		return
	}

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.subs {
		if want[s.subs[i].ID] {
			s.subs[i].LastNotified = float64(at.Unix())
			s.pending[s.subs[i].ID] = s.subs[i].LastNotified
		}
	}
}

// Flush persists pending Touch updates, if any. The durable file is
// re-read first and the pending times replayed onto it by ID, so records
// added by other processes since the last write survive the rewrite.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return nil
	}
	s.reload()
	if err := s.persist(); err != nil {
		return err
	}
	s.pending = make(map[string]float64)
	return nil
}

// Len reports the stored subscription count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
