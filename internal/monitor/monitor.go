package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sollane/worldstate-watcher/internal/notify"
	"github.com/sollane/worldstate-watcher/internal/subscription"
	"github.com/sollane/worldstate-watcher/internal/worldstate"
)

// SnapshotSource is the cache boundary the monitor polls through.
type SnapshotSource interface {
	Fetch(ctx context.Context, force bool) (*worldstate.Snapshot, error)
}

// Broadcast receives every dispatched notification, for side consumers
// such as the status server's event stream. May be nil.
type Broadcast func(ev worldstate.Event, channel string, mentions []string)

// Stats describes monitor progress for the status surface.
type Stats struct {
	CyclesRun         int       `json:"cycles_run"`
	LastCycle         time.Time `json:"last_cycle"`
	ActiveFissures    int       `json:"active_fissures"`
	NotificationsSent int       `json:"notifications_sent"`
	LedgerSize        int       `json:"ledger_size"`
}

// Monitor runs the poll/diff/match/notify loop. One instance per process;
// running two concurrently would double-process diffs.
type Monitor struct {
	source     SnapshotSource
	store      *subscription.Store
	dispatcher notify.Dispatcher
	resolver   worldstate.Resolver
	interval   time.Duration
	broadcast  Broadcast
	logger     *zap.Logger

	// Loop-local state, only touched by Run's goroutine.
	previous map[string]struct{}
	ledger   *Ledger

	mu    sync.Mutex
	stats Stats
}

type Options struct {
	Source     SnapshotSource
	Store      *subscription.Store
	Dispatcher notify.Dispatcher
	Resolver   worldstate.Resolver
	Interval   time.Duration
	Broadcast  Broadcast
}

func New(opts Options, logger *zap.Logger) *Monitor {
	resolver := opts.Resolver
	if resolver == nil {
		resolver = worldstate.RawResolver{}
	}
	return &Monitor{
		source:     opts.Source,
		store:      opts.Store,
		dispatcher: opts.Dispatcher,
		resolver:   resolver,
		interval:   opts.Interval,
		broadcast:  opts.Broadcast,
		logger:     logger,
		previous:   make(map[string]struct{}),
		ledger:     NewLedger(),
	}
}

// Run executes check cycles on the configured interval until the context
// is cancelled. The first check happens immediately. A cycle in progress
// finishes before the loop exits.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("fissure monitor starting", zap.Duration("interval", m.interval))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("fissure monitor stopping")
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check runs one poll/diff/match/notify cycle.
func (m *Monitor) Check(ctx context.Context) {
	snap, err := m.source.Fetch(ctx, false)
	if snap == nil {
		m.logger.Warn("no world state available, skipping cycle", zap.Error(err))
		return
	}

	events := snap.Events(m.resolver)
	now := time.Now()

	current := make(map[string]struct{}, len(events))
	fresh := make([]worldstate.Event, 0)
	for _, ev := range events {
		id := ev.Identity()
		current[id] = struct{}{}
		if _, seen := m.previous[id]; !seen {
			fresh = append(fresh, ev)
		}
	}

	m.ledger.Sweep(now)

	sent := 0
	var touched []string
	for _, ev := range fresh {
		n, ids := m.safeProcessEvent(ctx, ev, now)
		sent += n
		touched = append(touched, ids...)
	}

	if len(touched) > 0 {
		m.store.Touch(touched, now)
	}
	if err := m.store.Flush(); err != nil {
		m.logger.Error("persisting subscription state failed", zap.Error(err))
	}

	// The previous set is replaced every cycle, notifications or not.
	m.previous = current

	m.mu.Lock()
	m.stats.CyclesRun++
	m.stats.LastCycle = now
	m.stats.ActiveFissures = len(current)
	m.stats.NotificationsSent += sent
	m.stats.LedgerSize = m.ledger.Len()
	m.mu.Unlock()

	m.logger.Debug("cycle complete",
		zap.Int("active", len(current)),
		zap.Int("new", len(fresh)),
		zap.Int("notified", sent),
	)
}

// safeProcessEvent isolates a failure in one candidate event from the
// rest of the cycle.
func (m *Monitor) safeProcessEvent(ctx context.Context, ev worldstate.Event, now time.Time) (sent int, matched []string) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("processing fissure panicked",
				zap.String("node", ev.Node),
				zap.Any("panic", r),
			)
		}
	}()
	return m.processEvent(ctx, ev, now)
}

// processEvent matches one new event against all subscriptions and
// dispatches grouped notifications. Returns the number of channel
// deliveries attempted and the IDs of matched subscriptions.
func (m *Monitor) processEvent(ctx context.Context, ev worldstate.Event, now time.Time) (int, []string) {
	id := ev.Identity()
	if m.ledger.Contains(id) {
		return 0, nil
	}

	byChannel := make(map[string][]subscription.Subscription)
	for _, sub := range m.store.All() {
		if sub.Matches(ev) {
			byChannel[sub.Channel] = append(byChannel[sub.Channel], sub)
		}
	}
	if len(byChannel) == 0 {
		return 0, nil
	}

	body := notify.FormatFissureMessage(ev, now)

	channels := make([]string, 0, len(byChannel))
	for ch := range byChannel {
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	sent := 0
	var matched []string
	for _, channel := range channels {
		subs := byChannel[channel]
		mentions := ownerMentions(subs)

		if err := m.dispatcher.Send(ctx, channel, mentions, body); err != nil {
			m.logger.Warn("notification delivery failed",
				zap.String("channel", channel),
				zap.Error(err),
			)
		} else {
			sent++
			if m.broadcast != nil {
				m.broadcast(ev, channel, mentions)
			}
		}

		for _, sub := range subs {
			matched = append(matched, sub.ID)
		}
	}

	// Delivery is best effort. The identity is recorded either way so a
	// persistently failing channel cannot cause a notification storm.
	m.ledger.Mark(id, ev.Expiry)

	m.logger.Info("fissure notification",
		zap.String("mission_type", ev.MissionType),
		zap.String("node", ev.Node),
		zap.String("tier", ev.Tier),
		zap.Int("channels", len(channels)),
		zap.Int("subscriptions", len(matched)),
	)
	return sent, matched
}

// ownerMentions deduplicates owners within a channel, preserving first
// appearance order.
func ownerMentions(subs []subscription.Subscription) []string {
	seen := make(map[string]bool, len(subs))
	var owners []string
	for _, sub := range subs {
		if !seen[sub.Owner] {
			seen[sub.Owner] = true
			owners = append(owners, sub.Owner)
		}
	}
	return owners
}

// Stats returns a copy of the monitor's progress counters.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
