package stream

import (
	"context"
	"sync"
	"time"

	"github.com/beadboard/beadboard/internal/models"
)

// cursor is the per-subscription bookkeeping used to compute deltas
// idempotently: the last version the client saw and the timestamp of the
// newest audit event already delivered.
type cursor struct {
	version     int64
	lastEventTS string
}

// Subscription is one live client channel. Owned exclusively by the
// manager; external code only reads its ID and waits on Done.
type Subscription struct {
	id        string
	createdAt time.Time
	mgr       *Manager
	sink      Sink

	mu        sync.Mutex
	active    time.Time
	cur       cursor
	updatedAt map[string]string // bead id → last seen updated_at
	voided    bool

	done     chan struct{}
	stopOnce sync.Once
}

func newSubscription(id string, mgr *Manager, sink Sink) *Subscription {
	now := time.Now()
	return &Subscription{
		id:        id,
		createdAt: now,
		mgr:       mgr,
		sink:      sink,
		active:    now,
		updatedAt: make(map[string]string),
		done:      make(chan struct{}),
	}
}

// ID returns the subscription's opaque identifier.
func (s *Subscription) ID() string { return s.id }

// Done is closed when the subscription ends, whichever side ends it.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// prime seeds the cursor and per-id cache from the init snapshot.
func (s *Subscription) prime(issues []models.Bead, version int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.version = version
	for i := range issues {
		s.updatedAt[issues[i].ID] = issues[i].UpdatedAt
		if issues[i].UpdatedAt > s.cur.lastEventTS {
			s.cur.lastEventTS = issues[i].UpdatedAt
		}
	}
}

func (s *Subscription) touch() {
	s.mu.Lock()
	s.active = time.Now()
	s.mu.Unlock()
}

func (s *Subscription) lastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Subscription) invalidate() {
	s.mu.Lock()
	s.voided = true
	s.mu.Unlock()
}

func (s *Subscription) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// run is the subscription's event loop: one goroutine, two tickers. All
// sink writes happen here, which is what gives each client self-consistent
// ordering of its own stream.
func (s *Subscription) run(ctx context.Context) {
	poll := time.NewTicker(s.mgr.opts.PollInterval)
	heartbeat := time.NewTicker(s.mgr.opts.HeartbeatInterval)
	defer poll.Stop()
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			s.mgr.Close(s.id)
			return
		case <-s.done:
			return
		case <-heartbeat.C:
			if err := s.sink.Ping(); err != nil {
				s.mgr.log.Debug().Str("sub", s.id).Err(err).Msg("heartbeat failed, closing")
				s.mgr.Close(s.id)
				return
			}
			s.touch()
		case <-poll.C:
			if closed := s.pollTick(ctx); closed {
				return
			}
		}
	}
}

// pollTick is one change-detection cycle. The cheap path is a single
// counter read; the full fetch only happens on a confirmed change. A failed
// tick logs and waits for the next interval without backing off; the
// heartbeat and sweep are the escape hatch when the store never recovers.
// Returns true when the tick closed the subscription.
func (s *Subscription) pollTick(ctx context.Context) bool {
	version, err := s.mgr.src.Version(ctx)
	if err != nil {
		s.mgr.log.Warn().Str("sub", s.id).Err(err).Msg("poll: version read failed")
		return false
	}

	s.mu.Lock()
	unchanged := version == s.cur.version && !s.voided
	s.mu.Unlock()
	if unchanged {
		return false
	}

	issues, err := s.mgr.src.Snapshot(ctx)
	if err != nil {
		s.mgr.log.Warn().Str("sub", s.id).Err(err).Msg("poll: snapshot failed")
		return false
	}

	s.mu.Lock()
	since := s.cur.lastEventTS
	limit := s.mgr.opts.EventBatchLimit
	s.mu.Unlock()

	events, err := s.mgr.src.EventsSince(ctx, since, limit)
	if err != nil {
		s.mgr.log.Warn().Str("sub", s.id).Err(err).Msg("poll: events read failed")
		return false
	}

	changed := s.advance(issues, events, version)

	frame := UpdateFrame{
		Type:        FrameUpdate,
		Issues:      issues,
		ChangedIDs:  changed,
		Events:      events,
		DataVersion: version,
	}
	if err := s.sink.SendUpdate(frame); err != nil {
		s.mgr.log.Debug().Str("sub", s.id).Err(err).Msg("update send failed, closing")
		s.mgr.Close(s.id)
		return true
	}
	s.touch()
	return false
}

// advance computes the changed-id set against the cached updated_at values
// and moves the cursor. Additions count as changed; a coalesced run of
// external writes collapses into one delta, which is the intended
// read-collapse behavior.
func (s *Subscription) advance(issues []models.Bead, events []models.Event, version int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed []string
	seen := make(map[string]string, len(issues))
	for i := range issues {
		b := issues[i]
		seen[b.ID] = b.UpdatedAt
		if prev, ok := s.updatedAt[b.ID]; !ok || prev != b.UpdatedAt {
			changed = append(changed, b.ID)
		}
	}
	s.updatedAt = seen

	s.cur.version = version
	if n := len(events); n > 0 {
		s.cur.lastEventTS = events[n-1].CreatedAt
	}
	s.voided = false
	return changed
}
