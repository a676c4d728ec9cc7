package stream

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/beadboard/beadboard/internal/logging"
	"github.com/beadboard/beadboard/internal/models"
)

// Source is the read surface the pollers need from the store.
type Source interface {
	Snapshot(ctx context.Context) ([]models.Bead, error)
	Version(ctx context.Context) (int64, error)
	EventsSince(ctx context.Context, since string, limit int) ([]models.Event, error)
}

// Sink is one client channel. Send and Ping returning an error means the
// client is gone; the subscription is closed in response.
type Sink interface {
	SendInit(InitFrame) error
	SendUpdate(UpdateFrame) error
	Ping() error
}

// Options tunes the manager. Zero values fall back to the stock intervals.
type Options struct {
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	SweepInterval     time.Duration
	StaleAfter        time.Duration
	EventBatchLimit   int
}

func (o *Options) withDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 15 * time.Second
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = 30 * time.Second
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 2 * time.Minute
	}
	if o.EventBatchLimit <= 0 {
		o.EventBatchLimit = 200
	}
}

// Stats reports the registry's health. Total is always Active + Stale.
type Stats struct {
	TotalConnections  int `json:"total_connections"`
	ActiveConnections int `json:"active_connections"`
	StaleConnections  int `json:"stale_connections"`
}

// Manager owns the subscription registry. All mutation goes through it;
// nothing else holds a reference to a live subscription.
type Manager struct {
	src  Source
	opts Options
	log  zerolog.Logger

	mu   sync.Mutex
	subs map[string]*Subscription

	sweeper *cron.Cron
}

// NewManager creates a manager over the given source.
func NewManager(src Source, opts Options) *Manager {
	opts.withDefaults()
	return &Manager{
		src:  src,
		opts: opts,
		log:  logging.Component("stream"),
		subs: make(map[string]*Subscription),
	}
}

// Start launches the stale-connection sweep. Second-granularity cron, since
// the sweep interval is well under a minute.
func (m *Manager) Start() error {
	m.sweeper = cron.New(cron.WithSeconds())
	spec := fmt.Sprintf("@every %s", m.opts.SweepInterval)
	if _, err := m.sweeper.AddFunc(spec, m.sweep); err != nil {
		return fmt.Errorf("stream: schedule sweep: %w", err)
	}
	m.sweeper.Start()
	return nil
}

// Stop halts the sweep and closes every subscription.
func (m *Manager) Stop() {
	if m.sweeper != nil {
		m.sweeper.Stop()
	}
	m.mu.Lock()
	subs := make([]*Subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.Unlock()
	for _, sub := range subs {
		m.Close(sub.ID())
	}
}

// Register creates a subscription over sink, sends the init payload, and
// starts its poll and heartbeat timers. The returned subscription is only
// useful for its ID and for waiting on Done.
func (m *Manager) Register(ctx context.Context, sink Sink) (*Subscription, error) {
	issues, err := m.src.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("stream: register: %w", err)
	}
	version, err := m.src.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("stream: register: %w", err)
	}

	sub := newSubscription(generateID(), m, sink)
	sub.prime(issues, version)

	if err := sink.SendInit(InitFrame{Type: FrameInit, Issues: issues, DataVersion: version}); err != nil {
		return nil, fmt.Errorf("stream: send init: %w", err)
	}
	sub.touch()

	m.mu.Lock()
	m.subs[sub.ID()] = sub
	m.mu.Unlock()

	go sub.run(ctx)

	m.log.Debug().Str("sub", sub.ID()).Int64("version", version).Msg("subscription registered")
	return sub, nil
}

// Close removes a subscription and stops its timers. Idempotent: closing an
// unknown or already-closed id is a no-op.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	sub, ok := m.subs[id]
	if ok {
		delete(m.subs, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	sub.stop()
	m.log.Debug().Str("sub", id).Msg("subscription closed")
}

// Stats reports connection counts. A subscription counts as stale once its
// last activity is older than the configured threshold; the sweep will
// collect it shortly.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var s Stats
	for _, sub := range m.subs {
		s.TotalConnections++
		if now.Sub(sub.lastActivity()) > m.opts.StaleAfter {
			s.StaleConnections++
		} else {
			s.ActiveConnections++
		}
	}
	return s
}

// Invalidate voids every subscription's cursor so the next poll tick sends
// a full refresh regardless of the version counter. Used when the store
// file is replaced wholesale.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subs {
		sub.invalidate()
	}
}

// sweep force-closes subscriptions idle past the threshold, guaranteeing no
// unbounded accumulation of dead channels even without a clean disconnect.
func (m *Manager) sweep() {
	now := time.Now()
	m.mu.Lock()
	var stale []string
	for id, sub := range m.subs {
		if now.Sub(sub.lastActivity()) > m.opts.StaleAfter {
			stale = append(stale, id)
		}
	}
	m.mu.Unlock()

	for _, id := range stale {
		m.log.Info().Str("sub", id).Msg("evicting stale subscription")
		m.Close(id)
	}
}

// generateID creates a unique subscription ID in sub-xxxxxxxx form.
func generateID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("sub-%d", time.Now().UnixNano())
	}
	return "sub-" + hex.EncodeToString(b)
}
