package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/muurk/opcua-console/internal/config"
	"github.com/muurk/opcua-console/internal/logging"
	"github.com/muurk/opcua-console/internal/relay"
)

const (
	// DefaultInterval is how often saved brokers are checked.
	DefaultInterval = 30 * time.Second

	// DefaultRetention is how long samples are kept in the history store.
	DefaultRetention = 7 * 24 * time.Hour

	pruneSchedule = "@hourly"
)

// Validator checks a single endpoint. *relay.Client implements it.
type Validator interface {
	ValidateConnection(ctx context.Context, endpointURL string) relay.Result[relay.Connection]
}

// BrokerSource lists the brokers to check. *config.Registry implements it.
type BrokerSource interface {
	ListBrokers() []*config.Broker
}

// Sample is one connection check.
type Sample struct {
	BrokerID  string        `json:"brokerId"`
	Endpoint  string        `json:"endpoint"`
	Status    relay.Status  `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency"`
	CheckedAt time.Time     `json:"checkedAt"`
}

// BrokerStatus is the latest known state of one broker.
type BrokerStatus struct {
	BrokerID  string       `json:"brokerId"`
	Name      string       `json:"name"`
	Endpoint  string       `json:"endpoint"`
	Status    relay.Status `json:"status"`
	Message   string       `json:"message,omitempty"`
	LatencyMS int64        `json:"latencyMs"`
	CheckedAt time.Time    `json:"checkedAt"`
	UpSince   *time.Time   `json:"upSince,omitempty"`
}

// Uptime returns how long the broker has been connected as of now.
func (s BrokerStatus) Uptime(now time.Time) time.Duration {
	if s.UpSince == nil || s.Status != relay.StatusConnected {
		return 0
	}
	return now.Sub(*s.UpSince)
}

// Snapshot is the state of every monitored broker after a tick.
type Snapshot struct {
	TakenAt   time.Time      `json:"takenAt"`
	Brokers   []BrokerStatus `json:"brokers"`
	Connected int            `json:"connected"`
	Total     int            `json:"total"`
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval sets the poll interval. Values below one second are ignored.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d >= time.Second {
			m.interval = d
		}
	}
}

// WithHistory appends every sample to h and seeds uptime from it.
func WithHistory(h *History) Option {
	return func(m *Monitor) {
		m.history = h
	}
}

// WithRetention sets how long history samples are kept.
func WithRetention(d time.Duration) Option {
	return func(m *Monitor) {
		m.retention = d
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// Monitor periodically validates every saved broker.
type Monitor struct {
	validator Validator
	source    BrokerSource
	history   *History
	interval  time.Duration
	retention time.Duration
	now       func() time.Time

	cron    *cron.Cron
	pollMu  sync.Mutex
	mu      sync.RWMutex
	latest  map[string]BrokerStatus
	taken   time.Time
	subs    map[int]chan Snapshot
	nextSub int
}

// New creates a Monitor. It does not start polling until Start is called.
func New(v Validator, src BrokerSource, opts ...Option) *Monitor {
	m := &Monitor{
		validator: v,
		source:    src,
		interval:  DefaultInterval,
		retention: DefaultRetention,
		now:       time.Now,
		latest:    make(map[string]BrokerStatus),
		subs:      make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Interval returns the poll interval.
func (m *Monitor) Interval() time.Duration {
	return m.interval
}

// Start schedules polling and runs the first poll immediately.
func (m *Monitor) Start(ctx context.Context) error {
	if m.cron != nil {
		return errors.New("monitor already started")
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{})), cron.WithLogger(cronLogger{}))

	spec := fmt.Sprintf("@every %s", m.interval)
	if _, err := c.AddFunc(spec, func() { m.Poll(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule poll %q: %w", spec, err)
	}

	if m.history != nil && m.retention > 0 {
		if _, err := c.AddFunc(pruneSchedule, func() { m.prune(ctx) }); err != nil {
			return fmt.Errorf("failed to schedule prune: %w", err)
		}
	}

	m.cron = c
	c.Start()

	logging.Info("Monitor started", zap.Duration("interval", m.interval))

	go m.Poll(ctx)
	return nil
}

// Stop halts the schedule and waits for a running poll to finish or ctx to
// expire.
func (m *Monitor) Stop(ctx context.Context) {
	if m.cron == nil {
		return
	}
	done := m.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	m.cron = nil
	logging.Info("Monitor stopped")
}

// Poll checks every saved broker once, records the samples and notifies
// subscribers. Overlapping calls are serialized.
func (m *Monitor) Poll(ctx context.Context) Snapshot {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()

	brokers := m.source.ListBrokers()
	samples := make([]Sample, len(brokers))

	var wg sync.WaitGroup
	for i, b := range brokers {
		wg.Add(1)
		go func(i int, b *config.Broker) {
			defer wg.Done()
			samples[i] = m.check(ctx, b)
		}(i, b)
	}
	wg.Wait()

	next := make(map[string]BrokerStatus, len(brokers))

	m.mu.RLock()
	prev := m.latest
	m.mu.RUnlock()

	for i, b := range brokers {
		s := samples[i]
		if m.history != nil {
			if err := m.history.Record(ctx, s); err != nil {
				logging.Warn("Failed to record sample", zap.String("broker", b.ID), zap.Error(err))
			}
		}

		st := BrokerStatus{
			BrokerID:  b.ID,
			Name:      b.Name,
			Endpoint:  s.Endpoint,
			Status:    s.Status,
			Message:   s.Message,
			LatencyMS: s.Latency.Milliseconds(),
			CheckedAt: s.CheckedAt,
		}
		st.UpSince = m.upSince(ctx, prev[b.ID], s)
		next[b.ID] = st
	}

	m.mu.Lock()
	// Brokers deleted (and forgotten) while the checks ran stay gone.
	current := make(map[string]bool, len(next))
	for _, b := range m.source.ListBrokers() {
		current[b.ID] = true
	}
	for id := range next {
		if !current[id] {
			delete(next, id)
		}
	}
	m.latest = next
	m.taken = m.now()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	logging.Debug("Monitor poll complete",
		zap.Int("total", snap.Total),
		zap.Int("connected", snap.Connected))

	m.publish(snap)
	return snap
}

func (m *Monitor) check(ctx context.Context, b *config.Broker) Sample {
	start := m.now()
	res := m.validator.ValidateConnection(ctx, b.Endpoint)
	end := m.now()

	status := res.Value.Status
	if status == "" {
		status = relay.StatusError
	}

	return Sample{
		BrokerID:  b.ID,
		Endpoint:  b.Endpoint,
		Status:    status,
		Message:   res.Value.Message,
		Latency:   end.Sub(start),
		CheckedAt: end,
	}
}

// upSince carries the start of the current connected run forward. A broker
// with no previous in-memory status is seeded from history.
func (m *Monitor) upSince(ctx context.Context, prev BrokerStatus, s Sample) *time.Time {
	if s.Status != relay.StatusConnected {
		return nil
	}
	if prev.BrokerID != "" && prev.Endpoint == s.Endpoint {
		if prev.Status == relay.StatusConnected && prev.UpSince != nil {
			return prev.UpSince
		}
		t := s.CheckedAt
		return &t
	}
	if m.history != nil {
		since, ok, err := m.history.UpSince(ctx, s.BrokerID)
		if err != nil {
			logging.Warn("Failed to read uptime", zap.String("broker", s.BrokerID), zap.Error(err))
		} else if ok {
			return &since
		}
	}
	t := s.CheckedAt
	return &t
}

func (m *Monitor) prune(ctx context.Context) {
	n, err := m.history.Prune(ctx, m.now().Add(-m.retention))
	if err != nil {
		logging.Warn("Failed to prune history", zap.Error(err))
		return
	}
	if n > 0 {
		logging.Debug("Pruned history", zap.Int64("rows", n))
	}
}

// Latest returns the most recent snapshot. It is empty before the first
// poll completes.
func (m *Monitor) Latest() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Status returns the latest status for one broker.
func (m *Monitor) Status(brokerID string) (BrokerStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.latest[brokerID]
	return st, ok
}

// Forget drops a broker's status, e.g. after it was deleted.
func (m *Monitor) Forget(brokerID string) {
	m.mu.Lock()
	delete(m.latest, brokerID)
	m.mu.Unlock()
}

func (m *Monitor) snapshotLocked() Snapshot {
	snap := Snapshot{
		TakenAt: m.taken,
		Brokers: make([]BrokerStatus, 0, len(m.latest)),
	}
	for _, st := range m.latest {
		snap.Brokers = append(snap.Brokers, st)
		if st.Status == relay.StatusConnected {
			snap.Connected++
		}
	}
	snap.Total = len(snap.Brokers)

	sort.Slice(snap.Brokers, func(i, j int) bool {
		if snap.Brokers[i].Name != snap.Brokers[j].Name {
			return snap.Brokers[i].Name < snap.Brokers[j].Name
		}
		return snap.Brokers[i].BrokerID < snap.Brokers[j].BrokerID
	})
	return snap
}

// Subscribe returns a channel that receives a snapshot after every poll and
// a function that unsubscribes. Slow subscribers only see the newest
// snapshot.
func (m *Monitor) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(ch)
		})
	}
}

func (m *Monitor) publish(snap Snapshot) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, ch := range m.subs {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot and replace it.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logging.GetLogger().Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logging.GetLogger().Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
