package monitor

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/muurk/opcua-console/internal/config"
	"github.com/muurk/opcua-console/internal/relay"
)

// fakeValidator answers from a per-endpoint status table.
type fakeValidator struct {
	mu     sync.Mutex
	status map[string]relay.Status
	calls  int
}

func newFakeValidator() *fakeValidator {
	return &fakeValidator{status: make(map[string]relay.Status)}
}

func (f *fakeValidator) set(endpoint string, s relay.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[endpoint] = s
}

func (f *fakeValidator) ValidateConnection(ctx context.Context, endpointURL string) relay.Result[relay.Connection] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	s, ok := f.status[endpointURL]
	if !ok {
		s = relay.StatusError
	}
	conn := relay.Connection{Endpoint: endpointURL, Status: s}
	if s != relay.StatusConnected {
		conn.Message = "Failed to connect to OPC UA server"
	}
	return relay.Result[relay.Connection]{Value: conn}
}

// stepClock advances by one second every time it is read.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newRegistry(brokers ...*config.Broker) *config.Registry {
	r := config.NewRegistry()
	for _, b := range brokers {
		r.PutBroker(b)
	}
	return r
}

func TestPoll_Snapshot(t *testing.T) {
	v := newFakeValidator()
	v.set("opc.tcp://plc-a:4840", relay.StatusConnected)

	reg := newRegistry(
		&config.Broker{ID: "b1", Name: "Line A", Endpoint: "opc.tcp://plc-a:4840"},
		&config.Broker{ID: "b2", Name: "Line B", Endpoint: "opc.tcp://plc-b:4840"},
	)

	m := New(v, reg)
	snap := m.Poll(context.Background())

	if snap.Total != 2 {
		t.Fatalf("Total = %d, want 2", snap.Total)
	}
	if snap.Connected != 1 {
		t.Errorf("Connected = %d, want 1", snap.Connected)
	}
	if snap.Brokers[0].Name != "Line A" || snap.Brokers[1].Name != "Line B" {
		t.Errorf("Brokers not sorted by name: %+v", snap.Brokers)
	}
	if snap.Brokers[0].UpSince == nil {
		t.Error("connected broker should have UpSince")
	}
	if snap.Brokers[1].UpSince != nil {
		t.Error("disconnected broker should not have UpSince")
	}
	if snap.Brokers[1].Message == "" {
		t.Error("disconnected broker should carry the failure message")
	}

	latest := m.Latest()
	if latest.Total != 2 {
		t.Errorf("Latest().Total = %d, want 2", latest.Total)
	}
}

func TestPoll_Superseding(t *testing.T) {
	v := newFakeValidator()
	reg := newRegistry(&config.Broker{ID: "b1", Name: "Line A", Endpoint: "opc.tcp://plc-a:4840"})
	m := New(v, reg)

	m.Poll(context.Background())
	if st, _ := m.Status("b1"); st.Status != relay.StatusError {
		t.Fatalf("Status = %s, want %s", st.Status, relay.StatusError)
	}

	v.set("opc.tcp://plc-a:4840", relay.StatusConnected)
	m.Poll(context.Background())
	if st, _ := m.Status("b1"); st.Status != relay.StatusConnected {
		t.Errorf("Status = %s, want %s", st.Status, relay.StatusConnected)
	}

	// Deleted brokers drop out on the next poll.
	reg.DeleteBroker("b1")
	snap := m.Poll(context.Background())
	if snap.Total != 0 {
		t.Errorf("Total after delete = %d, want 0", snap.Total)
	}
	if _, ok := m.Status("b1"); ok {
		t.Error("Status() should not report a deleted broker")
	}
}

func TestPoll_UptimeInMemory(t *testing.T) {
	clock := &stepClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	v := newFakeValidator()
	v.set("opc.tcp://plc-a:4840", relay.StatusConnected)
	reg := newRegistry(&config.Broker{ID: "b1", Name: "Line A", Endpoint: "opc.tcp://plc-a:4840"})
	m := New(v, reg, WithClock(clock.Now))

	m.Poll(context.Background())
	first, _ := m.Status("b1")
	if first.UpSince == nil {
		t.Fatal("UpSince = nil after connected poll")
	}
	start := *first.UpSince

	m.Poll(context.Background())
	second, _ := m.Status("b1")
	if second.UpSince == nil || !second.UpSince.Equal(start) {
		t.Errorf("UpSince = %v, want %v (run should continue)", second.UpSince, start)
	}
	if got := second.Uptime(second.CheckedAt); got <= 0 {
		t.Errorf("Uptime() = %v, want > 0", got)
	}

	v.set("opc.tcp://plc-a:4840", relay.StatusError)
	m.Poll(context.Background())
	down, _ := m.Status("b1")
	if down.UpSince != nil {
		t.Error("UpSince should reset when the broker goes down")
	}
	if got := down.Uptime(down.CheckedAt); got != 0 {
		t.Errorf("Uptime() = %v, want 0", got)
	}

	v.set("opc.tcp://plc-a:4840", relay.StatusConnected)
	m.Poll(context.Background())
	back, _ := m.Status("b1")
	if back.UpSince == nil || !back.UpSince.Equal(back.CheckedAt) {
		t.Errorf("UpSince = %v, want first connected sample %v", back.UpSince, back.CheckedAt)
	}
}

func TestPoll_UptimeSeededFromHistory(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	samples := []Sample{
		{BrokerID: "b1", Endpoint: "opc.tcp://plc-a:4840", Status: relay.StatusConnected, CheckedAt: base},
		{BrokerID: "b1", Endpoint: "opc.tcp://plc-a:4840", Status: relay.StatusError, CheckedAt: base.Add(time.Minute)},
		{BrokerID: "b1", Endpoint: "opc.tcp://plc-a:4840", Status: relay.StatusConnected, CheckedAt: base.Add(2 * time.Minute)},
	}
	for _, s := range samples {
		if err := h.Record(ctx, s); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	clock := &stepClock{now: base.Add(3 * time.Minute)}
	v := newFakeValidator()
	v.set("opc.tcp://plc-a:4840", relay.StatusConnected)
	reg := newRegistry(&config.Broker{ID: "b1", Name: "Line A", Endpoint: "opc.tcp://plc-a:4840"})

	m := New(v, reg, WithHistory(h), WithClock(clock.Now))
	m.Poll(ctx)

	st, _ := m.Status("b1")
	want := base.Add(2 * time.Minute)
	if st.UpSince == nil || !st.UpSince.Equal(want) {
		t.Errorf("UpSince = %v, want %v", st.UpSince, want)
	}

	recent, err := h.Recent(ctx, "b1", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 4 {
		t.Errorf("Recent() returned %d samples, want 4", len(recent))
	}
}

func TestSubscribe(t *testing.T) {
	v := newFakeValidator()
	reg := newRegistry(&config.Broker{ID: "b1", Name: "Line A", Endpoint: "opc.tcp://plc-a:4840"})
	m := New(v, reg)

	ch, cancel := m.Subscribe()

	m.Poll(context.Background())
	v.set("opc.tcp://plc-a:4840", relay.StatusConnected)
	m.Poll(context.Background())

	// Only the newest snapshot is kept for a slow subscriber.
	select {
	case snap := <-ch:
		if snap.Connected != 1 {
			t.Errorf("Connected = %d, want 1 (newest snapshot)", snap.Connected)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot received")
	}

	cancel()
	cancel() // idempotent

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}

	// Publishing after unsubscribe must not panic.
	m.Poll(context.Background())
}

func TestStartStop(t *testing.T) {
	v := newFakeValidator()
	reg := newRegistry(&config.Broker{ID: "b1", Name: "Line A", Endpoint: "opc.tcp://plc-a:4840"})
	m := New(v, reg, WithInterval(time.Hour))

	ch, cancel := m.Subscribe()
	defer cancel()

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Start(ctx); err == nil {
		t.Error("second Start() should fail")
	}

	// Start polls immediately.
	select {
	case snap := <-ch:
		if snap.Total != 1 {
			t.Errorf("Total = %d, want 1", snap.Total)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not trigger an initial poll")
	}

	stopCtx, stopCancel := context.WithTimeout(ctx, time.Second)
	defer stopCancel()
	m.Stop(stopCtx)
	m.Stop(stopCtx)
}

func TestWithInterval(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{"valid", 10 * time.Second, 10 * time.Second},
		{"too short ignored", 10 * time.Millisecond, DefaultInterval},
		{"zero ignored", 0, DefaultInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(newFakeValidator(), config.NewRegistry(), WithInterval(tt.in))
			if got := m.Interval(); got != tt.want {
				t.Errorf("Interval() = %v, want %v", got, tt.want)
			}
		})
	}
}

func openTestHistory(t *testing.T) *History {
	t.Helper()
	h, err := OpenHistory(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("OpenHistory() error = %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

// deletingValidator removes a broker from the registry and the monitor while
// its check is in flight, like the web console's delete handler does.
type deletingValidator struct {
	reg    *config.Registry
	mon    *Monitor
	target string
}

func (d *deletingValidator) ValidateConnection(ctx context.Context, endpointURL string) relay.Result[relay.Connection] {
	if b := d.reg.GetBroker(d.target); b != nil && b.Endpoint == endpointURL {
		d.reg.DeleteBroker(d.target)
		d.mon.Forget(d.target)
	}
	return relay.Result[relay.Connection]{Value: relay.Connection{Endpoint: endpointURL, Status: relay.StatusConnected}}
}

func TestPoll_ForgetDuringPoll(t *testing.T) {
	reg := newRegistry(
		&config.Broker{ID: "b1", Name: "Line A", Endpoint: "opc.tcp://plc-a:4840"},
		&config.Broker{ID: "b2", Name: "Line B", Endpoint: "opc.tcp://plc-b:4840"},
	)
	v := &deletingValidator{reg: reg, target: "b2"}
	m := New(v, reg)
	v.mon = m

	snap := m.Poll(context.Background())

	if snap.Total != 1 {
		t.Errorf("Total = %d, want 1", snap.Total)
	}
	if _, ok := m.Status("b2"); ok {
		t.Error("Status(b2) found, want deleted broker to stay forgotten")
	}
	if _, ok := m.Status("b1"); !ok {
		t.Error("Status(b1) missing")
	}
}
