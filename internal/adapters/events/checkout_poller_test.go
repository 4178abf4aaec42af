package events

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/threadlens/entitlement-service/internal/application"
	"github.com/threadlens/entitlement-service/internal/domain"
	"github.com/threadlens/entitlement-service/internal/ports"
)

type memFast struct {
	mu       sync.Mutex
	identity *ports.DeviceIdentity
	sub      *domain.SubscriptionRecord
	trial    *domain.TrialRecord
	model    []byte
}

func (m *memFast) GetDeviceIdentity(context.Context) (*ports.DeviceIdentity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity, nil
}

func (m *memFast) PutDeviceIdentity(_ context.Context, id ports.DeviceIdentity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity = &id
	return nil
}

func (m *memFast) GetSubscriptionRecord(context.Context) (*domain.SubscriptionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sub, nil
}

func (m *memFast) PutSubscriptionRecord(_ context.Context, rec domain.SubscriptionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sub = &rec
	return nil
}

func (m *memFast) GetTrialRecord(context.Context) (*domain.TrialRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trial, nil
}

func (m *memFast) PutTrialRecord(_ context.Context, rec domain.TrialRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trial = &rec
	return nil
}

func (m *memFast) GetModelState(context.Context) ([]byte, error) { return m.model, nil }

func (m *memFast) PutModelState(_ context.Context, blob []byte) error {
	m.model = blob
	return nil
}

func (m *memFast) DeleteSubscriptionRecord(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sub = nil
	return nil
}

func (m *memFast) DeleteCachedRecords(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sub, m.trial = nil, nil
	return nil
}

func (m *memFast) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity, m.sub, m.trial, m.model = nil, nil, nil, nil
	return nil
}

type memDurable struct{}

func (memDurable) GetDeviceIdentity(context.Context) (*ports.DeviceIdentity, error) {
	return nil, nil
}
func (memDurable) PutDeviceIdentity(context.Context, ports.DeviceIdentity) error { return nil }
func (memDurable) MarkTrialUsed(context.Context, string, time.Time) error        { return nil }
func (memDurable) TrialUsed(context.Context, string) (bool, error)               { return false, nil }
func (memDurable) SaveTrialRecord(context.Context, domain.TrialRecord) error     { return nil }
func (memDurable) GetTrialRecord(context.Context, string) (*domain.TrialRecord, error) {
	return nil, nil
}
func (memDurable) Reset(context.Context, string) error { return nil }

type memLedger struct{}

func (memLedger) Append(context.Context, domain.UsageEntry, int) error { return nil }
func (memLedger) Recent(context.Context, int) ([]domain.UsageEntry, error) {
	return nil, nil
}
func (memLedger) Clear(context.Context) error { return nil }

// pollAuthority serves an activation notice after a fixed number of polls.
type pollAuthority struct {
	calls       atomic.Int32
	noticeAfter int32
}

func (a *pollAuthority) CheckSubscription(context.Context, string) (ports.SubscriptionCheck, error) {
	return ports.SubscriptionCheck{}, nil
}
func (a *pollAuthority) TrialAllowance(context.Context, string) (ports.TrialAllowance, error) {
	return ports.TrialAllowance{Allowed: true}, nil
}
func (a *pollAuthority) RegisterTrial(context.Context, string, time.Time) error { return nil }
func (a *pollAuthority) TrialStatus(context.Context, string) (ports.TrialState, error) {
	return ports.TrialState{}, nil
}
func (a *pollAuthority) Restore(context.Context, string) (ports.RestoreResult, error) {
	return ports.RestoreResult{}, nil
}
func (a *pollAuthority) Link(context.Context, string, string) error { return nil }
func (a *pollAuthority) Notifications(context.Context, string) (ports.ActivationNotice, error) {
	n := a.calls.Add(1)
	if n >= a.noticeAfter {
		return ports.ActivationNotice{
			HasNotification: true,
			Subscription:    &ports.SubscriptionCheck{Active: true, Plan: "pro"},
		}, nil
	}
	return ports.ActivationNotice{}, nil
}
func (a *pollAuthority) TrackAnalytics(context.Context, string, string, map[string]string) {}

func newPollerService(authority ports.AuthorityClient) (*application.Service, *memFast) {
	fast := &memFast{}
	svc := application.NewService(application.Dependencies{
		Fast:      fast,
		Durable:   memDurable{},
		Ledger:    memLedger{},
		Authority: authority,
	})
	return svc, fast
}

func TestCheckoutPollerStopsOnActivation(t *testing.T) {
	authority := &pollAuthority{noticeAfter: 2}
	svc, fast := newPollerService(authority)

	poller := NewCheckoutPoller(svc, 5*time.Millisecond, time.Second, nil)
	poller.Arm()

	deadline := time.After(time.Second)
	for {
		if sub, _ := fast.GetSubscriptionRecord(context.Background()); sub != nil && sub.Active {
			break
		}
		select {
		case <-deadline:
			t.Fatal("activation never applied")
		case <-time.After(5 * time.Millisecond):
		}
	}

	settled := authority.calls.Load()
	time.Sleep(50 * time.Millisecond)
	if got := authority.calls.Load(); got != settled {
		t.Fatalf("poller kept polling after activation: %d -> %d", settled, got)
	}
}

func TestCheckoutPollerArmIsIdempotentWhileRunning(t *testing.T) {
	authority := &pollAuthority{noticeAfter: 1000}
	svc, _ := newPollerService(authority)

	poller := NewCheckoutPoller(svc, 10*time.Millisecond, time.Second, nil)
	poller.Arm()
	poller.Arm()
	poller.Arm()

	time.Sleep(55 * time.Millisecond)
	// One burst at 10ms spacing polls ~5 times in 55ms; three concurrent
	// bursts would have tripled that.
	if got := authority.calls.Load(); got > 8 {
		t.Fatalf("expected a single burst, observed %d polls", got)
	}
}

func TestCheckoutPollerStopsAtDeadline(t *testing.T) {
	authority := &pollAuthority{noticeAfter: 1000}
	svc, _ := newPollerService(authority)

	poller := NewCheckoutPoller(svc, 5*time.Millisecond, 30*time.Millisecond, nil)
	poller.Arm()

	time.Sleep(100 * time.Millisecond)
	settled := authority.calls.Load()
	time.Sleep(50 * time.Millisecond)
	if got := authority.calls.Load(); got != settled {
		t.Fatalf("poller outlived its deadline: %d -> %d", settled, got)
	}
	if settled == 0 {
		t.Fatal("poller never polled")
	}
}

func TestRefreshWorkerObservesActivation(t *testing.T) {
	authority := &activatingAuthority{}
	svc, fast := newPollerService(authority)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := NewRefreshWorker(svc, 5*time.Millisecond, nil)
	go worker.Run(ctx)

	deadline := time.After(time.Second)
	for {
		if sub, _ := fast.GetSubscriptionRecord(context.Background()); sub != nil && sub.Active {
			return
		}
		select {
		case <-deadline:
			t.Fatal("worker never applied activation")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// activatingAuthority reports an active subscription from the second check
// onward.
type activatingAuthority struct {
	pollAuthority
	checks atomic.Int32
}

func (a *activatingAuthority) CheckSubscription(context.Context, string) (ports.SubscriptionCheck, error) {
	if a.checks.Add(1) >= 2 {
		return ports.SubscriptionCheck{Active: true, Plan: "pro"}, nil
	}
	return ports.SubscriptionCheck{}, nil
}
