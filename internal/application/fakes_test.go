package application

import (
	"context"
	"sync"
	"time"

	"github.com/threadlens/entitlement-service/internal/domain"
	"github.com/threadlens/entitlement-service/internal/ports"
)

type fakeFast struct {
	mu           sync.Mutex
	identity     *ports.DeviceIdentity
	identityPuts int
	identityErr  error

	sub    *domain.SubscriptionRecord
	subErr error

	trial    *domain.TrialRecord
	trialErr error

	model []byte

	deleteSubCalls    int
	deleteCachedCalls int
	resets            int
}

func (f *fakeFast) GetDeviceIdentity(context.Context) (*ports.DeviceIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.identityErr != nil {
		return nil, f.identityErr
	}
	return f.identity, nil
}

func (f *fakeFast) PutDeviceIdentity(_ context.Context, id ports.DeviceIdentity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identity = &id
	f.identityPuts++
	return nil
}

func (f *fakeFast) GetSubscriptionRecord(context.Context) (*domain.SubscriptionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return nil, f.subErr
	}
	return f.sub, nil
}

func (f *fakeFast) PutSubscriptionRecord(_ context.Context, rec domain.SubscriptionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sub = &rec
	return nil
}

func (f *fakeFast) GetTrialRecord(context.Context) (*domain.TrialRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.trialErr != nil {
		return nil, f.trialErr
	}
	return f.trial, nil
}

func (f *fakeFast) PutTrialRecord(_ context.Context, rec domain.TrialRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trial = &rec
	return nil
}

func (f *fakeFast) GetModelState(context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.model, nil
}

func (f *fakeFast) PutModelState(_ context.Context, blob []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.model = blob
	return nil
}

func (f *fakeFast) DeleteSubscriptionRecord(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sub = nil
	f.deleteSubCalls++
	return nil
}

func (f *fakeFast) DeleteCachedRecords(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sub, f.trial = nil, nil
	f.subErr, f.trialErr = nil, nil
	f.deleteCachedCalls++
	return nil
}

func (f *fakeFast) Reset(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identity, f.sub, f.trial, f.model = nil, nil, nil, nil
	f.resets++
	return nil
}

type fakeDurable struct {
	mu       sync.Mutex
	identity *ports.DeviceIdentity
	markers  map[string]time.Time
	trials   map[string]domain.TrialRecord
	err      error
	resets   int
}

func newFakeDurable() *fakeDurable {
	return &fakeDurable{
		markers: make(map[string]time.Time),
		trials:  make(map[string]domain.TrialRecord),
	}
}

func (f *fakeDurable) GetDeviceIdentity(context.Context) (*ports.DeviceIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

func (f *fakeDurable) PutDeviceIdentity(_ context.Context, id ports.DeviceIdentity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.identity = &id
	return nil
}

func (f *fakeDurable) MarkTrialUsed(_ context.Context, token string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.markers[token]; !ok {
		f.markers[token] = at
	}
	return nil
}

func (f *fakeDurable) TrialUsed(_ context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.markers[token]
	return ok, nil
}

func (f *fakeDurable) SaveTrialRecord(_ context.Context, rec domain.TrialRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.trials[rec.DeviceToken] = rec
	return nil
}

func (f *fakeDurable) GetTrialRecord(_ context.Context, token string) (*domain.TrialRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.trials[token]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeDurable) Reset(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	delete(f.trials, token)
	f.identity = nil
	f.resets++
	return nil
}

type fakeLedger struct {
	mu      sync.Mutex
	entries []domain.UsageEntry
	clears  int
}

func (f *fakeLedger) Append(_ context.Context, entry domain.UsageEntry, cap int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append([]domain.UsageEntry{entry}, f.entries...)
	if len(f.entries) > cap {
		f.entries = f.entries[:cap]
	}
	return nil
}

func (f *fakeLedger) Recent(_ context.Context, limit int) ([]domain.UsageEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit > len(f.entries) {
		limit = len(f.entries)
	}
	out := make([]domain.UsageEntry, limit)
	copy(out, f.entries[:limit])
	return out, nil
}

func (f *fakeLedger) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = nil
	f.clears++
	return nil
}

type fakeAuthority struct {
	mu sync.Mutex

	checkFn    func() (ports.SubscriptionCheck, error)
	allowFn    func() (ports.TrialAllowance, error)
	registerFn func(endsAt time.Time) error
	statusFn   func() (ports.TrialState, error)
	restoreFn  func(email string) (ports.RestoreResult, error)
	linkFn     func() error
	noticeFn   func() (ports.ActivationNotice, error)

	checkCalls     int
	allowCalls     int
	registerCalls  int
	statusCalls    int
	restoreCalls   int
	linkCalls      int
	noticeCalls    int
	analyticsCalls int

	lastRegisterEndsAt time.Time
	lastLinkEmail      string
}

func (f *fakeAuthority) CheckSubscription(context.Context, string) (ports.SubscriptionCheck, error) {
	f.mu.Lock()
	f.checkCalls++
	fn := f.checkFn
	f.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return ports.SubscriptionCheck{}, nil
}

func (f *fakeAuthority) TrialAllowance(context.Context, string) (ports.TrialAllowance, error) {
	f.mu.Lock()
	f.allowCalls++
	fn := f.allowFn
	f.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return ports.TrialAllowance{Allowed: true}, nil
}

func (f *fakeAuthority) RegisterTrial(_ context.Context, _ string, endsAt time.Time) error {
	f.mu.Lock()
	f.registerCalls++
	f.lastRegisterEndsAt = endsAt
	fn := f.registerFn
	f.mu.Unlock()
	if fn != nil {
		return fn(endsAt)
	}
	return nil
}

func (f *fakeAuthority) TrialStatus(context.Context, string) (ports.TrialState, error) {
	f.mu.Lock()
	f.statusCalls++
	fn := f.statusFn
	f.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return ports.TrialState{}, nil
}

func (f *fakeAuthority) Restore(_ context.Context, email string) (ports.RestoreResult, error) {
	f.mu.Lock()
	f.restoreCalls++
	fn := f.restoreFn
	f.mu.Unlock()
	if fn != nil {
		return fn(email)
	}
	return ports.RestoreResult{}, nil
}

func (f *fakeAuthority) Link(_ context.Context, _ string, email string) error {
	f.mu.Lock()
	f.linkCalls++
	f.lastLinkEmail = email
	fn := f.linkFn
	f.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return nil
}

func (f *fakeAuthority) Notifications(context.Context, string) (ports.ActivationNotice, error) {
	f.mu.Lock()
	f.noticeCalls++
	fn := f.noticeFn
	f.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return ports.ActivationNotice{}, nil
}

func (f *fakeAuthority) TrackAnalytics(context.Context, string, string, map[string]string) {
	f.mu.Lock()
	f.analyticsCalls++
	f.mu.Unlock()
}

type fakePublisher struct {
	mu     sync.Mutex
	events []ports.ActivationEvent
}

func (f *fakePublisher) Publish(_ context.Context, event ports.ActivationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

type fakeWatcher struct {
	mu    sync.Mutex
	armed int
}

func (f *fakeWatcher) Arm() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.armed++
}

type fixture struct {
	svc       *Service
	fast      *fakeFast
	durable   *fakeDurable
	ledger    *fakeLedger
	authority *fakeAuthority
	publisher *fakePublisher
	watcher   *fakeWatcher
	now       time.Time
}

func newFixture() *fixture {
	f := &fixture{
		fast:      &fakeFast{},
		durable:   newFakeDurable(),
		ledger:    &fakeLedger{},
		authority: &fakeAuthority{},
		publisher: &fakePublisher{},
		watcher:   &fakeWatcher{},
		now:       time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(Dependencies{
		Config: Config{
			StatusCacheTTL:         30 * time.Second,
			SubscriptionStaleAfter: 24 * time.Hour,
			TrialDuration:          72 * time.Hour,
			LedgerCap:              100,
			CheckoutBaseURL:        "https://threadlens.app/checkout",
		},
		Fast:      f.fast,
		Durable:   f.durable,
		Ledger:    f.ledger,
		Authority: f.authority,
		Publisher: f.publisher,
		Watcher:   f.watcher,
	})
	f.svc.nowFn = func() time.Time { return f.now }
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}
