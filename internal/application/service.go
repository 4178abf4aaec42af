package application

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/threadlens/entitlement-service/internal/domain"
	"github.com/threadlens/entitlement-service/internal/ports"
)

// Config carries the reconciler's fixed policy knobs.
type Config struct {
	// StatusCacheTTL bounds remote call frequency under UI polling.
	StatusCacheTTL time.Duration
	// SubscriptionStaleAfter bounds how old a cached subscription record may
	// be and still bridge an authority outage.
	SubscriptionStaleAfter time.Duration
	TrialDuration          time.Duration
	LedgerCap              int
	// CheckoutBaseURL is the hosted checkout page the UI redirects to.
	CheckoutBaseURL string
}

// Service is the entitlement engine: device identity, status
// reconciliation, usage gating, checkout/restore. One instance per process,
// constructed with explicit dependencies instead of package-level state.
type Service struct {
	cfg       Config
	fast      ports.FastStore
	durable   ports.DurableStore
	ledger    ports.UsageLedger
	authority ports.AuthorityClient
	publisher ports.ActivationPublisher
	watcher   ports.ActivationWatcher
	logger    *slog.Logger
	nowFn     func() time.Time

	// identityFlight serializes first-time device-token creation so
	// concurrent callers never race to mint two different tokens.
	identityFlight singleflight.Group

	// Status cache: a plain timestamped value, last write wins. All writers
	// run the same derivation, so concurrent writes converge.
	cacheMu      sync.Mutex
	cachedStatus *domain.EntitlementStatus
	cachedAt     time.Time
}

type Dependencies struct {
	Config    Config
	Fast      ports.FastStore
	Durable   ports.DurableStore
	Ledger    ports.UsageLedger
	Authority ports.AuthorityClient
	Publisher ports.ActivationPublisher
	// Watcher is optional; when nil, checkout does not arm burst polling.
	Watcher ports.ActivationWatcher
	Logger  *slog.Logger
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.StatusCacheTTL <= 0 {
		cfg.StatusCacheTTL = 30 * time.Second
	}
	if cfg.SubscriptionStaleAfter <= 0 {
		cfg.SubscriptionStaleAfter = 24 * time.Hour
	}
	if cfg.TrialDuration <= 0 {
		cfg.TrialDuration = domain.TrialDuration
	}
	if cfg.LedgerCap <= 0 {
		cfg.LedgerCap = domain.DefaultLedgerCap
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:       cfg,
		fast:      deps.Fast,
		durable:   deps.Durable,
		ledger:    deps.Ledger,
		authority: deps.Authority,
		publisher: deps.Publisher,
		watcher:   deps.Watcher,
		logger: logger.With(
			"module", "entitlement",
			"layer", "application",
		),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

// SetWatcher attaches the burst poller after construction; bootstrap needs
// this because the poller itself depends on the service.
func (s *Service) SetWatcher(w ports.ActivationWatcher) {
	s.watcher = w
}

// ClearStatusCache drops the cached status. Called after every mutation
// that could have changed the truth (checkout, restore, trial registration,
// activation notices) so stale denials or stale trial state are never
// served past the change.
func (s *Service) ClearStatusCache() {
	s.cacheMu.Lock()
	s.cachedStatus = nil
	s.cachedAt = time.Time{}
	s.cacheMu.Unlock()
}

func (s *Service) cachedStatusWithin(ttl time.Duration) (domain.EntitlementStatus, bool) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cachedStatus == nil || s.nowFn().Sub(s.cachedAt) >= ttl {
		return domain.EntitlementStatus{}, false
	}
	return *s.cachedStatus, true
}

func (s *Service) peekCachedStatus() (domain.EntitlementStatus, bool) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cachedStatus == nil {
		return domain.EntitlementStatus{}, false
	}
	return *s.cachedStatus, true
}

func (s *Service) storeStatus(st domain.EntitlementStatus) {
	s.cacheMu.Lock()
	s.cachedStatus = &st
	s.cachedAt = s.nowFn()
	s.cacheMu.Unlock()
}
