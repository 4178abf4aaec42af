package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/threadlens/entitlement-service/internal/domain"
	"github.com/threadlens/entitlement-service/internal/ports"
)

func TestDeviceTokenStableAcrossConcurrentCalls(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	const n = 20
	tokens := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, err := f.svc.DeviceToken(ctx)
			if err != nil {
				t.Errorf("device token: %v", err)
				return
			}
			tokens[i] = token
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if tokens[i] != tokens[0] {
			t.Fatalf("tokens diverged: %q vs %q", tokens[0], tokens[i])
		}
	}
	if f.fast.identityPuts != 1 {
		t.Fatalf("expected exactly one identity write, got %d", f.fast.identityPuts)
	}
	if tokens[0] == "" {
		t.Fatal("empty token")
	}
}

func TestDeviceTokenRestoredFromDurableTier(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.durable.identity = &ports.DeviceIdentity{Token: "dev_old", CreatedAt: f.now.Add(-24 * time.Hour)}

	token, err := f.svc.DeviceToken(ctx)
	if err != nil {
		t.Fatalf("device token: %v", err)
	}
	if token != "dev_old" {
		t.Fatalf("expected durable token to survive fast-tier loss, got %q", token)
	}
	if f.fast.identity == nil || f.fast.identity.Token != "dev_old" {
		t.Fatal("fast tier was not repopulated")
	}
}

func TestDeviceTokenCreatedWhenDurableTierDown(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.durable.err = errors.New("durable down")

	token, err := f.svc.DeviceToken(ctx)
	if err != nil {
		t.Fatalf("durable outage must not block identity creation: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}
}

func TestIdentityFailureYieldsErrorStatusAndGateDenies(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.fast.identityErr = errors.New("fast tier down")
	f.durable.err = errors.New("durable down")

	st := f.svc.GetUnifiedStatus(ctx, true)
	if st.Kind != domain.KindError {
		t.Fatalf("expected error status, got %s", st.Kind)
	}
	if st.Failure != domain.FailureIdentity {
		t.Fatalf("expected identity failure class, got %q", st.Failure)
	}

	d := f.svc.CanUse(ctx)
	if d.CanUse {
		t.Fatal("missing identity must not fail open")
	}
	if d.Reason != ReasonError {
		t.Fatalf("expected reason %q, got %q", ReasonError, d.Reason)
	}
}
