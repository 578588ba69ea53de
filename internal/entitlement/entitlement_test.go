package entitlement

import (
	"context"
	"testing"

	"talkingphoto/internal/kvstore"
)

func newService(t *testing.T, freeLimit int) *KVService {
	t.Helper()
	store, err := kvstore.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("kvstore.NewStore() error: %v", err)
	}
	svc, err := NewKVService(store, freeLimit)
	if err != nil {
		t.Fatalf("NewKVService() error: %v", err)
	}
	return svc
}

func TestFreeLimitEnforced(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, 1)

	allowed, err := svc.CanCreateVideo(ctx)
	if err != nil {
		t.Fatalf("CanCreateVideo() error: %v", err)
	}
	if !allowed {
		t.Fatal("fresh install should be allowed to create a video")
	}

	if err := svc.IncrementUsage(ctx); err != nil {
		t.Fatalf("IncrementUsage() error: %v", err)
	}

	allowed, err = svc.CanCreateVideo(ctx)
	if err != nil {
		t.Fatalf("CanCreateVideo() error: %v", err)
	}
	if allowed {
		t.Fatal("limit reached, creation should be denied")
	}

	remaining, err := svc.Remaining(ctx)
	if err != nil {
		t.Fatalf("Remaining() error: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("Remaining() = %d, want 0", remaining)
	}
}

func TestPremiumBypassesLimit(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, 1)

	if err := svc.SetPremium(true); err != nil {
		t.Fatalf("SetPremium() error: %v", err)
	}

	for i := 0; i < 3; i++ {
		allowed, err := svc.CanCreateVideo(ctx)
		if err != nil {
			t.Fatalf("CanCreateVideo() error: %v", err)
		}
		if !allowed {
			t.Fatal("premium user should always be allowed")
		}
		if err := svc.IncrementUsage(ctx); err != nil {
			t.Fatalf("IncrementUsage() error: %v", err)
		}
	}

	// Premium usage is never metered.
	remaining, err := svc.Remaining(ctx)
	if err != nil {
		t.Fatalf("Remaining() error: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("Remaining() = %d, want 1", remaining)
	}
}

func TestConfigurableLimit(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, 3)

	for i := 0; i < 3; i++ {
		allowed, err := svc.CanCreateVideo(ctx)
		if err != nil {
			t.Fatalf("CanCreateVideo() error: %v", err)
		}
		if !allowed {
			t.Fatalf("creation %d should be allowed", i+1)
		}
		if err := svc.IncrementUsage(ctx); err != nil {
			t.Fatalf("IncrementUsage() error: %v", err)
		}
	}

	allowed, err := svc.CanCreateVideo(ctx)
	if err != nil {
		t.Fatalf("CanCreateVideo() error: %v", err)
	}
	if allowed {
		t.Fatal("fourth creation should be denied")
	}
}
