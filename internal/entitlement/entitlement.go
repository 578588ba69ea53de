package entitlement

import (
	"context"
	"errors"
	"fmt"

	"talkingphoto/internal/kvstore"
)

// Storage keys shared with the rest of the app.
const (
	keyVideoCount   = "video_count"
	keySubscription = "subscription_status"
)

// Service gates whether a new generation session may start and meters
// successful generations for free-tier users.
type Service interface {
	CanCreateVideo(ctx context.Context) (bool, error)
	IncrementUsage(ctx context.Context) error
	Remaining(ctx context.Context) (int, error)
}

// KVService is a Service backed by the persistent key-value store. The free
// limit is a product parameter injected by the caller, not hard-coded.
type KVService struct {
	store     *kvstore.Store
	freeLimit int
}

// NewKVService constructs a KVService with the given free-tier limit.
func NewKVService(store *kvstore.Store, freeLimit int) (*KVService, error) {
	if store == nil {
		return nil, errors.New("entitlement: store is required")
	}
	if freeLimit < 0 {
		freeLimit = 0
	}
	return &KVService{store: store, freeLimit: freeLimit}, nil
}

// CanCreateVideo reports whether another generation is permitted: always
// for premium users, otherwise while the usage count is under the free
// limit.
func (s *KVService) CanCreateVideo(ctx context.Context) (bool, error) {
	premium, err := s.premium()
	if err != nil {
		return false, err
	}
	if premium {
		return true, nil
	}
	count, err := s.count()
	if err != nil {
		return false, err
	}
	return count < s.freeLimit, nil
}

// IncrementUsage records one successful generation. Premium users are not
// metered.
func (s *KVService) IncrementUsage(ctx context.Context) error {
	premium, err := s.premium()
	if err != nil {
		return err
	}
	if premium {
		return nil
	}
	if _, err := s.store.Increment(keyVideoCount, 1); err != nil {
		return fmt.Errorf("entitlement: increment usage: %w", err)
	}
	return nil
}

// Remaining returns how many free generations are left. Premium users get
// the configured limit back unchanged; the UI treats them as unlimited.
func (s *KVService) Remaining(ctx context.Context) (int, error) {
	premium, err := s.premium()
	if err != nil {
		return 0, err
	}
	if premium {
		return s.freeLimit, nil
	}
	count, err := s.count()
	if err != nil {
		return 0, err
	}
	remaining := s.freeLimit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// SetPremium records the subscription status, normally written by the
// purchases flow.
func (s *KVService) SetPremium(premium bool) error {
	return s.store.Set(keySubscription, premium)
}

func (s *KVService) premium() (bool, error) {
	var premium bool
	if err := s.store.Get(keySubscription, &premium); err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("entitlement: read subscription: %w", err)
	}
	return premium, nil
}

func (s *KVService) count() (int, error) {
	var count int
	if err := s.store.Get(keyVideoCount, &count); err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("entitlement: read usage: %w", err)
	}
	return count, nil
}

var _ Service = (*KVService)(nil)
