package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by Get when no profile has the requested ID.
	ErrNotFound = errors.New("profile not found")

	// ErrDuplicateID is returned by Create when the ID is already taken.
	ErrDuplicateID = errors.New("profile with that ID already exists")

	// ErrInvalid wraps every validation failure returned by [Validate].
	ErrInvalid = errors.New("invalid profile")
)

// Store persists profiles. Implementations must be safe for concurrent use.
type Store interface {
	// Create validates p, fills defaults and an ID when missing, and stores
	// it. Returns the stored profile.
	Create(ctx context.Context, p Profile) (Profile, error)

	// Get returns the profile with id or [ErrNotFound].
	Get(ctx context.Context, id string) (Profile, error)

	// Len returns the number of stored profiles.
	Len(ctx context.Context) (int, error)
}

// Validate checks the onboarding enums. An empty ID is allowed.
func Validate(p Profile) error {
	var errs []error
	if !p.Onboarding.ComprehensionBreak.IsValid() {
		errs = append(errs, fmt.Errorf("comprehensionBreak %q is not recognised", p.Onboarding.ComprehensionBreak))
	}
	if !p.Onboarding.LearningPreference.IsValid() {
		errs = append(errs, fmt.Errorf("learningPreference %q is not recognised", p.Onboarding.LearningPreference))
	}
	if !p.Onboarding.ListeningThought.IsValid() {
		errs = append(errs, fmt.Errorf("listeningThought %q is not recognised", p.Onboarding.ListeningThought))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// Prepare validates p and fills the fields every store sets on create: a
// generated ID when empty, a trimmed struggle note and UI defaults.
func Prepare(p Profile) (Profile, error) {
	if err := Validate(p); err != nil {
		return Profile{}, err
	}
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Onboarding.StruggleNote = strings.TrimSpace(p.Onboarding.StruggleNote)
	p.UIPreferences = p.UIPreferences.WithDefaults()
	return p, nil
}

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory [Store]. The zero value is ready to use.
type MemStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewMemStore returns an empty [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{profiles: make(map[string]Profile)}
}

// Create implements [Store.Create].
func (s *MemStore) Create(_ context.Context, p Profile) (Profile, error) {
	p, err := Prepare(p)
	if err != nil {
		return Profile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profiles == nil {
		s.profiles = make(map[string]Profile)
	}
	if _, exists := s.profiles[p.ID]; exists {
		return Profile{}, fmt.Errorf("profile: create %q: %w", p.ID, ErrDuplicateID)
	}
	p.CreatedAt = time.Now().UTC()
	s.profiles[p.ID] = p
	return p, nil
}

// Get implements [Store.Get].
func (s *MemStore) Get(_ context.Context, id string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

// Len implements [Store.Len].
func (s *MemStore) Len(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles), nil
}
