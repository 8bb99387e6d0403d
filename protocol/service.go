package protocol

import (
	"context"
	"fmt"
)

// StateStore abstracts the repository for testability.
type StateStore interface {
	Insert(ctx context.Context, adminID string) error
	Get(ctx context.Context) (State, error)
	GetCounters(ctx context.Context) (Counters, error)
}

// Service exposes one-time initialization and read access to protocol state.
type Service struct {
	repo StateStore
}

func NewService(repo StateStore) *Service {
	return &Service{repo: repo}
}

// Initialize persists the admin identity and zeroes all counters. It succeeds
// exactly once; later calls fail with ErrAlreadyInitialized.
func (s *Service) Initialize(ctx context.Context, adminID string) error {
	if adminID == "" {
		return fmt.Errorf("protocol: admin id required")
	}
	return s.repo.Insert(ctx, adminID)
}

// Admin returns the stored admin identity.
func (s *Service) Admin(ctx context.Context) (string, error) {
	st, err := s.repo.Get(ctx)
	if err != nil {
		return "", err
	}
	return st.AdminID, nil
}

// Counters returns the protocol tallies. Before initialize everything reads
// zero rather than failing, so tooling can poll it unconditionally.
func (s *Service) Counters(ctx context.Context) (Counters, error) {
	return s.repo.GetCounters(ctx)
}

// Version reports the protocol version. Pure, no storage access.
func (s *Service) Version() string {
	return Version
}
