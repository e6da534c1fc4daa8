package registry

import (
	"errors"

	"personahub/pkg/domain"
)

// MutationState tracks one optimistic change through its lifecycle.
type MutationState int

const (
	// MutationApplied means the change is visible locally but not yet
	// acknowledged by the remote service.
	MutationApplied MutationState = iota
	// MutationConfirmed means the remote service holds the same state.
	MutationConfirmed
	// MutationReverted means the change was rolled back to its snapshot.
	MutationReverted
)

func (s MutationState) String() string {
	switch s {
	case MutationApplied:
		return "applied"
	case MutationConfirmed:
		return "confirmed"
	case MutationReverted:
		return "reverted"
	default:
		return "unknown"
	}
}

var ErrMutationSettled = errors.New("mutation already settled")

// Mutation captures the pre-change snapshot of the persona list so an
// applied change can be rolled back exactly once.
type Mutation struct {
	state    MutationState
	snapshot []domain.Persona
}

func NewMutation(snapshot []domain.Persona) *Mutation {
	cp := make([]domain.Persona, len(snapshot))
	copy(cp, snapshot)
	return &Mutation{state: MutationApplied, snapshot: cp}
}

func (m *Mutation) State() MutationState { return m.state }

// Confirm settles the mutation as remotely acknowledged.
func (m *Mutation) Confirm() error {
	if m.state != MutationApplied {
		return ErrMutationSettled
	}
	m.state = MutationConfirmed
	return nil
}

// Revert settles the mutation and returns the snapshot to restore.
func (m *Mutation) Revert() ([]domain.Persona, error) {
	if m.state != MutationApplied {
		return nil, ErrMutationSettled
	}
	m.state = MutationReverted
	return m.snapshot, nil
}
