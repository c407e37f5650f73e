// Package nodes implements the concrete topology participants: SwitchNode,
// RouterNode, and the daemon-bearing RouterNode specialisations
// (BirdRouterNode, ExaBGPRouterNode, StayRTRServerNode).
package nodes

import (
	"context"
	"fmt"
	"sync"

	"gonett/internal/kernel"
	"gonett/internal/names"
	"gonett/internal/nserrors"
)

// SwitchNode owns one Linux bridge, named by a deterministic truncation of
// the node name. It records the intended interface membership set so that
// topology-level validation can confirm every member exists and belongs to
// a router in the same Topology; actual attachment happens during the
// owning interface's bringup, not here.
type SwitchNode struct {
	name       string
	bridgeName string

	exec  kernelBackend
	stack *kernel.CleanupStack

	mu      sync.Mutex
	members map[string]bool // interface peer names expected to join this bridge
	created bool
}

// NewSwitchNode validates name and constructs a SwitchNode bound to exec
// and stack, used for every mutation this node performs. bridgeName is the
// already truncated/collision-resolved kernel bridge name (minted by the
// Topology, which tracks uniqueness across all switches).
func NewSwitchNode(name, bridgeName string, exec kernelBackend, stack *kernel.CleanupStack) (*SwitchNode, error) {
	if err := names.Validate(name); err != nil {
		return nil, nserrors.New(nserrors.InvariantViolation, name, err)
	}
	return &SwitchNode{
		name:       name,
		bridgeName: bridgeName,
		exec:       exec,
		stack:      stack,
		members:    map[string]bool{},
	}, nil
}

func (s *SwitchNode) Name() string       { return s.name }
func (s *SwitchNode) BridgeName() string { return s.bridgeName }

// AddMember records that ifName (a veth peer name) is expected to join this
// switch's bridge once its owning interface is brought up.
func (s *SwitchNode) AddMember(ifName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[ifName] = true
}

// Members returns the recorded set of expected bridge members.
func (s *SwitchNode) Members() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.members))
	for k := range s.members {
		out[k] = true
	}
	return out
}

// Create creates the bridge and sets it UP. Idempotent: a second call is a
// no-op rather than an error.
func (s *SwitchNode) Create(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.created {
		return nil
	}
	if err := s.exec.CreateBridge(s.name, s.bridgeName, s.stack); err != nil {
		return err
	}
	s.created = true
	return nil
}

// Destroy removes the bridge directly, independent of any cleanup stack, so
// it remains a correct, idempotent capability even when called outside a
// Topology-driven teardown.
func (s *SwitchNode) Destroy(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.created {
		return nil
	}
	if err := s.exec.DeleteBridge(s.name, s.bridgeName); err != nil {
		return err
	}
	s.created = false
	return nil
}

// Query always fails: switches expose no control surface.
func (s *SwitchNode) Query(ctx context.Context, req []byte) ([]byte, error) {
	return nil, nserrors.New(nserrors.Unsupported, s.name, fmt.Errorf("switch nodes have no control surface"))
}
