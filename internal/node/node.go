// Package node defines the capability set every topology participant
// implements, and the pure value types (Interface, Address, Route) that
// describe a router's wiring before any kernel object exists.
package node

import (
	"context"
	"fmt"
	"net"

	"gonett/internal/names"
)

// Family is an address family.
type Family string

const (
	FamilyV4 Family = "v4"
	FamilyV6 Family = "v6"
)

// Node is the shared capability set every topology participant implements,
// re-expressing the original class hierarchy (Node -> RouterNode ->
// BirdRouterNode/ExaBGPRouterNode/StayRTRServerNode, plus SwitchNode) as a
// tagged variant rather than inheritance.
type Node interface {
	// Name returns the node's unique, 1-15 byte identifier.
	Name() string
	// Create idempotently brings up the kernel resources this node owns.
	Create(ctx context.Context) error
	// Destroy is the inverse of Create; tolerant of partial prior success.
	Destroy(ctx context.Context) error
	// Query routes an opaque request to the node's control surface, if it
	// has one. Nodes without one return an Unsupported error.
	Query(ctx context.Context, req []byte) ([]byte, error)
}

// Address is a single (address, prefix-length, family) tuple attached to an
// Interface. Parsed eagerly at insertion so ill-formed values fail
// construction instead of surfacing mid-bringup.
type Address struct {
	IPNet  *net.IPNet
	Family Family
}

// ParseAddress parses "a.b.c.d/n" or "addr6/n" into an Address, failing
// construction on any ill-formed input.
func ParseAddress(cidr string) (Address, error) {
	ip, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return Address{}, fmt.Errorf("parse address %q: %w", cidr, err)
	}
	ipNet.IP = ip
	family := FamilyV4
	if ip.To4() == nil {
		family = FamilyV6
	}
	return Address{IPNet: ipNet, Family: family}, nil
}

// Interface belongs to exactly one RouterNode for its entire lifetime, and
// is a member of at most one SwitchNode.
type Interface struct {
	Name      string
	MAC       net.HardwareAddr
	PeerName  string
	Addresses []Address
	Switch    string // switch node name, empty if unswitched
}

// NewInterface validates name and builds an Interface with no addresses or
// switch membership yet.
func NewInterface(name string, mac net.HardwareAddr) (*Interface, error) {
	if err := names.Validate(name); err != nil {
		return nil, fmt.Errorf("interface: %w", err)
	}
	return &Interface{Name: name, MAC: mac}, nil
}

// AddAddress parses and appends an address; ill-formed values are rejected
// at insertion rather than at bringup time.
func (i *Interface) AddAddress(cidr string) error {
	addr, err := ParseAddress(cidr)
	if err != nil {
		return err
	}
	i.Addresses = append(i.Addresses, addr)
	return nil
}

// Route is a static route attached to a RouterNode, installed after the
// router's interfaces are up and addressed.
type Route struct {
	Family      Family
	Destination *net.IPNet
	Gateway     net.IP
	Device      string // interface name on the same router, or ""
}
