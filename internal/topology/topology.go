// Package topology implements the L2 registry and scheduler: it sequences
// create/run/destroy across every node, enforces cross-node invariants in
// one validation pass, and fans out queries to daemon-bearing nodes.
package topology

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"gonett/internal/kernel"
	"gonett/internal/names"
	"gonett/internal/node"
	"gonett/internal/nodes"
	"gonett/internal/nserrors"
)

// kernelExecutor is the subset of *kernel.Executor the node constructors
// need. Topology depends on this interface rather than the concrete type so
// tests can inject a fake/no-op backend and exercise validation, ordering,
// and cleanup-stack behavior without touching the kernel.
type kernelExecutor interface {
	CreateNamespace(node, name string, stack *kernel.CleanupStack) error
	DeleteNamespace(node, name string) error
	CreateVeth(node, ifName, peerName string, stack *kernel.CleanupStack) error
	DeleteVeth(node, ifName string) error
	MoveLinkToNamespace(node, ifName, nsName string) error
	SetLinkUp(node, nsName, ifName string) error
	SetLinkMAC(node, nsName, ifName string, mac net.HardwareAddr) error
	AttachToBridge(node, ifName, bridgeName string) error
	AddrAdd(node, nsName, ifName string, ipNet *net.IPNet) error
	RouteAdd(node, nsName string, route kernel.Route, stack *kernel.CleanupStack) error
	RouteDel(node, nsName string, route kernel.Route) error
	CreateBridge(node, name string, stack *kernel.CleanupStack) error
	DeleteBridge(node, name string) error
	Spawn(node string, spec kernel.SpawnSpec, stack *kernel.CleanupStack) (*os.Process, error)
	Terminate(node string, proc *os.Process, grace time.Duration) error
}

// State is a Topology's lifecycle position.
type State string

const (
	StateBuilt     State = "built"
	StateRunning   State = "running"
	StateDestroyed State = "destroyed"
)

// RouterKind selects which concrete RouterNode variant AddRouter mints.
type RouterKind string

const (
	RouterPlain   RouterKind = "plain"
	RouterBird    RouterKind = "bird"
	RouterExaBGP  RouterKind = "exabgp"
	RouterStayRTR RouterKind = "stayrtr"
)

// routerNode is the capability set every RouterNode variant satisfies,
// beyond the base node.Node contract, that the Topology needs to drive
// interface/route wiring and switch resolution generically.
type routerNode interface {
	node.Node
	Namespace() string
	AddInterface(*node.Interface) error
	Interfaces() []*node.Interface
	AddRoute(node.Route)
	Routes() []node.Route
	SetSwitchResolver(nodes.SwitchResolver)
}

// Topology is a mapping from node name to Node, owning the shared cleanup
// stack and the BUILT/RUNNING/DESTROYED lifecycle.
type Topology struct {
	log  *logrus.Entry
	exec kernelExecutor

	mu          sync.Mutex
	state       State
	stack       *kernel.CleanupStack
	nodes       map[string]node.Node
	switches    map[string]*nodes.SwitchNode
	routers     map[string]routerNode
	switchOrder []string
	routerOrder []string

	takenPeerNames   map[string]bool
	takenNSNames     map[string]bool
	takenBridgeNames map[string]bool
}

// New constructs an empty Topology in state BUILT.
func New(log *logrus.Entry) *Topology {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	stack := kernel.NewCleanupStack()
	return &Topology{
		log:              log,
		exec:             kernel.New(log),
		state:            StateBuilt,
		stack:            stack,
		nodes:            map[string]node.Node{},
		switches:         map[string]*nodes.SwitchNode{},
		routers:          map[string]routerNode{},
		takenPeerNames:   map[string]bool{},
		takenNSNames:     map[string]bool{},
		takenBridgeNames: map[string]bool{},
	}
}

func (t *Topology) mustBuilt() error {
	if t.state != StateBuilt {
		return nserrors.New(nserrors.InvalidState, "", fmt.Errorf("topology is %s, not built", t.state))
	}
	return nil
}

func (t *Topology) register(name string, n node.Node) error {
	if _, exists := t.nodes[name]; exists {
		return nserrors.New(nserrors.NameCollision, name, fmt.Errorf("node %q already registered", name))
	}
	t.nodes[name] = n
	return nil
}

// mintKernelName derives a ≤15 byte netns/bridge name for nodeName,
// deterministic for a given Topology, suffixed on truncation collision.
func (t *Topology) mintKernelName(nodeName string, taken map[string]bool) string {
	base := names.Truncate(nodeName)
	if !taken[base] {
		taken[base] = true
		return base
	}
	for i := 0; i < 0xffff; i++ {
		sum := sha1.Sum([]byte(fmt.Sprintf("%s:%d", nodeName, i)))
		suffix := hex.EncodeToString(sum[:])[:4]
		head := base
		if len(head) > len(suffix) {
			head = head[:len(head)-len(suffix)]
		}
		candidate := names.Truncate(head + suffix)
		if !taken[candidate] {
			taken[candidate] = true
			return candidate
		}
	}
	return base
}

// AddSwitch registers a new SwitchNode.
func (t *Topology) AddSwitch(name string) (*nodes.SwitchNode, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.mustBuilt(); err != nil {
		return nil, err
	}
	bridgeName := t.mintKernelName(name, t.takenBridgeNames)
	sw, err := nodes.NewSwitchNode(name, bridgeName, t.exec, t.stack)
	if err != nil {
		return nil, err
	}
	if err := t.register(name, sw); err != nil {
		return nil, err
	}
	t.switches[name] = sw
	t.switchOrder = append(t.switchOrder, name)
	return sw, nil
}

// AddRouter registers a new RouterNode of the given kind. configPath is
// required for bird/exabgp, optional for stayrtr (an empty cache is
// synthesized if omitted), and ignored for plain.
func (t *Topology) AddRouter(name string, kind RouterKind, configPath string) (node.Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.mustBuilt(); err != nil {
		return nil, err
	}

	namespace := t.mintKernelName(name, t.takenNSNames)

	var rn routerNode
	var err error
	switch kind {
	case RouterPlain, "":
		rn, err = nodes.NewRouterNode(name, namespace, t.exec, t.stack)
	case RouterBird:
		rn, err = nodes.NewBirdRouterNode(name, namespace, configPath, t.exec, t.stack, t.log)
	case RouterExaBGP:
		rn, err = nodes.NewExaBGPRouterNode(name, namespace, configPath, t.exec, t.stack, t.log)
	case RouterStayRTR:
		rn, err = nodes.NewStayRTRServerNode(name, namespace, configPath, t.exec, t.stack, t.log)
	default:
		return nil, nserrors.New(nserrors.InvariantViolation, name, fmt.Errorf("unsupported router kind %q", kind))
	}
	if err != nil {
		return nil, err
	}

	rn.SetSwitchResolver(func(switchName string) (string, bool) {
		sw, ok := t.switches[switchName]
		if !ok {
			return "", false
		}
		return sw.BridgeName(), true
	})

	if err := t.register(name, rn); err != nil {
		return nil, err
	}
	t.routers[name] = rn
	t.routerOrder = append(t.routerOrder, name)
	return rn, nil
}

// AddInterface attaches a new Interface to routerName, computing a
// globally-unique peer name. switchName may be "" for an unswitched link.
func (t *Topology) AddInterface(routerName, ifaceName string, mac net.HardwareAddr, switchName string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.mustBuilt(); err != nil {
		return err
	}
	rn, ok := t.routers[routerName]
	if !ok {
		return nserrors.New(nserrors.NotFound, routerName, fmt.Errorf("router %q not found", routerName))
	}
	iface, err := node.NewInterface(ifaceName, mac)
	if err != nil {
		return nserrors.New(nserrors.InvariantViolation, routerName, err)
	}
	iface.PeerName = names.PeerName(routerName, ifaceName, t.takenPeerNames)
	t.takenPeerNames[iface.PeerName] = true
	iface.Switch = switchName
	if err := rn.AddInterface(iface); err != nil {
		return err
	}
	if switchName != "" {
		if sw, ok := t.switches[switchName]; ok {
			sw.AddMember(iface.PeerName)
		}
	}
	return nil
}

// AddAddress parses and attaches an address to an existing interface.
// Ill-formed input is rejected immediately as InvariantViolation, never
// reaching a kernel call.
func (t *Topology) AddAddress(routerName, ifaceName, cidr string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.mustBuilt(); err != nil {
		return err
	}
	rn, ok := t.routers[routerName]
	if !ok {
		return nserrors.New(nserrors.NotFound, routerName, fmt.Errorf("router %q not found", routerName))
	}
	for _, iface := range rn.Interfaces() {
		if iface.Name == ifaceName {
			if err := iface.AddAddress(cidr); err != nil {
				return nserrors.New(nserrors.InvariantViolation, routerName, err)
			}
			return nil
		}
	}
	return nserrors.NewObject(nserrors.NotFound, routerName, "if:"+ifaceName, fmt.Errorf("interface %q not found", ifaceName))
}

// AddRoute attaches a static route to routerName, applied after all of its
// interfaces are up and addressed. At least one of gateway/device must be
// set; both may be.
func (t *Topology) AddRoute(routerName, destCIDR, gateway, device string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.mustBuilt(); err != nil {
		return err
	}
	rn, ok := t.routers[routerName]
	if !ok {
		return nserrors.New(nserrors.NotFound, routerName, fmt.Errorf("router %q not found", routerName))
	}
	if gateway == "" && device == "" {
		return nserrors.New(nserrors.InvariantViolation, routerName, fmt.Errorf("route to %q needs a gateway or a device", destCIDR))
	}
	_, dest, err := net.ParseCIDR(destCIDR)
	if err != nil {
		return nserrors.New(nserrors.InvariantViolation, routerName, fmt.Errorf("parse destination %q: %w", destCIDR, err))
	}
	var gw net.IP
	if gateway != "" {
		gw = net.ParseIP(gateway)
		if gw == nil {
			return nserrors.New(nserrors.InvariantViolation, routerName, fmt.Errorf("parse gateway %q", gateway))
		}
	}
	family := node.FamilyV4
	if dest.IP.To4() == nil {
		family = node.FamilyV6
	}
	rn.AddRoute(node.Route{Family: family, Destination: dest, Gateway: gw, Device: device})
	return nil
}

// GetNode looks up a node by name.
func (t *Topology) GetNode(name string) (node.Node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[name]
	return n, ok
}

// State returns the Topology's current lifecycle state.
func (t *Topology) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// validate performs the one-pass cross-node consistency check, batching
// every violation found rather than stopping at the first.
func (t *Topology) validate() error {
	var violations nserrors.Violations

	for _, rname := range t.routerOrder {
		rn := t.routers[rname]
		ifaceNames := map[string]bool{}
		for _, iface := range rn.Interfaces() {
			ifaceNames[iface.Name] = true
			if iface.Switch != "" {
				if _, ok := t.switches[iface.Switch]; !ok {
					violations.Add(rname, "if:"+iface.Name, fmt.Errorf("references unknown switch %q", iface.Switch))
				}
			}
		}
		for _, route := range rn.Routes() {
			if route.Device != "" && !ifaceNames[route.Device] {
				violations.Add(rname, "route:"+route.Destination.String(), fmt.Errorf("references unknown interface %q", route.Device))
			}
		}
	}

	if !violations.Empty() {
		return &violations
	}
	return nil
}

// Run validates, then brings up every node: switches first (any order),
// then routers (any order); within a router, namespace, then interfaces in
// insertion order, then routes, then daemon. On any failure it drains the
// cleanup stack and the Topology becomes terminally DESTROYED.
func (t *Topology) Run(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.mustBuilt(); err != nil {
		return err
	}

	if err := t.validate(); err != nil {
		t.state = StateDestroyed
		return err
	}

	for _, name := range t.switchOrder {
		if err := t.switches[name].Create(ctx); err != nil {
			t.stack.Drain(t.log)
			t.state = StateDestroyed
			return err
		}
	}
	for _, name := range t.routerOrder {
		if err := t.routers[name].Create(ctx); err != nil {
			t.stack.Drain(t.log)
			t.state = StateDestroyed
			return err
		}
	}

	t.state = StateRunning
	return nil
}

// Destroy tears down every node directly, in reverse bring-up order
// (routers, then switches), then drains the cleanup stack to run every
// compensating action still registered (daemon termination, run-directory
// removal, route and veth deletion); actions whose object is already gone
// with its namespace or bridge are no-ops. Idempotent: a second call is a
// no-op.
func (t *Topology) Destroy(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateDestroyed {
		return nil
	}
	for _, name := range t.routerOrder {
		if err := t.routers[name].Destroy(ctx); err != nil {
			t.log.WithField("node", name).WithError(err).Warn("node destroy failed, continuing")
		}
	}
	for _, name := range t.switchOrder {
		if err := t.switches[name].Destroy(ctx); err != nil {
			t.log.WithField("node", name).WithError(err).Warn("node destroy failed, continuing")
		}
	}
	t.stack.Drain(t.log)
	t.state = StateDestroyed
	return nil
}

// Query routes an opaque request to a daemon-bearing node's control
// surface. Fails with NotFound if the node is unknown, or whatever the
// node itself returns (typically Unsupported) otherwise.
func (t *Topology) Query(ctx context.Context, nodeName string, req []byte) ([]byte, error) {
	t.mu.Lock()
	n, ok := t.nodes[nodeName]
	t.mu.Unlock()
	if !ok {
		return nil, nserrors.New(nserrors.NotFound, nodeName, fmt.Errorf("node %q not found", nodeName))
	}
	return n.Query(ctx, req)
}
