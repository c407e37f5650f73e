package nodes

import (
	"context"
	"fmt"
	"sync"

	"gonett/internal/kernel"
	"gonett/internal/names"
	"gonett/internal/node"
	"gonett/internal/nserrors"
)

// SwitchResolver looks up the bridge name for a switch node by name. It is
// injected by the Topology, which is the only component that knows about
// sibling nodes — an Interface refers to its switch by name, resolved only
// during validation/bringup, so routers never hold a direct reference to
// another node.
type SwitchResolver func(switchName string) (bridgeName string, ok bool)

// RouterNode owns a named network namespace, an ordered sequence of
// Interfaces, and a set of static routes.
type RouterNode struct {
	name      string
	namespace string
	ifaces    []*node.Interface
	ifaceSet  map[string]bool
	routes    []node.Route

	exec     kernelBackend
	stack    *kernel.CleanupStack
	resolver SwitchResolver

	mu       sync.Mutex
	nsUp     bool
	ifUp     bool
	routesUp bool
}

// NewRouterNode validates name and constructs a RouterNode. namespace is
// the netns name to mint, already truncated/collision-resolved by the
// caller (Topology) to fit the kernel's 15-byte limit.
func NewRouterNode(name, namespace string, exec kernelBackend, stack *kernel.CleanupStack) (*RouterNode, error) {
	if err := names.Validate(name); err != nil {
		return nil, nserrors.New(nserrors.InvariantViolation, name, err)
	}
	return &RouterNode{
		name:      name,
		namespace: namespace,
		ifaceSet:  map[string]bool{},
		exec:      exec,
		stack:     stack,
	}, nil
}

func (r *RouterNode) Name() string      { return r.name }
func (r *RouterNode) Namespace() string { return r.namespace }

// SetSwitchResolver wires the function this router uses to resolve a
// switch name to its bridge name during interface bringup.
func (r *RouterNode) SetSwitchResolver(fn SwitchResolver) { r.resolver = fn }

// AddInterface appends iface in insertion order. Fails if the name is
// already used on this router.
func (r *RouterNode) AddInterface(iface *node.Interface) error {
	if r.ifaceSet[iface.Name] {
		return nserrors.NewObject(nserrors.InvariantViolation, r.name, "if:"+iface.Name,
			fmt.Errorf("interface name %q already exists on router %q", iface.Name, r.name))
	}
	r.ifaceSet[iface.Name] = true
	r.ifaces = append(r.ifaces, iface)
	return nil
}

// Interfaces returns the router's interfaces in insertion order.
func (r *RouterNode) Interfaces() []*node.Interface { return r.ifaces }

// Interface looks up one of this router's interfaces by name.
func (r *RouterNode) Interface(name string) (*node.Interface, bool) {
	for _, i := range r.ifaces {
		if i.Name == name {
			return i, true
		}
	}
	return nil, false
}

// AddRoute appends a static route, applied after every interface is up and
// addressed.
func (r *RouterNode) AddRoute(route node.Route) { r.routes = append(r.routes, route) }

// Routes returns the router's static routes.
func (r *RouterNode) Routes() []node.Route { return r.routes }

// Create brings up the namespace, then each interface in insertion order,
// then the static routes. Idempotent against repeated calls once fully up.
func (r *RouterNode) Create(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.create(ctx)
}

func (r *RouterNode) create(ctx context.Context) error {
	if !r.nsUp {
		if err := r.exec.CreateNamespace(r.name, r.namespace, r.stack); err != nil {
			return err
		}
		r.nsUp = true
	}
	if !r.ifUp {
		if err := r.bringUpInterfaces(ctx); err != nil {
			return err
		}
		r.ifUp = true
	}
	if !r.routesUp {
		if err := r.applyRoutes(ctx); err != nil {
			return err
		}
		r.routesUp = true
	}
	return nil
}

func (r *RouterNode) bringUpInterfaces(ctx context.Context) error {
	for _, iface := range r.ifaces {
		if err := ctx.Err(); err != nil {
			return err
		}
		// (1) create veth pair, both ends in the root namespace.
		if err := r.exec.CreateVeth(r.name, iface.Name, iface.PeerName, r.stack); err != nil {
			return err
		}
		// (2) move the namespace-side end into this router's namespace.
		if err := r.exec.MoveLinkToNamespace(r.name, iface.Name, r.namespace); err != nil {
			return err
		}
		// (3) attach the peer to its switch's bridge, or leave it bare and up.
		if iface.Switch != "" {
			bridgeName, ok := r.resolver(iface.Switch)
			if !ok {
				return nserrors.NewObject(nserrors.NotFound, r.name, "switch:"+iface.Switch,
					fmt.Errorf("switch %q not found", iface.Switch))
			}
			if err := r.exec.AttachToBridge(r.name, iface.PeerName, bridgeName); err != nil {
				return err
			}
		} else {
			if err := r.exec.SetLinkUp(r.name, "", iface.PeerName); err != nil {
				return err
			}
		}
		// (4) bring the namespace-side end up.
		if err := r.exec.SetLinkUp(r.name, r.namespace, iface.Name); err != nil {
			return err
		}
		// (5) set MAC if the caller specified one; otherwise kernel-assigned.
		if len(iface.MAC) > 0 {
			if err := r.exec.SetLinkMAC(r.name, r.namespace, iface.Name, iface.MAC); err != nil {
				return err
			}
		}
		// (6) add addresses; requires the interface to already be UP.
		for _, addr := range iface.Addresses {
			if err := r.exec.AddrAdd(r.name, r.namespace, iface.Name, addr.IPNet); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *RouterNode) applyRoutes(ctx context.Context) error {
	for _, route := range r.routes {
		kr := kernel.Route{Dest: route.Destination, Gateway: route.Gateway, Device: route.Device}
		if err := r.exec.RouteAdd(r.name, r.namespace, kr, r.stack); err != nil {
			return err
		}
	}
	return nil
}

// Destroy removes the namespace directly and idempotently; this implicitly
// tears down any interface, address, or route still inside it, as
// belt-and-braces against incomplete compensation elsewhere.
func (r *RouterNode) Destroy(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.nsUp {
		return nil
	}
	if err := r.exec.DeleteNamespace(r.name, r.namespace); err != nil {
		return err
	}
	r.nsUp, r.ifUp, r.routesUp = false, false, false
	return nil
}

// Query fails: a plain RouterNode has no control surface. Daemon-bearing
// variants override this by embedding a *daemon.Supervisor.
func (r *RouterNode) Query(ctx context.Context, req []byte) ([]byte, error) {
	return nil, nserrors.New(nserrors.Unsupported, r.name, fmt.Errorf("plain router nodes have no control surface"))
}
