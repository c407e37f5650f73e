package kernel

import (
	"errors"
	"net"
	"os"

	"github.com/vishvananda/netlink"

	"gonett/internal/nserrors"
)

// Route is a static route to install inside a router's namespace: a
// destination prefix and either a gateway address or an outgoing device
// (or both).
type Route struct {
	Dest    *net.IPNet
	Gateway net.IP
	Device  string
}

// RouteAdd installs a static route inside the named namespace, after the
// router's interfaces are up and addressed. The kernel's refusal (e.g. an
// unreachable gateway with no matching link-scope route yet) is treated as
// ExternalFailure and aborts bringup, even though the route may have become
// reachable later via a peer's advertisement.
func (e *Executor) RouteAdd(node, nsName string, route Route, stack *CleanupStack) error {
	err := withNamedNS(nsName, func() error {
		nlRoute := &netlink.Route{Dst: route.Dest, Gw: route.Gateway}
		if route.Device != "" {
			link, err := netlink.LinkByName(route.Device)
			if err != nil {
				return err
			}
			nlRoute.LinkIndex = link.Attrs().Index
		}
		return netlink.RouteAdd(nlRoute)
	})
	if err != nil {
		return wrap(nserrors.ExternalFailure, node, "route:"+route.Dest.String(), err)
	}

	stack.Push(Action{
		Op:   "delete_route",
		Args: []string{nsName, route.Dest.String()},
		Undo: func() error { return e.RouteDel(node, nsName, route) },
	})
	return nil
}

// RouteDel removes a static route from the named namespace. Absence (e.g.
// the namespace itself is already gone) is treated as success.
func (e *Executor) RouteDel(node, nsName string, route Route) error {
	err := withNamedNS(nsName, func() error {
		nlRoute := &netlink.Route{Dst: route.Dest, Gw: route.Gateway}
		if route.Device != "" {
			link, err := netlink.LinkByName(route.Device)
			if err == nil {
				nlRoute.LinkIndex = link.Attrs().Index
			}
		}
		if err := netlink.RouteDel(nlRoute); err != nil {
			return nil
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return wrap(nserrors.ExternalFailure, node, "route:"+route.Dest.String(), err)
	}
	return nil
}
