package kernel

import (
	"net"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"

	"gonett/internal/nserrors"
)

// CreateVeth creates a veth pair in the root namespace: ifName is the end
// that will later move into a router's namespace, peerName stays in the
// root namespace (bridged or left bare). Registers deletion of the pair as
// a compensating action.
func (e *Executor) CreateVeth(node, ifName, peerName string, stack *CleanupStack) error {
	e.logOp("create veth", map[string]interface{}{"node": node, "if": ifName, "peer": peerName})
	err := withRootNS(func() error {
		if _, lookErr := netlink.LinkByName(ifName); lookErr == nil {
			return &preexistingError{}
		}
		if _, lookErr := netlink.LinkByName(peerName); lookErr == nil {
			return &preexistingError{}
		}
		v := &netlink.Veth{
			LinkAttrs: netlink.LinkAttrs{Name: ifName},
			PeerName:  peerName,
		}
		return netlink.LinkAdd(v)
	})
	if err != nil {
		if _, ok := err.(*preexistingError); ok {
			return wrap(nserrors.NameCollision, node, "veth:"+ifName, err)
		}
		return wrap(nserrors.ExternalFailure, node, "veth:"+ifName, err)
	}

	stack.Push(Action{
		Op:   "delete_veth",
		Args: []string{ifName, peerName},
		Undo: func() error { return e.DeleteVeth(node, ifName) },
	})
	return nil
}

// DeleteVeth removes one end of a veth pair from the root namespace; the
// kernel removes the peer automatically. Absence is treated as success.
func (e *Executor) DeleteVeth(node, ifName string) error {
	err := withRootNS(func() error {
		link, err := netlink.LinkByName(ifName)
		if err != nil {
			return nil
		}
		return netlink.LinkDel(link)
	})
	if err != nil {
		return wrap(nserrors.ExternalFailure, node, "veth:"+ifName, err)
	}
	return nil
}

// MoveLinkToNamespace moves a root-namespace interface into a named
// namespace. There is no compensating action: the interface disappears from
// the root namespace along with the target namespace when that namespace is
// deleted, so namespace deletion subsumes this move.
func (e *Executor) MoveLinkToNamespace(node, ifName, nsName string) error {
	err := withRootNS(func() error {
		link, err := netlink.LinkByName(ifName)
		if err != nil {
			return err
		}
		target, err := netns.GetFromName(nsName)
		if err != nil {
			return err
		}
		defer target.Close()
		return netlink.LinkSetNsFd(link, int(target))
	})
	if err != nil {
		return wrap(nserrors.ExternalFailure, node, "veth:"+ifName, err)
	}
	return nil
}

// SetLinkUp brings an interface up inside the named namespace ("" for root).
func (e *Executor) SetLinkUp(node, nsName, ifName string) error {
	err := withNamedNS(nsName, func() error { return setLinkUpLocked(ifName) })
	if err != nil {
		return wrap(nserrors.ExternalFailure, node, "if:"+ifName, err)
	}
	return nil
}

func setLinkUpLocked(ifName string) error {
	link, err := netlink.LinkByName(ifName)
	if err != nil {
		return err
	}
	return netlink.LinkSetUp(link)
}

// SetLinkDown brings an interface down inside the named namespace.
func (e *Executor) SetLinkDown(node, nsName, ifName string) error {
	err := withNamedNS(nsName, func() error {
		link, err := netlink.LinkByName(ifName)
		if err != nil {
			return err
		}
		return netlink.LinkSetDown(link)
	})
	if err != nil {
		return wrap(nserrors.ExternalFailure, node, "if:"+ifName, err)
	}
	return nil
}

// SetLinkMAC assigns a MAC address to an interface inside the named namespace.
func (e *Executor) SetLinkMAC(node, nsName, ifName string, mac net.HardwareAddr) error {
	err := withNamedNS(nsName, func() error {
		link, err := netlink.LinkByName(ifName)
		if err != nil {
			return err
		}
		return netlink.LinkSetHardwareAddr(link, mac)
	})
	if err != nil {
		return wrap(nserrors.ExternalFailure, node, "if:"+ifName, err)
	}
	return nil
}

// AttachToBridge sets bridgeName as the master of ifName, both in the root
// namespace, and brings ifName up. The bridge must already exist.
func (e *Executor) AttachToBridge(node, ifName, bridgeName string) error {
	err := withRootNS(func() error {
		br, err := netlink.LinkByName(bridgeName)
		if err != nil {
			return err
		}
		link, err := netlink.LinkByName(ifName)
		if err != nil {
			return err
		}
		if err := netlink.LinkSetMaster(link, br); err != nil {
			return err
		}
		link, err = netlink.LinkByName(ifName)
		if err != nil {
			return err
		}
		return netlink.LinkSetUp(link)
	})
	if err != nil {
		return wrap(nserrors.ExternalFailure, node, "if:"+ifName, err)
	}
	return nil
}
