package kernel

import (
	"github.com/vishvananda/netlink"

	"gonett/internal/nserrors"
)

// CreateBridge creates a Linux bridge in the root namespace and sets it up.
// Registers deletion as a compensating action.
func (e *Executor) CreateBridge(node, name string, stack *CleanupStack) error {
	e.logOp("create bridge", map[string]interface{}{"node": node, "bridge": name})
	err := withRootNS(func() error {
		if _, lookErr := netlink.LinkByName(name); lookErr == nil {
			return &preexistingError{}
		}
		br := &netlink.Bridge{
			LinkAttrs: netlink.LinkAttrs{Name: name},
		}
		if err := netlink.LinkAdd(br); err != nil {
			return err
		}
		link, err := netlink.LinkByName(name)
		if err != nil {
			return err
		}
		return netlink.LinkSetUp(link)
	})
	if err != nil {
		if _, ok := err.(*preexistingError); ok {
			return wrap(nserrors.NameCollision, node, "bridge:"+name, err)
		}
		return wrap(nserrors.ExternalFailure, node, "bridge:"+name, err)
	}

	stack.Push(Action{
		Op:   "delete_bridge",
		Args: []string{name},
		Undo: func() error { return e.DeleteBridge(node, name) },
	})
	return nil
}

// DeleteBridge removes a bridge from the root namespace. Absence is success.
func (e *Executor) DeleteBridge(node, name string) error {
	err := withRootNS(func() error {
		link, err := netlink.LinkByName(name)
		if err != nil {
			return nil
		}
		return netlink.LinkDel(link)
	})
	if err != nil {
		return wrap(nserrors.ExternalFailure, node, "bridge:"+name, err)
	}
	return nil
}
