package kernel

import (
	"os"

	"github.com/vishvananda/netns"

	"gonett/internal/nserrors"
)

// CreateNamespace creates a named network namespace and registers its
// deletion as the compensating action. The "lo" interface is brought up
// immediately so loopback traffic works inside the namespace from the start.
func (e *Executor) CreateNamespace(node, name string, stack *CleanupStack) error {
	e.logOp("create namespace", map[string]interface{}{"node": node, "netns": name})
	err := withRootNS(func() error {
		if _, lookErr := netns.GetFromName(name); lookErr == nil {
			return &preexistingError{}
		}
		h, err := netns.NewNamed(name)
		if err != nil {
			return err
		}
		// NewNamed switches the thread into the new namespace; bring lo up
		// before withRootNS restores the caller's original namespace.
		if err := bringLoUp(); err != nil {
			h.Close()
			_ = netns.DeleteNamed(name)
			return err
		}
		h.Close()
		return nil
	})
	if err != nil {
		if _, ok := err.(*preexistingError); ok {
			return wrap(nserrors.NameCollision, node, "netns:"+name, err)
		}
		return wrap(nserrors.ExternalFailure, node, "netns:"+name, err)
	}

	stack.Push(Action{
		Op:   "delete_namespace",
		Args: []string{name},
		Undo: func() error { return e.DeleteNamespace(node, name) },
	})
	return nil
}

type preexistingError struct{}

func (*preexistingError) Error() string { return "object already exists and is not ours" }

// DeleteNamespace removes a named network namespace. Absence is treated as
// success for idempotence.
func (e *Executor) DeleteNamespace(node, name string) error {
	if err := netns.DeleteNamed(name); err != nil {
		if isNotExist(err) || os.IsNotExist(err) {
			return nil
		}
		return wrap(nserrors.ExternalFailure, node, "netns:"+name, err)
	}
	return nil
}

func bringLoUp() error {
	return setLinkUpLocked("lo")
}
