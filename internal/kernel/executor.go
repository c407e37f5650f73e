// Package kernel is the sole owner of side effects on the host: it is the
// only package permitted to import vishvananda/netlink, vishvananda/netns,
// and golang.org/x/sys/unix for mutation. Every mutating primitive returns a
// *nserrors.Error and, on success, registers a compensating action on the
// caller-supplied CleanupStack.
package kernel

import (
	"fmt"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"

	"gonett/internal/nserrors"
)

// Executor issues link/address/route/namespace operations and external
// process spawns. Operations execute serially within one Topology;
// concurrency across topologies is the caller's problem, but Executor never
// relies on process-global state beyond the kernel namespace table.
type Executor struct {
	log *logrus.Entry
}

// New returns an Executor that logs under the given entry.
func New(log *logrus.Entry) *Executor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Executor{log: log}
}

// withRootNS locks the calling goroutine to its OS thread, ensures the
// thread is in the root (initial) network namespace for the duration of fn,
// and restores whatever namespace the thread was in beforehand. Every
// Executor primitive that mutates root-namespace state follows this
// lock/switch/restore/unlock pattern.
func withRootNS(fn func() error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	orig, err := netns.Get()
	if err != nil {
		return fmt.Errorf("get current netns: %w", err)
	}
	defer orig.Close()

	root, err := netns.GetFromPath("/proc/1/ns/net")
	if err != nil {
		return fmt.Errorf("get root netns: %w", err)
	}
	defer root.Close()

	if err := netns.Set(root); err != nil {
		return fmt.Errorf("set root netns: %w", err)
	}
	defer netns.Set(orig)

	return fn()
}

// withNamedNS is like withRootNS but switches into the named network
// namespace instead of the root one. An empty name means "stay in the root
// namespace" and is equivalent to withRootNS.
func withNamedNS(name string, fn func() error) error {
	if name == "" {
		return withRootNS(fn)
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	orig, err := netns.Get()
	if err != nil {
		return fmt.Errorf("get current netns: %w", err)
	}
	defer orig.Close()

	target, err := netns.GetFromName(name)
	if err != nil {
		return fmt.Errorf("open netns %q: %w", name, err)
	}
	defer target.Close()

	if err := netns.Set(target); err != nil {
		return fmt.Errorf("set netns %q: %w", name, err)
	}
	defer netns.Set(orig)

	return fn()
}

// isNotExist reports whether err indicates the target of a lookup or
// teardown is already absent, which teardown primitives treat as success.
func isNotExist(err error) bool {
	if err == nil {
		return false
	}
	if os.IsNotExist(err) {
		return true
	}
	if _, ok := err.(netlink.LinkNotFoundError); ok {
		return true
	}
	return false
}

func (e *Executor) logOp(op string, fields logrus.Fields) {
	e.log.WithFields(fields).Debug(op)
}

// wrap classifies a raw netlink/netns error into a typed nserrors.Error.
func wrap(kind nserrors.Kind, node, object string, err error) *nserrors.Error {
	return nserrors.NewObject(kind, node, object, err)
}
