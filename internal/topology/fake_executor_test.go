package topology

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"gonett/internal/kernel"
)

// fakeExecutor is a no-op kernelExecutor that records every call and its
// corresponding cleanup-stack push, so Run/Destroy ordering and rollback can
// be exercised without CAP_NET_ADMIN.
type fakeExecutor struct {
	mu    sync.Mutex
	calls []string

	failOp string
	failOn error
}

func newFakeExecutor() *fakeExecutor { return &fakeExecutor{} }

func (f *fakeExecutor) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if f.failOp == name {
		return f.failOn
	}
	return nil
}

func (f *fakeExecutor) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeExecutor) failNext(op string, err error) {
	f.failOp = op
	f.failOn = err
}

func (f *fakeExecutor) CreateNamespace(node, name string, stack *kernel.CleanupStack) error {
	if err := f.record("CreateNamespace"); err != nil {
		return err
	}
	stack.Push(kernel.Action{Op: "delete_namespace", Args: []string{name}, Undo: func() error {
		return f.record("undo:DeleteNamespace")
	}})
	return nil
}
func (f *fakeExecutor) DeleteNamespace(node, name string) error { return f.record("DeleteNamespace") }
func (f *fakeExecutor) CreateVeth(node, ifName, peerName string, stack *kernel.CleanupStack) error {
	if err := f.record("CreateVeth"); err != nil {
		return err
	}
	stack.Push(kernel.Action{Op: "delete_veth", Args: []string{ifName}, Undo: func() error {
		return f.record("undo:DeleteVeth")
	}})
	return nil
}
func (f *fakeExecutor) DeleteVeth(node, ifName string) error { return f.record("DeleteVeth") }
func (f *fakeExecutor) MoveLinkToNamespace(node, ifName, nsName string) error {
	return f.record("MoveLinkToNamespace")
}
func (f *fakeExecutor) SetLinkUp(node, nsName, ifName string) error { return f.record("SetLinkUp") }
func (f *fakeExecutor) SetLinkMAC(node, nsName, ifName string, mac net.HardwareAddr) error {
	return f.record("SetLinkMAC")
}
func (f *fakeExecutor) AttachToBridge(node, ifName, bridgeName string) error {
	return f.record("AttachToBridge")
}
func (f *fakeExecutor) AddrAdd(node, nsName, ifName string, ipNet *net.IPNet) error {
	return f.record("AddrAdd")
}
func (f *fakeExecutor) RouteAdd(node, nsName string, route kernel.Route, stack *kernel.CleanupStack) error {
	if err := f.record("RouteAdd"); err != nil {
		return err
	}
	stack.Push(kernel.Action{Op: "delete_route", Undo: func() error {
		return f.record("undo:RouteDel")
	}})
	return nil
}
func (f *fakeExecutor) RouteDel(node, nsName string, route kernel.Route) error {
	return f.record("RouteDel")
}
func (f *fakeExecutor) CreateBridge(node, name string, stack *kernel.CleanupStack) error {
	if err := f.record("CreateBridge"); err != nil {
		return err
	}
	stack.Push(kernel.Action{Op: "delete_bridge", Args: []string{name}, Undo: func() error {
		return f.record("undo:DeleteBridge")
	}})
	return nil
}
func (f *fakeExecutor) DeleteBridge(node, name string) error { return f.record("DeleteBridge") }
func (f *fakeExecutor) Spawn(node string, spec kernel.SpawnSpec, stack *kernel.CleanupStack) (*os.Process, error) {
	if err := f.record("Spawn"); err != nil {
		return nil, err
	}
	return &os.Process{Pid: 1}, nil
}
func (f *fakeExecutor) Terminate(node string, proc *os.Process, grace time.Duration) error {
	return f.record("Terminate")
}

var errFakeBoom = fmt.Errorf("boom")
