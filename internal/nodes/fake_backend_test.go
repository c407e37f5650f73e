package nodes

import (
	"errors"
	"net"
	"os"
	"sync"
	"time"

	"gonett/internal/kernel"
)

// fakeBackend is a no-op kernelBackend that records every call it receives
// in order, so tests can assert on ordering and idempotency without
// CAP_NET_ADMIN or a real network namespace.
type fakeBackend struct {
	mu    sync.Mutex
	calls []string

	failOp string // call name that should return failOn
	failOn error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{}
}

func (f *fakeBackend) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if f.failOp == name {
		return f.failOn
	}
	return nil
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeBackend) failNext(op string, err error) {
	f.failOp = op
	f.failOn = err
}

func (f *fakeBackend) CreateNamespace(node, name string, stack *kernel.CleanupStack) error {
	return f.record("CreateNamespace")
}
func (f *fakeBackend) DeleteNamespace(node, name string) error { return f.record("DeleteNamespace") }
func (f *fakeBackend) CreateVeth(node, ifName, peerName string, stack *kernel.CleanupStack) error {
	return f.record("CreateVeth")
}
func (f *fakeBackend) DeleteVeth(node, ifName string) error { return f.record("DeleteVeth") }
func (f *fakeBackend) MoveLinkToNamespace(node, ifName, nsName string) error {
	return f.record("MoveLinkToNamespace")
}
func (f *fakeBackend) SetLinkUp(node, nsName, ifName string) error { return f.record("SetLinkUp") }
func (f *fakeBackend) SetLinkMAC(node, nsName, ifName string, mac net.HardwareAddr) error {
	return f.record("SetLinkMAC")
}
func (f *fakeBackend) AttachToBridge(node, ifName, bridgeName string) error {
	return f.record("AttachToBridge")
}
func (f *fakeBackend) AddrAdd(node, nsName, ifName string, ipNet *net.IPNet) error {
	return f.record("AddrAdd")
}
func (f *fakeBackend) RouteAdd(node, nsName string, route kernel.Route, stack *kernel.CleanupStack) error {
	return f.record("RouteAdd")
}
func (f *fakeBackend) RouteDel(node, nsName string, route kernel.Route) error {
	return f.record("RouteDel")
}
func (f *fakeBackend) CreateBridge(node, name string, stack *kernel.CleanupStack) error {
	return f.record("CreateBridge")
}
func (f *fakeBackend) DeleteBridge(node, name string) error { return f.record("DeleteBridge") }
func (f *fakeBackend) Spawn(node string, spec kernel.SpawnSpec, stack *kernel.CleanupStack) (*os.Process, error) {
	if err := f.record("Spawn"); err != nil {
		return nil, err
	}
	return &os.Process{Pid: 1}, nil
}
func (f *fakeBackend) Terminate(node string, proc *os.Process, grace time.Duration) error {
	return f.record("Terminate")
}

var errBoom = errors.New("boom")
