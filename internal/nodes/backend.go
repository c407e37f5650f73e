package nodes

import (
	"net"
	"os"
	"time"

	"gonett/internal/kernel"
)

// kernelBackend is the subset of *kernel.Executor the node variants call.
// Depending on the interface rather than the concrete type lets tests
// exercise validation, ordering, and cleanup-stack behavior against a
// fake/no-op backend instead of the real kernel.
type kernelBackend interface {
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
