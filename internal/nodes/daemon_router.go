package nodes

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"gonett/internal/daemon"
	"gonett/internal/kernel"
	"gonett/internal/nserrors"
)

// DaemonRouterNode specialises RouterNode with a daemon supervisor,
// covering the three concrete variants (BirdRouterNode, ExaBGPRouterNode,
// StayRTRServerNode) that differ only in daemon.Kind and config semantics.
type DaemonRouterNode struct {
	*RouterNode
	kind       daemon.Kind
	configPath string
	exec       kernelBackend
	log        *logrus.Entry
	super      *daemon.Supervisor
}

func newDaemonRouterNode(kind daemon.Kind, name, namespace, configPath string, exec kernelBackend, stack *kernel.CleanupStack, log *logrus.Entry) (*DaemonRouterNode, error) {
	r, err := NewRouterNode(name, namespace, exec, stack)
	if err != nil {
		return nil, err
	}
	return &DaemonRouterNode{RouterNode: r, kind: kind, configPath: configPath, exec: exec, log: log}, nil
}

// NewBirdRouterNode constructs a RouterNode that hosts a BIRD daemon fed by
// configPath once its interfaces are up.
func NewBirdRouterNode(name, namespace, configPath string, exec kernelBackend, stack *kernel.CleanupStack, log *logrus.Entry) (*DaemonRouterNode, error) {
	return newDaemonRouterNode(daemon.KindBird, name, namespace, configPath, exec, stack, log)
}

// NewExaBGPRouterNode constructs a RouterNode that hosts an ExaBGP process.
func NewExaBGPRouterNode(name, namespace, configPath string, exec kernelBackend, stack *kernel.CleanupStack, log *logrus.Entry) (*DaemonRouterNode, error) {
	return newDaemonRouterNode(daemon.KindExaBGP, name, namespace, configPath, exec, stack, log)
}

// NewStayRTRServerNode constructs a RouterNode that hosts a StayRTR RTR
// validator. cachePath may be empty, in which case an empty-but-well-formed
// VRP cache is synthesized.
func NewStayRTRServerNode(name, namespace, cachePath string, exec kernelBackend, stack *kernel.CleanupStack, log *logrus.Entry) (*DaemonRouterNode, error) {
	return newDaemonRouterNode(daemon.KindStayRTR, name, namespace, cachePath, exec, stack, log)
}

// Kind reports which daemon this router hosts.
func (d *DaemonRouterNode) Kind() daemon.Kind { return d.kind }

// Create brings up the namespace, interfaces, and routes exactly as a
// plain RouterNode, then materialises the daemon's config/cache and
// launches it.
func (d *DaemonRouterNode) Create(ctx context.Context) error {
	if err := d.RouterNode.Create(ctx); err != nil {
		return err
	}
	if d.super == nil {
		super, err := daemon.New(daemon.Spec{
			Kind:       d.kind,
			Node:       d.Name(),
			Namespace:  d.Namespace(),
			ConfigPath: d.configPath,
		}, d.exec, d.stack, d.log)
		if err != nil {
			return err
		}
		d.super = super
	}
	return d.super.Launch(ctx, d.stack)
}

// Destroy tears down the daemon first (so it releases its netns fd before
// the namespace itself is removed), then the namespace, interfaces, and
// routes via RouterNode.Destroy.
func (d *DaemonRouterNode) Destroy(ctx context.Context) error {
	if d.super != nil {
		if err := d.super.Destroy(); err != nil {
			return err
		}
	}
	return d.RouterNode.Destroy(ctx)
}

// Query proxies to the daemon's control socket. Fails with InvalidState if
// the daemon has not been launched yet, or with Unsupported for StayRTR.
func (d *DaemonRouterNode) Query(ctx context.Context, req []byte) ([]byte, error) {
	if d.super == nil {
		return nil, nserrors.New(nserrors.InvalidState, d.Name(), fmt.Errorf("daemon not launched"))
	}
	return d.super.Query(ctx, req)
}
