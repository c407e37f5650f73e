// Package daemon implements the daemon-supervisor layer: config/cache
// materialisation, launch inside a router's namespace, readiness polling,
// opaque query proxying, and graceful teardown, shared by BIRD, ExaBGP, and
// StayRTR.
package daemon

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"gonett/internal/kernel"
	"gonett/internal/nserrors"
)

// Backend is the subset of *kernel.Executor a Supervisor needs: spawning
// the daemon process inside a namespace and terminating it on teardown.
type Backend interface {
	Spawn(node string, spec kernel.SpawnSpec, stack *kernel.CleanupStack) (*os.Process, error)
	Terminate(node string, proc *os.Process, grace time.Duration) error
}

// Kind names a daemon binary this supervisor knows how to launch.
type Kind string

const (
	KindBird    Kind = "bird"
	KindExaBGP  Kind = "exabgp"
	KindStayRTR Kind = "stayrtr"
)

// Spec describes one daemon-bearing node's materials, supplied by the
// caller through the Topology API's optional router config path.
type Spec struct {
	Kind       Kind
	Node       string
	Namespace  string
	ConfigPath string // BIRD/ExaBGP config, or StayRTR VRP cache; "" means synthesize
	RunDirBase string // defaults to /run/nsnetsim
}

// Supervisor owns one daemon-bearing node's runtime directory, process
// handle, and (for BIRD/ExaBGP) control socket.
type Supervisor struct {
	spec Spec
	log  *logrus.Entry
	exec Backend

	runDir        string
	configPath    string
	controlSocket string
	pidFile       string
	logFile       string

	proc *os.Process
}

func runDirBase(spec Spec) string {
	if spec.RunDirBase != "" {
		return spec.RunDirBase
	}
	return "/run/nsnetsim"
}

// New builds a Supervisor, creates its runtime directory and materialises
// the config (config, or cache.json for StayRTR) in it; it also fixes the
// paths of control.sock (absent for StayRTR), daemon.log and daemon.pid,
// which Launch and the daemon create later. Registers the directory's
// removal on stack so it is reclaimed
// even if a later step (launch, readiness) fails, or the caller never
// reaches Supervisor.Destroy.
func New(spec Spec, exec Backend, stack *kernel.CleanupStack, log *logrus.Entry) (*Supervisor, error) {
	runDir := filepath.Join(runDirBase(spec), spec.Node)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, nserrors.New(nserrors.ExternalFailure, spec.Node, fmt.Errorf("create run directory %s: %w", runDir, err))
	}
	stack.Push(kernel.Action{
		Op:   "remove_rundir",
		Args: []string{runDir},
		Undo: func() error { return os.RemoveAll(runDir) },
	})

	s := &Supervisor{
		spec:    spec,
		log:     log.WithFields(logrus.Fields{"node": spec.Node, "daemon": string(spec.Kind)}),
		exec:    exec,
		runDir:  runDir,
		pidFile: filepath.Join(runDir, "daemon.pid"),
		logFile: filepath.Join(runDir, "daemon.log"),
	}

	switch spec.Kind {
	case KindStayRTR:
		if err := s.materializeCache(); err != nil {
			return nil, err
		}
	default:
		if err := s.materializeConfig(); err != nil {
			return nil, err
		}
		s.controlSocket = filepath.Join(runDir, "control.sock")
	}

	return s, nil
}

// materializeConfig copies the caller-supplied config into the runtime
// directory so the daemon sees a stable path independent of the caller's
// own filesystem layout.
func (s *Supervisor) materializeConfig() error {
	if s.spec.ConfigPath == "" {
		return nserrors.New(nserrors.InvariantViolation, s.spec.Node, fmt.Errorf("%s requires a config path", s.spec.Kind))
	}
	dst := filepath.Join(s.runDir, "config")
	if err := copyFile(s.spec.ConfigPath, dst); err != nil {
		return nserrors.New(nserrors.ExternalFailure, s.spec.Node, fmt.Errorf("materialize config: %w", err))
	}
	s.configPath = dst
	return nil
}

// materializeCache copies a caller-supplied VRP cache, or synthesizes an
// empty-but-well-formed one, mirroring the original's fallback behavior.
func (s *Supervisor) materializeCache() error {
	dst := filepath.Join(s.runDir, "cache.json")
	if s.spec.ConfigPath != "" {
		if err := copyFile(s.spec.ConfigPath, dst); err != nil {
			return nserrors.New(nserrors.ExternalFailure, s.spec.Node, fmt.Errorf("materialize cache: %w", err))
		}
	} else {
		empty := `{"metadata":{"vrps":0},"roas":[]}`
		if err := os.WriteFile(dst, []byte(empty), 0o644); err != nil {
			return nserrors.New(nserrors.ExternalFailure, s.spec.Node, fmt.Errorf("write empty cache: %w", err))
		}
	}
	s.configPath = dst
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

// Launch spawns the daemon binary inside the router's namespace via the
// Executor's self-reexec primitive, with arguments appropriate to Kind.
func (s *Supervisor) Launch(ctx context.Context, stack *kernel.CleanupStack) error {
	logf, err := os.Create(s.logFile)
	if err != nil {
		return nserrors.New(nserrors.ExternalFailure, s.spec.Node, fmt.Errorf("create log file: %w", err))
	}

	var binary string
	var args []string
	switch s.spec.Kind {
	case KindBird:
		binary = "bird"
		args = []string{"-c", s.configPath, "-s", s.controlSocket, "-f"}
	case KindExaBGP:
		binary = "exabgp"
		args = []string{s.configPath}
	case KindStayRTR:
		binary = "stayrtr"
		args = []string{"-cache", s.configPath}
	default:
		return nserrors.New(nserrors.InvariantViolation, s.spec.Node, fmt.Errorf("unsupported daemon kind %q", s.spec.Kind))
	}

	proc, err := s.exec.Spawn(s.spec.Node, kernel.SpawnSpec{
		Namespace: s.spec.Namespace,
		Binary:    binary,
		Args:      args,
		Dir:       s.runDir,
		Stdout:    logf,
		Stderr:    logf,
	}, stack)
	if err != nil {
		logf.Close()
		return err
	}
	s.proc = proc
	_ = os.WriteFile(s.pidFile, []byte(fmt.Sprintf("%d", proc.Pid)), 0o644)

	s.log.WithField("pid", proc.Pid).Info("daemon launched")

	if s.spec.Kind == KindStayRTR {
		return nil
	}
	return s.waitReady(ctx)
}

// waitReady polls for the control socket's appearance until it exists or
// ctx/deadline expires, whichever first.
func (s *Supervisor) waitReady(ctx context.Context) error {
	deadline := time.Now().Add(10 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if _, err := os.Stat(s.controlSocket); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return nserrors.New(nserrors.DaemonUnready, s.spec.Node, fmt.Errorf("control socket %s did not appear within 10s", s.controlSocket))
		}
		select {
		case <-ctx.Done():
			return nserrors.New(nserrors.DaemonUnready, s.spec.Node, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Query writes req to the control socket and returns the raw response. Not
// defined for StayRTR, which speaks the RTR protocol over TCP instead.
func (s *Supervisor) Query(ctx context.Context, req []byte) ([]byte, error) {
	if s.spec.Kind == KindStayRTR {
		return nil, nserrors.New(nserrors.Unsupported, s.spec.Node, fmt.Errorf("stayrtr exposes no control-socket query surface"))
	}
	conn, err := net.Dial("unix", s.controlSocket)
	if err != nil {
		return nil, nserrors.New(nserrors.ExternalFailure, s.spec.Node, fmt.Errorf("dial control socket: %w", err))
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if _, err := conn.Write(req); err != nil {
		return nil, nserrors.New(nserrors.ExternalFailure, s.spec.Node, fmt.Errorf("write control socket: %w", err))
	}
	resp, err := io.ReadAll(conn)
	if err != nil {
		return nil, nserrors.New(nserrors.ExternalFailure, s.spec.Node, fmt.Errorf("read control socket: %w", err))
	}
	return resp, nil
}

// Destroy signals, grace-waits, force-kills, reaps, and removes the
// runtime directory. Safe to call more than once.
func (s *Supervisor) Destroy() error {
	if s.proc != nil {
		if err := s.exec.Terminate(s.spec.Node, s.proc, 5*time.Second); err != nil {
			s.log.WithError(err).Warn("daemon terminate failed")
		}
		s.proc = nil
	}
	if err := os.RemoveAll(s.runDir); err != nil && !os.IsNotExist(err) {
		s.log.WithError(err).Warn("remove run directory failed")
	}
	return nil
}
