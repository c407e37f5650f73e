package kernel

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"syscall"
	"time"

	"github.com/moby/sys/reexec"
	"golang.org/x/sys/unix"

	"gonett/internal/nserrors"
)

const nsExecCommand = "nsnetsim-nsexec"

func init() {
	reexec.Register(nsExecCommand, nsExecMain)
}

// nsExecMain is the registered reexec entry point. It runs as the
// re-executed child: os.Args[1] is the netns path to join, os.Args[2] is the
// target binary, os.Args[3:] are its arguments. On success it never
// returns, having replaced itself via execve. Joining an *existing*
// namespace ahead of running a workload isn't expressible through
// os/exec's SysProcAttr alone (that only creates new namespaces at fork
// time), so the daemon supervisors route launches through this subcommand
// the same way container runtimes join namespaces before execve-ing a
// workload.
func nsExecMain() {
	args := os.Args
	if len(args) < 3 {
		fmt.Fprintln(os.Stderr, "nsexec: missing namespace path or target binary")
		os.Exit(1)
	}
	nsPath, bin, rest := args[1], args[2], args[3:]

	runtime.LockOSThread()

	fd, err := os.Open(nsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nsexec: open %s: %v\n", nsPath, err)
		os.Exit(1)
	}
	if err := unix.Setns(int(fd.Fd()), unix.CLONE_NEWNET); err != nil {
		fmt.Fprintf(os.Stderr, "nsexec: setns: %v\n", err)
		os.Exit(1)
	}
	fd.Close()

	if err := syscall.Exec(bin, append([]string{bin}, rest...), os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "nsexec: exec %s: %v\n", bin, err)
		os.Exit(1)
	}
}

// SpawnSpec describes a process to launch inside a namespace.
type SpawnSpec struct {
	Namespace string
	Binary    string
	Args      []string
	Dir       string
	Env       []string
	Stdout    io.Writer
	Stderr    io.Writer
}

// Spawn starts a process inside the named namespace via self-reexec, then
// setns, then execve. Registers graceful termination as a compensating
// action.
func (e *Executor) Spawn(node string, spec SpawnSpec, stack *CleanupStack) (*os.Process, error) {
	nsPath := NamespacePath(spec.Namespace)
	reexecArgs := append([]string{nsExecCommand, nsPath, spec.Binary}, spec.Args...)
	cmd := reexec.Command(reexecArgs...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr

	e.logOp("spawn", map[string]interface{}{"node": node, "binary": spec.Binary, "netns": spec.Namespace})

	if err := cmd.Start(); err != nil {
		return nil, wrap(nserrors.ExternalFailure, node, spec.Binary, err)
	}

	proc := cmd.Process
	stack.Push(Action{
		Op:   "terminate_process",
		Args: []string{spec.Binary},
		Undo: func() error { return e.Terminate(node, proc, 5*time.Second) },
	})
	return proc, nil
}

// NamespacePath returns the conventional bind-mount path for a named
// network namespace, matching what `ip netns` and vishvananda/netns both use.
func NamespacePath(name string) string {
	return "/var/run/netns/" + name
}

// Terminate sends SIGTERM to proc, waits up to grace for it to exit, then
// force-kills and reaps it. A nil process, or one that has already exited,
// is a no-op success.
func (e *Executor) Terminate(node string, proc *os.Process, grace time.Duration) error {
	if proc == nil {
		return nil
	}

	_ = proc.Signal(syscall.SIGTERM)

	done := make(chan error, 1)
	go func() {
		_, err := proc.Wait()
		done <- err
	}()

	select {
	case <-done:
		return nil
	case <-time.After(grace):
		_ = proc.Signal(syscall.SIGKILL)
		<-done
		return nil
	}
}
