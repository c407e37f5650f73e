package kernel

import (
	"github.com/sirupsen/logrus"
)

// Action is a single closed compensating record pushed onto a Topology's
// cleanup stack whenever a mutating primitive succeeds. It is trivially
// inspectable for debugging: Op and Args describe what ran, Undo reverses it.
type Action struct {
	Op   string
	Args []string
	Undo func() error
}

// CleanupStack is the LIFO of compensating actions a Topology drains on any
// failure path and on Destroy. A single-writer discipline is assumed: one
// goroutine drives Run/Destroy for a given Topology.
type CleanupStack struct {
	actions []Action
}

// NewCleanupStack returns an empty stack.
func NewCleanupStack() *CleanupStack {
	return &CleanupStack{}
}

// Push registers a compensating action. Called by Executor primitives on
// success, never on failure.
func (s *CleanupStack) Push(a Action) {
	s.actions = append(s.actions, a)
}

// Len reports how many compensating actions remain.
func (s *CleanupStack) Len() int { return len(s.actions) }

// Drain runs every remaining action in LIFO order. Each action is
// individually fallible: a failure is logged and draining continues so a
// single stuck resource cannot prevent cleanup of the rest. The stack is
// empty when Drain returns, regardless of individual failures.
func (s *CleanupStack) Drain(log *logrus.Entry) {
	for i := len(s.actions) - 1; i >= 0; i-- {
		a := s.actions[i]
		if err := a.Undo(); err != nil {
			log.WithFields(logrus.Fields{
				"op":   a.Op,
				"args": a.Args,
			}).WithError(err).Warn("cleanup action failed, continuing")
		}
	}
	s.actions = nil
}
