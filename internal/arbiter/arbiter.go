// internal/arbiter/arbiter.go
package arbiter

import (
	"errors"
	"fmt"
)

// Progress is the result of one task step.
type Progress uint8

const (
	Pending Progress = iota
	Done
)

func (p Progress) String() string {
	if p == Done {
		return "done"
	}
	return "pending"
}

// Task is one request type's state machine over its context record.
// Step performs a bounded slice of work and never blocks.
type Task interface {
	// Reset starts the task over from its context record.
	Reset()

	// Step advances one slice. An error ends the task.
	Step() (Progress, error)
}

// Completion reports a task that ended.
type Completion struct {
	Kind Kind
	Tick uint64
	Err  error
}

// Outcome describes one Tick.
type Outcome struct {
	Kind      Kind
	Stepped   bool
	Completed bool
	Err       error
}

// Arbiter runs at most one slice of one task per Tick, choosing the
// lowest-numbered pending request whenever it is idle. A running task is
// never interrupted; higher priorities only win the next selection.
type Arbiter struct {
	hs    *Handshake
	tasks [NumKinds]Task

	onDone func(Completion)

	active  bool
	current Kind
	ticks   uint64
	results [NumKinds]error
}

// New checks that every request type has a task.
func New(hs *Handshake, tasks [NumKinds]Task, onDone func(Completion)) (*Arbiter, error) {
	if hs == nil {
		return nil, errors.New("arbiter: handshake required")
	}
	for k, t := range tasks {
		if t == nil {
			return nil, fmt.Errorf("arbiter: no task for %s", Kind(k))
		}
	}
	return &Arbiter{hs: hs, tasks: tasks, onDone: onDone}, nil
}

// Tick is called once per period by the control loop.
func (a *Arbiter) Tick() Outcome {
	a.ticks++
	a.hs.settle()

	if !a.active {
		k, ok := a.hs.next()
		if !ok {
			return Outcome{}
		}
		a.current = k
		a.active = true
		a.results[k] = nil
		a.tasks[k].Reset()
	}

	k := a.current
	p, err := a.tasks[k].Step()

	out := Outcome{Kind: k, Stepped: true}
	if err == nil && p == Pending {
		return out
	}

	a.active = false
	a.results[k] = err
	a.hs.acknowledge(k)

	out.Completed = true
	out.Err = err

	if a.onDone != nil {
		a.onDone(Completion{Kind: k, Tick: a.ticks, Err: err})
	}
	return out
}

// Active returns the running task, if any.
func (a *Arbiter) Active() (Kind, bool) {
	return a.current, a.active
}

// Result is the error the last run of k ended with.
func (a *Arbiter) Result(k Kind) error {
	if !k.Valid() {
		return ErrInvalidKind
	}
	return a.results[k]
}

// Ticks counts Tick calls.
func (a *Arbiter) Ticks() uint64 { return a.ticks }
