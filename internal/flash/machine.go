// internal/flash/machine.go
package flash

import (
	"github.com/tamzrod/nvstore/internal/bus"
)

type opState uint8

const (
	stateIdle opState = iota
	stateIssue
	statePoll
	stateDone
)

func (s opState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateIssue:
		return "issue"
	case statePoll:
		return "poll"
	case stateDone:
		return "done"
	default:
		return "invalid"
	}
}

// Program is a resumable page program:
// write enable + opcode + address + data, then one busy poll per step.
type Program struct {
	// MaxPolls bounds the busy reads; zero means DefaultProgramPolls.
	MaxPolls int

	state opState
	addr  Addr
	data  []byte
	polls int
}

// Start arms a program of words at page a.
func (p *Program) Start(a Addr, words []uint16) error {
	if len(words) == 0 || len(words) > MaxPageWords {
		return ErrPageSize
	}
	p.addr = a
	p.data = bus.PutWords(words)
	p.polls = 0
	p.state = stateIssue
	return nil
}

// Addr is the page being programmed.
func (p *Program) Addr() Addr { return p.addr }

// Step performs one slice of work. It returns true once the operation has
// ended, successfully or with an error.
func (p *Program) Step(x bus.Exchanger) (bool, error) {
	switch p.state {
	case stateIssue:
		if err := writeEnable(x); err != nil {
			p.state = stateDone
			return true, err
		}
		f := &bus.Frame{Op: OpPageProgram, Addr: p.addr.Offset(), HasAddr: true, Out: p.data}
		if err := x.Exchange(bus.Flash, f); err != nil {
			p.state = stateDone
			return true, err
		}
		p.state = statePoll
		return false, nil

	case statePoll:
		return p.poll(x)

	case stateDone:
		return true, nil

	default:
		return true, ErrNotStarted
	}
}

func (p *Program) poll(x bus.Exchanger) (bool, error) {
	limit := p.MaxPolls
	if limit <= 0 {
		limit = DefaultProgramPolls
	}
	return pollBusy(x, &p.state, &p.polls, limit, "program", p.addr)
}

// Erase is a resumable sector or block erase. Block selects the 64 KiB
// granularity; otherwise one 4 KiB sector is erased.
type Erase struct {
	// MaxPolls bounds the busy reads; zero means DefaultErasePolls.
	MaxPolls int

	state opState
	addr  Addr
	block bool
	polls int
}

// Start arms an erase of the sector or block containing a.
func (e *Erase) Start(a Addr, block bool) {
	e.addr = a
	e.block = block
	e.polls = 0
	e.state = stateIssue
}

// Addr is the erase target.
func (e *Erase) Addr() Addr { return e.addr }

// Step performs one slice of work, as Program.Step.
func (e *Erase) Step(x bus.Exchanger) (bool, error) {
	switch e.state {
	case stateIssue:
		if err := writeEnable(x); err != nil {
			e.state = stateDone
			return true, err
		}
		op := byte(OpSectorErase)
		if e.block {
			op = OpBlockErase
		}
		if err := x.Exchange(bus.Flash, &bus.Frame{Op: op, Addr: e.addr.Offset(), HasAddr: true}); err != nil {
			e.state = stateDone
			return true, err
		}
		e.state = statePoll
		return false, nil

	case statePoll:
		limit := e.MaxPolls
		if limit <= 0 {
			limit = DefaultErasePolls
		}
		name := "sector erase"
		if e.block {
			name = "block erase"
		}
		return pollBusy(x, &e.state, &e.polls, limit, name, e.addr)

	case stateDone:
		return true, nil

	default:
		return true, ErrNotStarted
	}
}

// pollBusy reads the status once. A set busy bit counts against limit.
func pollBusy(x bus.Exchanger, state *opState, polls *int, limit int, op string, a Addr) (bool, error) {
	busy, err := Busy(x)
	if err != nil {
		*state = stateDone
		return true, err
	}
	if !busy {
		*state = stateDone
		return true, nil
	}

	*polls++
	if *polls >= limit {
		*state = stateDone
		return true, &StallError{Op: op, Addr: a, Polls: *polls}
	}
	return false, nil
}
