// internal/arbiter/arbiter_test.go
package arbiter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepTask finishes after a fixed number of steps and records its kind in a
// shared trace every time it runs.
type stepTask struct {
	kind  Kind
	steps int
	left  int
	err   error
	trace *[]Kind
}

func (s *stepTask) Reset() { s.left = s.steps }

func (s *stepTask) Step() (Progress, error) {
	*s.trace = append(*s.trace, s.kind)
	s.left--
	if s.left > 0 {
		return Pending, nil
	}
	return Done, s.err
}

func newTestArbiter(t *testing.T, steps int) (*Arbiter, *Handshake, *[]Kind, [NumKinds]*stepTask) {
	t.Helper()
	trace := &[]Kind{}
	var tasks [NumKinds]Task
	var raw [NumKinds]*stepTask
	for k := Kind(0); k < NumKinds; k++ {
		raw[k] = &stepTask{kind: k, steps: steps, trace: trace}
		tasks[k] = raw[k]
	}
	hs := &Handshake{}
	a, err := New(hs, tasks, nil)
	require.NoError(t, err)
	return a, hs, trace, raw
}

func TestNewRejectsMissingTask(t *testing.T) {
	var tasks [NumKinds]Task
	_, err := New(&Handshake{}, tasks, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trip-erase")

	_, err = New(nil, tasks, nil)
	require.Error(t, err)
}

func TestIdleTickDoesNothing(t *testing.T) {
	a, _, trace, _ := newTestArbiter(t, 1)
	out := a.Tick()
	assert.False(t, out.Stepped)
	assert.Empty(t, *trace)
	assert.Equal(t, uint64(1), a.Ticks())
}

func TestHandshakeLifecycle(t *testing.T) {
	a, hs, _, _ := newTestArbiter(t, 2)

	require.NoError(t, hs.Request(DemandWrite))
	assert.True(t, hs.Pending(DemandWrite))

	out := a.Tick()
	assert.True(t, out.Stepped)
	assert.False(t, out.Completed)
	assert.False(t, hs.Acked(DemandWrite))

	out = a.Tick()
	assert.True(t, out.Completed)
	assert.True(t, hs.Acked(DemandWrite))

	// acknowledged and still requested: not run again
	out = a.Tick()
	assert.False(t, out.Stepped)
	assert.True(t, hs.Acked(DemandWrite))

	hs.Release(DemandWrite)
	assert.True(t, hs.Acked(DemandWrite), "ack clears only on the engine's next pass")

	a.Tick()
	assert.False(t, hs.Acked(DemandWrite))
	assert.False(t, hs.Requested(DemandWrite))
}

func TestPriorityOrdering(t *testing.T) {
	a, hs, trace, _ := newTestArbiter(t, 3)

	require.NoError(t, hs.Request(ExtCapLogWrite))
	require.NoError(t, hs.Request(CalCheck))
	require.NoError(t, hs.Request(TripWrite))

	var order []Kind
	for i := 0; i < 20; i++ {
		out := a.Tick()
		if out.Completed {
			order = append(order, out.Kind)
			// a lower priority must never be acked before a higher one
			if out.Kind == ExtCapLogWrite {
				assert.True(t, hs.Acked(TripWrite))
				assert.True(t, hs.Acked(CalCheck))
			}
		}
	}

	assert.Equal(t, []Kind{TripWrite, CalCheck, ExtCapLogWrite}, order)
	assert.Len(t, *trace, 9)
}

func TestRunningTaskIsNotInterrupted(t *testing.T) {
	a, hs, trace, _ := newTestArbiter(t, 3)

	require.NoError(t, hs.Request(DemandErase))
	a.Tick()

	require.NoError(t, hs.Request(TripErase))
	a.Tick()
	a.Tick()
	assert.True(t, hs.Acked(DemandErase))
	assert.False(t, hs.Acked(TripErase))

	a.Tick()
	assert.Equal(t, []Kind{DemandErase, DemandErase, DemandErase, TripErase}, *trace)
}

func TestErrorEndsTaskAndIsRecorded(t *testing.T) {
	a, hs, _, raw := newTestArbiter(t, 2)
	boom := errors.New("boom")
	raw[RecordRead].err = boom

	var seen []Completion
	a.onDone = func(c Completion) { seen = append(seen, c) }

	require.NoError(t, hs.Request(RecordRead))
	a.Tick()
	out := a.Tick()

	assert.True(t, out.Completed)
	assert.ErrorIs(t, out.Err, boom)
	assert.ErrorIs(t, a.Result(RecordRead), boom)
	assert.True(t, hs.Acked(RecordRead))
	require.Len(t, seen, 1)
	assert.Equal(t, RecordRead, seen[0].Kind)
	assert.Equal(t, uint64(2), seen[0].Tick)

	// a fresh run clears the previous result
	hs.Release(RecordRead)
	a.Tick()
	raw[RecordRead].err = nil
	require.NoError(t, hs.Request(RecordRead))
	a.Tick()
	a.Tick()
	assert.NoError(t, a.Result(RecordRead))
}

func TestWithdrawnRequestIsNeverAcked(t *testing.T) {
	a, hs, trace, _ := newTestArbiter(t, 1)

	require.NoError(t, hs.Request(TripWrite))
	require.NoError(t, hs.Request(AlarmWrite))
	a.Tick()
	hs.Withdraw(AlarmWrite)

	for i := 0; i < 5; i++ {
		a.Tick()
	}
	assert.Equal(t, []Kind{TripWrite}, *trace)
	assert.False(t, hs.Acked(AlarmWrite))
	assert.False(t, hs.Requested(AlarmWrite))
}

func TestInvalidKind(t *testing.T) {
	hs := &Handshake{}
	assert.ErrorIs(t, hs.Request(NumKinds), ErrInvalidKind)
	assert.False(t, hs.Requested(NumKinds))

	req, ack := hs.Words()
	assert.Zero(t, req)
	assert.Zero(t, ack)
	assert.Equal(t, "kind(200)", Kind(200).String())
	assert.Equal(t, "extcap-log-write", ExtCapLogWrite.String())
}

func TestKindNamesComplete(t *testing.T) {
	for k := Kind(0); k < NumKinds; k++ {
		assert.NotEmpty(t, k.String(), "kind %d", k)
	}
}
