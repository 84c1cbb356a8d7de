// internal/status/snapshot.go
package status

// Snapshot represents exactly what the writer is allowed to deliver.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Health         uint16
	LastErrorCode  uint16
	SecondsInError uint16

	Flags    Flag
	Requests uint32
	Acks     uint32

	// ActiveKind is the running task plus one; zero when idle.
	ActiveKind uint16

	TripSets  uint16
	AlarmSets uint16
	ExtSets   uint16

	Corruptions uint32
}
