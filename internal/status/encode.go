// internal/status/encode.go
package status

// Encode converts a Snapshot into the live slots of a status block.
// Reserved and device-name slots are left zero.
// Layout is protocol-locked.
// No IO. No side effects.
func Encode(s Snapshot) []uint16 {
	regs := make([]uint16, SlotsPerDevice)

	regs[SlotHealthCode] = s.Health
	regs[SlotLastErrorCode] = s.LastErrorCode
	regs[SlotSecondsInError] = s.SecondsInError
	regs[SlotFaultFlags] = uint16(s.Flags)
	regs[SlotRequestLo] = uint16(s.Requests)
	regs[SlotRequestHi] = uint16(s.Requests >> 16)
	regs[SlotAckLo] = uint16(s.Acks)
	regs[SlotAckHi] = uint16(s.Acks >> 16)
	regs[SlotActiveKind] = s.ActiveKind
	regs[SlotTripSets] = s.TripSets
	regs[SlotAlarmSets] = s.AlarmSets
	regs[SlotExtSets] = s.ExtSets
	regs[SlotCorruptions] = sat16(s.Corruptions)

	return regs
}

// LiveSlots is the number of leading slots Encode fills.
const LiveSlots = SlotCorruptions + 1
