// internal/status/constants.go
package status

// Engine Status Block layout constants.
// These values define the protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerDevice is the fixed number of logical slots per engine.
const SlotsPerDevice = 24

// ---- SLOT INDICES ----

// SlotHealthCode holds the engine health state.
const SlotHealthCode = 0

// SlotLastErrorCode holds the code of the last failed task.
const SlotLastErrorCode = 1

// SlotSecondsInError holds the duration (in seconds) the engine has been in error.
const SlotSecondsInError = 2

// SlotFaultFlags holds the sticky fault flag word.
const SlotFaultFlags = 3

// SlotRequestLo and SlotRequestHi hold the request word.
const SlotRequestLo = 4
const SlotRequestHi = 5

// SlotAckLo and SlotAckHi hold the acknowledge word.
const SlotAckLo = 6
const SlotAckHi = 7

// SlotActiveKind holds the running task kind plus one; zero when idle.
const SlotActiveKind = 8

// SlotTripSets, SlotAlarmSets and SlotExtSets hold committed sample-sets of
// the latest capture of each kind.
const SlotTripSets = 9
const SlotAlarmSets = 10
const SlotExtSets = 11

// SlotCorruptions counts double-copy record failures (saturating).
const SlotCorruptions = 12

// ---- RESERVED RANGE ----

// Slots 13–15 are reserved for future use.
const SlotReservedStart = 13
const SlotReservedEnd = 15

// ---- DEVICE NAME ----

// SlotDeviceNameStart is the first slot used for the device name.
// Device name is always placed at the END of the status block.
const SlotDeviceNameStart = 16

// SlotDeviceNameSlots is the number of slots reserved for the device name.
const SlotDeviceNameSlots = 8

// SlotDeviceNameEnd is the last slot used for the device name (inclusive).
const SlotDeviceNameEnd = SlotDeviceNameStart + SlotDeviceNameSlots - 1

// ---- LIMITS ----

// DeviceNameMaxChars is the maximum number of ASCII characters stored for device name.
const DeviceNameMaxChars = 16

// ---- HEALTH CODES ----

// HealthUnknown represents an unknown or boot state.
const HealthUnknown uint16 = 0

// HealthOK represents a healthy engine with no fault flags.
const HealthOK uint16 = 1

// HealthError represents a failed task since the last recovery.
const HealthError uint16 = 2

// HealthDegraded represents sticky fault flags with no task failing.
const HealthDegraded uint16 = 3
