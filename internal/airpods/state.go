// Package airpods holds the shared device-state model for the daemon.
//
// A single State value is owned by the orchestrator and read by the D-Bus
// service surface. All mutation goes through typed setters; reads take a
// Snapshot copy so no consumer retains a reference across the lock.
package airpods

import "sync"

// BatteryStatus is the charging status of one battery component.
type BatteryStatus uint8

const (
	BatteryStatusUnknown      BatteryStatus = 0
	BatteryStatusCharging     BatteryStatus = 1
	BatteryStatusDischarging  BatteryStatus = 2
	BatteryStatusDisconnected BatteryStatus = 4
)

func (s BatteryStatus) String() string {
	switch s {
	case BatteryStatusCharging:
		return "Charging"
	case BatteryStatusDischarging:
		return "Discharging"
	case BatteryStatusDisconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// BatteryReading is one component's level and status. Level is 0-100, or -1
// when the device has not reported it. Present marks whether the component
// appeared in the frame the reading came from.
type BatteryReading struct {
	Level   int
	Status  BatteryStatus
	Present bool
}

// Battery holds readings for the three battery components. For the
// headphones form factor only Left carries meaning.
type Battery struct {
	Left  BatteryReading
	Right BatteryReading
	Case  BatteryReading
}

// State is the in-memory record of the currently associated device.
type State struct {
	mu sync.Mutex

	connected     bool
	deviceName    string
	deviceAddress string
	displayName   string
	model         Model

	battery Battery

	noiseMode      NoiseMode
	convAwareness  bool
	adaptiveLevel  int
	listeningModes ListeningModes

	leftInEar  bool
	rightInEar bool
	// primaryLeft maps the primary bud of an ear-detection report to left.
	// It defaults to true and no inbound frame updates it.
	primaryLeft bool

	earPauseMode EarPauseMode
}

// NewState returns a State with disconnected defaults.
func NewState() *State {
	s := &State{}
	s.applyDefaults()
	s.earPauseMode = EarPauseOneOut
	return s
}

// applyDefaults resets every per-device field. Caller holds the lock (or
// owns the value exclusively, as in NewState).
func (s *State) applyDefaults() {
	s.connected = false
	s.deviceName = ""
	s.deviceAddress = ""
	s.displayName = ""
	s.model = ModelUnknown

	s.battery = Battery{
		Left:  BatteryReading{Level: -1},
		Right: BatteryReading{Level: -1},
		Case:  BatteryReading{Level: -1},
	}

	s.noiseMode = NoiseModeOff
	s.convAwareness = false
	s.adaptiveLevel = 50
	s.listeningModes = ListeningModes{Transparency: true, ANC: true, Adaptive: true}

	s.leftInEar = false
	s.rightInEar = false
	s.primaryLeft = true
}

// Reset returns the state to disconnected. The ear-pause policy is global
// and survives resets. Safe to call repeatedly.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyDefaults()
}

// SetDevice records the identity of a newly connected device.
func (s *State) SetDevice(name, address string, model Model) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deviceName = name
	s.deviceAddress = address
	s.model = model
	s.connected = true
}

// SetModel updates the detected model.
func (s *State) SetModel(model Model) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
}

// SetDisplayName sets the user-facing alias for the device.
func (s *State) SetDisplayName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displayName = name
}

// SetBattery applies a battery report. Only components present in the
// report are updated; absent components keep their previous reading.
func (s *State) SetBattery(b Battery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.Left.Present {
		s.battery.Left = b.Left
	}
	if b.Right.Present {
		s.battery.Right = b.Right
	}
	if b.Case.Present {
		s.battery.Case = b.Case
	}
}

// SetEarDetection applies a primary/secondary in-ear report, mapping the
// two buds to left/right through the primary-left orientation bit. It
// returns the resulting left/right in-ear flags.
func (s *State) SetEarDetection(primaryInEar, secondaryInEar bool) (left, right bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.primaryLeft {
		s.leftInEar, s.rightInEar = primaryInEar, secondaryInEar
	} else {
		s.leftInEar, s.rightInEar = secondaryInEar, primaryInEar
	}
	return s.leftInEar, s.rightInEar
}

// SetNoiseMode updates the active noise-control mode.
func (s *State) SetNoiseMode(mode NoiseMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noiseMode = mode
}

// SetConversationalAwareness updates the conversational-awareness flag.
func (s *State) SetConversationalAwareness(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convAwareness = enabled
}

// SetAdaptiveLevel updates the adaptive noise level, clamped to [0, 100].
func (s *State) SetAdaptiveLevel(level int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adaptiveLevel = min(100, max(0, level))
}

// SetListeningModes updates the long-press cycle set. Validation of the
// two-mode minimum happens at the command boundary, not here.
func (s *State) SetListeningModes(modes ListeningModes) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeningModes = modes
}

// SetEarPauseMode updates the global ear-pause policy.
func (s *State) SetEarPauseMode(mode EarPauseMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.earPauseMode = mode
}

// Connected reports whether a device is currently associated.
func (s *State) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Address returns the connected device's MAC address, or "".
func (s *State) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceAddress
}

// Snapshot is a copy of every State field, safe to retain.
type Snapshot struct {
	Connected     bool
	DeviceName    string
	DeviceAddress string
	DisplayName   string
	Model         Model

	Battery Battery

	NoiseMode               NoiseMode
	ConversationalAwareness bool
	AdaptiveLevel           int
	ListeningModes          ListeningModes

	LeftInEar   bool
	RightInEar  bool
	PrimaryLeft bool

	EarPauseMode EarPauseMode
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Connected:               s.connected,
		DeviceName:              s.deviceName,
		DeviceAddress:           s.deviceAddress,
		DisplayName:             s.displayName,
		Model:                   s.model,
		Battery:                 s.battery,
		NoiseMode:               s.noiseMode,
		ConversationalAwareness: s.convAwareness,
		AdaptiveLevel:           s.adaptiveLevel,
		ListeningModes:          s.listeningModes,
		LeftInEar:               s.leftInEar,
		RightInEar:              s.rightInEar,
		PrimaryLeft:             s.primaryLeft,
		EarPauseMode:            s.earPauseMode,
	}
}
