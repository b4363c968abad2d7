// Package daemon wires the daemon's components together.
//
// One Orchestrator value, owned by main, holds the device state, the BlueZ
// monitor, the L2CAP transport, the D-Bus service surface, the media
// controller, and the config store. BlueZ events drive the transport,
// decoded frames drive the state model, and state changes fan out to the
// bus surface and the media controller.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"librepods/internal/aap"
	"librepods/internal/airpods"
	"librepods/internal/bluez"
	"librepods/internal/config"
	"librepods/internal/dbusservice"
	"librepods/internal/l2cap"
	"librepods/internal/mpris"
)

// Options configure a new Orchestrator.
type Options struct {
	// ConfigDir overrides the config directory; empty uses the default.
	ConfigDir string
	// Debug enables frame-level logging.
	Debug bool
}

// Orchestrator owns and wires every daemon component.
type Orchestrator struct {
	state   *airpods.State
	store   *config.Store
	conn    *l2cap.Conn
	monitor *bluez.Monitor
	service *dbusservice.Service
	media   *mpris.Controller

	debug bool

	mu             sync.Mutex
	pendingAddress string
	pendingName    string

	// onStateChange, when set, receives a snapshot after every state
	// mutation. The indicator hooks in here.
	onStateChange func(airpods.Snapshot)
}

// New builds the component graph. Nothing is started until Run.
func New(opts Options) (*Orchestrator, error) {
	o := &Orchestrator{
		state: airpods.NewState(),
		store: config.NewStore(opts.ConfigDir),
		debug: opts.Debug,
	}

	media, err := mpris.NewController()
	if err != nil {
		return nil, fmt.Errorf("failed to create media controller: %w", err)
	}
	o.media = media

	earPause := o.store.LoadEarPauseMode()
	o.state.SetEarPauseMode(earPause)
	o.media.SetEarPauseMode(earPause)

	o.conn = l2cap.New()
	o.conn.SetDebug(opts.Debug)
	o.conn.SetDataFunc(o.handleFrame)
	o.conn.SetStateFunc(o.handleTransportState)

	service, err := dbusservice.New(o.state, dbusservice.Callbacks{
		SetNoiseControlMode:    o.SetNoiseControlMode,
		SetConversationalAware: o.SetConversationalAwareness,
		SetAdaptiveNoiseLevel:  o.SetAdaptiveNoiseLevel,
		SetEarPauseMode:        o.SetEarPauseMode,
		SetListeningModes:      o.SetListeningModes,
		SetDisplayName:         o.SetDisplayName,
	})
	if err != nil {
		media.Close()
		return nil, err
	}
	o.service = service

	monitor, err := bluez.NewMonitor()
	if err != nil {
		media.Close()
		service.Stop()
		return nil, err
	}
	monitor.SetConnectedFunc(o.handleBluezConnected)
	monitor.SetDisconnectedFunc(o.handleBluezDisconnected)
	o.monitor = monitor

	return o, nil
}

// SetStateChangeFunc registers an observer for state snapshots. Must be
// called before Run.
func (o *Orchestrator) SetStateChangeFunc(fn func(airpods.Snapshot)) {
	o.onStateChange = fn
}

// State returns the shared device state.
func (o *Orchestrator) State() *airpods.State {
	return o.state
}

// Run starts the bus surface and the BlueZ monitor, then blocks until the
// context is cancelled. Failure to claim the bus name or to start the
// monitor is returned as an error; everything after startup is recovered
// internally.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.service.Start(); err != nil {
		return fmt.Errorf("failed to start D-Bus service: %w", err)
	}
	if err := o.monitor.Start(); err != nil {
		return fmt.Errorf("failed to start BlueZ monitor: %w", err)
	}
	if err := o.monitor.CheckExistingDevices(); err != nil {
		log.Printf("Failed to enumerate existing devices: %v", err)
	}

	log.Println("Daemon running")
	<-ctx.Done()

	log.Println("Shutting down...")
	o.conn.Disconnect()
	o.monitor.Stop()
	o.service.Stop()
	o.media.Close()
	o.state.Reset()
	return nil
}

func (o *Orchestrator) notifyStateChange() {
	if o.onStateChange != nil {
		o.onStateChange(o.state.Snapshot())
	}
}

// ============================================================================
// BlueZ events
// ============================================================================

func (o *Orchestrator) handleBluezConnected(dev bluez.Device) {
	if o.conn.State() == l2cap.StateConnected {
		log.Println("Already connected, ignoring connect event")
		return
	}

	o.mu.Lock()
	o.pendingAddress = dev.Address
	o.pendingName = dev.Name
	o.mu.Unlock()

	log.Printf("Connecting to %s (%s)", dev.Name, dev.Address)

	// The L2CAP connect blocks while BlueZ gates it; keep the monitor's
	// dispatch goroutine free.
	go func() {
		if err := o.conn.Connect(dev.Address); err != nil {
			log.Printf("Failed to connect: %v", err)
		}
	}()
}

func (o *Orchestrator) handleBluezDisconnected(dev bluez.Device) {
	o.conn.Disconnect()
}

// ============================================================================
// Transport state
// ============================================================================

func (o *Orchestrator) handleTransportState(state l2cap.State, err error) {
	switch state {
	case l2cap.StateConnected:
		log.Println("Transport connected, sending initialization sequence...")
		if err := o.conn.SendInitSequence(); err != nil {
			log.Printf("Initialization sequence failed: %v", err)
			return
		}

		o.mu.Lock()
		address, name := o.pendingAddress, o.pendingName
		o.mu.Unlock()

		o.state.SetDevice(name, address, airpods.ModelUnknown)

		// A saved display name applies as soon as the identity is known;
		// the model arrives later with the metadata frame.
		if profile, ok := o.store.LoadDeviceProfile(address); ok && profile.DisplayName != "" {
			o.state.SetDisplayName(profile.DisplayName)
		}

		o.service.EmitDeviceConnected(address, name)
		o.service.EmitPropertyChanged("Connected")
		o.service.EmitPropertyChanged("DeviceName")
		o.service.EmitPropertyChanged("DeviceAddress")
		o.service.EmitPropertyChanged("DisplayName")
		o.notifyStateChange()

	case l2cap.StateDisconnected:
		if o.state.Connected() {
			snap := o.state.Snapshot()
			o.service.EmitDeviceDisconnected(snap.DeviceAddress, snap.DeviceName)
		}
		o.state.Reset()
		o.service.EmitPropertyChanged("Connected")
		o.notifyStateChange()

	case l2cap.StateError:
		log.Printf("Transport error: %v", err)
	}
}

// ============================================================================
// Inbound frames
// ============================================================================

func (o *Orchestrator) handleFrame(data []byte) {
	pkt, err := aap.Parse(data)
	if err != nil {
		// Unknown opcodes are routine; real parse failures only matter
		// when debugging the protocol.
		if !errors.Is(err, aap.ErrUnknownOpcode) && o.debug {
			log.Printf("Failed to parse frame: %v", err)
		}
		return
	}

	switch p := pkt.(type) {
	case aap.Battery:
		o.handleBattery(p)
	case aap.EarDetection:
		o.handleEarDetection(p)
	case aap.NoiseControl:
		log.Printf("Noise control mode: %s", p.Mode)
		o.state.SetNoiseMode(p.Mode)
		o.service.EmitNoiseControlModeChanged(p.Mode)
		o.service.EmitPropertyChanged("NoiseControlMode")
		o.notifyStateChange()
	case aap.ConvAwareness:
		log.Printf("Conversational awareness: %v", p.Enabled)
		o.state.SetConversationalAwareness(p.Enabled)
		o.service.EmitPropertyChanged("ConversationalAwareness")
		o.notifyStateChange()
	case aap.AdaptiveLevel:
		o.state.SetAdaptiveLevel(p.Level)
		o.service.EmitPropertyChanged("AdaptiveNoiseLevel")
		o.notifyStateChange()
	case aap.ListeningModes:
		o.handleListeningModes(p)
	case aap.CADetection:
		if o.debug {
			log.Printf("CA detection event: volume_level=%d", p.VolumeLevel)
		}
	case aap.Metadata:
		o.handleMetadata(p)
	}
}

func (o *Orchestrator) handleBattery(p aap.Battery) {
	o.state.SetBattery(p.Battery)
	snap := o.state.Snapshot()
	log.Printf("Battery: L=%d%% R=%d%% Case=%d%%",
		snap.Battery.Left.Level, snap.Battery.Right.Level, snap.Battery.Case.Level)

	o.service.EmitBatteryChanged(snap.Battery.Left.Level, snap.Battery.Right.Level, snap.Battery.Case.Level)
	o.service.EmitPropertyChanged("BatteryLeft")
	o.service.EmitPropertyChanged("BatteryRight")
	o.service.EmitPropertyChanged("BatteryCase")
	o.notifyStateChange()
}

func (o *Orchestrator) handleEarDetection(p aap.EarDetection) {
	left, right := o.state.SetEarDetection(p.PrimaryInEar, p.SecondaryInEar)
	log.Printf("Ear detection: left=%v right=%v", left, right)

	o.service.EmitEarDetectionChanged(left, right)
	o.service.EmitPropertyChanged("LeftInEar")
	o.service.EmitPropertyChanged("RightInEar")
	o.media.OnEarDetectionChanged(left, right)
	o.notifyStateChange()
}

func (o *Orchestrator) handleListeningModes(p aap.ListeningModes) {
	log.Printf("Listening modes: off=%v transparency=%v anc=%v adaptive=%v (raw=0x%02X)",
		p.Modes.Off, p.Modes.Transparency, p.Modes.ANC, p.Modes.Adaptive, p.Raw)

	o.state.SetListeningModes(p.Modes)
	o.emitListeningModeProperties()
	o.persistListeningModes(p.Modes)
	o.notifyStateChange()
}

func (o *Orchestrator) handleMetadata(p aap.Metadata) {
	log.Printf("Metadata: device=%q model=%q manufacturer=%q",
		p.DeviceName, p.ModelNumber, p.Manufacturer)

	model := airpods.ModelFromNumber(p.ModelNumber)
	if model == airpods.ModelUnknown {
		return
	}

	log.Printf("Detected model: %s", model)
	o.state.SetModel(model)
	o.service.EmitPropertyChanged("DeviceModel")
	o.service.EmitPropertyChanged("IsHeadphones")
	o.service.EmitPropertyChanged("SupportsANC")
	o.service.EmitPropertyChanged("SupportsAdaptive")
	o.notifyStateChange()
}

func (o *Orchestrator) emitListeningModeProperties() {
	o.service.EmitPropertyChanged("ListeningModeOff")
	o.service.EmitPropertyChanged("ListeningModeTransparency")
	o.service.EmitPropertyChanged("ListeningModeANC")
	o.service.EmitPropertyChanged("ListeningModeAdaptive")
}

// persistListeningModes saves the cycle set into the connected device's
// profile. No-op while disconnected.
func (o *Orchestrator) persistListeningModes(modes airpods.ListeningModes) {
	address := o.state.Address()
	if address == "" {
		return
	}
	profile, _ := o.store.LoadDeviceProfile(address)
	profile.ListeningModes = modes
	if err := o.store.SaveDeviceProfile(address, profile); err != nil {
		log.Printf("Failed to save device profile: %v", err)
	}
}

// ============================================================================
// Commands (from the bus surface and the indicator)
// ============================================================================

// SetNoiseControlMode sends a noise-control command. Refused while
// disconnected.
func (o *Orchestrator) SetNoiseControlMode(mode airpods.NoiseMode) {
	if !o.transportReady("set noise control") {
		return
	}
	if err := o.conn.Send(aap.BuildNoiseControl(mode)); err != nil {
		log.Printf("Failed to send noise control command: %v", err)
	}
}

// SetConversationalAwareness sends a conversational-awareness command.
// Refused while disconnected.
func (o *Orchestrator) SetConversationalAwareness(enabled bool) {
	if !o.transportReady("set conversational awareness") {
		return
	}
	if err := o.conn.Send(aap.BuildConvAwareness(enabled)); err != nil {
		log.Printf("Failed to send conversational awareness command: %v", err)
	}
}

// SetAdaptiveNoiseLevel sends an adaptive-level command, clamped to
// [0, 100]. Refused while disconnected.
func (o *Orchestrator) SetAdaptiveNoiseLevel(level int) {
	if !o.transportReady("set adaptive level") {
		return
	}
	if err := o.conn.Send(aap.BuildAdaptiveLevel(level)); err != nil {
		log.Printf("Failed to send adaptive level command: %v", err)
	}
}

// SetEarPauseMode updates the global ear-pause policy. Unlike the other
// commands this works while disconnected and persists immediately.
func (o *Orchestrator) SetEarPauseMode(mode airpods.EarPauseMode) {
	if mode < airpods.EarPauseDisabled || mode > airpods.EarPauseBothOut {
		log.Printf("Invalid ear pause mode: %d", mode)
		return
	}

	o.state.SetEarPauseMode(mode)
	o.media.SetEarPauseMode(mode)
	if err := o.store.SaveEarPauseMode(mode); err != nil {
		log.Printf("Failed to save ear pause mode: %v", err)
	}
	o.service.EmitPropertyChanged("EarPauseMode")
	o.notifyStateChange()
}

// SetListeningModes validates and sends a listening-modes command, updates
// the state optimistically, and persists the cycle set for the device.
// Fewer than two enabled modes is refused with no state change.
func (o *Orchestrator) SetListeningModes(modes airpods.ListeningModes) {
	if !o.transportReady("set listening modes") {
		return
	}
	if !ValidListeningModes(modes) {
		log.Println("At least 2 listening modes must be enabled")
		return
	}

	mask := aap.ListeningModesMask(modes)
	log.Printf("Setting listening modes: 0x%02X", mask)
	if err := o.conn.Send(aap.BuildListeningModes(mask)); err != nil {
		log.Printf("Failed to send listening modes command: %v", err)
		return
	}

	o.state.SetListeningModes(modes)
	o.emitListeningModeProperties()
	o.persistListeningModes(modes)
	o.notifyStateChange()
}

// SetDisplayName updates the device alias and persists it to the device
// profile. Refused while disconnected, like every command except
// SetEarPauseMode.
func (o *Orchestrator) SetDisplayName(name string) {
	address := o.state.Address()
	if address == "" {
		log.Println("Cannot set display name: not connected")
		return
	}

	o.state.SetDisplayName(name)

	profile, _ := o.store.LoadDeviceProfile(address)
	profile.DisplayName = name
	if err := o.store.SaveDeviceProfile(address, profile); err != nil {
		log.Printf("Failed to save device profile: %v", err)
	}

	o.service.EmitPropertyChanged("DisplayName")
	o.notifyStateChange()
}

func (o *Orchestrator) transportReady(what string) bool {
	if o.conn.State() != l2cap.StateConnected {
		log.Printf("Cannot %s: not connected", what)
		return false
	}
	return true
}

// ValidListeningModes reports whether a cycle set satisfies the two-mode
// minimum the device enforces.
func ValidListeningModes(modes airpods.ListeningModes) bool {
	return modes.Count() >= 2
}
