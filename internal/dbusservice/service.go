// Package dbusservice exposes device state and commands on the session bus.
//
// A single object at /org/librepods/AirPods implements the
// org.librepods.AirPods1 interface: read-only properties mirroring every
// Device State field, setter methods that forward to caller-registered
// callbacks, and signals for the major state transitions. The surface owns
// the structure; the content always comes from the state model at read
// time.
package dbusservice

import (
	"fmt"
	"log"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"librepods/internal/airpods"
)

const (
	// BusName is the well-known name the daemon claims on the session bus.
	BusName = "org.librepods.Daemon"
	// ObjectPath hosts the single exported object.
	ObjectPath = "/org/librepods/AirPods"
	// InterfaceName is the daemon's D-Bus interface.
	InterfaceName = "org.librepods.AirPods1"

	propsInterface = "org.freedesktop.DBus.Properties"
)

// Callbacks receive the setter method invocations. Each callback runs on a
// godbus dispatch goroutine; every method replies with empty success
// regardless of what the callback decides (invalid commands are refused
// with a log line, not a bus error).
type Callbacks struct {
	SetNoiseControlMode    func(mode airpods.NoiseMode)
	SetConversationalAware func(enabled bool)
	SetAdaptiveNoiseLevel  func(level int)
	SetEarPauseMode        func(mode airpods.EarPauseMode)
	SetListeningModes      func(modes airpods.ListeningModes)
	SetDisplayName         func(name string)
}

// Service is the exported session-bus surface.
type Service struct {
	conn      *dbus.Conn
	state     *airpods.State
	callbacks Callbacks
}

// New connects to the session bus and prepares the surface. Start must be
// called to export the object and claim the bus name.
func New(state *airpods.State, callbacks Callbacks) (*Service, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &Service{conn: conn, state: state, callbacks: callbacks}, nil
}

// Start exports the object and claims the well-known bus name. Failure to
// become the primary owner is fatal to the caller.
func (s *Service) Start() error {
	if err := s.conn.Export(&methods{s}, ObjectPath, InterfaceName); err != nil {
		return fmt.Errorf("failed to export methods: %w", err)
	}
	if err := s.conn.Export(&properties{s}, ObjectPath, propsInterface); err != nil {
		return fmt.Errorf("failed to export properties: %w", err)
	}
	if err := s.conn.Export(introspect.Introspectable(introspectionXML), ObjectPath,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspection: %w", err)
	}

	reply, err := s.conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken", BusName)
	}

	log.Printf("D-Bus service registered at %s", ObjectPath)
	return nil
}

// Stop releases the bus name, unexports the object, and closes the
// connection.
func (s *Service) Stop() {
	if s.conn == nil {
		return
	}
	s.conn.ReleaseName(BusName)
	s.conn.Export(nil, ObjectPath, InterfaceName)
	s.conn.Export(nil, ObjectPath, propsInterface)
	s.conn.Export(nil, ObjectPath, "org.freedesktop.DBus.Introspectable")
	s.conn.Close()
	s.conn = nil
}

// emit broadcasts a signal on the daemon interface. Emit failures are
// logged and swallowed; the surface stays up.
func (s *Service) emit(name string, values ...interface{}) {
	if s.conn == nil {
		return
	}
	if err := s.conn.Emit(ObjectPath, InterfaceName+"."+name, values...); err != nil {
		log.Printf("Failed to emit %s: %v", name, err)
	}
}

// EmitDeviceConnected announces a new device association.
func (s *Service) EmitDeviceConnected(address, name string) {
	s.emit("DeviceConnected", address, name)
}

// EmitDeviceDisconnected announces the loss of the device association.
func (s *Service) EmitDeviceDisconnected(address, name string) {
	s.emit("DeviceDisconnected", address, name)
}

// EmitBatteryChanged announces new battery levels.
func (s *Service) EmitBatteryChanged(left, right, caseLevel int) {
	s.emit("BatteryChanged", int32(left), int32(right), int32(caseLevel))
}

// EmitNoiseControlModeChanged announces a noise-control mode change.
func (s *Service) EmitNoiseControlModeChanged(mode airpods.NoiseMode) {
	s.emit("NoiseControlModeChanged", mode.String())
}

// EmitEarDetectionChanged announces an in-ear transition.
func (s *Service) EmitEarDetectionChanged(leftInEar, rightInEar bool) {
	s.emit("EarDetectionChanged", leftInEar, rightInEar)
}

// EmitPropertyChanged publishes the standard PropertiesChanged signal for a
// single property, reading its current value from the state model.
func (s *Service) EmitPropertyChanged(property string) {
	if s.conn == nil {
		return
	}
	value, ok := propertyValue(s.state.Snapshot(), property)
	if !ok {
		log.Printf("Unknown property for change notification: %s", property)
		return
	}
	err := s.conn.Emit(ObjectPath, propsInterface+".PropertiesChanged",
		InterfaceName, map[string]dbus.Variant{property: value}, []string{})
	if err != nil {
		log.Printf("Failed to emit PropertiesChanged for %s: %v", property, err)
	}
}

// methods carries the setter method exports. godbus exports every public
// method of the value, so the D-Bus-visible method set lives on this
// dedicated type rather than on Service.
type methods struct {
	s *Service
}

func (m *methods) SetNoiseControlMode(mode string) *dbus.Error {
	log.Printf("D-Bus: SetNoiseControlMode(%q)", mode)
	if fn := m.s.callbacks.SetNoiseControlMode; fn != nil {
		fn(airpods.NoiseModeFromString(mode))
	}
	return nil
}

func (m *methods) SetConversationalAwareness(enabled bool) *dbus.Error {
	log.Printf("D-Bus: SetConversationalAwareness(%v)", enabled)
	if fn := m.s.callbacks.SetConversationalAware; fn != nil {
		fn(enabled)
	}
	return nil
}

func (m *methods) SetAdaptiveNoiseLevel(level int32) *dbus.Error {
	log.Printf("D-Bus: SetAdaptiveNoiseLevel(%d)", level)
	if fn := m.s.callbacks.SetAdaptiveNoiseLevel; fn != nil {
		fn(int(level))
	}
	return nil
}

func (m *methods) SetEarPauseMode(mode int32) *dbus.Error {
	log.Printf("D-Bus: SetEarPauseMode(%d)", mode)
	if fn := m.s.callbacks.SetEarPauseMode; fn != nil {
		fn(airpods.EarPauseMode(mode))
	}
	return nil
}

func (m *methods) SetListeningModes(off, transparency, anc, adaptive bool) *dbus.Error {
	log.Printf("D-Bus: SetListeningModes(%v, %v, %v, %v)", off, transparency, anc, adaptive)
	if fn := m.s.callbacks.SetListeningModes; fn != nil {
		fn(airpods.ListeningModes{Off: off, Transparency: transparency, ANC: anc, Adaptive: adaptive})
	}
	return nil
}

func (m *methods) SetDisplayName(name string) *dbus.Error {
	log.Printf("D-Bus: SetDisplayName(%q)", name)
	if fn := m.s.callbacks.SetDisplayName; fn != nil {
		fn(name)
	}
	return nil
}

// properties implements org.freedesktop.DBus.Properties over the state
// model. Every property is read-only.
type properties struct {
	s *Service
}

func (p *properties) Get(iface, property string) (dbus.Variant, *dbus.Error) {
	if iface != InterfaceName {
		return dbus.Variant{}, dbus.NewError("org.freedesktop.DBus.Error.UnknownInterface",
			[]interface{}{iface})
	}
	value, ok := propertyValue(p.s.state.Snapshot(), property)
	if !ok {
		return dbus.Variant{}, dbus.NewError("org.freedesktop.DBus.Error.UnknownProperty",
			[]interface{}{property})
	}
	return value, nil
}

func (p *properties) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	if iface != InterfaceName {
		return nil, dbus.NewError("org.freedesktop.DBus.Error.UnknownInterface",
			[]interface{}{iface})
	}
	snap := p.s.state.Snapshot()
	all := make(map[string]dbus.Variant, len(propertyNames))
	for _, name := range propertyNames {
		value, _ := propertyValue(snap, name)
		all[name] = value
	}
	return all, nil
}

func (p *properties) Set(iface, property string, value dbus.Variant) *dbus.Error {
	return dbus.NewError("org.freedesktop.DBus.Error.PropertyReadOnly",
		[]interface{}{property})
}

// propertyNames lists every exported property, in introspection order.
var propertyNames = []string{
	"Connected",
	"DeviceName",
	"DeviceAddress",
	"DeviceModel",
	"DisplayName",
	"IsHeadphones",
	"SupportsANC",
	"SupportsAdaptive",
	"BatteryLeft",
	"BatteryRight",
	"BatteryCase",
	"ChargingLeft",
	"ChargingRight",
	"ChargingCase",
	"NoiseControlMode",
	"ConversationalAwareness",
	"LeftInEar",
	"RightInEar",
	"AdaptiveNoiseLevel",
	"EarPauseMode",
	"ListeningModeOff",
	"ListeningModeTransparency",
	"ListeningModeANC",
	"ListeningModeAdaptive",
}

// propertyValue resolves one property from a state snapshot.
func propertyValue(snap airpods.Snapshot, property string) (dbus.Variant, bool) {
	switch property {
	case "Connected":
		return dbus.MakeVariant(snap.Connected), true
	case "DeviceName":
		return dbus.MakeVariant(snap.DeviceName), true
	case "DeviceAddress":
		return dbus.MakeVariant(snap.DeviceAddress), true
	case "DeviceModel":
		return dbus.MakeVariant(snap.Model.String()), true
	case "DisplayName":
		return dbus.MakeVariant(snap.DisplayName), true
	case "IsHeadphones":
		return dbus.MakeVariant(snap.Model.IsHeadphones()), true
	case "SupportsANC":
		return dbus.MakeVariant(snap.Model.SupportsANC()), true
	case "SupportsAdaptive":
		return dbus.MakeVariant(snap.Model.SupportsAdaptive()), true
	case "BatteryLeft":
		return dbus.MakeVariant(int32(snap.Battery.Left.Level)), true
	case "BatteryRight":
		return dbus.MakeVariant(int32(snap.Battery.Right.Level)), true
	case "BatteryCase":
		return dbus.MakeVariant(int32(snap.Battery.Case.Level)), true
	case "ChargingLeft":
		return dbus.MakeVariant(snap.Battery.Left.Status == airpods.BatteryStatusCharging), true
	case "ChargingRight":
		return dbus.MakeVariant(snap.Battery.Right.Status == airpods.BatteryStatusCharging), true
	case "ChargingCase":
		return dbus.MakeVariant(snap.Battery.Case.Status == airpods.BatteryStatusCharging), true
	case "NoiseControlMode":
		return dbus.MakeVariant(snap.NoiseMode.String()), true
	case "ConversationalAwareness":
		return dbus.MakeVariant(snap.ConversationalAwareness), true
	case "LeftInEar":
		return dbus.MakeVariant(snap.LeftInEar), true
	case "RightInEar":
		return dbus.MakeVariant(snap.RightInEar), true
	case "AdaptiveNoiseLevel":
		return dbus.MakeVariant(int32(snap.AdaptiveLevel)), true
	case "EarPauseMode":
		return dbus.MakeVariant(int32(snap.EarPauseMode)), true
	case "ListeningModeOff":
		return dbus.MakeVariant(snap.ListeningModes.Off), true
	case "ListeningModeTransparency":
		return dbus.MakeVariant(snap.ListeningModes.Transparency), true
	case "ListeningModeANC":
		return dbus.MakeVariant(snap.ListeningModes.ANC), true
	case "ListeningModeAdaptive":
		return dbus.MakeVariant(snap.ListeningModes.Adaptive), true
	default:
		return dbus.Variant{}, false
	}
}
