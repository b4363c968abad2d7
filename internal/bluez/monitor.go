// Package bluez observes the host Bluetooth stack over the system bus.
//
// The Monitor watches the org.bluez object tree for devices advertising the
// AAP service UUID and reduces BlueZ's property churn to two events:
// connected and disconnected. Discovery itself is entirely BlueZ's job; the
// monitor never scans.
package bluez

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	bluezService    = "org.bluez"
	deviceInterface = "org.bluez.Device1"

	propsInterface         = "org.freedesktop.DBus.Properties"
	objectManagerInterface = "org.freedesktop.DBus.ObjectManager"
)

// ServiceUUID marks a device as AAP-capable.
const ServiceUUID = "74ec2172-0bad-4d01-8f77-997b2be0722a"

// Device identifies an AAP-capable peer seen by BlueZ.
type Device struct {
	Address string
	Name    string
	Path    dbus.ObjectPath
}

// DeviceFunc observes connect or disconnect events.
type DeviceFunc func(dev Device)

// Monitor subscribes to BlueZ device signals on the system bus.
type Monitor struct {
	conn    *dbus.Conn
	signals chan *dbus.Signal

	onConnected    DeviceFunc
	onDisconnected DeviceFunc

	mu sync.Mutex
	// known caches the identity of every AAP device currently marked
	// connected. It is authoritative for disconnect events, whose signal
	// payloads omit the identity, and suppresses duplicate events for the
	// same path.
	known map[dbus.ObjectPath]Device

	done chan struct{}
}

// NewMonitor connects to the system bus.
func NewMonitor() (*Monitor, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}
	return &Monitor{
		conn:  conn,
		known: make(map[dbus.ObjectPath]Device),
		done:  make(chan struct{}),
	}, nil
}

// SetConnectedFunc registers the connect-event observer. Must be called
// before Start.
func (m *Monitor) SetConnectedFunc(fn DeviceFunc) {
	m.onConnected = fn
}

// SetDisconnectedFunc registers the disconnect-event observer. Must be
// called before Start.
func (m *Monitor) SetDisconnectedFunc(fn DeviceFunc) {
	m.onDisconnected = fn
}

// Start subscribes to the BlueZ signal set and begins dispatching events.
func (m *Monitor) Start() error {
	rules := []string{
		"type='signal',sender='" + bluezService + "',interface='" + propsInterface + "',member='PropertiesChanged',path_namespace='/org/bluez'",
		"type='signal',sender='" + bluezService + "',interface='" + objectManagerInterface + "',member='InterfacesAdded'",
		"type='signal',sender='" + bluezService + "',interface='" + objectManagerInterface + "',member='InterfacesRemoved'",
	}
	for _, rule := range rules {
		call := m.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule)
		if call.Err != nil {
			return fmt.Errorf("failed to add match rule: %w", call.Err)
		}
	}

	m.signals = make(chan *dbus.Signal, 16)
	m.conn.Signal(m.signals)
	go m.watch()

	log.Println("BlueZ monitor started")
	return nil
}

// Stop halts signal dispatch and closes the bus connection.
func (m *Monitor) Stop() {
	close(m.done)
	m.conn.RemoveSignal(m.signals)
	m.conn.Close()
}

// CheckExistingDevices walks the managed-objects tree once and emits
// connected events for AAP devices that were already connected before the
// daemon came up.
func (m *Monitor) CheckExistingDevices() error {
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	obj := m.conn.Object(bluezService, "/")
	if err := obj.Call(objectManagerInterface+".GetManagedObjects", 0).Store(&objects); err != nil {
		return fmt.Errorf("failed to get managed objects: %w", err)
	}

	for path, interfaces := range objects {
		props, ok := interfaces[deviceInterface]
		if !ok {
			continue
		}
		if !hasServiceUUID(variantStrings(props["UUIDs"])) {
			continue
		}
		if connected, _ := props["Connected"].Value().(bool); !connected {
			continue
		}
		dev := deviceFromProps(path, props)
		log.Printf("Found already connected device: %s (%s)", dev.Name, dev.Address)
		m.markConnected(dev)
	}
	return nil
}

func (m *Monitor) watch() {
	for {
		select {
		case <-m.done:
			return
		case sig, ok := <-m.signals:
			if !ok {
				return
			}
			switch sig.Name {
			case propsInterface + ".PropertiesChanged":
				m.handlePropertiesChanged(sig)
			case objectManagerInterface + ".InterfacesAdded":
				m.handleInterfacesAdded(sig)
			case objectManagerInterface + ".InterfacesRemoved":
				m.handleInterfacesRemoved(sig)
			}
		}
	}
}

// handlePropertiesChanged reacts to Connected flips on device objects.
func (m *Monitor) handlePropertiesChanged(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	iface, ok := sig.Body[0].(string)
	if !ok || iface != deviceInterface {
		return
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}
	connectedVar, ok := changed["Connected"]
	if !ok {
		return
	}
	connected, ok := connectedVar.Value().(bool)
	if !ok {
		return
	}

	if !connected {
		// The payload carries no identity; the cache does.
		m.markDisconnected(sig.Path)
		return
	}

	if !m.deviceHasServiceUUID(sig.Path) {
		return
	}
	dev, err := m.deviceInfo(sig.Path)
	if err != nil {
		log.Printf("Failed to get device properties: %v", err)
		return
	}
	m.markConnected(dev)
}

// handleInterfacesAdded catches devices that appear already connected.
func (m *Monitor) handleInterfacesAdded(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	path, ok := sig.Body[0].(dbus.ObjectPath)
	if !ok {
		return
	}
	interfaces, ok := sig.Body[1].(map[string]map[string]dbus.Variant)
	if !ok {
		return
	}
	props, ok := interfaces[deviceInterface]
	if !ok {
		return
	}
	if !hasServiceUUID(variantStrings(props["UUIDs"])) {
		return
	}
	if connected, _ := props["Connected"].Value().(bool); !connected {
		return
	}
	dev := deviceFromProps(path, props)
	log.Printf("New connected device discovered: %s", dev.Name)
	m.markConnected(dev)
}

func (m *Monitor) handleInterfacesRemoved(sig *dbus.Signal) {
	if len(sig.Body) < 1 {
		return
	}
	path, ok := sig.Body[0].(dbus.ObjectPath)
	if !ok {
		return
	}
	m.markDisconnected(path)
}

// markConnected caches the device and emits a connected event unless the
// path is already known connected.
func (m *Monitor) markConnected(dev Device) {
	m.mu.Lock()
	if _, dup := m.known[dev.Path]; dup {
		m.mu.Unlock()
		return
	}
	m.known[dev.Path] = dev
	fn := m.onConnected
	m.mu.Unlock()

	log.Printf("Device connected: %s (%s)", dev.Name, dev.Address)
	if fn != nil {
		fn(dev)
	}
}

// markDisconnected emits a disconnected event with the cached identity, if
// the path was known.
func (m *Monitor) markDisconnected(path dbus.ObjectPath) {
	m.mu.Lock()
	dev, ok := m.known[path]
	if ok {
		delete(m.known, path)
	}
	fn := m.onDisconnected
	m.mu.Unlock()

	if !ok {
		return
	}
	log.Printf("Device disconnected: %s (%s)", dev.Name, dev.Address)
	if fn != nil {
		fn(dev)
	}
}

// deviceHasServiceUUID queries a device's UUID list for the AAP service.
func (m *Monitor) deviceHasServiceUUID(path dbus.ObjectPath) bool {
	obj := m.conn.Object(bluezService, path)
	variant, err := obj.GetProperty(deviceInterface + ".UUIDs")
	if err != nil {
		return false
	}
	uuids, _ := variant.Value().([]string)
	return hasServiceUUID(uuids)
}

// deviceInfo fetches the identity properties of a device object.
func (m *Monitor) deviceInfo(path dbus.ObjectPath) (Device, error) {
	var props map[string]dbus.Variant
	obj := m.conn.Object(bluezService, path)
	if err := obj.Call(propsInterface+".GetAll", 0, deviceInterface).Store(&props); err != nil {
		return Device{}, err
	}
	return deviceFromProps(path, props), nil
}

func deviceFromProps(path dbus.ObjectPath, props map[string]dbus.Variant) Device {
	dev := Device{Path: path}
	if v, ok := props["Address"]; ok {
		dev.Address, _ = v.Value().(string)
	}
	if v, ok := props["Name"]; ok {
		dev.Name, _ = v.Value().(string)
	}
	return dev
}

// hasServiceUUID reports whether the UUID list contains the AAP service,
// compared case-insensitively.
func hasServiceUUID(uuids []string) bool {
	for _, uuid := range uuids {
		if strings.EqualFold(uuid, ServiceUUID) {
			return true
		}
	}
	return false
}

func variantStrings(v dbus.Variant) []string {
	s, _ := v.Value().([]string)
	return s
}
