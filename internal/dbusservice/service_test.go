package dbusservice

import (
	"testing"

	"github.com/godbus/dbus/v5"

	"librepods/internal/airpods"
)

func connectedSnapshot() airpods.Snapshot {
	s := airpods.NewState()
	s.SetDevice("AirPods Pro", "AA:BB:CC:DD:EE:FF", airpods.ModelPro2)
	s.SetBattery(airpods.Battery{
		Left:  airpods.BatteryReading{Level: 90, Status: airpods.BatteryStatusCharging, Present: true},
		Right: airpods.BatteryReading{Level: 80, Status: airpods.BatteryStatusDischarging, Present: true},
	})
	s.SetNoiseMode(airpods.NoiseModeTransparency)
	return s.Snapshot()
}

func TestPropertyValue(t *testing.T) {
	snap := connectedSnapshot()

	tests := []struct {
		property string
		want     interface{}
	}{
		{"Connected", true},
		{"DeviceName", "AirPods Pro"},
		{"DeviceAddress", "AA:BB:CC:DD:EE:FF"},
		{"DeviceModel", "AirPods Pro 2"},
		{"IsHeadphones", false},
		{"SupportsANC", true},
		{"SupportsAdaptive", true},
		{"BatteryLeft", int32(90)},
		{"BatteryRight", int32(80)},
		{"BatteryCase", int32(-1)},
		{"ChargingLeft", true},
		{"ChargingRight", false},
		{"NoiseControlMode", "transparency"},
		{"AdaptiveNoiseLevel", int32(50)},
		{"EarPauseMode", int32(1)},
		{"ListeningModeOff", false},
		{"ListeningModeANC", true},
	}
	for _, tt := range tests {
		value, ok := propertyValue(snap, tt.property)
		if !ok {
			t.Errorf("propertyValue(%q) unknown", tt.property)
			continue
		}
		if value.Value() != tt.want {
			t.Errorf("propertyValue(%q) = %v (%T), want %v (%T)",
				tt.property, value.Value(), value.Value(), tt.want, tt.want)
		}
	}
}

func TestPropertyValueUnknown(t *testing.T) {
	if _, ok := propertyValue(connectedSnapshot(), "Bogus"); ok {
		t.Error("propertyValue should reject unknown names")
	}
}

// TestEveryNamedPropertyResolves keeps propertyNames and propertyValue in
// sync: GetAll iterates the former and resolves through the latter.
func TestEveryNamedPropertyResolves(t *testing.T) {
	snap := airpods.NewState().Snapshot()
	for _, name := range propertyNames {
		if _, ok := propertyValue(snap, name); !ok {
			t.Errorf("property %q listed but not resolvable", name)
		}
	}
}

func TestDisconnectedSentinels(t *testing.T) {
	snap := airpods.NewState().Snapshot()

	for _, property := range []string{"BatteryLeft", "BatteryRight", "BatteryCase"} {
		value, _ := propertyValue(snap, property)
		if value.Value() != int32(-1) {
			t.Errorf("%s = %v, want -1 while disconnected", property, value.Value())
		}
	}
	value, _ := propertyValue(snap, "Connected")
	if value.Value() != false {
		t.Error("Connected should read false while disconnected")
	}
	value, _ = propertyValue(snap, "DeviceModel")
	if value.Value() != "Unknown AirPods" {
		t.Errorf("DeviceModel = %v", value.Value())
	}
}

func TestPropertiesSetIsReadOnly(t *testing.T) {
	p := &properties{s: &Service{state: airpods.NewState()}}
	if err := p.Set(InterfaceName, "Connected", dbus.MakeVariant(true)); err == nil {
		t.Error("Set should refuse writes")
	}
}

func TestGetRejectsForeignInterface(t *testing.T) {
	p := &properties{s: &Service{state: airpods.NewState()}}
	if _, err := p.Get("org.example.Other", "Connected"); err == nil {
		t.Error("Get should reject unknown interfaces")
	}
}
