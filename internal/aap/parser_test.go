package aap

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"librepods/internal/airpods"
)

func TestParseBatteryThreeComponents(t *testing.T) {
	frame := []byte{
		0x04, 0x00, 0x04, 0x00, 0x04, 0x00, 0x03,
		0x04, 0x00, 0x5A, 0x02, 0x00, // left 90% discharging
		0x02, 0x00, 0x50, 0x02, 0x00, // right 80% discharging
		0x08, 0x00, 0x64, 0x01, 0x00, // case 100% charging
	}

	pkt, err := Parse(frame)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	got, ok := pkt.(Battery)
	if !ok {
		t.Fatalf("Parse() = %T, want Battery", pkt)
	}

	want := airpods.Battery{
		Left:  airpods.BatteryReading{Level: 90, Status: airpods.BatteryStatusDischarging, Present: true},
		Right: airpods.BatteryReading{Level: 80, Status: airpods.BatteryStatusDischarging, Present: true},
		Case:  airpods.BatteryReading{Level: 100, Status: airpods.BatteryStatusCharging, Present: true},
	}
	if got.Battery != want {
		t.Errorf("Parse() battery = %+v, want %+v", got.Battery, want)
	}
}

func TestParseBatterySingleComponent(t *testing.T) {
	// Headphones form factor: one component routed to Left.
	frame := []byte{
		0x04, 0x00, 0x04, 0x00, 0x04, 0x00, 0x01,
		0x01, 0x00, 0x46, 0x02, 0x00,
	}

	pkt, err := Parse(frame)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	got := pkt.(Battery).Battery

	if got.Left.Level != 70 || got.Left.Status != airpods.BatteryStatusDischarging || !got.Left.Present {
		t.Errorf("left = %+v, want 70%% discharging present", got.Left)
	}
	if got.Right.Present || got.Case.Present {
		t.Errorf("right/case should be absent, got %+v / %+v", got.Right, got.Case)
	}
	if got.Right.Level != -1 || got.Case.Level != -1 {
		t.Errorf("absent components should read sentinel, got %d / %d",
			got.Right.Level, got.Case.Level)
	}
}

func TestParseBatteryLevelOver100(t *testing.T) {
	frame := []byte{
		0x04, 0x00, 0x04, 0x00, 0x04, 0x00, 0x01,
		0x04, 0x00, 0xFF, 0x02, 0x00,
	}
	pkt, err := Parse(frame)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := pkt.(Battery).Battery.Left.Level; got != -1 {
		t.Errorf("level = %d, want -1 for out-of-range value", got)
	}
}

func TestParseBatteryMalformed(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		want  error
	}{
		{
			name: "zero count",
			frame: []byte{
				0x04, 0x00, 0x04, 0x00, 0x04, 0x00, 0x00,
				0x04, 0x00, 0x5A, 0x02, 0x00,
			},
			want: ErrMalformed,
		},
		{
			name: "count too large",
			frame: []byte{
				0x04, 0x00, 0x04, 0x00, 0x04, 0x00, 0x04,
				0x04, 0x00, 0x5A, 0x02, 0x00,
			},
			want: ErrMalformed,
		},
		{
			name: "truncated records",
			frame: []byte{
				0x04, 0x00, 0x04, 0x00, 0x04, 0x00, 0x03,
				0x04, 0x00, 0x5A, 0x02, 0x00,
			},
			want: ErrIncomplete,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.frame); !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseEarDetection(t *testing.T) {
	tests := []struct {
		name                    string
		primary, secondary      byte
		wantPrimary, wantSecond bool
	}{
		{"both in ear", 0x00, 0x00, true, true},
		{"primary out", 0x01, 0x00, false, true},
		{"secondary out", 0x00, 0x01, true, false},
		{"in case counts as out", 0x02, 0x02, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := []byte{0x04, 0x00, 0x04, 0x00, 0x06, 0x00, tt.primary, tt.secondary}
			pkt, err := Parse(frame)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			got := pkt.(EarDetection)
			if got.PrimaryInEar != tt.wantPrimary || got.SecondaryInEar != tt.wantSecond {
				t.Errorf("Parse() = %+v, want primary=%v secondary=%v",
					got, tt.wantPrimary, tt.wantSecond)
			}
		})
	}
}

func TestParseMetadata(t *testing.T) {
	frame := []byte{0x04, 0x00, 0x04, 0x00, 0x1D, 0x00}
	frame = append(frame, make([]byte, 6)...) // opaque bytes
	frame = append(frame, []byte("AirPods Pro\x00A2699\x00Apple Inc.\x00")...)

	pkt, err := Parse(frame)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := Metadata{
		DeviceName:   "AirPods Pro",
		ModelNumber:  "A2699",
		Manufacturer: "Apple Inc.",
	}
	if got := pkt.(Metadata); got != want {
		t.Errorf("Parse() = %+v, want %+v", got, want)
	}
}

func TestParseMetadataTruncatesLongFields(t *testing.T) {
	longName := bytes.Repeat([]byte{'x'}, 100)
	frame := []byte{0x04, 0x00, 0x04, 0x00, 0x1D, 0x00}
	frame = append(frame, make([]byte, 6)...)
	frame = append(frame, longName...)
	frame = append(frame, 0x00)

	pkt, err := Parse(frame)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := len(pkt.(Metadata).DeviceName); got != maxDeviceNameLen {
		t.Errorf("device name length = %d, want %d", got, maxDeviceNameLen)
	}
}

func TestParseControl(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		want  Packet
	}{
		{
			name:  "noise control anc",
			frame: []byte{0x04, 0x00, 0x04, 0x00, 0x09, 0x00, 0x0D, 0x02, 0x00, 0x00, 0x00},
			want:  NoiseControl{Mode: airpods.NoiseModeANC},
		},
		{
			name:  "noise control unknown byte maps to off",
			frame: []byte{0x04, 0x00, 0x04, 0x00, 0x09, 0x00, 0x0D, 0x09, 0x00, 0x00, 0x00},
			want:  NoiseControl{Mode: airpods.NoiseModeOff},
		},
		{
			name:  "conversational awareness on",
			frame: []byte{0x04, 0x00, 0x04, 0x00, 0x09, 0x00, 0x28, 0x01, 0x00, 0x00, 0x00},
			want:  ConvAwareness{Enabled: true},
		},
		{
			name:  "conversational awareness off",
			frame: []byte{0x04, 0x00, 0x04, 0x00, 0x09, 0x00, 0x28, 0x02, 0x00, 0x00, 0x00},
			want:  ConvAwareness{Enabled: false},
		},
		{
			name:  "listening modes",
			frame: []byte{0x04, 0x00, 0x04, 0x00, 0x09, 0x00, 0x1A, 0x06, 0x00, 0x00, 0x00},
			want: ListeningModes{
				Modes: airpods.ListeningModes{Transparency: true, ANC: true},
				Raw:   0x06,
			},
		},
		{
			name:  "adaptive level",
			frame: []byte{0x04, 0x00, 0x04, 0x00, 0x09, 0x00, 0x2E, 0x2A, 0x00, 0x00, 0x00},
			want:  AdaptiveLevel{Level: 42},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkt, err := Parse(tt.frame)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if !reflect.DeepEqual(pkt, tt.want) {
				t.Errorf("Parse() = %+v, want %+v", pkt, tt.want)
			}
		})
	}
}

func TestParseCADetection(t *testing.T) {
	frame := []byte{0x04, 0x00, 0x04, 0x00, 0x4B, 0x00, 0x02, 0x00, 0x01, 0x30}
	pkt, err := Parse(frame)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := pkt.(CADetection).VolumeLevel; got != 0x30 {
		t.Errorf("volume level = %d, want %d", got, 0x30)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		want  error
	}{
		{"empty", nil, ErrInvalidHeader},
		{"bad header", []byte{0x01, 0x02, 0x03, 0x04, 0x05}, ErrInvalidHeader},
		{"handshake header is not standard", Handshake, ErrInvalidHeader},
		{"header only", []byte{0x04, 0x00, 0x04, 0x00}, ErrIncomplete},
		{"unknown opcode", []byte{0x04, 0x00, 0x04, 0x00, 0x77, 0x00}, ErrUnknownOpcode},
		{"unknown control sub-opcode", []byte{0x04, 0x00, 0x04, 0x00, 0x09, 0x00, 0x77, 0x00}, ErrUnknownOpcode},
		{"truncated ear frame", []byte{0x04, 0x00, 0x04, 0x00, 0x06, 0x00, 0x01}, ErrIncomplete},
		{"truncated control", []byte{0x04, 0x00, 0x04, 0x00, 0x09, 0x00, 0x0D}, ErrIncomplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.frame); !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBuildNoiseControlExactBytes(t *testing.T) {
	want := []byte{0x04, 0x00, 0x04, 0x00, 0x09, 0x00, 0x0D, 0x02, 0x00, 0x00, 0x00}
	if got := BuildNoiseControl(airpods.NoiseModeANC); !bytes.Equal(got, want) {
		t.Errorf("BuildNoiseControl(anc) = % X, want % X", got, want)
	}
}

func TestBuildAdaptiveLevelClamps(t *testing.T) {
	tests := []struct {
		level int
		want  byte
	}{
		{-10, 0},
		{0, 0},
		{57, 57},
		{100, 100},
		{150, 100},
	}
	for _, tt := range tests {
		frame := BuildAdaptiveLevel(tt.level)
		if len(frame) != controlFrameSize {
			t.Fatalf("BuildAdaptiveLevel(%d) length = %d, want %d", tt.level, len(frame), controlFrameSize)
		}
		if frame[7] != tt.want {
			t.Errorf("BuildAdaptiveLevel(%d) byte 7 = %d, want %d", tt.level, frame[7], tt.want)
		}
	}
}

func TestListeningModesMask(t *testing.T) {
	modes := airpods.ListeningModes{Transparency: true, ANC: true}
	if got := ListeningModesMask(modes); got != 0x06 {
		t.Errorf("ListeningModesMask() = 0x%02X, want 0x06", got)
	}
	frame := BuildListeningModes(0x06)
	if frame[7] != 0x06 {
		t.Errorf("BuildListeningModes(0x06) byte 7 = 0x%02X", frame[7])
	}
}

// TestRoundTrip verifies Parse(Build(x)) = x for every round-trippable
// command class.
func TestRoundTrip(t *testing.T) {
	for _, mode := range []airpods.NoiseMode{
		airpods.NoiseModeOff, airpods.NoiseModeANC,
		airpods.NoiseModeTransparency, airpods.NoiseModeAdaptive,
	} {
		pkt, err := Parse(BuildNoiseControl(mode))
		if err != nil {
			t.Fatalf("Parse(BuildNoiseControl(%v)) error = %v", mode, err)
		}
		if got := pkt.(NoiseControl).Mode; got != mode {
			t.Errorf("round trip noise control = %v, want %v", got, mode)
		}
	}

	for _, enabled := range []bool{true, false} {
		pkt, err := Parse(BuildConvAwareness(enabled))
		if err != nil {
			t.Fatalf("Parse(BuildConvAwareness(%v)) error = %v", enabled, err)
		}
		if got := pkt.(ConvAwareness).Enabled; got != enabled {
			t.Errorf("round trip conv awareness = %v, want %v", got, enabled)
		}
	}

	for _, level := range []int{0, 33, 100} {
		pkt, err := Parse(BuildAdaptiveLevel(level))
		if err != nil {
			t.Fatalf("Parse(BuildAdaptiveLevel(%d)) error = %v", level, err)
		}
		if got := pkt.(AdaptiveLevel).Level; got != level {
			t.Errorf("round trip adaptive level = %d, want %d", got, level)
		}
	}

	modes := airpods.ListeningModes{Off: true, ANC: true, Adaptive: true}
	pkt, err := Parse(BuildListeningModes(ListeningModesMask(modes)))
	if err != nil {
		t.Fatalf("Parse(BuildListeningModes) error = %v", err)
	}
	if got := pkt.(ListeningModes).Modes; got != modes {
		t.Errorf("round trip listening modes = %+v, want %+v", got, modes)
	}
}
