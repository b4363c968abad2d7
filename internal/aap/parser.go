package aap

import (
	"errors"
	"fmt"

	"librepods/internal/airpods"
)

// Parse outcomes other than success. ErrUnknownOpcode is not a protocol
// violation: the device emits many frame types this daemon does not handle,
// and callers are expected to drop those without logging noise. The caller
// can branch with errors.Is.
var (
	ErrIncomplete    = errors.New("aap: frame truncated")
	ErrInvalidHeader = errors.New("aap: invalid frame header")
	ErrUnknownOpcode = errors.New("aap: unknown opcode")
	ErrMalformed     = errors.New("aap: malformed payload")
)

// Packet is one decoded inbound frame: Battery, EarDetection, NoiseControl,
// ConvAwareness, ListeningModes, AdaptiveLevel, CADetection, or Metadata.
type Packet interface {
	packet()
}

// Battery is a battery report for up to three components.
type Battery struct {
	Battery airpods.Battery
}

// EarDetection reports the in-ear status of the primary and secondary buds.
type EarDetection struct {
	PrimaryInEar   bool
	SecondaryInEar bool
}

// NoiseControl reports the active noise-control mode.
type NoiseControl struct {
	Mode airpods.NoiseMode
}

// ConvAwareness reports the conversational-awareness flag.
type ConvAwareness struct {
	Enabled bool
}

// ListeningModes reports the long-press cycle set.
type ListeningModes struct {
	Modes airpods.ListeningModes
	Raw   byte
}

// AdaptiveLevel reports the adaptive noise level.
type AdaptiveLevel struct {
	Level int
}

// CADetection is a conversational-awareness detection event carrying an
// opaque volume level.
type CADetection struct {
	VolumeLevel int
}

// Metadata carries the device identity strings.
type Metadata struct {
	DeviceName   string
	ModelNumber  string
	Manufacturer string
}

func (Battery) packet()        {}
func (EarDetection) packet()   {}
func (NoiseControl) packet()   {}
func (ConvAwareness) packet()  {}
func (ListeningModes) packet() {}
func (AdaptiveLevel) packet()  {}
func (CADetection) packet()    {}
func (Metadata) packet()       {}

// HasValidHeader reports whether data starts with the standard AAP header.
func HasValidHeader(data []byte) bool {
	return len(data) >= len(header) &&
		data[0] == header[0] && data[1] == header[1] &&
		data[2] == header[2] && data[3] == header[3]
}

// Parse decodes a single inbound frame. It returns ErrInvalidHeader when
// the standard header is absent, ErrIncomplete when the frame is shorter
// than its opcode requires, ErrUnknownOpcode for opcodes the codec does not
// recognize, and ErrMalformed when a recognized frame's payload violates
// its shape.
func Parse(data []byte) (Packet, error) {
	if !HasValidHeader(data) {
		return nil, ErrInvalidHeader
	}
	if len(data) < 5 {
		return nil, ErrIncomplete
	}

	switch data[4] {
	case OpcodeBattery:
		return parseBattery(data)
	case OpcodeEarDetection:
		return parseEarDetection(data)
	case OpcodeControl:
		return parseControl(data)
	case OpcodeCADetection:
		return parseCADetection(data)
	case OpcodeMetadata:
		return parseMetadata(data)
	default:
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownOpcode, data[4])
	}
}

// parseBattery decodes 04 00 04 00 04 00 [count] ([component] _ [level]
// [status] _)... with count in [1,3] and five bytes per component record.
func parseBattery(data []byte) (Packet, error) {
	if len(data) < 12 {
		return nil, ErrIncomplete
	}
	if data[5] != 0x00 {
		return nil, ErrMalformed
	}

	count := int(data[6])
	if count < 1 || count > 3 {
		return nil, ErrMalformed
	}
	if len(data) < 7+count*5 {
		return nil, ErrIncomplete
	}

	// Absent components read as sentinel; the state layer keeps their
	// previous value since Present stays false.
	b := airpods.Battery{
		Left:  airpods.BatteryReading{Level: -1},
		Right: airpods.BatteryReading{Level: -1},
		Case:  airpods.BatteryReading{Level: -1},
	}
	for i := 0; i < count; i++ {
		off := 7 + i*5
		level := int(data[off+2])
		if level > 100 {
			level = -1
		}
		reading := airpods.BatteryReading{
			Level:   level,
			Status:  batteryStatus(data[off+3]),
			Present: true,
		}
		switch data[off] {
		case batterySingle, batteryLeft:
			b.Left = reading
		case batteryRight:
			b.Right = reading
		case batteryCase:
			b.Case = reading
		}
	}
	return Battery{Battery: b}, nil
}

func batteryStatus(b byte) airpods.BatteryStatus {
	switch b {
	case 0x01:
		return airpods.BatteryStatusCharging
	case 0x02:
		return airpods.BatteryStatusDischarging
	case 0x04:
		return airpods.BatteryStatusDisconnected
	default:
		return airpods.BatteryStatusUnknown
	}
}

// parseEarDetection decodes 04 00 04 00 06 00 [primary] [secondary].
func parseEarDetection(data []byte) (Packet, error) {
	if len(data) < 8 {
		return nil, ErrIncomplete
	}
	if data[5] != 0x00 {
		return nil, ErrMalformed
	}
	return EarDetection{
		PrimaryInEar:   data[6] == earInEar,
		SecondaryInEar: data[7] == earInEar,
	}, nil
}

// parseControl decodes the sub-typed 0x09 frames. Sub-opcodes the codec
// does not know are surfaced as ErrUnknownOpcode so the orchestrator treats
// them like any other unhandled frame.
func parseControl(data []byte) (Packet, error) {
	if len(data) < 8 {
		return nil, ErrIncomplete
	}

	switch data[6] {
	case ControlNoiseControl:
		mode := airpods.NoiseMode(data[7])
		if mode < airpods.NoiseModeOff || mode > airpods.NoiseModeAdaptive {
			mode = airpods.NoiseModeOff
		}
		return NoiseControl{Mode: mode}, nil

	case ControlConvAwareness:
		return ConvAwareness{Enabled: data[7] == 0x01}, nil

	case ControlListeningModes:
		raw := data[7]
		return ListeningModes{
			Modes: airpods.ListeningModes{
				Off:          raw&ListeningBitOff != 0,
				Transparency: raw&ListeningBitTransparency != 0,
				ANC:          raw&ListeningBitANC != 0,
				Adaptive:     raw&ListeningBitAdaptive != 0,
			},
			Raw: raw,
		}, nil

	case ControlAdaptiveLevel:
		level := int(data[7])
		if level > 100 {
			level = 100
		}
		return AdaptiveLevel{Level: level}, nil

	default:
		return nil, fmt.Errorf("%w: control 0x%02X", ErrUnknownOpcode, data[6])
	}
}

// parseCADetection decodes 04 00 04 00 4B 00 02 00 01 [level].
func parseCADetection(data []byte) (Packet, error) {
	if len(data) < 10 {
		return nil, ErrIncomplete
	}
	return CADetection{VolumeLevel: int(data[9])}, nil
}

// parseMetadata decodes 04 00 04 00 1D 00, six opaque bytes, then three
// NUL-terminated ASCII strings: device name, model number, manufacturer.
func parseMetadata(data []byte) (Packet, error) {
	if len(data) < 12 {
		return nil, ErrIncomplete
	}

	pos := 12
	name, pos := readCString(data, pos, maxDeviceNameLen)
	model, pos := readCString(data, pos, maxModelNumberLen)
	manufacturer, _ := readCString(data, pos, maxManufacturerLen)

	return Metadata{
		DeviceName:   name,
		ModelNumber:  model,
		Manufacturer: manufacturer,
	}, nil
}

// readCString extracts a NUL-terminated string of at most maxLen bytes
// starting at pos, returning the string and the position past the
// terminator.
func readCString(data []byte, pos, maxLen int) (string, int) {
	start := pos
	for pos < len(data) && data[pos] != 0 && pos-start < maxLen {
		pos++
	}
	s := string(data[start:pos])
	if pos < len(data) && data[pos] == 0 {
		pos++
	}
	return s, pos
}
