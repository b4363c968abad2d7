package aap

import "librepods/internal/airpods"

// Pre-image bodies for the four noise-control commands. The mode byte at
// offset 7 matches the wire encoding of airpods.NoiseMode.
var (
	noiseControlOff          = []byte{0x04, 0x00, 0x04, 0x00, 0x09, 0x00, 0x0D, 0x01, 0x00, 0x00, 0x00}
	noiseControlANC          = []byte{0x04, 0x00, 0x04, 0x00, 0x09, 0x00, 0x0D, 0x02, 0x00, 0x00, 0x00}
	noiseControlTransparency = []byte{0x04, 0x00, 0x04, 0x00, 0x09, 0x00, 0x0D, 0x03, 0x00, 0x00, 0x00}
	noiseControlAdaptive     = []byte{0x04, 0x00, 0x04, 0x00, 0x09, 0x00, 0x0D, 0x04, 0x00, 0x00, 0x00}

	convAwarenessEnable  = []byte{0x04, 0x00, 0x04, 0x00, 0x09, 0x00, 0x28, 0x01, 0x00, 0x00, 0x00}
	convAwarenessDisable = []byte{0x04, 0x00, 0x04, 0x00, 0x09, 0x00, 0x28, 0x02, 0x00, 0x00, 0x00}
)

// BuildNoiseControl returns the 11-byte command selecting a noise-control
// mode. Unrecognized modes build the Off command.
func BuildNoiseControl(mode airpods.NoiseMode) []byte {
	var src []byte
	switch mode {
	case airpods.NoiseModeANC:
		src = noiseControlANC
	case airpods.NoiseModeTransparency:
		src = noiseControlTransparency
	case airpods.NoiseModeAdaptive:
		src = noiseControlAdaptive
	default:
		src = noiseControlOff
	}
	out := make([]byte, controlFrameSize)
	copy(out, src)
	return out
}

// BuildConvAwareness returns the 11-byte command enabling or disabling
// conversational awareness.
func BuildConvAwareness(enable bool) []byte {
	out := make([]byte, controlFrameSize)
	if enable {
		copy(out, convAwarenessEnable)
	} else {
		copy(out, convAwarenessDisable)
	}
	return out
}

// BuildAdaptiveLevel returns the 11-byte command setting the adaptive noise
// level. The level is clamped to [0, 100] before being embedded.
func BuildAdaptiveLevel(level int) []byte {
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	return []byte{0x04, 0x00, 0x04, 0x00, 0x09, 0x00, ControlAdaptiveLevel, byte(level), 0x00, 0x00, 0x00}
}

// BuildListeningModes returns the 11-byte command setting the long-press
// cycle set. The bitmask is embedded verbatim; the two-mode minimum is the
// caller's invariant to enforce.
func BuildListeningModes(mask byte) []byte {
	return []byte{0x04, 0x00, 0x04, 0x00, 0x09, 0x00, ControlListeningModes, mask, 0x00, 0x00, 0x00}
}

// ListeningModesMask packs a ListeningModes set into its wire bitmask.
func ListeningModesMask(modes airpods.ListeningModes) byte {
	var mask byte
	if modes.Off {
		mask |= ListeningBitOff
	}
	if modes.Transparency {
		mask |= ListeningBitTransparency
	}
	if modes.ANC {
		mask |= ListeningBitANC
	}
	if modes.Adaptive {
		mask |= ListeningBitAdaptive
	}
	return mask
}
