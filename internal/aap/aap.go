// Package aap implements the Apple Accessory Protocol (AAP) frame codec.
//
// AAP is a reverse-engineered request/response protocol spoken over an
// L2CAP channel on PSM 4097 (0x1001). Every frame except the initial
// handshake starts with the 4-byte header 04 00 04 00, followed by an
// opcode byte, a zero byte, and an opcode-specific payload. One L2CAP
// SEQPACKET read yields exactly one frame; no reassembly is needed.
//
// The codec is pure and stateless: Parse classifies and decodes inbound
// frames, the Build functions produce outbound control frames. Mapping the
// primary/secondary buds of an ear-detection frame onto left/right is the
// state model's job, not the codec's.
//
// Based on reverse engineering from the LibrePods and OpenPods projects.
package aap

// Standard frame header.
var header = [4]byte{0x04, 0x00, 0x04, 0x00}

// Opcodes (byte at offset 4).
const (
	OpcodeBattery       = 0x04
	OpcodeEarDetection  = 0x06
	OpcodeControl       = 0x09
	OpcodeNotifications = 0x0F
	OpcodeHeadTracking  = 0x17
	OpcodeMetadata      = 0x1D
	OpcodeCADetection   = 0x4B
	OpcodeSetFeatures   = 0x4D
)

// Control sub-opcodes (byte at offset 6 of an OpcodeControl frame).
const (
	ControlNoiseControl   = 0x0D
	ControlListeningModes = 0x1A
	ControlOneBudANC      = 0x1B
	ControlConvAwareness  = 0x28
	ControlAdaptiveLevel  = 0x2E
)

// Battery component identifiers.
const (
	batterySingle = 0x01 // headphones form factor, routed to Left
	batteryRight  = 0x02
	batteryLeft   = 0x04
	batteryCase   = 0x08
)

// Ear detection status bytes. Only earInEar counts as in-ear; earInCase is
// treated the same as out for media-control purposes.
const (
	earInEar  = 0x00
	earOut    = 0x01
	earInCase = 0x02
)

// Listening-mode bitmask bits (byte at offset 7 of a ControlListeningModes
// frame).
const (
	ListeningBitOff          = 0x01
	ListeningBitTransparency = 0x02
	ListeningBitANC          = 0x04
	ListeningBitAdaptive     = 0x08
)

// controlFrameSize is the fixed length of every built control command.
const controlFrameSize = 11

// Handshake is the client hello sent first after the L2CAP channel opens.
// It is the only frame that does not carry the standard header.
var Handshake = []byte{
	0x00, 0x00, 0x04, 0x00, 0x01, 0x00, 0x02, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// SetFeatures enables the feature set (conversational awareness, adaptive
// transparency) and is sent second in the initialization sequence.
var SetFeatures = []byte{
	0x04, 0x00, 0x04, 0x00, 0x4D, 0x00, 0xFF, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// RequestNotifications subscribes to battery and status notifications and
// completes the initialization sequence.
var RequestNotifications = []byte{
	0x04, 0x00, 0x04, 0x00, 0x0F, 0x00, 0xFF, 0xFF, 0xFF, 0xFF,
}

// Metadata string field bounds.
const (
	maxDeviceNameLen   = 63
	maxModelNumberLen  = 15
	maxManufacturerLen = 31
)
