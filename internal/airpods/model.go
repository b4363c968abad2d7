package airpods

// Model identifies the AirPods variant. The numeric values match the model
// identifiers broadcast in Apple proximity advertisements.
type Model uint16

const (
	ModelUnknown  Model = 0
	Model1        Model = 0x0220
	Model2        Model = 0x0F20
	Model3        Model = 0x1320
	Model4        Model = 0x1920
	Model4ANC     Model = 0x1B20
	ModelPro      Model = 0x0E20
	ModelPro2     Model = 0x1420
	ModelPro2USBC Model = 0x2420
	ModelPro3     Model = 0x2720
	ModelMax      Model = 0x0A20
	ModelMaxUSBC  Model = 0x1F20
)

func (m Model) String() string {
	switch m {
	case Model1:
		return "AirPods 1st Gen"
	case Model2:
		return "AirPods 2nd Gen"
	case Model3:
		return "AirPods 3rd Gen"
	case Model4:
		return "AirPods 4th Gen"
	case Model4ANC:
		return "AirPods 4th Gen (ANC)"
	case ModelPro:
		return "AirPods Pro"
	case ModelPro2:
		return "AirPods Pro 2"
	case ModelPro2USBC:
		return "AirPods Pro 2 (USB-C)"
	case ModelPro3:
		return "AirPods Pro 3"
	case ModelMax:
		return "AirPods Max"
	case ModelMaxUSBC:
		return "AirPods Max (USB-C)"
	default:
		return "Unknown AirPods"
	}
}

// SupportsANC reports whether the model has active noise cancellation.
func (m Model) SupportsANC() bool {
	switch m {
	case ModelPro, ModelPro2, ModelPro2USBC, ModelPro3, ModelMax, ModelMaxUSBC, Model4ANC:
		return true
	default:
		return false
	}
}

// SupportsAdaptive reports whether the model has adaptive audio.
func (m Model) SupportsAdaptive() bool {
	switch m {
	case ModelPro2, ModelPro2USBC, ModelPro3, Model4ANC:
		return true
	default:
		return false
	}
}

// IsHeadphones reports whether the model is the over-ear form factor, which
// has a single battery and no charging case.
func (m Model) IsHeadphones() bool {
	return m == ModelMax || m == ModelMaxUSBC
}

// modelNumbers maps Apple model numbers (from the AAP metadata packet) to
// the model enum. Numbers from https://support.apple.com/en-us/109525.
var modelNumbers = map[string]Model{
	"A1523": Model1,
	"A1722": Model1,
	"A2032": Model2,
	"A2031": Model2,
	"A2565": Model3,
	"A2564": Model3,
	"A3053": Model4,
	"A3050": Model4,
	"A3054": Model4,
	"A3056": Model4ANC,
	"A3055": Model4ANC,
	"A3057": Model4ANC,
	"A2084": ModelPro,
	"A2083": ModelPro,
	"A2931": ModelPro2,
	"A2699": ModelPro2,
	"A2698": ModelPro2,
	"A3047": ModelPro2USBC,
	"A3048": ModelPro2USBC,
	"A3049": ModelPro2USBC,
	"A3064": ModelPro3,
	"A3065": ModelPro3,
	"A3063": ModelPro3,
	"A2096": ModelMax,
	"A3184": ModelMaxUSBC,
}

// ModelFromNumber resolves a model-number string such as "A2699" to a Model.
// Unknown numbers resolve to ModelUnknown, which is not an error.
func ModelFromNumber(number string) Model {
	return modelNumbers[number]
}
