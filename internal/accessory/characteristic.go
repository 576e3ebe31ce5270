package accessory

// Format is the value type of a characteristic.
type Format string

// Characteristic value formats.
const (
	FormatBool   Format = "bool"
	FormatInt    Format = "int"
	FormatString Format = "string"
)

// Unit is the unit of a numeric characteristic.
type Unit string

// Characteristic units.
const (
	UnitNone       Unit = ""
	UnitPercentage Unit = "percentage"
)

// Perm is a host permission on a characteristic.
type Perm string

// Characteristic permissions.
const (
	PermRead   Perm = "read"
	PermWrite  Perm = "write"
	PermNotify Perm = "notify"
)

// Characteristic names, also used as host command targets.
const (
	CharOn         = "On"
	CharVolume     = "Volume"
	CharVolumeStep = "VolumeStep"
	CharChannel    = "Channel"
	CharKey        = "Key"
)

// DeviceCharacteristic describes one host-visible value: its identity,
// format, bounds, permissions and default. Min, Max and Step are only
// meaningful for FormatInt.
type DeviceCharacteristic struct {
	Name    string `json:"name"`
	UUID    string `json:"uuid"`
	Format  Format `json:"format"`
	Unit    Unit   `json:"unit,omitempty"`
	Min     int    `json:"min,omitempty"`
	Max     int    `json:"max,omitempty"`
	Step    int    `json:"step,omitempty"`
	Perms   []Perm `json:"perms"`
	Default any    `json:"default"`
}

// Readable reports whether the host may read the characteristic.
func (c DeviceCharacteristic) Readable() bool {
	return c.hasPerm(PermRead)
}

// Writable reports whether the host may write the characteristic.
func (c DeviceCharacteristic) Writable() bool {
	return c.hasPerm(PermWrite)
}

func (c DeviceCharacteristic) hasPerm(p Perm) bool {
	for _, have := range c.Perms {
		if have == p {
			return true
		}
	}
	return false
}

// InRange reports whether v is within the characteristic bounds.
// Characteristics that are not FormatInt accept any value.
func (c DeviceCharacteristic) InRange(v int) bool {
	if c.Format != FormatInt {
		return true
	}
	return v >= c.Min && v <= c.Max
}

var readWriteNotify = []Perm{PermRead, PermWrite, PermNotify}

// Characteristics returns the fixed set of characteristics exposed by an
// accessory, built fresh on every call.
func Characteristics() []DeviceCharacteristic {
	return []DeviceCharacteristic{
		{
			Name:    CharOn,
			UUID:    "00000025-0000-1000-8000-0026BB765291",
			Format:  FormatBool,
			Perms:   clonePerms(readWriteNotify),
			Default: false,
		},
		{
			Name:    CharVolume,
			UUID:    "00000119-0000-1000-8000-0026BB765291",
			Format:  FormatInt,
			Unit:    UnitPercentage,
			Min:     0,
			Max:     100,
			Step:    1,
			Perms:   clonePerms(readWriteNotify),
			Default: 0,
		},
		{
			Name:    CharVolumeStep,
			UUID:    "91288267-5678-49B2-8D22-F57BE995AA00",
			Format:  FormatInt,
			Unit:    UnitPercentage,
			Min:     MinVolumeStep,
			Max:     MaxVolumeStep,
			Step:    1,
			Perms:   clonePerms(readWriteNotify),
			Default: 1,
		},
		{
			Name:    CharChannel,
			UUID:    "212131F4-2E14-4FF4-AE13-C97C3232499D",
			Format:  FormatString,
			Perms:   clonePerms(readWriteNotify),
			Default: DefaultChannel,
		},
		{
			Name:    CharKey,
			UUID:    "2A6FD4DE-8103-4E58-BDAC-25835CD006BD",
			Format:  FormatString,
			Perms:   clonePerms(readWriteNotify),
			Default: DefaultKey,
		},
	}
}

// CharacteristicByName looks up a characteristic descriptor.
func CharacteristicByName(name string) (DeviceCharacteristic, bool) {
	for _, c := range Characteristics() {
		if c.Name == name {
			return c, true
		}
	}
	return DeviceCharacteristic{}, false
}

func clonePerms(p []Perm) []Perm {
	out := make([]Perm, len(p))
	copy(out, p)
	return out
}
