package link

// DeviceState selects the proxy event for a device.
type DeviceState int

const (
	DeviceStateUnknown DeviceState = iota
	DeviceStateConnect             // device_connect: true
	DeviceStateUpdate              // device_update: true
)

func (s DeviceState) String() string {
	switch s {
	case DeviceStateConnect:
		return "connect"
	case DeviceStateUpdate:
		return "update"
	default:
		return "unknown"
	}
}
