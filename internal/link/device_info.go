package link

import (
	"net"
	"strconv"

	"avl-svr/internal/pipeline"
)

// DeviceInfo is the view of a device sent to the proxy.
type DeviceInfo struct {
	IMEI       string
	IMSI       string
	OperatorID string
	RemoteIP   string
	RemotePort int
	State      DeviceState
}

// NewConnectInfo builds the device_connect view for a handshaken session.
func NewConnectInfo(imei string, remote net.Addr) DeviceInfo {
	info := DeviceInfo{IMEI: imei, State: DeviceStateConnect}
	if remote == nil {
		return info
	}
	if host, port, err := net.SplitHostPort(remote.String()); err == nil {
		info.RemoteIP = host
		info.RemotePort, _ = strconv.Atoi(port)
	}
	return info
}

// NewUpdateInfo builds the device_update view from the subscriber data an
// ingest envelope carries.
func NewUpdateInfo(m pipeline.Meta) DeviceInfo {
	return DeviceInfo{
		IMEI:       m.IMEI,
		IMSI:       m.IMSI,
		OperatorID: m.OperatorID,
		State:      DeviceStateUpdate,
	}
}
