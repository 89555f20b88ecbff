package emulator

import (
	"errors"
	"net"
)

// localAddress picks the first non-loopback IPv4 address and the hardware
// address of its interface.
func localAddress() (net.IP, net.HardwareAddr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, nil, err
	}
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifi.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil && !ipnet.IP.IsLoopback() {
				return ipnet.IP.To4(), ifi.HardwareAddr, nil
			}
		}
	}
	return nil, nil, errors.New("no non-loopback IPv4 address found; set bridge.ip")
}

// hardwareAddrFor returns the MAC of the interface carrying ip, if any.
func hardwareAddrFor(ip net.IP) net.HardwareAddr {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	for _, ifi := range ifaces {
		addrs, err := ifi.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.Equal(ip) {
				return ifi.HardwareAddr
			}
		}
	}
	return nil
}

// groupAddr adds the SSDP port to a bare group address.
func groupAddr(group string) (*net.UDPAddr, error) {
	if group == "" {
		return nil, nil
	}
	if _, _, err := net.SplitHostPort(group); err != nil {
		group = net.JoinHostPort(group, "1900")
	}
	return net.ResolveUDPAddr("udp4", group)
}
