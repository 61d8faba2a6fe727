package config

import (
	"net"
	"os"
)

// ResolveHostname returns the configured hostname, sniffing the OS
// hostname for "auto"
func (c *ServerConfig) ResolveHostname() (string, error) {
	if c.Hostname != "" && c.Hostname != "auto" {
		return c.Hostname, nil
	}
	return os.Hostname()
}

// ResolveIP returns the configured address, picking the first
// non-loopback IPv4 for "auto"
func (c *ServerConfig) ResolveIP() (string, error) {
	if c.IP != "" && c.IP != "auto" {
		return c.IP, nil
	}

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return "", ErrNoAddress
}
