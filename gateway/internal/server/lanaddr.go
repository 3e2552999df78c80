package server

import (
	"fmt"
	"net"
)

const fallbackHost = "localhost"

type addrsFunc func() ([]net.Addr, error)

// lanHost returns the first non-loopback IPv4 address of the host.
func lanHost(addrs addrsFunc) string {
	if addrs == nil {
		addrs = net.InterfaceAddrs
	}
	list, err := addrs()
	if err != nil {
		return fallbackHost
	}
	for _, a := range list {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.IsLoopback() {
			continue
		}
		if v4 := ip.To4(); v4 != nil {
			return v4.String()
		}
	}
	return fallbackHost
}

func serverURL(host string, port int) string {
	return fmt.Sprintf("http://%s:%d", host, port)
}
