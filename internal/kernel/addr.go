package kernel

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"

	"gonett/internal/nserrors"
)

// AddrAdd adds an address to ifName inside the named namespace. For IPv4
// addresses a broadcast address is computed and attached, matching the
// original implementation's behaviour; IPv6 addresses carry none. The
// interface must already be UP (the caller is responsible for ordering).
func (e *Executor) AddrAdd(node, nsName, ifName string, ipNet *net.IPNet) error {
	err := withNamedNS(nsName, func() error {
		link, err := netlink.LinkByName(ifName)
		if err != nil {
			return err
		}
		addr := &netlink.Addr{IPNet: ipNet}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			addr.Broadcast = broadcastAddr(ipNet)
		}
		return netlink.AddrAdd(link, addr)
	})
	if err != nil {
		return wrap(nserrors.ExternalFailure, node, fmt.Sprintf("addr:%s/%s", ifName, ipNet), err)
	}
	return nil
}

func broadcastAddr(ipNet *net.IPNet) net.IP {
	ip4 := ipNet.IP.To4()
	if ip4 == nil {
		return nil
	}
	bcast := make(net.IP, len(ip4))
	for i := range ip4 {
		bcast[i] = ip4[i] | ^ipNet.Mask[i]
	}
	return bcast
}
