package uvshim

import (
	"encoding/binary"
	"net"

	"golang.org/x/sys/unix"
)

// This shim uses one sockaddr layout on every host platform rather
// than matching libuv's own FFI-compatible struct byte-for-byte, since it
// never crosses an FFI boundary into real libuv or C code: callers
// exchange addresses as Go values (net.IP/port), and the wire-shaped
// encode/decode pair below exists only so handle logic can be written
// against the same sa_family-tagged byte layout libuv's own call sites
// use internally. A port that does need real C interop would need to
// match libuv's struct layout (and its platform-conditional sin_len
// byte) exactly instead of picking the BSD-only convention followed
// here.

const (
	sizeofSockaddrIn  = 16
	sizeofSockaddrIn6 = 28
)

// MarshalSockaddr4 encodes ip (a 4-byte IPv4 address) and port into a
// sockaddr_in-shaped buffer, tagged unix.AF_INET in sa_family, with
// the BSD sin_len convention always populated (ignored by callers on
// platforms that don't use it).
func MarshalSockaddr4(ip net.IP, port uint16) []byte {
	v4 := ip.To4()
	buf := make([]byte, sizeofSockaddrIn)
	buf[0] = sizeofSockaddrIn
	buf[1] = byte(unix.AF_INET)
	binary.BigEndian.PutUint16(buf[2:4], port)
	copy(buf[4:8], v4)
	return buf
}

// UnmarshalSockaddr4 decodes a sockaddr_in-shaped buffer produced by
// MarshalSockaddr4 (or an equivalent layout from a getsockname/
// getpeername call).
func UnmarshalSockaddr4(buf []byte) (net.IP, uint16, Status) {
	if len(buf) < sizeofSockaddrIn {
		return nil, 0, EINVAL
	}
	if Status(buf[1]) != Status(unix.AF_INET) {
		return nil, 0, EINVAL
	}
	port := binary.BigEndian.Uint16(buf[2:4])
	ip := make(net.IP, net.IPv4len)
	copy(ip, buf[4:8])
	return ip, port, OK
}

// MarshalSockaddr6 encodes ip (a 16-byte IPv6 address), port,
// flowinfo, and scopeID into a sockaddr_in6-shaped buffer, tagged
// unix.AF_INET6 in sa_family.
func MarshalSockaddr6(ip net.IP, port uint16, flowinfo, scopeID uint32) []byte {
	v6 := ip.To16()
	buf := make([]byte, sizeofSockaddrIn6)
	buf[0] = sizeofSockaddrIn6
	buf[1] = byte(unix.AF_INET6)
	binary.BigEndian.PutUint16(buf[2:4], port)
	binary.BigEndian.PutUint32(buf[4:8], flowinfo)
	copy(buf[8:24], v6)
	binary.BigEndian.PutUint32(buf[24:28], scopeID)
	return buf
}

// UnmarshalSockaddr6 decodes a sockaddr_in6-shaped buffer produced by
// MarshalSockaddr6.
func UnmarshalSockaddr6(buf []byte) (ip net.IP, port uint16, flowinfo, scopeID uint32, status Status) {
	if len(buf) < sizeofSockaddrIn6 {
		return nil, 0, 0, 0, EINVAL
	}
	if Status(buf[1]) != Status(unix.AF_INET6) {
		return nil, 0, 0, 0, EINVAL
	}
	port = binary.BigEndian.Uint16(buf[2:4])
	flowinfo = binary.BigEndian.Uint32(buf[4:8])
	ip = make(net.IP, net.IPv6len)
	copy(ip, buf[8:24])
	scopeID = binary.BigEndian.Uint32(buf[24:28])
	return ip, port, flowinfo, scopeID, OK
}

// IP4Addr builds a sockaddr_in buffer from a dotted-quad string and
// port, mirroring uv_ip4_addr.
func IP4Addr(ipStr string, port uint16) ([]byte, Status) {
	ip := net.ParseIP(ipStr)
	if ip == nil || ip.To4() == nil {
		return nil, EINVAL
	}
	return MarshalSockaddr4(ip, port), OK
}

// IP6Addr builds a sockaddr_in6 buffer from a textual IPv6 address and
// port, mirroring uv_ip6_addr. flowinfo and scope_id are left zero, the
// common case for application-level addressing.
func IP6Addr(ipStr string, port uint16) ([]byte, Status) {
	ip := net.ParseIP(ipStr)
	if ip == nil || ip.To4() != nil {
		return nil, EINVAL
	}
	return MarshalSockaddr6(ip, port, 0, 0), OK
}

// AddrToSockaddr converts a resolved net.Addr (as returned by
// TCPGetsockname/TCPGetpeername) into the wire-shaped buffer a caller
// crossing the sockaddr boundary expects.
func AddrToSockaddr(addr net.Addr) ([]byte, Status) {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return nil, EINVAL
	}
	if v4 := tcpAddr.IP.To4(); v4 != nil {
		return MarshalSockaddr4(v4, uint16(tcpAddr.Port)), OK
	}
	return MarshalSockaddr6(tcpAddr.IP.To16(), uint16(tcpAddr.Port), 0, uint32(zoneToScopeID(tcpAddr.Zone))), OK
}

func zoneToScopeID(zone string) int {
	if zone == "" {
		return 0
	}
	if iface, err := net.InterfaceByName(zone); err == nil {
		return iface.Index
	}
	return 0
}
