package urlscan

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

var ErrBlockedAddress = errors.New("address is not publicly routable")

// 100.64.0.0/10, carrier-grade NAT; net.IP.IsPrivate does not cover it.
var sharedAddressSpace = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

func blockedIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast() ||
		sharedAddressSpace.Contains(ip)
}

// blockedHost rejects hosts that are internal without a DNS lookup: IP
// literals in internal ranges and localhost names.
func blockedHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return blockedIP(ip)
	}
	return false
}

// controlDial runs after DNS resolution, so it sees the address actually
// dialled for every hop, including names that resolve to internal IPs.
func (s *Scanner) controlDial(network, address string, _ syscall.RawConn) error {
	if s.allowPrivate {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	ip := net.ParseIP(host)
	if ip == nil || blockedIP(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	return nil
}

// newTracerClient returns a client that never follows redirects itself and
// refuses to connect to internal addresses.
func (s *Scanner) newTracerClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   traceTimeout,
		KeepAlive: 30 * time.Second,
		Control:   s.controlDial,
	}
	return &http.Client{
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			TLSHandshakeTimeout: traceTimeout,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
