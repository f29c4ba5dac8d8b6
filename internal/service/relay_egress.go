package service

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// egressPolicy enforces the relay host policy on every outbound request,
// redirect hops included. With an allowlist only listed hosts and their
// subdomains pass. Without one, loopback, private and link-local
// destinations are refused both by name and at dial time.
type egressPolicy struct {
	base    http.RoundTripper
	allowed []string
}

func newEgressPolicy(allowed []string) *egressPolicy {
	p := &egressPolicy{}
	for _, h := range allowed {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			p.allowed = append(p.allowed, h)
		}
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	if len(p.allowed) == 0 {
		dialer.Control = p.dialControl
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	p.base = transport
	return p
}

func (p *egressPolicy) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := p.check(req.URL); err != nil {
		return nil, err
	}
	return p.base.RoundTrip(req)
}

func (p *egressPolicy) check(u *url.URL) error {
	if u == nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return ErrInvalidRelayURL
	}
	host := strings.ToLower(u.Hostname())

	if len(p.allowed) > 0 {
		for _, allowed := range p.allowed {
			if host == allowed || strings.HasSuffix(host, "."+allowed) {
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrHostNotAllowed, host)
	}

	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("%w: %s", ErrHostNotAllowed, host)
	}
	if ip := net.ParseIP(host); ip != nil && !isPublicIP(ip) {
		return fmt.Errorf("%w: %s", ErrHostNotAllowed, host)
	}
	return nil
}

// dialControl rejects connections to non-public addresses a hostname
// resolved to.
func (p *egressPolicy) dialControl(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || !isPublicIP(ip) {
		return fmt.Errorf("%w: %s", ErrHostNotAllowed, host)
	}
	return nil
}

func isPublicIP(ip net.IP) bool {
	return !(ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast())
}
