package security

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Outbound notification calls go to a configured URL. The guard below keeps
// a misconfigured or redirected sink from reaching the Lambda metadata
// endpoint or private ranges.

const dnsTimeout = 500 * time.Millisecond

var (
	ErrBlockedAddress = errors.New("outbound: address in blocked range")
	ErrDNSTimeout     = errors.New("outbound: DNS resolution timeout")
	ErrDNSFailed      = errors.New("outbound: DNS resolution failed")
	ErrTooManyHops    = errors.New("outbound: too many redirects")
)

var blockedNets = mustParseCIDRs(
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16", // link-local, includes instance metadata
	"0.0.0.0/8",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"100.64.0.0/10",
	"198.18.0.0/15",
	"fc00::/7",
	"fe80::/10",
	"::1/128",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(fmt.Sprintf("security: bad CIDR %q: %v", c, err))
		}
		out = append(out, n)
	}
	return out
}

func isBlockedIP(ip net.IP) bool {
	for _, n := range blockedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Resolver abstracts DNS lookups for tests.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// GuardedTransport dials only hosts whose every resolved address lies
// outside the blocked ranges.
type GuardedTransport struct {
	Base     *http.Transport
	Resolver Resolver
}

// NewGuardedTransport wraps base, or a clone of http.DefaultTransport.
func NewGuardedTransport(base *http.Transport) *GuardedTransport {
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}
	gt := &GuardedTransport{Base: base}
	base.DialContext = gt.dial
	return gt
}

func (gt *GuardedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return gt.Base.RoundTrip(req)
}

func (gt *GuardedTransport) resolver() Resolver {
	if gt.Resolver != nil {
		return gt.Resolver
	}
	return net.DefaultResolver
}

func (gt *GuardedTransport) dial(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("outbound: invalid address %q: %w", addr, err)
	}
	ip, err := checkHost(ctx, gt.resolver(), host)
	if err != nil {
		return nil, err
	}
	var d net.Dialer
	return d.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
}

// checkHost resolves host and returns the first address when all of them are
// allowed. Mixed answers are rejected as a whole.
func checkHost(ctx context.Context, r Resolver, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return nil, fmt.Errorf("%w: %s", ErrBlockedAddress, ip)
		}
		return ip, nil
	}

	dnsCtx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()

	addrs, err := r.LookupIPAddr(dnsCtx, host)
	if err != nil {
		if dnsCtx.Err() != nil {
			return nil, fmt.Errorf("%w: host %q", ErrDNSTimeout, host)
		}
		return nil, fmt.Errorf("%w: host %q: %v", ErrDNSFailed, host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: host %q has no addresses", ErrDNSFailed, host)
	}
	for _, a := range addrs {
		if isBlockedIP(a.IP) {
			return nil, fmt.Errorf("%w: %s (resolved from %s)", ErrBlockedAddress, a.IP, host)
		}
	}
	return addrs[0].IP, nil
}

// CheckRedirect limits redirects and applies the address check to each hop.
func CheckRedirect(maxRedirects int, r Resolver) func(*http.Request, []*http.Request) error {
	if r == nil {
		r = net.DefaultResolver
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("%w: limit is %d", ErrTooManyHops, maxRedirects)
		}
		host := req.URL.Hostname()
		if host == "" {
			return fmt.Errorf("%w: redirect has no host", ErrBlockedAddress)
		}
		_, err := checkHost(req.Context(), r, host)
		return err
	}
}

// NewGuardedHTTPClient returns a client for calls to configured third-party
// URLs.
func NewGuardedHTTPClient(timeout time.Duration, maxRedirects int) *http.Client {
	return &http.Client{
		Transport:     NewGuardedTransport(nil),
		Timeout:       timeout,
		CheckRedirect: CheckRedirect(maxRedirects, nil),
	}
}
