package transport

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/hupe1980/qibridge/core"
)

// DefaultPort is the port libqi services listen on.
const DefaultPort = 9559

// ParseEndpoint normalises an endpoint to a URL.
//
// It accepts URLs ("tcp://nao.local:9559", "tcps://10.0.0.2", "loop://bench"),
// bare host:port pairs which are read as tcp and multiaddrs such as
// "/ip4/127.0.0.1/tcp/9559" or "/dns/nao.local/tcp/9559". Missing tcp ports
// default to DefaultPort.
func ParseEndpoint(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty endpoint", core.ErrConnection)
	}
	if strings.HasPrefix(s, "/") {
		return fromMultiaddr(s)
	}
	if !strings.Contains(s, "://") {
		s = "tcp://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: endpoint %q: %v", core.ErrConnection, s, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: endpoint %q has no host", core.ErrConnection, s)
	}
	switch u.Scheme {
	case "tcp", "tcps":
		if u.Port() == "" {
			u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(DefaultPort))
		}
	case "loop":
	default:
		return "", fmt.Errorf("%w: unsupported endpoint scheme %q", core.ErrConnection, u.Scheme)
	}
	return u.Scheme + "://" + u.Host, nil
}

func fromMultiaddr(s string) (string, error) {
	addr, err := ma.NewMultiaddr(s)
	if err != nil {
		return "", fmt.Errorf("%w: multiaddr %q: %v", core.ErrConnection, s, err)
	}
	var host string
	for _, code := range []int{ma.P_IP4, ma.P_IP6, ma.P_DNS, ma.P_DNS4, ma.P_DNS6} {
		if v, err := addr.ValueForProtocol(code); err == nil {
			host = v
			break
		}
	}
	if host == "" {
		return "", fmt.Errorf("%w: multiaddr %q has no host component", core.ErrConnection, s)
	}
	port, err := addr.ValueForProtocol(ma.P_TCP)
	if err != nil {
		return "", fmt.Errorf("%w: multiaddr %q has no tcp component", core.ErrConnection, s)
	}
	return "tcp://" + net.JoinHostPort(host, port), nil
}
