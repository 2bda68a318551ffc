package proxy

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"statusgate/internal/models"
)

// DefaultHops is the number of reverse proxies the deployment sits behind.
const DefaultHops = 1

// Resolver derives the client identity of a request. Hops is the number of
// trusted reverse proxies in front of the server; each of them appends the
// address it received the connection from to X-Forwarded-For.
type Resolver struct {
	Hops int
}

func NewResolver(hops int) *Resolver {
	if hops < 0 {
		hops = 0
	}
	return &Resolver{Hops: hops}
}

// ClientIdentity returns the address of the client as seen by the outermost
// trusted proxy. With Hops == 1 that is the right-most X-Forwarded-For entry,
// the one written by the proxy itself; entries further left are
// client-controlled and ignored. When the header holds fewer entries than
// trusted hops the left-most entry is used. Unparseable entries and a missing
// header fall back to the socket address.
func (r *Resolver) ClientIdentity(req *http.Request) models.ClientIdentity {
	socket := remoteIP(req.RemoteAddr)
	if r == nil || r.Hops == 0 {
		return socket
	}

	chain := forwardedChain(req.Header.Values("X-Forwarded-For"))
	if len(chain) == 0 {
		return socket
	}

	idx := len(chain) - r.Hops
	if idx < 0 {
		idx = 0
	}
	addr, err := netip.ParseAddr(chain[idx])
	if err != nil {
		return socket
	}
	return models.ClientIdentity(addr.Unmap().String())
}

// forwardedChain flattens repeated X-Forwarded-For headers into one ordered
// list, left to right.
func forwardedChain(values []string) []string {
	var chain []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				chain = append(chain, part)
			}
		}
	}
	return chain
}

func remoteIP(remoteAddr string) models.ClientIdentity {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return models.ClientIdentity(addr.Unmap().String())
	}
	return models.ClientIdentity(host)
}
