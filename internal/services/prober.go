package services

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
)

const defaultProbeTimeout = 3 * time.Second

// Prober answers whether the cloud store is worth trying right now. The answer is
// advisory: a failed write still counts as a failure even after a positive probe.
type Prober interface {
	Reachable(ctx context.Context) bool
}

// TCPProber opens and immediately closes a TCP connection to addr.
type TCPProber struct {
	addr    string
	timeout time.Duration
	dialer  net.Dialer
}

// NewTCPProber probes addr ("host:port"). An empty addr is never reachable.
func NewTCPProber(addr string, timeout time.Duration) *TCPProber {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &TCPProber{addr: addr, timeout: timeout}
}

func (p *TCPProber) Addr() string {
	return p.addr
}

func (p *TCPProber) Reachable(ctx context.Context) bool {
	if p.addr == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := p.dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// ProbeAddrFromURL derives "host:port" of the cloud database from its connection string,
// or "" if the string is empty or unparseable.
func ProbeAddrFromURL(databaseURL string) string {
	if databaseURL == "" {
		return ""
	}
	cfg, err := pgx.ParseConfig(databaseURL)
	if err != nil || cfg.Host == "" {
		return ""
	}
	return net.JoinHostPort(cfg.Host, strconv.Itoa(int(cfg.Port)))
}
