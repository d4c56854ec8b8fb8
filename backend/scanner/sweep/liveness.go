package sweepscan

import (
	"context"
	"net"
	"net/netip"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// Prober reports whether a single address answers a liveness probe. A probe
// is attempted exactly once per address and never returns an error: every
// failure mode collapses to "does not respond".
type Prober interface {
	Probe(ctx context.Context, addr netip.Addr) bool
}

type probeMode int

const (
	modeUndecided probeMode = iota
	modeICMPRaw
	modeICMPDgram
	modeTCPFallback
)

// tcpFallbackPorts is probed in order when no ICMP socket can be opened.
// The fallback changes liveness semantics: only a completed TCP handshake
// counts as alive.
var tcpFallbackPorts = []int{443, 80, 22, 445}

// pinger sends one ICMP echo per address, preferring a raw socket and
// degrading to an unprivileged datagram socket, then to TCP connects.
type pinger struct {
	timeout time.Duration
	log     *logrus.Logger

	once sync.Once
	mode probeMode
	seq  atomic.Uint32
}

func newPinger(timeout time.Duration, log *logrus.Logger) *pinger {
	if timeout <= 0 {
		timeout = 200 * time.Millisecond
	}
	return &pinger{timeout: timeout, log: log}
}

func (p *pinger) Probe(ctx context.Context, addr netip.Addr) bool {
	if ctx.Err() != nil || !addr.Is4() {
		return false
	}
	switch p.decideMode() {
	case modeICMPRaw:
		return p.icmpEcho(ctx, addr, "ip4:icmp")
	case modeICMPDgram:
		return p.icmpEcho(ctx, addr, "udp4")
	default:
		return p.tcpAlive(ctx, addr)
	}
}

// decideMode picks the probe transport once per pinger by test-opening the
// candidate sockets, most capable first.
func (p *pinger) decideMode() probeMode {
	p.once.Do(func() {
		if conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0"); err == nil {
			conn.Close()
			p.mode = modeICMPRaw
			return
		}
		if conn, err := icmp.ListenPacket("udp4", "0.0.0.0"); err == nil {
			conn.Close()
			p.mode = modeICMPDgram
			if p.log != nil {
				p.log.Debug("liveness: raw ICMP unavailable, using unprivileged datagram ICMP")
			}
			return
		}
		p.mode = modeTCPFallback
		if p.log != nil {
			p.log.Debugf("liveness: ICMP unavailable, falling back to TCP connect on ports %v", tcpFallbackPorts)
		}
	})
	return p.mode
}

func (p *pinger) icmpEcho(ctx context.Context, addr netip.Addr, network string) bool {
	conn, err := icmp.ListenPacket(network, "0.0.0.0")
	if err != nil {
		return p.tcpAlive(ctx, addr)
	}
	defer conn.Close()

	deadline := time.Now().Add(p.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return false
	}

	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   os.Getpid() & 0xffff,
			Seq:  int(p.seq.Add(1) & 0xffff),
			Data: []byte("netsweep"),
		},
	}
	payload, err := msg.Marshal(nil)
	if err != nil {
		return false
	}

	ip := net.IP(addr.AsSlice())
	var dst net.Addr = &net.IPAddr{IP: ip}
	if network == "udp4" {
		dst = &net.UDPAddr{IP: ip}
	}
	if _, err := conn.WriteTo(payload, dst); err != nil {
		return false
	}

	buf := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			return false
		}
		if !sameHost(peer, ip) {
			continue
		}
		// 1 is the IANA protocol number for ICMPv4.
		reply, err := icmp.ParseMessage(1, buf[:n])
		if err != nil {
			continue
		}
		if reply.Type == ipv4.ICMPTypeEchoReply {
			return true
		}
	}
}

// tcpAlive treats a completed handshake on any common port as a liveness
// signal. All ports share the probe's single timeout budget.
func (p *pinger) tcpAlive(ctx context.Context, addr netip.Addr) bool {
	deadline := time.Now().Add(p.timeout)
	dctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	var dialer net.Dialer
	for _, port := range tcpFallbackPorts {
		if dctx.Err() != nil {
			return false
		}
		conn, err := dialer.DialContext(dctx, "tcp", net.JoinHostPort(addr.String(), strconv.Itoa(port)))
		if err == nil {
			conn.Close()
			return true
		}
	}
	return false
}

func sameHost(peer net.Addr, ip net.IP) bool {
	switch a := peer.(type) {
	case *net.IPAddr:
		return a.IP.Equal(ip)
	case *net.UDPAddr:
		return a.IP.Equal(ip)
	default:
		return false
	}
}
