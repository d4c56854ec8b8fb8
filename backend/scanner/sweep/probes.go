package sweepscan

import (
	"context"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
)

const (
	portHTTPS = 443
	portRDP   = 3389
	portSMB   = 445
	portSSH   = 22
)

// ServiceProber runs the per-host service checks and aggregates the
// outcomes. Failures are encoded in the report, never returned as errors.
type ServiceProber interface {
	ProbeHost(ctx context.Context, addr netip.Addr) HostReport
}

// probeSuite checks the fixed service set against one host: the encrypted
// status probe on 443 and bare TCP reachability on 3389, 445 and 22. The
// four checks are independent and run concurrently so per-host latency is
// bounded by the slowest single check.
type probeSuite struct {
	tcpTimeout   time.Duration
	httpsTimeout time.Duration
	ptrTimeout   time.Duration
	lookupPTR    bool

	httpsPort int
	rdpPort   int
	smbPort   int
	sshPort   int

	resolverOnce sync.Once
	resolverAddr string
}

func newProbeSuite(params ScanParams) *probeSuite {
	return &probeSuite{
		tcpTimeout:   params.TCPTimeout,
		httpsTimeout: params.HTTPSTimeout,
		ptrTimeout:   params.PTRTimeout,
		lookupPTR:    params.LookupPTR,
		httpsPort:    portHTTPS,
		rdpPort:      portRDP,
		smbPort:      portSMB,
		sshPort:      portSSH,
	}
}

func (s *probeSuite) ProbeHost(ctx context.Context, addr netip.Addr) HostReport {
	report := HostReport{
		Address:  addr.String(),
		Ping:     true,
		ProbedAt: time.Now(),
	}

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		report.HTTPSStatus = s.httpsStatus(ctx, addr)
	}()
	go func() {
		defer wg.Done()
		report.RDP = s.tcpOpen(ctx, addr, s.rdpPort)
	}()
	go func() {
		defer wg.Done()
		report.SMB = s.tcpOpen(ctx, addr, s.smbPort)
	}()
	go func() {
		defer wg.Done()
		report.SSH = s.tcpOpen(ctx, addr, s.sshPort)
	}()
	if s.lookupPTR {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report.Hostname = s.reverseLookup(ctx, addr)
		}()
	}
	wg.Wait()

	return report
}

// tcpOpen attempts a transport-layer connection within the timeout. An
// established connection is closed immediately without exchanging data.
func (s *probeSuite) tcpOpen(ctx context.Context, addr netip.Addr, port int) bool {
	dctx, cancel := context.WithTimeout(ctx, s.tcpTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dctx, "tcp", net.JoinHostPort(addr.String(), strconv.Itoa(port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// reverseLookup asks the system resolver for a PTR record. Best effort: any
// failure yields an empty hostname.
func (s *probeSuite) reverseLookup(ctx context.Context, addr netip.Addr) string {
	server := s.systemResolver()
	if server == "" {
		return ""
	}
	name, err := dns.ReverseAddr(addr.String())
	if err != nil {
		return ""
	}

	msg := new(dns.Msg)
	msg.SetQuestion(name, dns.TypePTR)
	client := &dns.Client{Timeout: s.ptrTimeout}

	in, _, err := client.ExchangeContext(ctx, msg, server)
	if err != nil || in == nil {
		return ""
	}
	for _, answer := range in.Answer {
		if ptr, ok := answer.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, ".")
		}
	}
	return ""
}

func (s *probeSuite) systemResolver() string {
	s.resolverOnce.Do(func() {
		cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil || len(cfg.Servers) == 0 {
			return
		}
		s.resolverAddr = net.JoinHostPort(cfg.Servers[0], cfg.Port)
	})
	return s.resolverAddr
}
