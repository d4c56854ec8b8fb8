package sweepscan

import (
	"context"
	"net/netip"
	"sync"
	"testing"
)

// fakeProber answers liveness for a fixed set of addresses and records how
// many candidates were probed.
type fakeProber struct {
	mu     sync.Mutex
	alive  map[string]bool
	probed []string
}

func newFakeProber(alive ...string) *fakeProber {
	m := make(map[string]bool, len(alive))
	for _, addr := range alive {
		m[addr] = true
	}
	return &fakeProber{alive: m}
}

func (f *fakeProber) Probe(_ context.Context, addr netip.Addr) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probed = append(f.probed, addr.String())
	return f.alive[addr.String()]
}

func (f *fakeProber) probeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.probed)
}

func addrStrings(addrs []netip.Addr) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return out
}

func mustBlock(t *testing.T, spec string) *rangeBlock {
	t.Helper()
	block, err := parseRange(spec, nil)
	if err != nil {
		t.Fatalf("parseRange(%s) failed: %v", spec, err)
	}
	return block
}

func TestSamplerSequentialEarlyStop(t *testing.T) {
	prober := newFakeProber("192.168.5.3", "192.168.5.5", "192.168.5.7")
	smp := newSampler(prober, 3, 1, 1, nil)

	responders, probed, err := smp.collect(context.Background(), mustBlock(t, "192.168.5.0/24").hosts())
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}

	want := []string{"192.168.5.3", "192.168.5.5", "192.168.5.7"}
	got := addrStrings(responders)
	if len(got) != 3 {
		t.Fatalf("expected 3 responders, got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("responder %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	// Candidates start at .2; the 3rd responder is the 6th candidate and
	// sequential sampling must stop exactly there.
	if probed != 6 {
		t.Fatalf("expected exactly 6 candidates probed, got %d", probed)
	}
	if prober.probeCount() != 6 {
		t.Fatalf("expected 6 probe calls, got %d", prober.probeCount())
	}
}

func TestSamplerExhaustsRangeBelowBound(t *testing.T) {
	prober := newFakeProber("10.0.0.4")
	smp := newSampler(prober, 3, 2, 2, nil)

	responders, probed, err := smp.collect(context.Background(), mustBlock(t, "10.0.0.0/29").hosts())
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if len(responders) != 1 || responders[0].String() != "10.0.0.4" {
		t.Fatalf("expected single responder 10.0.0.4, got %v", addrStrings(responders))
	}
	// Fewer responders than the bound means the full candidate window
	// (.2-.6) was exhausted.
	if probed != 5 {
		t.Fatalf("expected all 5 candidates probed, got %d", probed)
	}
}

func TestSamplerConcurrentKeepsAscendingOrder(t *testing.T) {
	prober := newFakeProber("172.16.0.9", "172.16.0.4", "172.16.0.6")
	smp := newSampler(prober, 3, 8, 8, nil)

	responders, probed, err := smp.collect(context.Background(), mustBlock(t, "172.16.0.0/24").hosts())
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	want := []string{"172.16.0.4", "172.16.0.6", "172.16.0.9"}
	got := addrStrings(responders)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("discovery order not ascending: expected %v, got %v", want, got)
		}
	}
	// All three responders sit in the first chunk (.2-.9), so no second
	// chunk may be dispatched.
	if probed != 8 {
		t.Fatalf("expected exactly one chunk of 8 probed, got %d", probed)
	}
}

func TestSamplerNeverExceedsBound(t *testing.T) {
	alive := make([]string, 0, 20)
	for i := 2; i < 22; i++ {
		alive = append(alive, netip.AddrFrom4([4]byte{10, 1, 1, byte(i)}).String())
	}
	prober := newFakeProber(alive...)
	smp := newSampler(prober, 3, 4, 4, nil)

	responders, _, err := smp.collect(context.Background(), mustBlock(t, "10.1.1.0/24").hosts())
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if len(responders) != 3 {
		t.Fatalf("responder set exceeded bound: %v", addrStrings(responders))
	}
}

func TestSamplerEmptyCursor(t *testing.T) {
	prober := newFakeProber()
	smp := newSampler(prober, 3, 2, 2, nil)

	responders, probed, err := smp.collect(context.Background(), mustBlock(t, "10.0.0.0/31").hosts())
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if len(responders) != 0 || probed != 0 {
		t.Fatalf("expected empty sweep, got responders=%v probed=%d", addrStrings(responders), probed)
	}
}

func TestSamplerHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prober := newFakeProber()
	smp := newSampler(prober, 3, 2, 2, nil)

	_, _, err := smp.collect(ctx, mustBlock(t, "10.0.0.0/24").hosts())
	if err == nil {
		t.Fatalf("expected context error from canceled sweep")
	}
}
