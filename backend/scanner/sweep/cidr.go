package sweepscan

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strings"

	"go4.org/netipx"
)

// InvalidRangeError reports a range specification that could not be parsed
// as an IPv4 address/prefix pair. Callers recover from it per range and
// continue with the remaining specifications.
type InvalidRangeError struct {
	Spec string
	Err  error
}

func (e *InvalidRangeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid range %q: %v", e.Spec, e.Err)
	}
	return fmt.Sprintf("invalid range %q", e.Spec)
}

func (e *InvalidRangeError) Unwrap() error { return e.Err }

// rangeBlock is the parsed, immutable view of one range specification.
// Host bits in the spec are tolerated and masked away, so 192.168.1.7/24
// denotes the same block as 192.168.1.0/24.
type rangeBlock struct {
	spec   string
	prefix netip.Prefix
	// first and last bound the candidate window: usable hosts minus the
	// unconditionally skipped first usable address.
	first, last uint32
	// set is non-nil only when exclude prefixes trim the candidate space.
	set *netipx.IPSet
}

// parseRange validates a CIDR specification and applies exclude prefixes.
// A bare address is treated as a /32 block.
func parseRange(spec string, excludes []netip.Prefix) (*rangeBlock, error) {
	trimmed := strings.TrimSpace(spec)
	prefix, err := netip.ParsePrefix(trimmed)
	if err != nil {
		addr, aerr := netip.ParseAddr(trimmed)
		if aerr != nil {
			return nil, &InvalidRangeError{Spec: spec, Err: err}
		}
		prefix = netip.PrefixFrom(addr, addr.BitLen())
	}
	if !prefix.Addr().Is4() {
		return nil, &InvalidRangeError{Spec: spec, Err: fmt.Errorf("only IPv4 ranges are supported")}
	}
	prefix = prefix.Masked()

	block := &rangeBlock{spec: trimmed, prefix: prefix}

	network := addrToUint32(prefix.Addr())
	broadcast := network | hostMask(prefix.Bits())
	if prefix.Bits() >= 31 {
		// No usable window under standard subnetting rules.
		block.first, block.last = 1, 0
		return block, nil
	}
	// Usable hosts run network+1..broadcast-1; the first usable address is
	// skipped unconditionally, a deliberate policy rather than an
	// optimization.
	block.first = network + 2
	block.last = broadcast - 1
	if block.first > block.last {
		block.first, block.last = 1, 0
		return block, nil
	}

	if len(excludes) > 0 {
		builder := netipx.IPSetBuilder{}
		builder.AddPrefix(prefix)
		for _, ex := range excludes {
			builder.RemovePrefix(ex)
		}
		set, err := builder.IPSet()
		if err != nil {
			return nil, &InvalidRangeError{Spec: spec, Err: err}
		}
		block.set = set
	}
	return block, nil
}

// hosts returns a fresh cursor over the block's candidate addresses in
// strictly ascending numeric order. The sequence is lazy, finite, and may be
// restarted by asking for another cursor.
func (b *rangeBlock) hosts() *hostCursor {
	return &hostCursor{next: b.first, last: b.last, set: b.set}
}

// candidateCount reports how many addresses a full sweep would probe. When
// excludes trim the space the count is an upper bound; it is only used to
// size progress reporting.
func (b *rangeBlock) candidateCount() int {
	if b.first > b.last {
		return 0
	}
	return int(b.last - b.first + 1)
}

type hostCursor struct {
	next uint32
	last uint32
	set  *netipx.IPSet
}

// Next yields the following candidate address, or ok == false once the
// window is exhausted.
func (c *hostCursor) Next() (netip.Addr, bool) {
	for c.next != 0 && c.next <= c.last {
		addr := uint32ToAddr(c.next)
		if c.next == c.last {
			c.next = 0
		} else {
			c.next++
		}
		if c.set != nil && !c.set.Contains(addr) {
			continue
		}
		return addr, true
	}
	return netip.Addr{}, false
}

func parseExcludes(specs []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(specs))
	for _, raw := range specs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			addr, aerr := netip.ParseAddr(raw)
			if aerr != nil {
				return nil, &InvalidRangeError{Spec: raw, Err: err}
			}
			prefix = netip.PrefixFrom(addr, addr.BitLen())
		}
		prefixes = append(prefixes, prefix.Masked())
	}
	return prefixes, nil
}

func addrToUint32(addr netip.Addr) uint32 {
	b := addr.As4()
	return binary.BigEndian.Uint32(b[:])
}

func uint32ToAddr(u uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], u)
	return netip.AddrFrom4(b)
}

func hostMask(bits int) uint32 {
	if bits >= 32 {
		return 0
	}
	return ^uint32(0) >> bits
}
