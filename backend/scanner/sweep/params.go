package sweepscan

import (
	"strings"
	"time"
)

// DefaultOptions captures the baseline tuning values applied to scan
// requests when the caller does not specify an explicit value.
type DefaultOptions struct {
	MaxResponders int
	Workers       int
	ChunkSize     int
	PingTimeout   time.Duration
	TCPTimeout    time.Duration
	HTTPSTimeout  time.Duration
	PTRTimeout    time.Duration
	LookupPTR     bool
}

// ScanParams models the user supplied parameters for one scan invocation.
type ScanParams struct {
	Ranges     []string `json:"ranges"`
	RangesText string   `json:"rangesText"`
	Exclude    []string `json:"exclude"`

	MaxResponders int `json:"maxResponders"`
	Workers       int `json:"workers"`
	ChunkSize     int `json:"chunkSize"`

	PingTimeout  time.Duration `json:"pingTimeout"`
	TCPTimeout   time.Duration `json:"tcpTimeout"`
	HTTPSTimeout time.Duration `json:"httpsTimeout"`
	PTRTimeout   time.Duration `json:"ptrTimeout"`
	LookupPTR    bool          `json:"lookupPtr"`
}

// WithDefaults returns a copy of the parameters where unset fields are
// populated from the provided defaults.
func (p ScanParams) WithDefaults(d DefaultOptions) ScanParams {
	cp := p
	if cp.MaxResponders <= 0 {
		cp.MaxResponders = d.MaxResponders
	}
	if cp.Workers <= 0 {
		cp.Workers = d.Workers
	}
	if cp.ChunkSize <= 0 {
		cp.ChunkSize = d.ChunkSize
	}
	if cp.PingTimeout <= 0 {
		cp.PingTimeout = d.PingTimeout
	}
	if cp.TCPTimeout <= 0 {
		cp.TCPTimeout = d.TCPTimeout
	}
	if cp.HTTPSTimeout <= 0 {
		cp.HTTPSTimeout = d.HTTPSTimeout
	}
	if cp.PTRTimeout <= 0 {
		cp.PTRTimeout = d.PTRTimeout
	}
	cp.LookupPTR = cp.LookupPTR || d.LookupPTR
	return cp
}

// NormalizedRanges flattens the range input variants into a unique, ordered
// slice of non-empty specifications.
func (p ScanParams) NormalizedRanges() []string {
	dedup := make(map[string]struct{})
	ordered := make([]string, 0)

	appendRange := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return
		}
		if _, exists := dedup[raw]; exists {
			return
		}
		dedup[raw] = struct{}{}
		ordered = append(ordered, raw)
	}

	for _, r := range p.Ranges {
		appendRange(r)
	}
	for _, r := range splitRangeText(p.RangesText) {
		appendRange(r)
	}
	return ordered
}

func splitRangeText(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	separators := func(r rune) bool {
		switch r {
		case '\n', '\r', '\t', ',', ';', ' ':
			return true
		default:
			return false
		}
	}
	segments := strings.FieldsFunc(raw, separators)
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		out = append(out, seg)
	}
	return out
}

func normalizeDefaults(d DefaultOptions) DefaultOptions {
	out := d
	if out.MaxResponders <= 0 {
		out.MaxResponders = 3
	}
	if out.Workers <= 0 {
		out.Workers = defaultWorkerCount()
	}
	if out.ChunkSize <= 0 {
		out.ChunkSize = out.Workers
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 200 * time.Millisecond
	}
	if out.TCPTimeout <= 0 {
		out.TCPTimeout = 2 * time.Second
	}
	if out.HTTPSTimeout <= 0 {
		out.HTTPSTimeout = 3 * time.Second
	}
	if out.PTRTimeout <= 0 {
		out.PTRTimeout = time.Second
	}
	return out
}
