package sweepscan

import (
	"time"
)

// HostReport pairs a sampled address with its four service outcomes. A host
// only ever appears in a report after answering the liveness probe, so Ping
// is always true; it is kept explicit for the structured output form.
type HostReport struct {
	Address     string    `json:"address"`
	Hostname    string    `json:"hostname,omitempty"`
	Ping        bool      `json:"ping"`
	HTTPSStatus *int      `json:"https_status,omitempty"`
	RDP         bool      `json:"rdp"`
	SMB         bool      `json:"smb"`
	SSH         bool      `json:"ssh"`
	ProbedAt    time.Time `json:"probedAt"`
}

// RangeReport is the outcome of scanning one range specification.
type RangeReport struct {
	RunID            string        `json:"runId"`
	Spec             string        `json:"spec"`
	Range            string        `json:"range"`
	NoHosts          bool          `json:"noHosts"`
	Hosts            []HostReport  `json:"hosts,omitempty"`
	CandidatesProbed int           `json:"candidatesProbed"`
	Elapsed          time.Duration `json:"-"`
	ElapsedMs        int64         `json:"elapsedMs"`
}
