// Package reporter renders range and host reports for the console, either
// as human-readable lines mirroring classic recon tool output or as one
// JSON record per host for programmatic consumers.
package reporter

import (
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"

	sweepscan "netsweep/backend/scanner/sweep"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

type Reporter struct {
	Out      io.Writer
	JSON     bool
	Colorize bool
}

func New(jsonMode, colorize bool) *Reporter {
	return &Reporter{
		Out:      os.Stdout,
		JSON:     jsonMode,
		Colorize: colorize,
	}
}

// rangeRecord is the per-range summary emitted in JSON mode.
type rangeRecord struct {
	Type             string `json:"type"`
	RunID            string `json:"runId"`
	Range            string `json:"range"`
	NoHosts          bool   `json:"noHosts"`
	Hosts            int    `json:"hosts"`
	CandidatesProbed int    `json:"candidatesProbed"`
	ElapsedMs        int64  `json:"elapsedMs"`
}

// hostRecord is the structured per-host form: one record per sampled host.
type hostRecord struct {
	Type        string `json:"type"`
	Address     string `json:"address"`
	Hostname    string `json:"hostname,omitempty"`
	Ping        bool   `json:"ping"`
	HTTPSStatus *int   `json:"https_status,omitempty"`
	RDP         bool   `json:"rdp"`
	SMB         bool   `json:"smb"`
	SSH         bool   `json:"ssh"`
}

// PrintRange renders one completed range scan.
func (r *Reporter) PrintRange(report sweepscan.RangeReport) error {
	if r.JSON {
		return r.printRangeJSON(report)
	}
	r.printRangeText(report)
	return nil
}

func (r *Reporter) printRangeJSON(report sweepscan.RangeReport) error {
	enc := json.NewEncoder(r.Out)
	for _, host := range report.Hosts {
		record := hostRecord{
			Type:        "host",
			Address:     host.Address,
			Hostname:    host.Hostname,
			Ping:        host.Ping,
			HTTPSStatus: host.HTTPSStatus,
			RDP:         host.RDP,
			SMB:         host.SMB,
			SSH:         host.SSH,
		}
		if err := enc.Encode(record); err != nil {
			return err
		}
	}
	summary := rangeRecord{
		Type:             "range",
		RunID:            report.RunID,
		Range:            report.Range,
		NoHosts:          report.NoHosts,
		Hosts:            len(report.Hosts),
		CandidatesProbed: report.CandidatesProbed,
		ElapsedMs:        report.ElapsedMs,
	}
	return enc.Encode(summary)
}

func (r *Reporter) printRangeText(report sweepscan.RangeReport) {
	fmt.Fprintf(r.Out, "\nScanning %s ...\n", r.color(colorCyan, report.Range))

	if report.NoHosts {
		fmt.Fprintln(r.Out, "No hosts responded to ping.")
		return
	}

	for _, host := range report.Hosts {
		fmt.Fprintf(r.Out, "%s Ping responded: %s\n", r.color(colorGreen, "[+]"), host.Address)
	}

	fmt.Fprintf(r.Out, "\n=== Service checks on first %d responding hosts ===\n", len(report.Hosts))
	for _, host := range report.Hosts {
		r.printHost(host)
	}
}

func (r *Reporter) printHost(host sweepscan.HostReport) {
	fmt.Fprintf(r.Out, "\nHost %s:\n", host.Address)
	if host.Hostname != "" {
		fmt.Fprintf(r.Out, "  Hostname: %s\n", host.Hostname)
	}
	fmt.Fprintln(r.Out, "  Ping: responding")

	if host.HTTPSStatus != nil {
		fmt.Fprintf(r.Out, "  HTTPS (443): responding (HTTP %d)\n", *host.HTTPSStatus)
	} else {
		fmt.Fprintln(r.Out, "  HTTPS (443): no response")
	}
	fmt.Fprintln(r.Out, r.serviceLine("RDP (3389)", host.RDP))
	fmt.Fprintln(r.Out, r.serviceLine("FS / SMB (445)", host.SMB))
	fmt.Fprintln(r.Out, r.serviceLine("SSH (22)", host.SSH))
}

func (r *Reporter) serviceLine(label string, open bool) string {
	if open {
		return fmt.Sprintf("  %s: %s", label, r.color(colorGreen, "responding"))
	}
	return fmt.Sprintf("  %s: no response", label)
}

// PrintError reports a per-range failure without stopping the run.
func (r *Reporter) PrintError(err error) {
	if r.JSON {
		enc := json.NewEncoder(r.Out)
		_ = enc.Encode(map[string]string{"type": "error", "error": err.Error()})
		return
	}
	fmt.Fprintf(r.Out, "%s %v\n", r.color(colorYellow, "Error:"), err)
}

// Done prints the closing line of a run.
func (r *Reporter) Done() {
	if r.JSON {
		return
	}
	fmt.Fprintln(r.Out, "\nScan complete.")
}

func (r *Reporter) color(code, text string) string {
	if !r.Colorize {
		return text
	}
	return code + text + colorReset
}
