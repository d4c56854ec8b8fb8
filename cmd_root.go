package main

import (
	"bufio"
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"netsweep/backend/config"
	"netsweep/backend/logger"
	"netsweep/backend/reporter"
	sweepscan "netsweep/backend/scanner/sweep"
)

type rootOptions struct {
	network string
	file    string
	exclude []string

	maxHosts int
	workers  int

	pingTimeout  time.Duration
	tcpTimeout   time.Duration
	httpsTimeout time.Duration
	lookupPTR    bool

	jsonOut    bool
	noColor    bool
	verbose    bool
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "netsweep",
		Short: "Find live hosts in CIDR ranges and probe HTTPS/RDP/SMB/SSH",
		Long: "netsweep expands one or more IPv4 CIDR ranges, pings candidates until " +
			"a bounded number of live hosts is found per range, and reports which of " +
			"HTTPS, RDP, SMB and SSH appear to be listening on each.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.network, "network", "n", "", "single subnet in CIDR form to scan")
	flags.StringVarP(&opts.file, "file", "f", "", "file containing one subnet per line (CIDR form)")
	flags.StringSliceVar(&opts.exclude, "exclude", nil, "CIDR blocks to exclude from candidate addresses")
	flags.IntVar(&opts.maxHosts, "max-hosts", 0, "live hosts to collect per range (default 3)")
	flags.IntVar(&opts.workers, "workers", 0, "liveness probe workers per range (default auto)")
	flags.DurationVar(&opts.pingTimeout, "ping-timeout", 0, "liveness probe timeout (default 200ms)")
	flags.DurationVar(&opts.tcpTimeout, "tcp-timeout", 0, "TCP service probe timeout (default 2s)")
	flags.DurationVar(&opts.httpsTimeout, "https-timeout", 0, "HTTPS status probe timeout (default 3s)")
	flags.BoolVar(&opts.lookupPTR, "ptr", false, "resolve hostnames for sampled hosts")
	flags.BoolVar(&opts.jsonOut, "json", false, "emit one JSON record per host instead of text")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable ANSI colors")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&opts.configPath, "config", "", "path to an ini config file")

	return cmd
}

func runScan(parent context.Context, opts *rootOptions) error {
	// Usage errors terminate before any network activity.
	if (opts.network == "") == (opts.file == "") {
		return errors.New("specify exactly one of -n/--network or -f/--file")
	}

	specs := []string{opts.network}
	if opts.file != "" {
		loaded, err := readRangeFile(opts.file)
		if err != nil {
			return err
		}
		specs = loaded
	}

	log := logger.New()
	if opts.verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	engine := sweepscan.NewEngine(engineDefaults(cfg), log)
	params := sweepscan.ScanParams{
		Ranges:        specs,
		Exclude:       opts.exclude,
		MaxResponders: opts.maxHosts,
		Workers:       opts.workers,
		PingTimeout:   opts.pingTimeout,
		TCPTimeout:    opts.tcpTimeout,
		HTTPSTimeout:  opts.httpsTimeout,
		LookupPTR:     opts.lookupPTR,
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	results, progress, errs, err := engine.Run(ctx, params)
	if err != nil {
		return err
	}

	rep := reporter.New(opts.jsonOut, !opts.noColor && !opts.jsonOut)

	var fatal error
	for results != nil || progress != nil || errs != nil {
		select {
		case report, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			if err := rep.PrintRange(report); err != nil {
				log.Errorf("render report: %v", err)
			}
		case snapshot, ok := <-progress:
			if !ok {
				progress = nil
				continue
			}
			log.Debugf("progress: probed=%d alive=%d reported=%d planned=%d",
				snapshot.Probed, snapshot.Alive, snapshot.Reported, snapshot.Planned)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			var invalid *sweepscan.InvalidRangeError
			if errors.As(err, &invalid) {
				// Per-range failure: report and keep going.
				rep.PrintError(err)
				continue
			}
			fatal = err
		}
	}

	if fatal != nil {
		return fatal
	}
	rep.Done()
	return nil
}

func engineDefaults(cfg *config.Config) sweepscan.DefaultOptions {
	return sweepscan.DefaultOptions{
		MaxResponders: cfg.Sweep.MaxResponders,
		Workers:       cfg.Sweep.Workers,
		ChunkSize:     cfg.Sweep.ChunkSize,
		PingTimeout:   cfg.Probe.PingTimeout,
		TCPTimeout:    cfg.Probe.TCPTimeout,
		HTTPSTimeout:  cfg.Probe.HTTPSTimeout,
		PTRTimeout:    cfg.Probe.PTRTimeout,
		LookupPTR:     cfg.Probe.LookupPTR,
	}
}

// readRangeFile loads one range specification per non-blank line.
func readRangeFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "read range file %s", path)
	}
	defer file.Close()

	var specs []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if trimmed := strings.TrimSpace(scanner.Text()); trimmed != "" {
			specs = append(specs, trimmed)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, pkgerrors.Wrapf(err, "read range file %s", path)
	}
	if len(specs) == 0 {
		return nil, pkgerrors.Errorf("range file %s contains no specifications", path)
	}
	return specs, nil
}
