package sweepscan

import (
	"context"
	"errors"
	"net/netip"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Engine orchestrates range scans: expand a range, sample its responders,
// run the service probe suite over each sampled host.
type Engine struct {
	mu       sync.RWMutex
	defaults DefaultOptions
	log      *logrus.Logger

	// prober and suite are overridable seams; when nil they are built per
	// scan from the effective parameters.
	prober Prober
	suite  ServiceProber
}

// NewEngine creates an Engine using the provided defaults, falling back to
// sensible values when omitted.
func NewEngine(defaults DefaultOptions, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{defaults: normalizeDefaults(defaults), log: log}
}

// UpdateDefaults atomically replaces the engine default options.
func (e *Engine) UpdateDefaults(next DefaultOptions) {
	e.mu.Lock()
	e.defaults = normalizeDefaults(next)
	e.mu.Unlock()
}

// Defaults returns a snapshot of the current default options.
func (e *Engine) Defaults() DefaultOptions {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.defaults
}

// ScanRange scans exactly one range specification. The returned error is
// non-nil only when the specification itself is unusable (invalid CIDR or
// exclude); probe failures are data inside the report. An empty responder
// set is reported through RangeReport.NoHosts rather than an error.
func (e *Engine) ScanRange(ctx context.Context, spec string, params ScanParams) (RangeReport, error) {
	params = params.WithDefaults(e.Defaults())
	return e.scanRange(ctx, uuid.New().String(), spec, params, nil)
}

// Run scans every range specification in params, streaming one RangeReport
// per range. Invalid specifications are delivered on the error channel and
// scanning continues with the remaining ranges.
func (e *Engine) Run(ctx context.Context, params ScanParams) (<-chan RangeReport, <-chan Progress, <-chan error, error) {
	params = params.WithDefaults(e.Defaults())

	specs := params.NormalizedRanges()
	if len(specs) == 0 {
		return nil, nil, nil, errors.New("no ranges specified")
	}

	planned, _ := e.EstimateWorkload(params)
	runID := uuid.New().String()

	results := make(chan RangeReport, 8)
	progress := make(chan Progress, 32)
	errs := make(chan error, len(specs)+1)

	go func() {
		defer close(results)
		defer close(progress)
		defer close(errs)

		reporter := newProgressReporter(ctx, progress, planned)
		defer reporter.Close()

		for _, spec := range specs {
			if ctx.Err() != nil {
				errs <- ctx.Err()
				return
			}
			report, err := e.scanRange(ctx, runID, spec, params, reporter)
			if err != nil {
				var invalid *InvalidRangeError
				if errors.As(err, &invalid) {
					errs <- err
					continue
				}
				errs <- err
				return
			}
			select {
			case results <- report:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return results, progress, errs, nil
}

// EstimateWorkload returns the number of liveness probes a full sweep of the
// valid ranges would need. Invalid specifications are skipped here; they
// surface when their range is actually scanned.
func (e *Engine) EstimateWorkload(params ScanParams) (int, error) {
	params = params.WithDefaults(e.Defaults())

	specs := params.NormalizedRanges()
	if len(specs) == 0 {
		return 0, errors.New("no ranges specified")
	}
	excludes, err := parseExcludes(params.Exclude)
	if err != nil {
		return 0, err
	}

	var total int
	for _, spec := range specs {
		block, err := parseRange(spec, excludes)
		if err != nil {
			continue
		}
		total += block.candidateCount()
	}
	return total, nil
}

func (e *Engine) scanRange(ctx context.Context, runID, spec string, params ScanParams, reporter *progressReporter) (RangeReport, error) {
	excludes, err := parseExcludes(params.Exclude)
	if err != nil {
		return RangeReport{}, err
	}
	block, err := parseRange(spec, excludes)
	if err != nil {
		return RangeReport{}, err
	}

	e.log.Debugf("scanning %s (%d candidates)", block.prefix, block.candidateCount())
	started := time.Now()

	prober := e.prober
	if prober == nil {
		prober = newPinger(params.PingTimeout, e.log)
	}
	smp := newSampler(prober, params.MaxResponders, params.Workers, params.ChunkSize, reporter)

	responders, probed, err := smp.collect(ctx, block.hosts())
	if err != nil {
		return RangeReport{}, err
	}

	report := RangeReport{
		RunID:            runID,
		Spec:             block.spec,
		Range:            block.prefix.String(),
		CandidatesProbed: probed,
	}

	if len(responders) == 0 {
		report.NoHosts = true
		report.Elapsed = time.Since(started)
		report.ElapsedMs = report.Elapsed.Milliseconds()
		return report, nil
	}

	report.Hosts = e.probeResponders(ctx, responders, params, reporter)
	report.Elapsed = time.Since(started)
	report.ElapsedMs = report.Elapsed.Milliseconds()
	return report, nil
}

func (e *Engine) probeResponders(ctx context.Context, responders []netip.Addr, params ScanParams, reporter *progressReporter) []HostReport {
	suite := e.suite
	if suite == nil {
		suite = newProbeSuite(params)
	}

	hosts := make([]HostReport, 0, len(responders))
	for _, addr := range responders {
		if ctx.Err() != nil {
			break
		}
		hosts = append(hosts, suite.ProbeHost(ctx, addr))
		reporter.Reported(1)
	}
	return hosts
}

func defaultWorkerCount() int {
	cores := runtime.NumCPU()
	if cores <= 0 {
		cores = 1
	}
	base := cores * 8
	if base < 32 {
		base = 32
	}
	if base > 256 {
		base = 256
	}
	if cap := fdAwareWorkerCap(); cap > 0 && base > cap {
		base = cap
	}
	return base
}
