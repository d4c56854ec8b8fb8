package sweepscan

import (
	"context"
	"net/netip"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// sampler drives a host cursor through the liveness prober and collects the
// first responders up to a fixed bound.
//
// Probing is concurrent but chunked: the cursor is consumed in fixed-size
// ordered batches, responders of a finished batch are appended in ascending
// address order, and no further batch is dispatched once the bound is met.
// Discovery order is therefore ascending and deterministic, at the cost of
// probing at most chunkSize-1 addresses past the final responder.
type sampler struct {
	prober    Prober
	limit     int
	workers   int
	chunkSize int
	reporter  *progressReporter
}

func newSampler(prober Prober, limit, workers, chunkSize int, reporter *progressReporter) *sampler {
	if limit <= 0 {
		limit = 3
	}
	if workers <= 0 {
		workers = 1
	}
	if chunkSize <= 0 {
		chunkSize = workers
	}
	return &sampler{
		prober:    prober,
		limit:     limit,
		workers:   workers,
		chunkSize: chunkSize,
		reporter:  reporter,
	}
}

// collect returns up to limit responders in discovery order plus the number
// of candidates probed. It stops dispatching the moment the bound is met or
// the cursor is exhausted, whichever comes first.
func (s *sampler) collect(ctx context.Context, cursor *hostCursor) ([]netip.Addr, int, error) {
	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return nil, 0, err
	}
	defer pool.Release()

	var (
		responders []netip.Addr
		probed     int
		chunk      = make([]netip.Addr, 0, s.chunkSize)
	)

	for {
		if err := ctx.Err(); err != nil {
			return responders, probed, err
		}

		chunk = chunk[:0]
		for len(chunk) < s.chunkSize {
			addr, ok := cursor.Next()
			if !ok {
				break
			}
			chunk = append(chunk, addr)
		}
		if len(chunk) == 0 {
			s.reporter.Sampled(len(responders))
			return responders, probed, nil
		}

		alive := make([]bool, len(chunk))
		var wg sync.WaitGroup
		for i := range chunk {
			i, addr := i, chunk[i]
			wg.Add(1)
			task := func() {
				defer wg.Done()
				alive[i] = s.prober.Probe(ctx, addr)
			}
			if err := pool.Submit(task); err != nil {
				// Pool refused the task (released or overloaded); probe
				// inline so the chunk accounting stays exact.
				task()
			}
		}
		wg.Wait()

		probed += len(chunk)
		s.reporter.Probed(len(chunk))

		for i, ok := range alive {
			if !ok {
				continue
			}
			responders = append(responders, chunk[i])
			s.reporter.Alive(1)
			if len(responders) == s.limit {
				s.reporter.Sampled(len(responders))
				return responders, probed, nil
			}
		}
	}
}
