package sweepscan

import (
	"context"
	"time"
)

// Progress is a rolling snapshot of one scan invocation. Planned is an
// upper bound on liveness probes; early stop at the responder bound keeps
// Probed well below it on dense networks.
type Progress struct {
	Planned   int       `json:"planned"`
	Probed    int       `json:"probed"`
	Alive     int       `json:"alive"`
	Sampled   int       `json:"sampled"`
	Reported  int       `json:"reported"`
	Timestamp time.Time `json:"timestamp"`
}

type progressEvent struct {
	kind  string
	count int
}

type progressReporter struct {
	planned int
	ch      chan progressEvent
	out     chan<- Progress
	ctx     context.Context
	done    chan struct{}
}

func newProgressReporter(ctx context.Context, out chan<- Progress, planned int) *progressReporter {
	reporter := &progressReporter{
		planned: planned,
		ch:      make(chan progressEvent, 128),
		out:     out,
		ctx:     ctx,
		done:    make(chan struct{}),
	}
	go reporter.loop()
	return reporter
}

func (r *progressReporter) loop() {
	defer close(r.done)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	var snapshot Progress
	snapshot.Planned = r.planned
	pending := false

	flush := func() {
		if !pending {
			return
		}
		snapshot.Timestamp = time.Now()
		select {
		case r.out <- snapshot:
		case <-r.ctx.Done():
		}
		pending = false
	}

	for {
		select {
		case <-r.ctx.Done():
			flush()
			return
		case ev, ok := <-r.ch:
			if !ok {
				flush()
				return
			}
			switch ev.kind {
			case "probed":
				snapshot.Probed += ev.count
			case "alive":
				snapshot.Alive += ev.count
			case "sampled":
				snapshot.Sampled += ev.count
			case "reported":
				snapshot.Reported += ev.count
			}
			pending = true
		case <-ticker.C:
			pending = true
			flush()
		}
	}
}

func (r *progressReporter) Probed(n int) {
	r.send(progressEvent{kind: "probed", count: n})
}

func (r *progressReporter) Alive(n int) {
	r.send(progressEvent{kind: "alive", count: n})
}

func (r *progressReporter) Sampled(n int) {
	r.send(progressEvent{kind: "sampled", count: n})
}

func (r *progressReporter) Reported(n int) {
	r.send(progressEvent{kind: "reported", count: n})
}

func (r *progressReporter) send(ev progressEvent) {
	if r == nil {
		return
	}
	select {
	case r.ch <- ev:
	case <-r.ctx.Done():
	}
}

func (r *progressReporter) Close() {
	if r == nil {
		return
	}
	close(r.ch)
	<-r.done
}
