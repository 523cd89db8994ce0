package finder

import (
	"sync/atomic"
	"time"
)

// Stage identifies the phase a Progress update belongs to.
type Stage int

const (
	StageHashing Stage = iota
	StageGrouping
)

func (s Stage) String() string {
	switch s {
	case StageHashing:
		return "hashing"
	case StageGrouping:
		return "grouping"
	default:
		return "unknown"
	}
}

// Progress is a snapshot of how far a stage has come.
type Progress struct {
	Stage   Stage
	Checked int
	Total   int
}

// ProgressFunc receives progress snapshots. Calls are never concurrent.
type ProgressFunc func(Progress)

const progressInterval = 200 * time.Millisecond

// progressTracker counts finished units from many goroutines and reports
// them on a ticker, followed by one final report when stopped.
type progressTracker struct {
	stage   Stage
	checked atomic.Int64
	total   atomic.Int64
	report  ProgressFunc
	ticker  *time.Ticker
	done    chan struct{}
	exited  chan struct{}
}

func startProgress(stage Stage, total int, report ProgressFunc) *progressTracker {
	p := &progressTracker{stage: stage, report: report}
	p.total.Store(int64(total))
	if report == nil {
		return p
	}
	p.ticker = time.NewTicker(progressInterval)
	p.done = make(chan struct{})
	p.exited = make(chan struct{})
	go p.run()
	return p
}

func (p *progressTracker) run() {
	defer close(p.exited)
	for {
		select {
		case <-p.done:
			return
		case <-p.ticker.C:
			p.report(p.snapshot())
		}
	}
}

func (p *progressTracker) snapshot() Progress {
	return Progress{Stage: p.stage, Checked: int(p.checked.Load()), Total: int(p.total.Load())}
}

func (p *progressTracker) add(n int) {
	p.checked.Add(int64(n))
}

// observe records an absolute count that may arrive out of order.
func (p *progressTracker) observe(done, total int) {
	p.total.Store(int64(total))
	for {
		cur := p.checked.Load()
		if int64(done) <= cur || p.checked.CompareAndSwap(cur, int64(done)) {
			return
		}
	}
}

func (p *progressTracker) stop() {
	if p.report == nil {
		return
	}
	p.ticker.Stop()
	close(p.done)
	<-p.exited
	p.report(p.snapshot())
}
