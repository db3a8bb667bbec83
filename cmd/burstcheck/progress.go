package main

import (
	"fmt"
	"io"

	"github.com/farcloser/burstcheck"
)

// progressPrinter draws a single progress line and one line per bad burst.
// The library serializes calls, so it needs no locking.
type progressPrinter struct {
	out     io.Writer
	percent int
	dirty   bool
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{out: out, percent: -1}
}

func (p *progressPrinter) report(progress burstcheck.Progress) {
	if progress.Outcome.Mismatched() {
		p.clear()
		fmt.Fprintf(p.out, "bad burst #%d at sample %d: %d samples over tolerance (max diff %d)\n",
			progress.BurstIndex, progress.SampleOffset,
			progress.Outcome.Comparison.MismatchCount, progress.Outcome.Comparison.MaxAbsDiff)

		p.percent = -1
	}

	percent := int(progress.Percent)
	if percent == p.percent {
		return
	}

	p.percent = percent
	p.dirty = true

	fmt.Fprintf(p.out, "\rchecking: %3d%% (burst %d)", percent, progress.BurstIndex)
}

func (p *progressPrinter) clear() {
	if p.dirty {
		fmt.Fprintln(p.out)

		p.dirty = false
	}
}

func (p *progressPrinter) done() {
	if p == nil {
		return
	}

	p.clear()
}
