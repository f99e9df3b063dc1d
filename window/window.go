// Package window derives drawable state from a buffer snapshot: normalized
// x series, axis ranges, and a not-enough-data signal. It is a pure function
// of the snapshot plus a policy; the render sink just plots what it gets.
package window

import (
	"time"

	"github.com/cardialab/ekgraph/schema"
)

type XPolicy int

const (
	// XRightAligned pins the newest sample to the right edge: x_i =
	// t_i - t_last + W, range fixed at [0, W]. Used by the websocket
	// variants.
	XRightAligned XPolicy = iota

	// XScrolling keeps absolute stream time and scrolls the range:
	// [max(0, t_last-W), t_last + margin]. Used by the dual serial
	// variant.
	XScrolling
)

type YPolicy int

const (
	// YAuto fits the visible data with a margin above and below.
	YAuto YPolicy = iota

	// YFixed always shows the full ADC range.
	YFixed
)

type Options struct {
	Window  time.Duration
	XPolicy XPolicy
	YPolicy YPolicy

	// YMarginAbs pads YAuto bounds by an absolute amount when positive.
	YMarginAbs float64
	// YMarginFrac pads YAuto bounds by a fraction of the data span when
	// YMarginAbs is zero. A flat trace falls back to FlatTraceMargin.
	YMarginFrac float64

	// XScrollMargin is the lead space ahead of the newest point under
	// XScrolling, in seconds.
	XScrollMargin float64
}

// FlatTraceMargin pads the y range when every visible sample has the same
// value, so the axis never degenerates.
const FlatTraceMargin = 200.0

// View is one drawable window. X values are seconds, relative or absolute
// depending on the policy.
type View struct {
	XRange [2]float64
	YRange [2]float64
	X      []float64
	Y      []float64
}

// Compute derives the current window from a snapshot taken at origin-relative
// stream time. It returns ok=false when fewer than 2 points exist; the caller
// must skip the redraw rather than plot a degenerate range.
func Compute(snap []schema.Sample, origin time.Time, opts Options) (View, bool) {
	if len(snap) < 2 {
		return View{}, false
	}

	w := opts.Window.Seconds()
	tLast := snap[len(snap)-1].Timestamp.Sub(origin).Seconds()

	view := View{
		X: make([]float64, len(snap)),
		Y: make([]float64, len(snap)),
	}

	for i, s := range snap {
		t := s.Timestamp.Sub(origin).Seconds()
		switch opts.XPolicy {
		case XRightAligned:
			view.X[i] = t - tLast + w
		case XScrolling:
			view.X[i] = t
		}
		view.Y[i] = float64(s.Value)
	}

	switch opts.XPolicy {
	case XRightAligned:
		view.XRange = [2]float64{0, w}
	case XScrolling:
		lo := tLast - w
		if lo < 0 {
			lo = 0
		}
		view.XRange = [2]float64{lo, tLast + opts.XScrollMargin}
	}

	view.YRange = yRange(view.Y, opts)
	return view, true
}

func yRange(values []float64, opts Options) [2]float64 {
	if opts.YPolicy == YFixed {
		return [2]float64{schema.ValueMin, schema.ValueMax}
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	margin := opts.YMarginAbs
	if margin == 0 {
		margin = (hi - lo) * opts.YMarginFrac
		if margin == 0 {
			margin = FlatTraceMargin
		}
	}
	return [2]float64{lo - margin, hi + margin}
}
