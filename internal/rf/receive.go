package rf

import "time"

// Receive decoder constants.
const (
	// separationLimit is the shortest gap treated as the sync between repetitions.
	separationLimit = 4300 * time.Microsecond

	// separatorTolerance is how far two consecutive sync gaps may differ.
	separatorTolerance = 200 * time.Microsecond

	// maxChanges bounds the edges recorded for one repetition (32 bits).
	maxChanges = 67

	// minChanges is the fewest edges a repetition needs to count as a code.
	minChanges = 8

	// DefaultTolerance is the accepted pulse deviation in percent.
	DefaultTolerance = 60
)

// Reception is a code heard on air.
type Reception struct {
	Value     uint64
	BitLength uint
	Protocol  int

	// Delay is the measured base pulse length.
	Delay time.Duration
}

// PulseDecoder reconstructs codes from the durations between edges on the
// receiver data line. A code is reported once two consecutive repetitions
// separated by matching sync gaps have been seen.
//
// A PulseDecoder is not safe for concurrent use.
type PulseDecoder struct {
	tolerance   int
	timings     [maxChanges]time.Duration
	changeCount int
	repeatCount int
}

// NewPulseDecoder creates a decoder accepting pulses within tolerance
// percent of the nominal length. A non-positive tolerance uses
// DefaultTolerance.
func NewPulseDecoder(tolerance int) *PulseDecoder {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &PulseDecoder{tolerance: tolerance}
}

// Feed records the duration since the previous edge and reports a
// reception when one completes.
func (d *PulseDecoder) Feed(duration time.Duration) (Reception, bool) {
	var (
		rec Reception
		ok  bool
	)

	if duration > separationLimit {
		if d.repeatCount == 0 || absDiff(duration, d.timings[0]) < separatorTolerance {
			d.repeatCount++
			if d.repeatCount == 2 {
				for id := 1; id <= len(protocols); id++ {
					var matched bool
					if rec, matched, ok = d.decode(id); matched {
						break
					}
				}
				d.repeatCount = 0
			}
		}
		d.changeCount = 0
	}

	if d.changeCount >= maxChanges {
		d.changeCount = 0
		d.repeatCount = 0
	}

	d.timings[d.changeCount] = duration
	d.changeCount++
	return rec, ok
}

// Reset discards any partially received code.
func (d *PulseDecoder) Reset() {
	d.changeCount = 0
	d.repeatCount = 0
}

// decode interprets the recorded timings as protocol id. matched reports
// whether every pulse pair fit the protocol; ok additionally requires
// enough edges for a real code.
func (d *PulseDecoder) decode(id int) (rec Reception, matched, ok bool) {
	p := protocols[id-1]

	syncPulses := p.Sync.High
	if p.Sync.Low > syncPulses {
		syncPulses = p.Sync.Low
	}
	delay := d.timings[0] / time.Duration(syncPulses)
	tol := delay * time.Duration(d.tolerance) / 100

	first := 1
	if p.Inverted {
		first = 2
	}

	var code uint64
	for i := first; i < d.changeCount-1; i += 2 {
		code <<= 1
		switch {
		case fits(d.timings[i], d.timings[i+1], delay, p.Zero, tol):
		case fits(d.timings[i], d.timings[i+1], delay, p.One, tol):
			code |= 1
		default:
			return Reception{}, false, false
		}
	}

	if d.changeCount < minChanges {
		return Reception{}, true, false
	}
	return Reception{
		Value:     code,
		BitLength: uint((d.changeCount - 1) / 2),
		Protocol:  id,
		Delay:     delay,
	}, true, true
}

func fits(high, low, delay time.Duration, hl HighLow, tol time.Duration) bool {
	return absDiff(high, delay*time.Duration(hl.High)) < tol &&
		absDiff(low, delay*time.Duration(hl.Low)) < tol
}

func absDiff(a, b time.Duration) time.Duration {
	if a > b {
		return a - b
	}
	return b - a
}
