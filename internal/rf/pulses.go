package rf

import "time"

// Pulse is one constant level of the transmitter data line.
type Pulse struct {
	High     bool
	Duration time.Duration
}

// Waveform returns the pulse train for code sent repeat times. Each
// repetition is the bitLength least significant bits, MSB first, followed
// by the sync pair. Adjacent pulses always alternate level.
// It returns nil for a repeat count outside 1..MaxRepeat or a bit length
// outside 1..64.
func Waveform(code uint64, bitLength uint, p Protocol, repeat int) []Pulse {
	if repeat < 1 || repeat > MaxRepeat || bitLength == 0 || bitLength > 64 {
		return nil
	}

	pulses := make([]Pulse, 0, repeat*(2*int(bitLength)+2))
	pair := func(hl HighLow) {
		pulses = append(pulses,
			Pulse{High: !p.Inverted, Duration: time.Duration(hl.High) * p.PulseLength},
			Pulse{High: p.Inverted, Duration: time.Duration(hl.Low) * p.PulseLength},
		)
	}

	for r := 0; r < repeat; r++ {
		for i := int(bitLength) - 1; i >= 0; i-- {
			if code&(1<<uint(i)) != 0 {
				pair(p.One)
			} else {
				pair(p.Zero)
			}
		}
		pair(p.Sync)
	}
	return pulses
}

// Airtime returns the duration of Waveform(code, bitLength, p, repeat)
// without building it. Out-of-range arguments yield zero, as Waveform
// yields nil.
func Airtime(code uint64, bitLength uint, p Protocol, repeat int) time.Duration {
	if repeat < 1 || repeat > MaxRepeat || bitLength == 0 || bitLength > 64 {
		return 0
	}

	var units uint64
	for i := int(bitLength) - 1; i >= 0; i-- {
		if code&(1<<uint(i)) != 0 {
			units += uint64(p.One.High) + uint64(p.One.Low)
		} else {
			units += uint64(p.Zero.High) + uint64(p.Zero.Low)
		}
	}
	units += uint64(p.Sync.High) + uint64(p.Sync.Low)
	return time.Duration(units) * p.PulseLength * time.Duration(repeat)
}
