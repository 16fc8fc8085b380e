package rf

import (
	"testing"
	"time"
)

func TestWaveform_Shape(t *testing.T) {
	p, _ := LookupProtocol(1)

	// 0b10 in two bits: one, zero, sync
	pulses := Waveform(0b10, 2, p, 1)
	want := []Pulse{
		{true, 1050 * time.Microsecond}, {false, 350 * time.Microsecond},
		{true, 350 * time.Microsecond}, {false, 1050 * time.Microsecond},
		{true, 350 * time.Microsecond}, {false, 10850 * time.Microsecond},
	}

	if len(pulses) != len(want) {
		t.Fatalf("len(Waveform()) = %d, want %d", len(pulses), len(want))
	}
	for i := range want {
		if pulses[i] != want[i] {
			t.Errorf("pulse %d = %+v, want %+v", i, pulses[i], want[i])
		}
	}
}

func TestWaveform_InvertedStartsLow(t *testing.T) {
	p, _ := LookupProtocol(6)

	pulses := Waveform(1, 1, p, 2)
	if len(pulses) != 8 {
		t.Fatalf("len(Waveform()) = %d, want 8", len(pulses))
	}
	for i, pulse := range pulses {
		if pulse.High != (i%2 == 1) {
			t.Errorf("pulse %d High = %v", i, pulse.High)
		}
	}
}

func TestWaveform_Empty(t *testing.T) {
	p, _ := LookupProtocol(1)
	if got := Waveform(1, 24, p, 0); got != nil {
		t.Errorf("Waveform(repeat 0) = %v, want nil", got)
	}
	if got := Waveform(1, 0, p, 3); got != nil {
		t.Errorf("Waveform(bitLength 0) = %v, want nil", got)
	}
}

func TestWaveform_RepeatBound(t *testing.T) {
	p, _ := LookupProtocol(1)

	if got := Waveform(1, 64, p, MaxRepeat); len(got) != MaxRepeat*(2*64+2) {
		t.Errorf("len(Waveform(MaxRepeat)) = %d, want %d", len(got), MaxRepeat*(2*64+2))
	}
	for _, repeat := range []int{MaxRepeat + 1, 100_000_000, 1 << 62} {
		if got := Waveform(1, 64, p, repeat); got != nil {
			t.Errorf("Waveform(repeat %d) returned %d pulses, want nil", repeat, len(got))
		}
	}
}

func TestAirtime_MatchesWaveform(t *testing.T) {
	for _, id := range []int{1, 2, 6} {
		p, _ := LookupProtocol(id)
		for _, repeat := range []int{1, 3, 10} {
			var want time.Duration
			for _, pulse := range Waveform(0xABCDEF, 24, p, repeat) {
				want += pulse.Duration
			}
			if got := Airtime(0xABCDEF, 24, p, repeat); got != want {
				t.Errorf("protocol %d repeat %d: Airtime() = %v, want %v", id, repeat, got, want)
			}
		}
	}

	p, _ := LookupProtocol(1)
	if got := Airtime(1, 24, p, 0); got != 0 {
		t.Errorf("Airtime(repeat 0) = %v, want 0", got)
	}
}

func TestAirtime(t *testing.T) {
	p, _ := LookupProtocol(1)
	// Every bit is 4 pulse lengths, sync is 32
	got := Airtime(0xABCDEF, 24, p, 1)
	want := time.Duration(24*4+32) * 350 * time.Microsecond
	if got != want {
		t.Errorf("Airtime() = %v, want %v", got, want)
	}
}
