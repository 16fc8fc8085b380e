package connectivity

import (
	"testing"
	"time"
)

func TestBackoff_DoublesAndCaps(t *testing.T) {
	b := fixedBackoff(time.Second, 4*time.Second)

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Errorf("Next() #%d = %v, want %v", i, got, w)
		}
	}

	b.Reset()
	if b.Current() != time.Second {
		t.Errorf("Current() after Reset = %v, want 1s", b.Current())
	}
}

func TestBackoff_JitterBounds(t *testing.T) {
	tests := []struct {
		name   string
		jitter float64
		min    time.Duration
		max    time.Duration
	}{
		{"lowest", 0, 800 * time.Millisecond, 800 * time.Millisecond},
		{"middle", 0.5, time.Second, time.Second},
		{"highest", 0.999, 1190 * time.Millisecond, 1200 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBackoff(time.Second, time.Minute)
			b.jitter = func() float64 { return tt.jitter }

			got := b.Next()
			if got < tt.min || got > tt.max {
				t.Errorf("Next() = %v, want within [%v, %v]", got, tt.min, tt.max)
			}
		})
	}
}

func TestNewBackoff_Defaults(t *testing.T) {
	b := NewBackoff(0, 0)
	if b.Current() != DefaultBackoffInitial {
		t.Errorf("Current() = %v, want %v", b.Current(), DefaultBackoffInitial)
	}
	b.Next()
	if b.Current() != DefaultBackoffInitial {
		t.Errorf("Current() = %v, want cap at %v", b.Current(), DefaultBackoffInitial)
	}
}
