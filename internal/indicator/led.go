// Package indicator shows connectivity status on a status LED.
package indicator

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	gpiod "github.com/warthog618/go-gpiocdev"

	"github.com/nerrad567/rfbridge/internal/connectivity"
)

// step is one slot of the 8-slot (one second) blink cycle.
const step = 125 * time.Millisecond

// Noop discards status changes. Used when no LED is wired.
type Noop struct{}

// Show does nothing.
func (Noop) Show(connectivity.Status) {}

type line interface {
	SetValue(value int) error
	Close() error
}

// LED blinks a GPIO line according to the latest status:
//
//	link down   one short flash per second
//	linking     slow blink
//	connecting  fast blink
//	online      steady on
type LED struct {
	line   line
	status atomic.Int32

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// Open requests the line as an output and starts the blink loop.
func Open(chipName string, pin int) (*LED, error) {
	chip, err := gpiod.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", chipName, err)
	}
	defer chip.Close() //nolint:errcheck // requested lines outlive the chip handle

	l, err := chip.RequestLine(pin, gpiod.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("requesting indicator line %d: %w", pin, err)
	}
	return start(l), nil
}

func start(l line) *LED {
	led := &LED{line: l, stop: make(chan struct{})}
	led.wg.Add(1)
	go led.run()
	return led
}

// Show switches the blink pattern. It never blocks.
func (l *LED) Show(s connectivity.Status) {
	l.status.Store(int32(s))
}

// Close stops blinking, turns the LED off and releases the line.
func (l *LED) Close() error {
	var err error
	l.once.Do(func() {
		close(l.stop)
		l.wg.Wait()
		l.line.SetValue(0) //nolint:errcheck // best effort
		err = l.line.Close()
	})
	return err
}

func (l *LED) run() {
	defer l.wg.Done()

	ticker := time.NewTicker(step)
	defer ticker.Stop()

	last := -1
	for slot := 0; ; slot = (slot + 1) % 8 {
		v := level(connectivity.Status(l.status.Load()), slot)
		if v != last {
			l.line.SetValue(v) //nolint:errcheck // a stuck LED is cosmetic
			last = v
		}

		select {
		case <-l.stop:
			return
		case <-ticker.C:
		}
	}
}

// level returns the line value for a status at a slot of the cycle.
func level(s connectivity.Status, slot int) int {
	on := false
	switch s {
	case connectivity.StatusLinkDown:
		on = slot == 0
	case connectivity.StatusLinking:
		on = slot < 4
	case connectivity.StatusConnecting:
		on = slot%2 == 0
	case connectivity.StatusOnline:
		on = true
	}
	if on {
		return 1
	}
	return 0
}
