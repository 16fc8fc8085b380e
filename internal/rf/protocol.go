package rf

import (
	"fmt"
	"time"
)

// HighLow is a pulse pair expressed in multiples of the protocol's base
// pulse length.
type HighLow struct {
	High int
	Low  int
}

// Protocol is a timing profile for OOK remote-control codes.
type Protocol struct {
	// PulseLength is the base pulse length.
	PulseLength time.Duration
	Sync        HighLow
	Zero        HighLow
	One         HighLow

	// Inverted protocols send each pair low first.
	Inverted bool
}

// protocols is the rc-switch timing table, indexed by id-1.
var protocols = []Protocol{
	{350 * time.Microsecond, HighLow{1, 31}, HighLow{1, 3}, HighLow{3, 1}, false},    // 1
	{650 * time.Microsecond, HighLow{1, 10}, HighLow{1, 2}, HighLow{2, 1}, false},    // 2
	{100 * time.Microsecond, HighLow{30, 71}, HighLow{4, 11}, HighLow{9, 6}, false},  // 3
	{380 * time.Microsecond, HighLow{1, 6}, HighLow{1, 3}, HighLow{3, 1}, false},     // 4
	{500 * time.Microsecond, HighLow{6, 14}, HighLow{1, 2}, HighLow{2, 1}, false},    // 5
	{450 * time.Microsecond, HighLow{23, 1}, HighLow{1, 2}, HighLow{2, 1}, true},     // 6 (HT6P20B)
	{150 * time.Microsecond, HighLow{2, 62}, HighLow{1, 6}, HighLow{6, 1}, false},    // 7 (HS2303-PT)
	{200 * time.Microsecond, HighLow{3, 130}, HighLow{7, 16}, HighLow{3, 16}, false}, // 8 (Conrad RS-200 RX)
	{200 * time.Microsecond, HighLow{130, 7}, HighLow{16, 7}, HighLow{16, 3}, true},  // 9 (Conrad RS-200 TX)
	{365 * time.Microsecond, HighLow{18, 1}, HighLow{3, 1}, HighLow{1, 3}, true},     // 10 (1ByOne doorbell)
	{270 * time.Microsecond, HighLow{36, 1}, HighLow{1, 2}, HighLow{2, 1}, true},     // 11 (HT12E)
	{320 * time.Microsecond, HighLow{36, 1}, HighLow{1, 2}, HighLow{2, 1}, true},     // 12 (SM5212)
}

// ProtocolCount is the number of known protocols. Ids run 1..ProtocolCount.
var ProtocolCount = len(protocols)

// LookupProtocol returns the timing profile for a 1-based protocol id.
func LookupProtocol(id int) (Protocol, error) {
	if id < 1 || id > len(protocols) {
		return Protocol{}, fmt.Errorf("%w: %d", ErrUnknownProtocol, id)
	}
	return protocols[id-1], nil
}
