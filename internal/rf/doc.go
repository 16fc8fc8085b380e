// Package rf implements 433 MHz OOK remote-control codes.
//
// It carries the rc-switch protocol table, the type A (DIP switch) code
// word encoder, waveform generation for transmitters that are bit-banged,
// and the edge-timing decoder for receivers. Hardware access lives in the
// gpio, serial and stub sub-packages, all of which satisfy Transceiver.
//
// Example:
//
//	code, bits, err := rf.TypeAEncoder{}.Encode("11111", "11111", true)
//	// code == 1, bits == 24
package rf
