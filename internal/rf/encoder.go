package rf

import "fmt"

// addressLength is the number of DIP switches in a type A group or device address.
const addressLength = 5

// TypeAEncoder builds codes for type A sockets: 10-pole DIP switch
// remotes addressed by a five-position group and a five-position device.
type TypeAEncoder struct{}

// Encode returns the 24-bit code that switches the addressed socket.
//
// Parameters:
//   - group: five characters, '1' for a switch in the on position
//   - device: five characters, same convention
//   - on: desired state
//
// Returns:
//   - code, bitLength: the raw code for Transmit
//   - error: ErrInvalidCodeWord for a malformed address
func (TypeAEncoder) Encode(group, device string, on bool) (uint64, uint, error) {
	word, err := typeACodeWord(group, device, on)
	if err != nil {
		return 0, 0, err
	}
	code, bitLength := triStateToCode(word)
	return code, bitLength, nil
}

// typeACodeWord returns the 12-symbol tri-state word. A closed switch
// becomes '0' and an open one 'F', followed by the state symbols.
func typeACodeWord(group, device string, on bool) (string, error) {
	if err := checkAddress("group", group); err != nil {
		return "", err
	}
	if err := checkAddress("device", device); err != nil {
		return "", err
	}

	word := make([]byte, 0, 2*addressLength+2)
	for _, addr := range []string{group, device} {
		for i := 0; i < addressLength; i++ {
			if addr[i] == '0' {
				word = append(word, 'F')
			} else {
				word = append(word, '0')
			}
		}
	}
	if on {
		word = append(word, '0', 'F')
	} else {
		word = append(word, 'F', '0')
	}
	return string(word), nil
}

func checkAddress(name, addr string) error {
	if len(addr) != addressLength {
		return fmt.Errorf("%w: %s %q must be %d characters", ErrInvalidCodeWord, name, addr, addressLength)
	}
	for i := 0; i < len(addr); i++ {
		if addr[i] != '0' && addr[i] != '1' {
			return fmt.Errorf("%w: %s %q must contain only 0 and 1", ErrInvalidCodeWord, name, addr)
		}
	}
	return nil
}

// triStateToCode packs a tri-state word two bits per symbol:
// '0' = 00, 'F' = 01, '1' = 11.
func triStateToCode(word string) (uint64, uint) {
	var code uint64
	for i := 0; i < len(word); i++ {
		code <<= 2
		switch word[i] {
		case 'F':
			code |= 0b01
		case '1':
			code |= 0b11
		}
	}
	return code, uint(2 * len(word))
}
