package rf

import (
	"errors"
	"testing"
)

func TestTypeAEncoder_Encode(t *testing.T) {
	tests := []struct {
		group, device string
		on            bool
		wantWord      string
		wantCode      uint64
	}{
		{"11111", "11111", true, "00000000000F", 1},
		{"11111", "11111", false, "0000000000F0", 4},
		{"00000", "00000", true, "FFFFFFFFFF0F", 5592401},
		{"10000", "10000", true, "0FFFF0FFFF0F", 1394001},
		{"10000", "01000", false, "0FFFFF0FFFF0", 1397076},
	}

	for _, tt := range tests {
		t.Run(tt.group+"/"+tt.device, func(t *testing.T) {
			word, err := typeACodeWord(tt.group, tt.device, tt.on)
			if err != nil {
				t.Fatalf("typeACodeWord() error = %v", err)
			}
			if word != tt.wantWord {
				t.Errorf("typeACodeWord() = %q, want %q", word, tt.wantWord)
			}

			code, bits, err := TypeAEncoder{}.Encode(tt.group, tt.device, tt.on)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if code != tt.wantCode || bits != 24 {
				t.Errorf("Encode() = (%d, %d), want (%d, 24)", code, bits, tt.wantCode)
			}
		})
	}
}

func TestTypeAEncoder_InvalidAddress(t *testing.T) {
	tests := []struct {
		name, group, device string
	}{
		{"short group", "1111", "11111"},
		{"long device", "11111", "111111"},
		{"letter", "1a111", "11111"},
		{"tri-state symbol", "11111", "1F111"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := TypeAEncoder{}.Encode(tt.group, tt.device, true)
			if !errors.Is(err, ErrInvalidCodeWord) {
				t.Errorf("Encode() error = %v, want ErrInvalidCodeWord", err)
			}
		})
	}
}

func TestTriStateToCode(t *testing.T) {
	code, bits := triStateToCode("01F")
	if code != 0b000111 || bits != 6 {
		t.Errorf("triStateToCode(\"01F\") = (%b, %d), want (111, 6)", code, bits)
	}
}

func TestLookupProtocol(t *testing.T) {
	p, err := LookupProtocol(1)
	if err != nil {
		t.Fatalf("LookupProtocol(1) error = %v", err)
	}
	if p.PulseLength.Microseconds() != 350 || p.Sync != (HighLow{1, 31}) || p.Inverted {
		t.Errorf("protocol 1 = %+v", p)
	}

	p, err = LookupProtocol(ProtocolCount)
	if err != nil || !p.Inverted {
		t.Errorf("LookupProtocol(%d) = %+v, %v", ProtocolCount, p, err)
	}

	for _, id := range []int{0, -1, ProtocolCount + 1} {
		if _, err := LookupProtocol(id); !errors.Is(err, ErrUnknownProtocol) {
			t.Errorf("LookupProtocol(%d) error = %v, want ErrUnknownProtocol", id, err)
		}
	}
}
