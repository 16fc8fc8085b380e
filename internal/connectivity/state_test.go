package connectivity

import "testing"

func TestStateStrings(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{StatusLinkDown.String(), "link_down"},
		{StatusLinking.String(), "linking"},
		{StatusConnecting.String(), "connecting"},
		{StatusOnline.String(), "online"},
		{Status(-1).String(), "unknown"},
		{Status(99).String(), "unknown"},
		{LinkUp.String(), "up"},
		{LinkState(7).String(), "unknown"},
		{SessionConnecting.String(), "connecting"},
		{SessionState(-3).String(), "unknown"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("String() = %q, want %q", tt.got, tt.want)
		}
	}
}
