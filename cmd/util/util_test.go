package util

import (
	"strings"
	"testing"
)

func TestWrapString(t *testing.T) {
	text := "The address of the secstore server. For transports that support load balancing, multiple endpoints can be specified"
	for _, line := range strings.Split(WrapString(text), "\n") {
		if len(line) > Wrap {
			t.Errorf("line %q is longer than %d characters", line, Wrap)
		}
	}
	if got := strings.Join(strings.Fields(WrapString(text)), " "); got != text {
		t.Errorf("wrapping changed the text: %q", got)
	}
	if WrapString("") != "" {
		t.Error("expected empty string")
	}
}

func TestParseEUID(t *testing.T) {
	tests := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{"1000", 1000, false},
		{"0x3E8", 1000, false},
		{" 0 ", 0, false},
		{"4294967295", 0xFFFFFFFF, false},
		{"4294967296", 0, true},
		{"-1", 0, true},
		{"root", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseEUID(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseEUID(%q) = %d, %v", tt.in, got, err)
		}
	}
}
