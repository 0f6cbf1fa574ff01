// internal/protocol/serial/framing_test.go
package serial

import "testing"

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"set command", "SET:X 1\r\n\r\n> ", ""},
		{"query", "CAL:GAIN?\r\n0.999\r\n> ", "0.999"},
		{"echo only", "LDAC\r\n> ", ""},
		{"multi line", "FAULT?\r\nB0 OK\r\nB1 OVERTEMP\r\n> ", "B0 OK\r\nB1 OVERTEMP"},
		{"echo content ignored", "garbled echo\r\nGM-1\r\n> ", "GM-1"},
		{"inner blank line kept", "X?\r\na\r\n\r\nb\r\n> ", "a\r\n\r\nb"},
		{"empty buffer", "", ""},
		{"bare prompt", "> ", ""},
		{"non ascii replaced", "*IDN?\r\nGM\xff1\r\n> ", "GM�1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseResponse([]byte(tt.raw)); got != tt.want {
				t.Errorf("ParseResponse(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestHasPrompt(t *testing.T) {
	if !hasPrompt([]byte("abc\r\n> ")) {
		t.Error("expected prompt at end of buffer")
	}
	if hasPrompt([]byte("> abc")) {
		t.Error("prompt must be in trailing position")
	}
	if hasPrompt([]byte(">")) {
		t.Error("half a prompt is not a prompt")
	}
}
