// internal/protocol/serial/framing.go
package serial

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// Prompt is the firmware's ready sentinel.
var Prompt = []byte("> ")

// LineTerminator separates lines in the firmware's output.
const LineTerminator = "\r\n"

// hasPrompt reports whether buf ends with the prompt sentinel.
func hasPrompt(buf []byte) bool {
	return bytes.HasSuffix(buf, Prompt)
}

// decodeASCII decodes buf as ASCII, replacing every non-ASCII byte with
// U+FFFD. It never fails.
func decodeASCII(buf []byte) string {
	var sb strings.Builder
	sb.Grow(len(buf))
	for _, b := range buf {
		if b < utf8.RuneSelf {
			sb.WriteByte(b)
		} else {
			sb.WriteRune(utf8.RuneError)
		}
	}
	return sb.String()
}

// ParseResponse turns a raw transaction buffer ("ECHO\r\nBODY\r\n> ")
// into the response body. The first line is the firmware's echo and is
// always dropped.
func ParseResponse(buf []byte) string {
	text := strings.TrimSuffix(decodeASCII(buf), string(Prompt))

	lines := strings.Split(text, LineTerminator)
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	if len(lines) <= 1 {
		return ""
	}
	return strings.Join(lines[1:], LineTerminator)
}
