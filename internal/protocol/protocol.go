// internal/protocol/protocol.go
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Meta-commands are wrapped by MetaMarker on both ends.
const (
	MetaMarker = "__"
	MetaList   = "__list__"
	MetaRescan = "__rescan__"
)

// DefaultPort is the routing server's listen port.
const DefaultPort = 5556

// Envelope is one client request: a command and an optional target board.
type Envelope struct {
	Cmd  string  `json:"cmd"`
	Pico *string `json:"pico"`
}

// Reply is the server's answer. Exactly one of Data or Error is set.
type Reply struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// DeviceInfo is one entry of the list meta-command reply.
type DeviceInfo struct {
	Name string `json:"name"`
	Port string `json:"port"`
	IDN  string `json:"idn"`
}

// IsMeta reports whether cmd is a server-local meta-command.
func IsMeta(cmd string) bool {
	return strings.HasPrefix(cmd, MetaMarker) && strings.HasSuffix(cmd, MetaMarker)
}

// Success builds a success reply.
func Success(data interface{}) Reply {
	return Reply{OK: true, Data: data}
}

// Failure builds a failure reply.
func Failure(message string) Reply {
	return Reply{OK: false, Error: message}
}

// Marshal encodes a reply. Data is always present on success, even when
// it is the empty string.
func (r Reply) Marshal() []byte {
	var out interface{}
	if r.OK {
		out = struct {
			OK   bool        `json:"ok"`
			Data interface{} `json:"data"`
		}{true, r.Data}
	} else {
		out = struct {
			OK    bool   `json:"ok"`
			Error string `json:"error"`
		}{false, r.Error}
	}

	b, err := json.Marshal(out)
	if err != nil {
		b, _ = json.Marshal(Failure(fmt.Sprintf("Failed to encode reply: %v", err)))
	}
	return b
}

// ParseError distinguishes undecodable payloads from well-formed JSON of
// the wrong shape.
type ParseError struct {
	Syntax bool
	Detail string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Syntax {
		return "Invalid JSON"
	}
	return fmt.Sprintf("Invalid request: %s", e.Detail)
}

// ParseEnvelope decodes a request payload. A missing cmd is the empty
// string; a missing or null pico means no explicit target.
func ParseEnvelope(raw []byte) (Envelope, error) {
	if !json.Valid(raw) {
		return Envelope{}, &ParseError{Syntax: true}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Envelope{}, &ParseError{Detail: "request must be a JSON object"}
	}

	var env Envelope
	if v, ok := fields["cmd"]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &env.Cmd); err != nil {
			return Envelope{}, &ParseError{Detail: "cmd must be a string"}
		}
	}
	if v, ok := fields["pico"]; ok && !isNull(v) {
		var name string
		if err := json.Unmarshal(v, &name); err != nil {
			return Envelope{}, &ParseError{Detail: "pico must be a string or null"}
		}
		env.Pico = &name
	}

	return env, nil
}

// FormatNames renders names the way clients expect them in error texts:
// ['pico_0', 'pico_1'].
func FormatNames(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
