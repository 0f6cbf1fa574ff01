// pkg/greymatter/spans.go
package greymatter

import "fmt"

// CurrentSpan selects the output range of a current DAC.
type CurrentSpan int

const (
	SpanHighZ     CurrentSpan = 0x0
	SpanMA3_125   CurrentSpan = 0x1
	SpanMA6_25    CurrentSpan = 0x2
	SpanMA12_5    CurrentSpan = 0x3
	SpanMA25      CurrentSpan = 0x4
	SpanMA50      CurrentSpan = 0x5
	SpanMA100     CurrentSpan = 0x6
	SpanMA200     CurrentSpan = 0x7
	SpanSwitchNeg CurrentSpan = 0x8
	SpanMA300     CurrentSpan = 0xF
)

var currentSpanNames = map[CurrentSpan]string{
	SpanHighZ:     "HI_Z",
	SpanMA3_125:   "3.125mA",
	SpanMA6_25:    "6.25mA",
	SpanMA12_5:    "12.5mA",
	SpanMA25:      "25mA",
	SpanMA50:      "50mA",
	SpanMA100:     "100mA",
	SpanMA200:     "200mA",
	SpanSwitchNeg: "SWITCH_NEG",
	SpanMA300:     "300mA",
}

func (s CurrentSpan) String() string {
	if name, ok := currentSpanNames[s]; ok {
		return name
	}
	return fmt.Sprintf("CurrentSpan(%d)", int(s))
}

// Valid reports whether s is a span code the firmware accepts.
func (s CurrentSpan) Valid() bool {
	_, ok := currentSpanNames[s]
	return ok
}

// VoltageSpan selects the output range of the voltage DAC.
type VoltageSpan int

const (
	SpanV0To5  VoltageSpan = 0
	SpanV0To10 VoltageSpan = 1
	SpanVPM5   VoltageSpan = 2
	SpanVPM10  VoltageSpan = 3
	SpanVPM2_5 VoltageSpan = 4
)

var voltageSpanNames = map[VoltageSpan]string{
	SpanV0To5:  "0-5V",
	SpanV0To10: "0-10V",
	SpanVPM5:   "+/-5V",
	SpanVPM10:  "+/-10V",
	SpanVPM2_5: "+/-2.5V",
}

func (s VoltageSpan) String() string {
	if name, ok := voltageSpanNames[s]; ok {
		return name
	}
	return fmt.Sprintf("VoltageSpan(%d)", int(s))
}

// Valid reports whether s is a span code the firmware accepts.
func (s VoltageSpan) Valid() bool {
	_, ok := voltageSpanNames[s]
	return ok
}
