// pkg/greymatter/components.go
package greymatter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DACsPerBoard is the number of DAC slots on a daughter board.
const DACsPerBoard = 3

// DACKind identifies the output type of a DAC slot.
type DACKind int

const (
	KindCurrent DACKind = iota
	KindVoltage
)

// dacKinds maps a DAC slot to its kind: slots 0 and 1 hold current DACs,
// slot 2 the voltage DAC.
var dacKinds = [DACsPerBoard]DACKind{KindCurrent, KindCurrent, KindVoltage}

func (k DACKind) String() string {
	switch k {
	case KindCurrent:
		return "current"
	case KindVoltage:
		return "voltage"
	default:
		return fmt.Sprintf("DACKind(%d)", int(k))
	}
}

// Channels returns the channel count of a DAC of this kind.
func (k DACKind) Channels() int {
	if k == KindVoltage {
		return 4
	}
	return 5
}

// Span is a span code accepted by one kind of DAC.
type Span interface {
	fmt.Stringer
	Valid() bool
	code() int
	kind() DACKind
}

func (s CurrentSpan) code() int     { return int(s) }
func (s CurrentSpan) kind() DACKind { return KindCurrent }
func (s VoltageSpan) code() int     { return int(s) }
func (s VoltageSpan) kind() DACKind { return KindVoltage }

// DAC is the capability set shared by current and voltage DACs.
type DAC interface {
	Board() int
	Index() int
	Kind() DACKind
	SetSpan(span Span) error
	SetResolution(bits int) error
	Resolution() (int, error)
	PowerDown() error
	Update() error
	Channel(id int) (Channel, error)
	channelList() []Channel
}

// Channel is the capability set shared by every DAC output channel.
type Channel interface {
	Board() int
	DAC() int
	Index() int
	Kind() DACKind
	SetCode(code int) error
	PowerDown() error
}

// Board is one daughter board.
type Board struct {
	c    *Controller
	id   int
	dacs [DACsPerBoard]DAC
}

func newBoard(c *Controller, id int) *Board {
	b := &Board{c: c, id: id}
	for slot, kind := range dacKinds {
		base := newDACBase(c, id, slot, kind)
		if kind == KindCurrent {
			b.dacs[slot] = &CurrentDAC{dacBase: base}
		} else {
			b.dacs[slot] = &VoltageDAC{dacBase: base}
		}
	}
	return b
}

// ID returns the board index.
func (b *Board) ID() int { return b.id }

// SerialNumber reads the board serial number.
func (b *Board) SerialNumber() (string, error) {
	return b.c.Query(fmt.Sprintf("BOARD%d:SN?", b.id))
}

// SetSerialNumber writes the board serial number.
func (b *Board) SetSerialNumber(sn string) error {
	if sn == "" || strings.ContainsAny(sn, " \r\n") {
		return fmt.Errorf("invalid serial number %q", sn)
	}
	_, err := b.c.Command(fmt.Sprintf("BOARD%d:SN %s", b.id, sn))
	return err
}

// PowerDown powers down every DAC on the board, stopping at the first
// failure.
func (b *Board) PowerDown() error {
	for _, d := range b.dacs {
		if err := d.PowerDown(); err != nil {
			return err
		}
	}
	return nil
}

// DAC returns DAC slot id.
func (b *Board) DAC(id int) (DAC, error) {
	if id < 0 || id >= DACsPerBoard {
		return nil, fmt.Errorf("%w: dac must be 0-%d, got %d", ErrInvalidAddress, DACsPerBoard-1, id)
	}
	return b.dacs[id], nil
}

// CurrentDAC returns slot id when it holds a current DAC.
func (b *Board) CurrentDAC(id int) (*CurrentDAC, error) {
	d, err := b.DAC(id)
	if err != nil {
		return nil, err
	}
	cd, ok := d.(*CurrentDAC)
	if !ok {
		return nil, fmt.Errorf("%w: dac %d is a %s dac", ErrInvalidAddress, id, d.Kind())
	}
	return cd, nil
}

// VoltageDAC returns the voltage DAC.
func (b *Board) VoltageDAC() *VoltageDAC {
	return b.dacs[2].(*VoltageDAC)
}

type dacBase struct {
	c        *Controller
	board    int
	index    int
	kind     DACKind
	channels []Channel
}

func newDACBase(c *Controller, board, index int, kind DACKind) dacBase {
	d := dacBase{c: c, board: board, index: index, kind: kind}
	d.channels = make([]Channel, kind.Channels())
	for i := range d.channels {
		base := channelBase{c: c, board: board, dac: index, index: i, kind: kind}
		if kind == KindCurrent {
			d.channels[i] = &CurrentChannel{channelBase: base}
		} else {
			d.channels[i] = &VoltageChannel{channelBase: base}
		}
	}
	return d
}

func (d *dacBase) prefix() string {
	return fmt.Sprintf("BOARD%d:DAC%d", d.board, d.index)
}

func (d *dacBase) Board() int    { return d.board }
func (d *dacBase) Index() int    { return d.index }
func (d *dacBase) Kind() DACKind { return d.kind }

// SetSpan sets the span of every channel.
func (d *dacBase) SetSpan(span Span) error {
	if span == nil || span.kind() != d.kind || !span.Valid() {
		return fmt.Errorf("span %v is not valid for a %s dac", span, d.kind)
	}
	_, err := d.c.Command(fmt.Sprintf("%s:SPAN:ALL %d", d.prefix(), span.code()))
	return err
}

// SetResolution sets the DAC resolution in bits.
func (d *dacBase) SetResolution(bits int) error {
	_, err := d.c.Command(fmt.Sprintf("%s:RES %d", d.prefix(), bits))
	return err
}

// Resolution reads the DAC resolution in bits.
func (d *dacBase) Resolution() (int, error) {
	resp, err := d.c.Query(d.prefix() + ":RES?")
	if err != nil {
		return 0, err
	}
	bits, err := strconv.Atoi(strings.TrimSpace(resp))
	if err != nil {
		return 0, fmt.Errorf("invalid resolution %q: %w", resp, err)
	}
	return bits, nil
}

func (d *dacBase) PowerDown() error {
	_, err := d.c.Command(d.prefix() + ":PDOWN")
	return err
}

func (d *dacBase) Update() error {
	_, err := d.c.Command(d.prefix() + ":UPDATE")
	return err
}

func (d *dacBase) Channel(id int) (Channel, error) {
	if id < 0 || id >= len(d.channels) {
		return nil, fmt.Errorf("%w: channel must be 0-%d, got %d", ErrInvalidAddress, len(d.channels)-1, id)
	}
	return d.channels[id], nil
}

func (d *dacBase) channelList() []Channel {
	return d.channels
}

// CurrentDAC is a 5-channel current-output DAC.
type CurrentDAC struct {
	dacBase
}

// CurrentChannel returns channel id.
func (d *CurrentDAC) CurrentChannel(id int) (*CurrentChannel, error) {
	ch, err := d.Channel(id)
	if err != nil {
		return nil, err
	}
	return ch.(*CurrentChannel), nil
}

// VoltageDAC is a 4-channel voltage-output DAC.
type VoltageDAC struct {
	dacBase
}

// VoltageChannel returns channel id.
func (d *VoltageDAC) VoltageChannel(id int) (*VoltageChannel, error) {
	ch, err := d.Channel(id)
	if err != nil {
		return nil, err
	}
	return ch.(*VoltageChannel), nil
}

type channelBase struct {
	c     *Controller
	board int
	dac   int
	index int
	kind  DACKind
}

func (ch *channelBase) prefix() string {
	return fmt.Sprintf("BOARD%d:DAC%d:CH%d", ch.board, ch.dac, ch.index)
}

func (ch *channelBase) Board() int    { return ch.board }
func (ch *channelBase) DAC() int      { return ch.dac }
func (ch *channelBase) Index() int    { return ch.index }
func (ch *channelBase) Kind() DACKind { return ch.kind }

// SetCode writes a raw DAC code.
func (ch *channelBase) SetCode(code int) error {
	if code < 0 {
		return fmt.Errorf("invalid code %d", code)
	}
	_, err := ch.c.Command(fmt.Sprintf("%s:CODE %d", ch.prefix(), code))
	return err
}

func (ch *channelBase) PowerDown() error {
	_, err := ch.c.Command(ch.prefix() + ":PDOWN")
	return err
}

// CurrentChannel is one output of a current DAC.
type CurrentChannel struct {
	channelBase
}

// SetCurrent sets the output current in milliamps.
func (ch *CurrentChannel) SetCurrent(milliamps decimal.Decimal) error {
	_, err := ch.c.Command(fmt.Sprintf("%s:CURR %s", ch.prefix(), milliamps.String()))
	return err
}

// VoltageChannel is one output of the voltage DAC.
type VoltageChannel struct {
	channelBase
}

// SetVoltage sets the output voltage in volts.
func (ch *VoltageChannel) SetVoltage(volts decimal.Decimal) error {
	_, err := ch.c.Command(fmt.Sprintf("%s:VOLT %s", ch.prefix(), volts.String()))
	return err
}
