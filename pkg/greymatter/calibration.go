// pkg/greymatter/calibration.go
package greymatter

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Calibration reads and writes per-channel gain and offset correction.
// Changes live in device RAM until Save writes them to flash.
type Calibration struct {
	c *Controller
}

func (cal *Calibration) prefix(board, dac, channel int) (string, error) {
	b, err := cal.c.Board(board)
	if err != nil {
		return "", err
	}
	d, err := b.DAC(dac)
	if err != nil {
		return "", err
	}
	if _, err := d.Channel(channel); err != nil {
		return "", err
	}
	return fmt.Sprintf("BOARD%d:DAC%d:CH%d", board, dac, channel), nil
}

func (cal *Calibration) queryDecimal(board, dac, channel int, key string) (decimal.Decimal, error) {
	prefix, err := cal.prefix(board, dac, channel)
	if err != nil {
		return decimal.Zero, err
	}
	resp, err := cal.c.Query(prefix + ":CAL:" + key + "?")
	if err != nil {
		return decimal.Zero, err
	}
	v, err := decimal.NewFromString(strings.TrimSpace(resp))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid calibration value %q: %w", resp, err)
	}
	return v, nil
}

func (cal *Calibration) set(board, dac, channel int, key, value string) error {
	prefix, err := cal.prefix(board, dac, channel)
	if err != nil {
		return err
	}
	_, err = cal.c.Command(prefix + ":CAL:" + key + " " + value)
	return err
}

// Gain returns the gain correction of a channel.
func (cal *Calibration) Gain(board, dac, channel int) (decimal.Decimal, error) {
	return cal.queryDecimal(board, dac, channel, "GAIN")
}

// SetGain sets the gain correction of a channel.
func (cal *Calibration) SetGain(board, dac, channel int, gain decimal.Decimal) error {
	return cal.set(board, dac, channel, "GAIN", gain.String())
}

// Offset returns the offset correction of a channel.
func (cal *Calibration) Offset(board, dac, channel int) (decimal.Decimal, error) {
	return cal.queryDecimal(board, dac, channel, "OFFS")
}

// SetOffset sets the offset correction of a channel.
func (cal *Calibration) SetOffset(board, dac, channel int, offset decimal.Decimal) error {
	return cal.set(board, dac, channel, "OFFS", offset.String())
}

// Enabled reports whether correction is applied to a channel.
func (cal *Calibration) Enabled(board, dac, channel int) (bool, error) {
	prefix, err := cal.prefix(board, dac, channel)
	if err != nil {
		return false, err
	}
	resp, err := cal.c.Query(prefix + ":CAL:EN?")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(resp) == "1", nil
}

// SetEnabled turns correction on or off for a channel.
func (cal *Calibration) SetEnabled(board, dac, channel int, enabled bool) error {
	value := "0"
	if enabled {
		value = "1"
	}
	return cal.set(board, dac, channel, "EN", value)
}

// Save writes calibration data to flash.
func (cal *Calibration) Save() error {
	_, err := cal.c.Command("CAL:SAVE")
	return err
}

// Load reloads calibration data from flash.
func (cal *Calibration) Load() error {
	_, err := cal.c.Command("CAL:LOAD")
	return err
}

// Clear erases calibration data in RAM and flash.
func (cal *Calibration) Clear() error {
	_, err := cal.c.Command("CAL:CLEAR")
	return err
}

// Data returns every stored calibration entry as formatted by the device.
func (cal *Calibration) Data() (string, error) {
	return cal.c.Query("CAL:DATA?")
}
