// Package maestro drives a Pololu Maestro servo controller over a serial
// port. The Maestro owns the PWM generation; we just send it target pulse
// widths, so this is the hardware sink behind motor.PulseWriter.
//
// Protocol reference: https://www.pololu.com/docs/pdf/0J40/maestro.pdf
package maestro

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tarm/serial"
)

const (
	cmdSetTarget   = 0x84
	cmdGetPosition = 0x90
	cmdGetErrors   = 0xa1
	cmdGoHome      = 0xa2
)

// Board is one Maestro on a serial bus.
type Board struct {
	port    *serial.Port
	device  uint8
	compact bool // single device on the bus, skip the Pololu preamble

	// Last value written per channel. ESCs get the same pulse refreshed by
	// the board itself; no point spamming the serial link with duplicates.
	cache map[uint8]uint16

	log *logrus.Entry
}

// Open connects to the Maestro. device is its configured device number;
// compact selects the single-device wire format.
func Open(portName string, baud int, device uint8, compact bool) (*Board, error) {
	port, err := serial.OpenPort(&serial.Config{Name: portName, Baud: baud})
	if err != nil {
		return nil, errors.Wrapf(err, "open servo controller on %s", portName)
	}
	return &Board{
		port:    port,
		device:  device,
		compact: compact,
		cache:   make(map[uint8]uint16),
		log:     logrus.WithField("component", "maestro"),
	}, nil
}

func (b *Board) preamble(command uint8) []byte {
	if b.compact {
		return []byte{command}
	}
	return []byte{0xaa, b.device, command & 0x7f}
}

// SetPulseUS sets a channel's target pulse width. The Maestro takes targets
// in quarter-microseconds, low 7 bits first. Write errors are logged and
// dropped: the actuation path never stalls, and the failsafe covers a dead
// link.
func (b *Board) SetPulseUS(channel uint8, us uint16) {
	if last, ok := b.cache[channel]; ok && last == us {
		return
	}
	b.cache[channel] = us

	target := us * 4
	cmd := append(b.preamble(cmdSetTarget), channel, uint8(target&0x7f), uint8((target>>7)&0x7f))
	if _, err := b.port.Write(cmd); err != nil {
		b.log.WithError(err).Errorf("set target ch%d=%dus failed", channel, us)
	}
}

// GetAnalog reads an input channel. For channels configured as analog inputs
// the Maestro reports 0..1023 for 0..5V (it speaks "position" for outputs and
// raw ADC counts for inputs through the same command).
func (b *Board) GetAnalog(channel uint8) (uint16, error) {
	cmd := append(b.preamble(cmdGetPosition), channel)
	if _, err := b.port.Write(cmd); err != nil {
		return 0, errors.Wrap(err, "get position write")
	}
	buf := make([]byte, 2)
	if _, err := b.port.Read(buf); err != nil {
		return 0, errors.Wrap(err, "get position read")
	}
	return uint16(buf[0]) | uint16(buf[1])<<8, nil
}

// Errors reads and clears the Maestro's error register.
func (b *Board) Errors() (uint16, error) {
	cmd := b.preamble(cmdGetErrors)
	if _, err := b.port.Write(cmd); err != nil {
		return 0, errors.Wrap(err, "get errors write")
	}
	buf := make([]byte, 2)
	if _, err := b.port.Read(buf); err != nil {
		return 0, errors.Wrap(err, "get errors read")
	}
	return (uint16(buf[0]) & 0x7f) | (uint16(buf[1])&0x7f)<<8, nil
}

// GoHome sends every channel to its configured home position.
func (b *Board) GoHome() error {
	_, err := b.port.Write(b.preamble(cmdGoHome))
	return errors.Wrap(err, "go home")
}

// Close shuts the serial port.
func (b *Board) Close() error {
	return b.port.Close()
}
