// Package motor implements the actuation layer: individual ESC actuators,
// drive mixing math, and the motor controller facade with its failsafe.
//
// Speeds everywhere are signed percentages, -100..100 for drive and 0..100
// for the weapon. Pulse widths are microseconds, servo-style.
package motor

// PulseWriter is the hardware sink for pulse-width commands. Writes are
// synchronous and always succeed from the caller's perspective; a real
// implementation that hits an IO error has to deal with it itself.
type PulseWriter interface {
	SetPulseUS(channel uint8, us uint16)
}

// PulseRange is the pulse timing of one ESC: full reverse/idle, stopped,
// full forward.
type PulseRange struct {
	MinUS uint16
	MidUS uint16
	MaxUS uint16
}

// Actuator owns one hardware channel and converts normalized commands into
// clamped pulse widths. Out-of-range input is absorbed by clamping, never
// rejected: the actuation path must not stall on validation.
type Actuator struct {
	out     PulseWriter
	channel uint8
	pulse   PulseRange

	// Absolute safety bounds, hardware-wide, tighter than the ESC range.
	absMinUS uint16
	absMaxUS uint16

	lastThrottle float64
	armed        bool
}

// NewActuator wires an actuator to one channel of a pulse sink.
func NewActuator(out PulseWriter, channel uint8, pulse PulseRange, absMinUS, absMaxUS uint16) *Actuator {
	return &Actuator{
		out:      out,
		channel:  channel,
		pulse:    pulse,
		absMinUS: absMinUS,
		absMaxUS: absMaxUS,
	}
}

// SetPulseUS clamps us to the absolute safety bounds and writes it out.
func (a *Actuator) SetPulseUS(us uint16) {
	us = Clamp(us, a.absMinUS, a.absMaxUS)
	a.out.SetPulseUS(a.channel, us)
}

// SetThrottle maps throttle in 0.0..1.0 linearly onto the ESC pulse range.
func (a *Actuator) SetThrottle(throttle float64) {
	if throttle < 0 {
		throttle = 0
	} else if throttle > 1 {
		throttle = 1
	}
	us := a.pulse.MinUS + uint16(throttle*float64(a.pulse.MaxUS-a.pulse.MinUS))
	a.SetPulseUS(us)
	a.lastThrottle = throttle
}

// SetSpeed converts a signed percentage to throttle. Bidirectional ESCs map
// -100..100 across the whole range with 0 at the midpoint; forward-only ESCs
// use the magnitude and discard the sign.
func (a *Actuator) SetSpeed(speed int, bidirectional bool) {
	speed = Clamp(speed, -100, 100)

	var throttle float64
	if bidirectional {
		throttle = float64(speed+100) / 200.0
	} else {
		if speed < 0 {
			speed = -speed
		}
		throttle = float64(speed) / 100.0
	}
	a.SetThrottle(throttle)
}

// Stop puts the actuator in its no-motion position: mid pulse for
// bidirectional ESCs, min pulse for forward-only ones.
func (a *Actuator) Stop(bidirectional bool) {
	if bidirectional {
		a.SetPulseUS(a.pulse.MidUS)
		a.lastThrottle = 0.5
	} else {
		a.SetPulseUS(a.pulse.MinUS)
		a.lastThrottle = 0
	}
}

// Arm sets the software armed flag. It does not change the pulse output;
// gating happens in the controller.
func (a *Actuator) Arm() { a.armed = true }

// Disarm clears the software armed flag.
func (a *Actuator) Disarm() { a.armed = false }

// Armed reports the software armed flag.
func (a *Actuator) Armed() bool { return a.armed }

// LastThrottle returns the normalized value last applied.
func (a *Actuator) LastThrottle() float64 { return a.lastThrottle }
