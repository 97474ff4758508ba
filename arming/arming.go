// Package arming implements the hold-to-arm interlock for the weapon.
//
// Arming requires holding both bumpers for a full hold period; a tap while
// armed disarms instantly. The machine is ticked on a fixed period so the
// countdown progresses even while the controller keeps sending identical
// frames.
package arming

import "github.com/sirupsen/logrus"

// State of the interlock.
type State int

const (
	StateDisarmed State = iota
	StateCountdown
	StateArmed
)

func (s State) String() string {
	switch s {
	case StateDisarmed:
		return "disarmed"
	case StateCountdown:
		return "countdown"
	case StateArmed:
		return "armed"
	}
	return "unknown"
}

// Weapon is the slice of the motor controller the interlock drives.
type Weapon interface {
	ArmWeapon()
	DisarmWeapon()
	WeaponArmed() bool
}

// Machine tracks bumper-hold timing. All methods are called from the single
// control loop goroutine; the machine itself is not locked.
type Machine struct {
	weapon Weapon
	holdMS uint32

	state         State
	held          bool
	holdStartMS   uint32
	lastCountdown int

	// Countdown, if set, receives one call per distinct remaining second
	// while holding, counting down. Used by tests and the status page; the
	// log lines happen regardless.
	Countdown func(secondsLeft int)

	log *logrus.Entry
}

// New builds the machine in the disarmed state.
func New(weapon Weapon, holdMS uint32) *Machine {
	return &Machine{
		weapon:        weapon,
		holdMS:        holdMS,
		state:         StateDisarmed,
		lastCountdown: -1,
		log:           logrus.WithField("component", "arming"),
	}
}

// State returns the current interlock state.
func (m *Machine) State() State { return m.state }

// SetHeld feeds the machine the current bumper-pair state, once per input
// frame. Edges are detected here: a new press either starts the countdown or,
// if the weapon is already armed, disarms it on the spot (tap-to-disarm, no
// hold needed). Releasing before the hold period elapses cancels.
func (m *Machine) SetHeld(held bool, now uint32) {
	if held == m.held {
		return
	}
	m.held = held

	if held {
		if m.weapon.WeaponArmed() {
			m.weapon.DisarmWeapon()
			m.state = StateDisarmed
			m.lastCountdown = -1
			return
		}
		m.state = StateCountdown
		m.holdStartMS = now
		m.lastCountdown = int(m.holdMS/1000) + 1
		m.log.Infof("arming sequence: hold for %d seconds", m.holdMS/1000)
		return
	}

	// Released.
	if m.state == StateCountdown {
		m.log.Info("arming cancelled")
	}
	if m.state != StateArmed {
		m.state = StateDisarmed
	}
	m.lastCountdown = -1
}

// Tick advances the countdown. Must run on the fixed timer, independent of
// input arriving. It also resyncs after an external disarm (failsafe or
// emergency stop) so a stale Armed state cannot linger.
func (m *Machine) Tick(now uint32) {
	switch m.state {
	case StateArmed:
		if !m.weapon.WeaponArmed() {
			// Disarmed behind our back (stop_all); follow along.
			m.state = StateDisarmed
			m.lastCountdown = -1
		}
	case StateCountdown:
		if !m.held || m.weapon.WeaponArmed() {
			return
		}
		elapsed := now - m.holdStartMS
		if elapsed >= m.holdMS {
			m.weapon.ArmWeapon()
			m.state = StateArmed
			m.lastCountdown = -1
			return
		}
		secondsLeft := int((m.holdMS - elapsed + 999) / 1000)
		if secondsLeft != m.lastCountdown {
			m.lastCountdown = secondsLeft
			if m.Countdown != nil {
				m.Countdown(secondsLeft)
			}
			m.log.Infof("  %d...", secondsLeft)
		}
	}
}
