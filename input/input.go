// Package input maps raw controller reports onto motor and arming calls.
//
// Reports arrive over the control link at whatever rate the wireless side
// manages; duplicates are common and are diffed away here. The dispatcher is
// also ticked on the fixed timer so the arming countdown and the failsafe
// keep running when the link goes quiet.
package input

import (
	"github.com/sirupsen/logrus"

	"github.com/jaspermayone/wit-robotics-2025/arming"
	"github.com/jaspermayone/wit-robotics-2025/motor"
)

// Stick and trigger ranges of the controller report.
const (
	StickMin   = -512
	StickMax   = 511
	TriggerMax = 1023
)

// Button bits, Bluepad32 layout.
const (
	ButtonA uint32 = 1 << iota
	ButtonB
	ButtonX
	ButtonY
	ButtonShoulderL
	ButtonShoulderR
	ButtonTriggerL
	ButtonTriggerR
	ButtonThumbL
	ButtonThumbR
)

// Misc button bits (start/select/system).
const (
	MiscButtonSystem uint8 = 1 << iota
	MiscButtonSelect
	MiscButtonStart
)

// D-pad bits.
const (
	DPadUp uint8 = 1 << iota
	DPadDown
	DPadRight
	DPadLeft
)

// Report is one controller input sample. Compared by full-value equality to
// detect no-change frames.
type Report struct {
	AxisX  int `json:"axis_x"` // left stick, StickMin..StickMax
	AxisY  int `json:"axis_y"`
	AxisRX int `json:"axis_rx"` // right stick
	AxisRY int `json:"axis_ry"`

	Brake    int `json:"brake"`    // left trigger, 0..TriggerMax
	Throttle int `json:"throttle"` // right trigger

	Buttons     uint32 `json:"buttons"`
	MiscButtons uint8  `json:"misc_buttons"`
	DPad        uint8  `json:"dpad"`
}

// DriveMode selects the stick mapping.
type DriveMode int

const (
	// ModeTank: left stick Y drives the left side, right stick Y the right.
	ModeTank DriveMode = iota
	// ModeArcade: left stick Y is throttle, right stick X is turn.
	ModeArcade
)

// Dispatcher turns reports into controller calls and drives the arming
// machine's edge detection. One instance, owned by the control loop.
type Dispatcher struct {
	motors *motor.Controller
	arming *arming.Machine

	mode           DriveMode
	throttleInvert int // -1: push forward = forward (Y axis is inverted)
	turnInvert     int

	prev       Report
	havePrev   bool
	prevSystem bool

	log *logrus.Entry
}

// NewDispatcher wires the dispatcher. throttleInvert/turnInvert are 1 or -1.
func NewDispatcher(m *motor.Controller, a *arming.Machine, mode DriveMode, throttleInvert, turnInvert int) *Dispatcher {
	return &Dispatcher{
		motors:         m,
		arming:         a,
		mode:           mode,
		throttleInvert: throttleInvert,
		turnInvert:     turnInvert,
		log:            logrus.WithField("component", "input"),
	}
}

// HandleReport processes one controller sample. Unchanged frames only feed
// the failsafe check; changed frames drive motors, weapon, the bumper
// interlock and the emergency-stop edge.
func (d *Dispatcher) HandleReport(r Report, now uint32) {
	d.arming.Tick(now)

	if d.havePrev && r == d.prev {
		d.motors.CheckFailsafe(now)
		return
	}
	d.prev = r
	d.havePrev = true

	switch d.mode {
	case ModeArcade:
		throttle := motor.MapRange(r.AxisY, StickMin, StickMax, -100, 100) * d.throttleInvert
		turn := motor.MapRange(r.AxisRX, StickMin, StickMax, -100, 100) * d.turnInvert
		d.motors.ArcadeDrive(throttle, turn, now)
	default:
		left := motor.MapRange(r.AxisY, StickMin, StickMax, -100, 100) * d.throttleInvert
		right := motor.MapRange(r.AxisRY, StickMin, StickMax, -100, 100) * d.throttleInvert
		d.motors.TankDrive(left, right, now)
	}

	// Right trigger → weapon speed. The controller gates it on armed state.
	d.motors.SetWeapon(motor.MapRange(r.Throttle, 0, TriggerMax, 0, 100), now)

	// Bumper pair → hold-to-arm interlock.
	held := r.Buttons&ButtonShoulderL != 0 && r.Buttons&ButtonShoulderR != 0
	d.arming.SetHeld(held, now)

	// System button press edge → emergency stop.
	system := r.MiscButtons&MiscButtonSystem != 0
	if system && !d.prevSystem {
		d.log.Warn("!!! EMERGENCY STOP !!!")
		d.motors.StopAll()
	}
	d.prevSystem = system

	d.motors.CheckFailsafe(now)
}

// Tick runs the periodic work with no new input: arming countdown progress
// and the staleness check. Fires from the 100ms timer.
func (d *Dispatcher) Tick(now uint32) {
	d.arming.Tick(now)
	d.motors.CheckFailsafe(now)
}
