package motor

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// ControllerConfig carries the controller's tunables.
type ControllerConfig struct {
	MaxSpeed int
	Deadband int

	// AutoArm arms the weapon at construction and leaves SetWeapon ungated.
	// The default (false) requires an explicit ArmWeapon before the weapon
	// channel will move.
	AutoArm bool

	FailsafeEnabled   bool
	FailsafeTimeoutMS uint32
}

// Status is a consistent read-only snapshot of the controller.
type Status struct {
	Left        int  `json:"left"`
	Right       int  `json:"right"`
	Weapon      int  `json:"weapon"`
	WeaponArmed bool `json:"weapon_armed"`
	Failsafe    bool `json:"failsafe"`
}

// Controller owns the drive sides and the weapon and is the single place
// speed commands pass through. Every public mutation leaves drive speeds in
// -MaxSpeed..MaxSpeed and keeps the invariant weapon > 0 ⇒ armed (gated
// build). A mutex serializes the event loop against status readers.
type Controller struct {
	mu sync.Mutex

	left   []*Actuator // every motor of a side gets the same speed
	right  []*Actuator
	weapon *Actuator

	leftSpeed   int
	rightSpeed  int
	weaponSpeed int
	weaponArmed bool

	cfg      ControllerConfig
	failsafe *FailsafeMonitor

	log *logrus.Entry
}

// NewController builds the controller and puts everything in the stopped
// state. With cfg.AutoArm the weapon comes up armed; otherwise disarmed.
func NewController(left, right []*Actuator, weapon *Actuator, cfg ControllerConfig, now uint32) *Controller {
	c := &Controller{
		left:     left,
		right:    right,
		weapon:   weapon,
		cfg:      cfg,
		failsafe: NewFailsafeMonitor(cfg.FailsafeEnabled, cfg.FailsafeTimeoutMS, now),
		log:      logrus.WithField("component", "motors"),
	}
	c.stopAllLocked()
	if cfg.AutoArm {
		c.weaponArmed = true
		c.weapon.Arm()
		c.log.Warn("weapon AUTO-ARMED at startup")
	} else {
		c.log.Info("motor controller ready (weapon disarmed)")
	}
	return c
}

// SetLeft commands the left side. Deadband, then clamp, then out.
func (c *Controller) SetLeft(speed int, now uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLeftLocked(speed, now)
}

// SetRight commands the right side.
func (c *Controller) SetRight(speed int, now uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setRightLocked(speed, now)
}

func (c *Controller) setLeftLocked(speed int, now uint32) {
	speed = ApplyDeadband(speed, c.cfg.Deadband)
	speed = Clamp(speed, -c.cfg.MaxSpeed, c.cfg.MaxSpeed)
	for _, m := range c.left {
		m.SetSpeed(speed, true)
	}
	c.leftSpeed = speed
	c.failsafe.Reset(now)
}

func (c *Controller) setRightLocked(speed int, now uint32) {
	speed = ApplyDeadband(speed, c.cfg.Deadband)
	speed = Clamp(speed, -c.cfg.MaxSpeed, c.cfg.MaxSpeed)
	for _, m := range c.right {
		m.SetSpeed(speed, true)
	}
	c.rightSpeed = speed
	c.failsafe.Reset(now)
}

// TankDrive commands both sides independently.
func (c *Controller) TankDrive(left, right int, now uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLeftLocked(left, now)
	c.setRightLocked(right, now)
}

// ArcadeDrive mixes throttle and turn into side speeds. Deadband applies to
// the raw inputs before mixing.
func (c *Controller) ArcadeDrive(throttle, turn int, now uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	throttle = ApplyDeadband(throttle, c.cfg.Deadband)
	turn = ApplyDeadband(turn, c.cfg.Deadband)
	left, right := Arcade(throttle, turn, c.cfg.MaxSpeed)
	c.setLeftLocked(left, now)
	c.setRightLocked(right, now)
}

// SetWeapon commands the weapon channel, 0..MaxSpeed. While the weapon is
// not armed the command is forced to zero; the gate is here, not in the
// actuator.
func (c *Controller) SetWeapon(speed int, now uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.weaponArmed {
		speed = 0
	}
	speed = Clamp(speed, 0, c.cfg.MaxSpeed)
	c.weapon.SetSpeed(speed, false)
	c.weaponSpeed = speed
	c.failsafe.Reset(now)
}

// ArmWeapon enables the weapon channel.
func (c *Controller) ArmWeapon() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.weaponArmed = true
	c.weapon.Arm()
	c.log.Warn("*** WEAPON ARMED ***")
}

// DisarmWeapon disables the weapon channel and stops it immediately,
// regardless of any pending command.
func (c *Controller) DisarmWeapon() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disarmWeaponLocked()
}

func (c *Controller) disarmWeaponLocked() {
	wasArmed := c.weaponArmed
	c.weaponArmed = false
	c.weapon.Disarm()
	c.weapon.SetSpeed(0, false)
	c.weaponSpeed = 0
	if wasArmed {
		c.log.Warn("*** WEAPON DISARMED ***")
	}
}

// WeaponArmed reports the gate state.
func (c *Controller) WeaponArmed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.weaponArmed
}

// StopAll is the single recovery action: both drive sides to their stopped
// pulse, weapon disarmed and stopped. Used by the failsafe, the emergency
// stop and link loss alike.
func (c *Controller) StopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopAllLocked()
}

func (c *Controller) stopAllLocked() {
	for _, m := range c.left {
		m.Stop(true)
	}
	for _, m := range c.right {
		m.Stop(true)
	}
	c.leftSpeed = 0
	c.rightSpeed = 0
	c.disarmWeaponLocked()
}

// CheckFailsafe stops everything once if input has gone stale and reports
// whether the failsafe is currently active. Safe to call as often as you
// like; repeated calls while stale do nothing further.
func (c *Controller) CheckFailsafe(now uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.failsafe.Stale(now) {
		return false
	}
	if c.failsafe.Trip() {
		if c.leftSpeed != 0 || c.rightSpeed != 0 || c.weaponSpeed != 0 {
			c.log.Warn("failsafe: motors stopped")
		}
		c.stopAllLocked()
	}
	return true
}

// Status returns a snapshot. Never torn: taken under the same mutex that
// serializes mutations.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Left:        c.leftSpeed,
		Right:       c.rightSpeed,
		Weapon:      c.weaponSpeed,
		WeaponArmed: c.weaponArmed,
		Failsafe:    c.failsafe.Triggered(),
	}
}
