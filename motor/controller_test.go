package motor

import "testing"

const (
	chLeft   = 0
	chRight  = 1
	chWeapon = 4
)

func newTestController(autoArm bool) (*Controller, *fakeSink) {
	sink := &fakeSink{}
	drive := PulseRange{1000, 1500, 2000}
	left := []*Actuator{NewActuator(sink, chLeft, drive, 900, 2100)}
	right := []*Actuator{NewActuator(sink, chRight, drive, 900, 2100)}
	weapon := NewActuator(sink, chWeapon, drive, 900, 2100)
	c := NewController(left, right, weapon, ControllerConfig{
		MaxSpeed:          100,
		Deadband:          10,
		AutoArm:           autoArm,
		FailsafeEnabled:   true,
		FailsafeTimeoutMS: 500,
	}, 0)
	return c, sink
}

func TestWeaponGating(t *testing.T) {
	c, sink := newTestController(false)

	c.SetWeapon(80, 0)
	if got := c.Status().Weapon; got != 0 {
		t.Fatalf("unarmed weapon command: speed %d, want 0", got)
	}
	if sink.last[chWeapon] != 1000 {
		t.Fatalf("unarmed weapon pulse %d, want idle 1000", sink.last[chWeapon])
	}

	c.ArmWeapon()
	c.SetWeapon(80, 0)
	if got := c.Status().Weapon; got != 80 {
		t.Fatalf("armed weapon command: speed %d, want 80", got)
	}
	if sink.last[chWeapon] != 1800 {
		t.Fatalf("armed weapon pulse %d, want 1800", sink.last[chWeapon])
	}
}

func TestDisarmStopsWeaponImmediately(t *testing.T) {
	c, sink := newTestController(false)
	c.ArmWeapon()
	c.SetWeapon(80, 0)

	c.DisarmWeapon()
	st := c.Status()
	if st.Weapon != 0 || st.WeaponArmed {
		t.Fatalf("after disarm: weapon %d armed %v", st.Weapon, st.WeaponArmed)
	}
	if sink.last[chWeapon] != 1000 {
		t.Fatalf("after disarm: pulse %d, want 1000", sink.last[chWeapon])
	}
}

func TestAutoArmVariant(t *testing.T) {
	c, _ := newTestController(true)
	if !c.WeaponArmed() {
		t.Fatal("auto-arm build came up disarmed")
	}
	c.SetWeapon(60, 0)
	if got := c.Status().Weapon; got != 60 {
		t.Fatalf("auto-armed weapon command: speed %d, want 60", got)
	}
}

func TestDriveDeadbandAndClamp(t *testing.T) {
	c, sink := newTestController(false)

	c.SetLeft(5, 0) // under deadband
	if c.Status().Left != 0 || sink.last[chLeft] != 1500 {
		t.Errorf("deadband: left %d pulse %d", c.Status().Left, sink.last[chLeft])
	}
	c.SetLeft(150, 0)
	if c.Status().Left != 100 || sink.last[chLeft] != 2000 {
		t.Errorf("clamp high: left %d pulse %d", c.Status().Left, sink.last[chLeft])
	}
	c.SetRight(-150, 0)
	if c.Status().Right != -100 || sink.last[chRight] != 1000 {
		t.Errorf("clamp low: right %d pulse %d", c.Status().Right, sink.last[chRight])
	}
}

func TestArcadeDriveEndToEnd(t *testing.T) {
	c, _ := newTestController(false)
	c.ArcadeDrive(90, 40, 0)
	st := c.Status()
	if st.Left != 100 || st.Right != 38 {
		t.Fatalf("ArcadeDrive(90,40): %d,%d, want 100,38", st.Left, st.Right)
	}
}

func TestFailsafeFiresOnceThenRearms(t *testing.T) {
	c, sink := newTestController(false)
	c.TankDrive(50, 50, 0)

	if c.CheckFailsafe(400) {
		t.Fatal("failsafe active inside the window")
	}
	if !c.CheckFailsafe(501) {
		t.Fatal("failsafe did not fire at 501ms")
	}
	st := c.Status()
	if st.Left != 0 || st.Right != 0 || st.Weapon != 0 || st.WeaponArmed {
		t.Fatalf("failsafe did not stop everything: %+v", st)
	}
	if !st.Failsafe {
		t.Fatal("failsafe flag not reported")
	}

	// Idempotent while stale: no further writes.
	writes := sink.writes
	if !c.CheckFailsafe(600) {
		t.Fatal("failsafe cleared without a command")
	}
	c.CheckFailsafe(700)
	if sink.writes != writes {
		t.Fatalf("repeated checks wrote to hardware: %d -> %d", writes, sink.writes)
	}

	// A fresh command resets the window; a second stall fires again.
	c.TankDrive(40, 40, 800)
	if c.CheckFailsafe(1200) {
		t.Fatal("failsafe still active after new command")
	}
	if !c.CheckFailsafe(1302) {
		t.Fatal("failsafe did not fire on the second stall")
	}
}

func TestStopAllResetsEverything(t *testing.T) {
	c, sink := newTestController(false)
	c.ArmWeapon()
	c.TankDrive(70, -70, 0)
	c.SetWeapon(90, 0)

	c.StopAll()
	st := c.Status()
	if st.Left != 0 || st.Right != 0 || st.Weapon != 0 || st.WeaponArmed {
		t.Fatalf("StopAll left state behind: %+v", st)
	}
	if sink.last[chLeft] != 1500 || sink.last[chRight] != 1500 {
		t.Errorf("drive pulses %d/%d, want mid 1500", sink.last[chLeft], sink.last[chRight])
	}
	if sink.last[chWeapon] != 1000 {
		t.Errorf("weapon pulse %d, want idle 1000", sink.last[chWeapon])
	}
}

func TestMultiMotorSides(t *testing.T) {
	sink := &fakeSink{}
	drive := PulseRange{1000, 1500, 2000}
	left := []*Actuator{
		NewActuator(sink, 0, drive, 900, 2100),
		NewActuator(sink, 2, drive, 900, 2100),
	}
	right := []*Actuator{
		NewActuator(sink, 1, drive, 900, 2100),
		NewActuator(sink, 3, drive, 900, 2100),
	}
	weapon := NewActuator(sink, 4, drive, 900, 2100)
	c := NewController(left, right, weapon, ControllerConfig{
		MaxSpeed: 100, Deadband: 10,
		FailsafeEnabled: true, FailsafeTimeoutMS: 500,
	}, 0)

	c.TankDrive(60, -60, 0)
	if sink.last[0] != 1800 || sink.last[2] != 1800 {
		t.Errorf("left pair pulses %d/%d, want 1800", sink.last[0], sink.last[2])
	}
	if sink.last[1] != 1200 || sink.last[3] != 1200 {
		t.Errorf("right pair pulses %d/%d, want 1200", sink.last[1], sink.last[3])
	}
}
