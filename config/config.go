// Package config holds every tunable for the robot in one place: pin/channel
// assignments, ESC pulse timing, safety settings and network defaults.
package config

// Config is the full robot configuration. Built once at startup; the rest of
// the program treats it as read-only.
type Config struct {
	RobotName string

	// ESC pulse widths in microseconds (servo-style, 50Hz).
	DriveMinUS  uint16
	DriveMidUS  uint16
	DriveMaxUS  uint16
	WeaponMinUS uint16
	WeaponMidUS uint16
	WeaponMaxUS uint16

	// Absolute safety bounds, tighter than any ESC's own range. Every pulse
	// write is clamped here no matter what the caller asked for.
	AbsMinUS uint16
	AbsMaxUS uint16

	// Servo controller channel assignments. Sides may have more than one
	// motor; the same speed goes to every channel of a side.
	LeftChannels  []uint8
	RightChannels []uint8
	WeaponChannel uint8

	MaxSpeed int // speed cap, percent
	Deadband int // ignore drive inputs below this percent

	// WeaponAutoArm skips the hold-to-arm interlock and arms the weapon at
	// startup. Only for bench setups where the weapon channel drives
	// something harmless. The default build is gated.
	WeaponAutoArm bool

	FailsafeEnabled   bool
	FailsafeTimeoutMS uint32
	ArmHoldTimeMS     uint32

	// Battery thresholds for a 3S LiPo behind a voltage divider.
	LowBatteryCutoff     bool
	BatteryMinVolts      float64
	BatteryLowVolts      float64
	BatteryCriticalVolts float64
	BatteryMaxVolts      float64
	BatteryADCRatio      float64
	BatteryChannel       uint8 // analog input channel on the servo controller
	OvertempC            float64

	// Control loop timing.
	TickMS              uint32
	TelemetryIntervalMS uint32
	BlackboxIntervalMS  uint32
}

// Default returns the stock configuration: two drive motors wired one per
// side, gated weapon, failsafe on.
func Default() Config {
	return Config{
		RobotName: "Monster Book of Monsters",

		DriveMinUS:  1000,
		DriveMidUS:  1500,
		DriveMaxUS:  2000,
		WeaponMinUS: 1000,
		WeaponMidUS: 1500,
		WeaponMaxUS: 2000,

		AbsMinUS: 900,
		AbsMaxUS: 2100,

		LeftChannels:  []uint8{0},
		RightChannels: []uint8{1},
		WeaponChannel: 4,

		MaxSpeed: 100,
		Deadband: 10,

		WeaponAutoArm: false,

		FailsafeEnabled:   true,
		FailsafeTimeoutMS: 500,
		ArmHoldTimeMS:     5000,

		LowBatteryCutoff:     false,
		BatteryMinVolts:      10.0,
		BatteryLowVolts:      10.8,
		BatteryCriticalVolts: 10.2,
		BatteryMaxVolts:      12.6,
		BatteryADCRatio:      5.7,
		BatteryChannel:       11,
		OvertempC:            70.0,

		TickMS:              100,
		TelemetryIntervalMS: 100,
		BlackboxIntervalMS:  20,
	}
}

// FourMotor returns the four-drive-motor variant: two motors per side, weapon
// armed from boot. This is a materially weaker safety policy and must be
// chosen on purpose.
func FourMotor() Config {
	cfg := Default()
	cfg.LeftChannels = []uint8{0, 2}
	cfg.RightChannels = []uint8{1, 3}
	cfg.WeaponChannel = 4
	cfg.WeaponAutoArm = true
	cfg.LowBatteryCutoff = true
	return cfg
}
