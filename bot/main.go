// Command bot runs on the robot: it owns the motor controller and both
// safety policies, ingests controller reports over the websocket control
// link, and serves the status page.
//
// One goroutine consumes a single event channel (reports, timer ticks, link
// loss, emergency stop), so every handler runs to completion against the
// control state with no reentrancy.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/jaspermayone/wit-robotics-2025/arming"
	"github.com/jaspermayone/wit-robotics-2025/blackbox"
	"github.com/jaspermayone/wit-robotics-2025/config"
	"github.com/jaspermayone/wit-robotics-2025/input"
	"github.com/jaspermayone/wit-robotics-2025/maestro"
	"github.com/jaspermayone/wit-robotics-2025/motor"
	"github.com/jaspermayone/wit-robotics-2025/telemetry"
	"github.com/jaspermayone/wit-robotics-2025/web"
)

// Control mapping inverts (push stick forward = drive forward; the raw Y
// axis is inverted).
const (
	throttleInvert = -1
	turnInvert     = 1
)

type eventKind int

const (
	evReport eventKind = iota
	evTick
	evLinkLost
)

type event struct {
	kind   eventKind
	report input.Report
}

// dummySink replaces the servo controller on the bench: pulses go to the
// debug log instead of hardware.
type dummySink struct{}

func (dummySink) SetPulseUS(channel uint8, us uint16) {
	logrus.Debugf("pulse ch%d=%dus", channel, us)
}

// noSensors is the telemetry source when no board is attached.
type noSensors struct{}

func (noSensors) BatteryVolts() (float64, error) { return 0, fmt.Errorf("no battery sense") }
func (noSensors) CPUTempC() (float64, error)     { return 0, fmt.Errorf("no temp sense") }

func main() {
	app := cli.NewApp()
	app.Name = "bot"
	app.Usage = "run the robot side"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "serial",
			Value: "/dev/ttyACM0",
			Usage: "serial port of the servo controller",
		},
		cli.IntFlag{
			Name:  "baud",
			Value: 115200,
			Usage: "serial baud rate",
		},
		cli.BoolFlag{
			Name:  "dummy",
			Usage: "no hardware attached, log pulses instead",
		},
		cli.StringFlag{
			Name:  "http",
			Value: ":8080",
			Usage: "http server listening address",
		},
		cli.StringFlag{
			Name:  "mode",
			Value: "tank",
			Usage: "drive mode: tank or arcade",
		},
		cli.BoolFlag{
			Name:  "four-motor",
			Usage: "four drive motors, weapon auto-armed (bench policy)",
		},
		cli.StringFlag{
			Name:  "mqtt",
			Usage: "mqtt broker url for telemetry (empty = off)",
		},
		cli.StringFlag{
			Name:  "mqtt-topic",
			Value: "bot/telemetry",
			Usage: "mqtt telemetry topic",
		},
		cli.StringFlag{
			Name:  "blackbox",
			Usage: "path for the binary match log (empty = off)",
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "debug logging",
		},
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("bot failed")
	}
}

func run(c *cli.Context) error {
	log := logrus.StandardLogger()
	if c.GlobalBool("verbose") {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg := config.Default()
	if c.GlobalBool("four-motor") {
		cfg = config.FourMotor()
		log.Warn("four-motor config: weapon will AUTO-ARM")
	}

	mode := input.ModeTank
	if c.GlobalString("mode") == "arcade" {
		mode = input.ModeArcade
	}

	// Hardware sink.
	var sink motor.PulseWriter
	var board *maestro.Board
	if c.GlobalBool("dummy") {
		sink = dummySink{}
		log.Info("dummy mode: pulses go to the log")
	} else {
		b, err := maestro.Open(c.GlobalString("serial"), c.GlobalInt("baud"), 12, true)
		if err != nil {
			return err
		}
		defer b.Close()
		board = b
		sink = b
	}

	// Monotonic millisecond clock for all safety windows.
	start := time.Now()
	now := func() uint32 { return uint32(time.Since(start).Milliseconds()) }

	// Actuators, two or four drive plus the weapon.
	drivePulse := motor.PulseRange{MinUS: cfg.DriveMinUS, MidUS: cfg.DriveMidUS, MaxUS: cfg.DriveMaxUS}
	weaponPulse := motor.PulseRange{MinUS: cfg.WeaponMinUS, MidUS: cfg.WeaponMidUS, MaxUS: cfg.WeaponMaxUS}
	var left, right []*motor.Actuator
	for _, ch := range cfg.LeftChannels {
		left = append(left, motor.NewActuator(sink, ch, drivePulse, cfg.AbsMinUS, cfg.AbsMaxUS))
	}
	for _, ch := range cfg.RightChannels {
		right = append(right, motor.NewActuator(sink, ch, drivePulse, cfg.AbsMinUS, cfg.AbsMaxUS))
	}
	weapon := motor.NewActuator(sink, cfg.WeaponChannel, weaponPulse, cfg.AbsMinUS, cfg.AbsMaxUS)

	motors := motor.NewController(left, right, weapon, motor.ControllerConfig{
		MaxSpeed:          cfg.MaxSpeed,
		Deadband:          cfg.Deadband,
		AutoArm:           cfg.WeaponAutoArm,
		FailsafeEnabled:   cfg.FailsafeEnabled,
		FailsafeTimeoutMS: cfg.FailsafeTimeoutMS,
	}, now())

	interlock := arming.New(motors, cfg.ArmHoldTimeMS)
	dispatcher := input.NewDispatcher(motors, interlock, mode, throttleInvert, turnInvert)

	// Telemetry.
	var src telemetry.Source = noSensors{}
	if board != nil {
		src = &telemetry.BoardSource{
			ADC:          board,
			BatteryCh:    cfg.BatteryChannel,
			DividerRatio: cfg.BatteryADCRatio,
			ThermalZone:  "/sys/class/thermal/thermal_zone0/temp",
		}
	}
	tel := telemetry.NewCollector(src, telemetry.Thresholds{
		BatteryMinVolts:      cfg.BatteryMinVolts,
		BatteryLowVolts:      cfg.BatteryLowVolts,
		BatteryCriticalVolts: cfg.BatteryCriticalVolts,
		BatteryMaxVolts:      cfg.BatteryMaxVolts,
		OvertempC:            cfg.OvertempC,
	}, now())

	var publisher *telemetry.Publisher
	if broker := c.GlobalString("mqtt"); broker != "" {
		p, err := telemetry.NewPublisher(broker, "bot", c.GlobalString("mqtt-topic"))
		if err != nil {
			return err
		}
		defer p.Close()
		publisher = p
	}

	var box *blackbox.Logger
	if path := c.GlobalString("blackbox"); path != "" {
		b, err := blackbox.Create(path, now())
		if err != nil {
			return err
		}
		defer b.Close()
		box = b
	}

	// Event channel. Producers never block: if the loop is somehow behind,
	// dropping a frame is safer than queueing stale commands. Safety actions
	// must not ride this queue: StopAll is called directly from the producing
	// goroutine (mutex-serialized, never blocks), so an emergency stop cannot
	// be lost to overflow while live reports keep resetting the failsafe.
	events := make(chan event, 32)
	post := func(ev event) {
		select {
		case events <- ev:
		default:
			log.Warn("event dropped, control loop behind")
		}
	}

	// Web surface.
	srv := &web.Server{
		RobotName: cfg.RobotName,
		Motors:    motors,
		Telemetry: tel,
		OnReport:  func(r input.Report) { post(event{kind: evReport, report: r}) },
		OnLinkLost: func() {
			log.Warn("control link lost: emergency stop")
			motors.StopAll()
			post(event{kind: evLinkLost}) // bookkeeping only, droppable
		},
		OnStop: motors.StopAll,
	}
	go func() {
		log.Infof("status page on %s", c.GlobalString("http"))
		log.WithError(http.ListenAndServe(c.GlobalString("http"), srv.Routes())).Fatal("http server died")
	}()

	// Fixed-period tick, independent of input arriving.
	ticker := time.NewTicker(time.Duration(cfg.TickMS) * time.Millisecond)
	defer ticker.Stop()
	go func() {
		for range ticker.C {
			post(event{kind: evTick})
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()

	log.Infof("%s ready (weapon disarmed, hold LB+RB %ds to arm)", cfg.RobotName, cfg.ArmHoldTimeMS/1000)

	var lastTelemetry, lastBlackbox uint32
	batteryStopped := false
	linkUp := false

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down, stopping all motors")
			motors.StopAll()
			return nil

		case ev := <-events:
			t := now()
			switch ev.kind {
			case evReport:
				linkUp = true
				dispatcher.HandleReport(ev.report, t)
			case evTick:
				dispatcher.Tick(t)
			case evLinkLost:
				// The stop already happened in the callback.
				linkUp = false
			}

			// Periodic upkeep rides on whatever event fired; the 100ms tick
			// guarantees a floor rate.
			if t-lastTelemetry >= cfg.TelemetryIntervalMS {
				lastTelemetry = t
				sample := tel.Update(t)

				if cfg.LowBatteryCutoff {
					if sample.BatteryCritical && !batteryStopped {
						log.Warn("!!! CRITICAL BATTERY - EMERGENCY STOP !!!")
						motors.StopAll()
						batteryStopped = true
					} else if !sample.BatteryCritical {
						batteryStopped = false
					}
				}

				if publisher != nil {
					publisher.Publish(sample, motors.Status())
				}
			}

			if box != nil && t-lastBlackbox >= cfg.BlackboxIntervalMS {
				lastBlackbox = t
				st := motors.Status()
				sample := tel.Last()
				var flags uint8
				if st.WeaponArmed {
					flags |= blackbox.FlagArmed
				}
				if st.Failsafe {
					flags |= blackbox.FlagFailsafe
				}
				if sample.BatteryLow {
					flags |= blackbox.FlagLowBattery
				}
				if sample.Overtemp {
					flags |= blackbox.FlagOvertemp
				}
				if linkUp {
					flags |= blackbox.FlagWiFiConnected
				}
				if err := box.Append(blackbox.Record{
					TimestampMS:   t,
					Left:          int16(st.Left),
					Right:         int16(st.Right),
					Weapon:        int16(st.Weapon),
					BatteryCentiV: uint16(sample.BatteryVolts * 100),
					Flags:         flags,
				}); err != nil {
					log.WithError(err).Error("blackbox write failed")
				}
			}
		}
	}
}
