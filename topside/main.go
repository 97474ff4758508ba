// Command topside is the operator console: it reads a gamepad HID and
// streams controller reports to the robot's /control websocket at a fixed
// rate. All safety logic lives on the robot; this side is deliberately dumb.
package main

import (
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/splace/joysticks"
	"github.com/urfave/cli"

	"github.com/jaspermayone/wit-robotics-2025/input"
)

func bound(x float64, min float64, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}

func mapVal(x float64, inmin float64, inmax float64, outmin float64, outmax float64) float64 {
	return bound((x-inmin)*(outmax-outmin)/(inmax-inmin)+outmin, outmin, outmax)
}

func main() {
	app := cli.NewApp()
	app.Name = "topside"
	app.Usage = "operator console: gamepad to robot control link"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "bot",
			Value: "ws://192.168.4.1:8080/control",
			Usage: "robot control websocket url",
		},
		cli.IntFlag{
			Name:  "pad",
			Value: 1,
			Usage: "gamepad device index",
		},
		cli.IntFlag{
			Name:  "rate",
			Value: 25,
			Usage: "report send rate, Hz",
		},
		// HID layouts differ per pad; these match a stock Xbox pad on evdev.
		cli.IntFlag{Name: "hat-left", Value: 1, Usage: "hat index of the left stick"},
		cli.IntFlag{Name: "hat-right", Value: 2, Usage: "hat index of the right stick"},
		cli.IntFlag{Name: "hat-trigger", Value: 3, Usage: "hat index of the triggers"},
		cli.IntFlag{Name: "hat-dpad", Value: 4, Usage: "hat index of the d-pad"},
		cli.IntFlag{Name: "btn-lb", Value: 5, Usage: "button index of the left bumper"},
		cli.IntFlag{Name: "btn-rb", Value: 6, Usage: "button index of the right bumper"},
		cli.IntFlag{Name: "btn-stop", Value: 9, Usage: "button index of the emergency stop"},
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("topside failed")
	}
}

func run(c *cli.Context) error {
	log := logrus.StandardLogger()

	pad := joysticks.Connect(c.GlobalInt("pad"))
	if pad == nil {
		log.Fatalf("no gamepad at index %d", c.GlobalInt("pad"))
	}
	log.Infof("gamepad connected: %d buttons, %d hats", len(pad.Buttons), len(pad.HatAxes))

	leftStick := pad.OnMove(uint8(c.GlobalInt("hat-left")))
	rightStick := pad.OnMove(uint8(c.GlobalInt("hat-right")))
	triggers := pad.OnMove(uint8(c.GlobalInt("hat-trigger")))
	dpad := pad.OnMove(uint8(c.GlobalInt("hat-dpad")))
	lbDown := pad.OnClose(uint8(c.GlobalInt("btn-lb")))
	lbUp := pad.OnOpen(uint8(c.GlobalInt("btn-lb")))
	rbDown := pad.OnClose(uint8(c.GlobalInt("btn-rb")))
	rbUp := pad.OnOpen(uint8(c.GlobalInt("btn-rb")))
	stopDown := pad.OnClose(uint8(c.GlobalInt("btn-stop")))
	stopUp := pad.OnOpen(uint8(c.GlobalInt("btn-stop")))
	go pad.ParcelOutEvents()

	ws, _, err := websocket.DefaultDialer.Dial(c.GlobalString("bot"), nil)
	if err != nil {
		log.WithError(err).Fatalf("failed to connect to %q", c.GlobalString("bot"))
	}
	defer ws.Close()
	log.Infof("control link up: %s", c.GlobalString("bot"))

	var report input.Report
	tick := time.NewTicker(time.Second / time.Duration(c.GlobalInt("rate")))
	defer tick.Stop()

	for {
		select {
		case <-tick.C:
			if err := ws.WriteJSON(report); err != nil {
				log.WithError(err).Fatal("control link lost")
			}

		case ev := <-leftStick:
			coords := ev.(joysticks.CoordsEvent)
			report.AxisX = int(mapVal(float64(coords.X), -1, 1, input.StickMin, input.StickMax))
			report.AxisY = int(mapVal(float64(coords.Y), -1, 1, input.StickMin, input.StickMax))
		case ev := <-rightStick:
			coords := ev.(joysticks.CoordsEvent)
			report.AxisRX = int(mapVal(float64(coords.X), -1, 1, input.StickMin, input.StickMax))
			report.AxisRY = int(mapVal(float64(coords.Y), -1, 1, input.StickMin, input.StickMax))
		case ev := <-triggers:
			coords := ev.(joysticks.CoordsEvent)
			report.Brake = int(mapVal(float64(coords.X), -1, 1, 0, input.TriggerMax))
			report.Throttle = int(mapVal(float64(coords.Y), -1, 1, 0, input.TriggerMax))
		case ev := <-dpad:
			// The d-pad is a hat reporting -1/0/1 per axis.
			coords := ev.(joysticks.CoordsEvent)
			report.DPad = 0
			if coords.Y < -0.5 {
				report.DPad |= input.DPadUp
			} else if coords.Y > 0.5 {
				report.DPad |= input.DPadDown
			}
			if coords.X > 0.5 {
				report.DPad |= input.DPadRight
			} else if coords.X < -0.5 {
				report.DPad |= input.DPadLeft
			}

		case <-lbDown:
			report.Buttons |= input.ButtonShoulderL
		case <-lbUp:
			report.Buttons &^= input.ButtonShoulderL
		case <-rbDown:
			report.Buttons |= input.ButtonShoulderR
		case <-rbUp:
			report.Buttons &^= input.ButtonShoulderR
		case <-stopDown:
			report.MiscButtons |= input.MiscButtonSystem
		case <-stopUp:
			report.MiscButtons &^= input.MiscButtonSystem
		}
	}
}
