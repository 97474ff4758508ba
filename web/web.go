// Package web exposes the robot over HTTP: an auto-refreshing status page,
// a JSON status endpoint, an emergency stop endpoint, and the websocket
// control ingest the operator console streams reports into.
//
// Handlers never touch control state directly; reports and stop requests are
// handed to callbacks that feed the single control loop.
package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/jaspermayone/wit-robotics-2025/input"
	"github.com/jaspermayone/wit-robotics-2025/motor"
	"github.com/jaspermayone/wit-robotics-2025/telemetry"
)

// Server serves the robot's HTTP surface.
type Server struct {
	RobotName string
	Motors    *motor.Controller
	Telemetry *telemetry.Collector

	// OnReport receives each decoded controller report.
	OnReport func(input.Report)
	// OnLinkLost fires when the control socket drops.
	OnLinkLost func()
	// OnStop fires on the emergency stop endpoint.
	OnStop func()

	ctl      xMutex
	upgrader websocket.Upgrader
	log      *logrus.Entry
}

// Routes registers all handlers on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	s.log = logrus.WithField("component", "web")

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/stop", s.handleStop)
	mux.HandleFunc("/control", s.handleControl)
	return mux
}

// handleControl upgrades to a websocket and reads controller reports until
// the link dies. Only one operator at a time.
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Cache-Control", "no-cache")
	if err := s.ctl.Lock(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	defer s.ctl.Unlock()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Error("websocket upgrade failed")
		return
	}
	defer ws.Close()
	s.log.Infof("operator connected from %s", r.RemoteAddr)

	for {
		var rep input.Report
		if err := ws.ReadJSON(&rep); err != nil {
			s.log.WithError(err).Warn("control link lost")
			if s.OnLinkLost != nil {
				s.OnLinkLost()
			}
			return
		}
		if s.OnReport != nil {
			s.OnReport(rep)
		}
	}
}

// statusPayload is the JSON status surface.
type statusPayload struct {
	Robot     string           `json:"robot"`
	Motors    motor.Status     `json:"motors"`
	Telemetry telemetry.Sample `json:"telemetry"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statusPayload{
		Robot:     s.RobotName,
		Motors:    s.Motors.Status(),
		Telemetry: s.Telemetry.Last(),
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	s.log.Warn("emergency stop via HTTP")
	if s.OnStop != nil {
		s.OnStop()
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleIndex renders the status dashboard: weapon banner, motor speeds,
// battery and temperature, refreshed every 2 seconds.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	st := s.Motors.Status()
	tel := s.Telemetry.Last()

	weaponClass, weaponText := "safe", "SAFE"
	if st.WeaponArmed {
		weaponClass, weaponText = "armed", "ARMED"
	}
	battClass := ""
	if tel.BatteryCritical {
		battClass = "crit"
	} else if tel.BatteryLow {
		battClass = "warn"
	}
	tempClass := ""
	if tel.Overtemp {
		tempClass = "crit"
	}
	failsafe := ""
	if st.Failsafe {
		failsafe = "<div class='box'><div class='value crit'>FAILSAFE ACTIVE</div></div>"
	}

	w.Header().Set("Content-Type", "text/html")
	w.Header().Set("Refresh", "2")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html><head>
<meta name='viewport' content='width=device-width,initial-scale=1'>
<title>%s</title>
<style>
body{font-family:monospace;background:#1a1a2e;color:#eee;padding:20px;}
h1{color:#e94560;}
.box{background:#16213e;padding:15px;margin:10px 0;border-radius:8px;}
.label{color:#888;}
.value{font-size:1.5em;}
.armed{color:#ff4444;font-weight:bold;}
.safe{color:#44ff44;}
.warn{color:#ffaa00;}
.crit{color:#ff0000;}
</style>
</head><body>
<h1>%s</h1>
%s
<div class='box'><div class='label'>WEAPON STATUS</div><div class='value %s'>%s</div></div>
<div class='box'><div class='label'>Motors</div><div>Left: %+d%% | Right: %+d%% | Weapon: %d%%</div></div>
<div class='box'><div class='label'>Battery</div><div class='value %s'>%.2fV (%d%%)</div></div>
<div class='box'><div class='label'>CPU Temp</div><div class='value %s'>%.1f&deg;C</div></div>
<div class='box'><div class='label'>Uptime</div><div>%ds</div></div>
</body></html>`,
		s.RobotName, s.RobotName, failsafe,
		weaponClass, weaponText,
		st.Left, st.Right, st.Weapon,
		battClass, tel.BatteryVolts, tel.BatteryPercent,
		tempClass, tel.CPUTempC,
		tel.UptimeMS/1000)
}
