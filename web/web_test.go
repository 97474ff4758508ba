package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jaspermayone/wit-robotics-2025/input"
	"github.com/jaspermayone/wit-robotics-2025/motor"
	"github.com/jaspermayone/wit-robotics-2025/telemetry"
)

type fakeSink struct{}

func (fakeSink) SetPulseUS(uint8, uint16) {}

type fakeSensors struct{}

func (fakeSensors) BatteryVolts() (float64, error) { return 12.3, nil }
func (fakeSensors) CPUTempC() (float64, error)     { return 45.0, nil }

func newTestServer(t *testing.T) (*Server, *httptest.Server, chan input.Report) {
	t.Helper()
	drive := motor.PulseRange{MinUS: 1000, MidUS: 1500, MaxUS: 2000}
	sink := fakeSink{}
	c := motor.NewController(
		[]*motor.Actuator{motor.NewActuator(sink, 0, drive, 900, 2100)},
		[]*motor.Actuator{motor.NewActuator(sink, 1, drive, 900, 2100)},
		motor.NewActuator(sink, 4, drive, 900, 2100),
		motor.ControllerConfig{MaxSpeed: 100, Deadband: 10},
		0,
	)
	col := telemetry.NewCollector(fakeSensors{}, telemetry.Thresholds{
		BatteryMinVolts: 10, BatteryLowVolts: 10.8,
		BatteryCriticalVolts: 10.2, BatteryMaxVolts: 12.6,
		OvertempC: 70,
	}, 0)
	col.Update(1000)

	reports := make(chan input.Report, 8)
	s := &Server{
		RobotName: "Test Bot",
		Motors:    c,
		Telemetry: col,
		OnReport:  func(r input.Report) { reports <- r },
	}
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return s, ts, reports
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/control"
}

func TestControlSocketDeliversReports(t *testing.T) {
	_, ts, reports := newTestServer(t)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	sent := input.Report{AxisY: -512, Throttle: 1023, Buttons: input.ButtonShoulderL}
	if err := ws.WriteJSON(sent); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case got := <-reports:
		if got != sent {
			t.Fatalf("report mangled in transit: %+v != %+v", got, sent)
		}
	case <-time.After(time.Second):
		t.Fatal("report never reached the callback")
	}
}

func TestSecondOperatorRejected(t *testing.T) {
	_, ts, _ := newTestServer(t)

	first, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("first dial: %v", err)
	}
	defer first.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err == nil {
		t.Fatal("second operator got a control socket")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("second dial response: %+v", resp)
	}
}

func TestLinkLostCallback(t *testing.T) {
	s, ts, _ := newTestServer(t)
	lost := make(chan struct{}, 1)
	s.OnLinkLost = func() { lost <- struct{}{} }

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	ws.Close()

	select {
	case <-lost:
	case <-time.After(time.Second):
		t.Fatal("link loss never reported")
	}
}

func TestStatusEndpoint(t *testing.T) {
	_, ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var got statusPayload
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Robot != "Test Bot" {
		t.Errorf("robot %q, want Test Bot", got.Robot)
	}
	if got.Telemetry.BatteryVolts != 12.3 {
		t.Errorf("battery %.2f, want 12.3", got.Telemetry.BatteryVolts)
	}
	if got.Motors.WeaponArmed {
		t.Error("fresh controller reports armed")
	}
}

func TestStopEndpoint(t *testing.T) {
	s, ts, _ := newTestServer(t)
	stopped := make(chan struct{}, 1)
	s.OnStop = func() { stopped <- struct{}{} }

	resp, err := http.Post(ts.URL+"/api/stop", "", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status %d, want 204", resp.StatusCode)
	}
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("stop callback never fired")
	}

	resp, err = http.Get(ts.URL + "/api/stop")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET stop status %d, want 405", resp.StatusCode)
	}
}

// The stop endpoint's callback is wired straight to StopAll: motors must be
// stopped by the time the handler returns, with nothing consuming events in
// between. A queued stop could be dropped under load while live reports keep
// the failsafe happy.
func TestStopActsBeforeHandlerReturns(t *testing.T) {
	s, ts, _ := newTestServer(t)
	s.OnStop = s.Motors.StopAll

	s.Motors.ArmWeapon()
	s.Motors.TankDrive(70, -70, 0)
	s.Motors.SetWeapon(90, 0)

	resp, err := http.Post(ts.URL+"/api/stop", "", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status %d, want 204", resp.StatusCode)
	}

	st := s.Motors.Status()
	if st.Left != 0 || st.Right != 0 || st.Weapon != 0 || st.WeaponArmed {
		t.Fatalf("motors still live after stop returned: %+v", st)
	}
}

func TestIndexPage(t *testing.T) {
	_, ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	page := string(body)
	for _, want := range []string{"Test Bot", "SAFE", "12.30V", "WEAPON STATUS"} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if resp.Header.Get("Refresh") != "2" {
		t.Errorf("refresh header %q, want 2", resp.Header.Get("Refresh"))
	}

	resp, err = http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown path status %d, want 404", resp.StatusCode)
	}
}
