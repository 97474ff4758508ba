package telemetry

import (
	"errors"
	"testing"
)

type fakeSource struct {
	volts, temp float64
	err         error
}

func (f *fakeSource) BatteryVolts() (float64, error) { return f.volts, f.err }
func (f *fakeSource) CPUTempC() (float64, error)     { return f.temp, f.err }

func testThresholds() Thresholds {
	return Thresholds{
		BatteryMinVolts:      10.0,
		BatteryLowVolts:      10.8,
		BatteryCriticalVolts: 10.2,
		BatteryMaxVolts:      12.6,
		OvertempC:            70.0,
	}
}

func TestBatteryPercentAndFlags(t *testing.T) {
	cases := []struct {
		volts    float64
		percent  int
		low      bool
		critical bool
	}{
		{12.6, 100, false, false},
		{13.0, 100, false, false}, // charger still connected
		{11.3, 50, false, false},
		{10.5, 19, true, false},
		{10.1, 3, true, true},
		{9.0, 0, true, true},
	}
	for _, c := range cases {
		src := &fakeSource{volts: c.volts, temp: 30}
		col := NewCollector(src, testThresholds(), 0)
		s := col.Update(100)
		if s.BatteryPercent != c.percent || s.BatteryLow != c.low || s.BatteryCritical != c.critical {
			t.Errorf("%.1fV: percent=%d low=%v crit=%v, want %d %v %v",
				c.volts, s.BatteryPercent, s.BatteryLow, s.BatteryCritical, c.percent, c.low, c.critical)
		}
	}
}

func TestOvertemp(t *testing.T) {
	src := &fakeSource{volts: 12.0, temp: 75}
	col := NewCollector(src, testThresholds(), 0)
	if s := col.Update(0); !s.Overtemp {
		t.Error("75C not flagged as overtemp")
	}
	src.temp = 40
	if s := col.Update(100); s.Overtemp {
		t.Error("overtemp flag stuck after cooling")
	}
}

func TestReadErrorKeepsLastSample(t *testing.T) {
	src := &fakeSource{volts: 12.0, temp: 30}
	col := NewCollector(src, testThresholds(), 0)
	col.Update(100)

	src.err = errors.New("adc timeout")
	s := col.Update(200)
	if s.BatteryVolts != 12.0 {
		t.Errorf("read error clobbered the sample: %.2fV", s.BatteryVolts)
	}
	if s.BatteryCritical {
		t.Error("read error flapped the critical flag")
	}
	if s.UptimeMS != 200 {
		t.Errorf("uptime %d, want 200", s.UptimeMS)
	}
}

func TestUptime(t *testing.T) {
	col := NewCollector(&fakeSource{volts: 12, temp: 30}, testThresholds(), 1000)
	if s := col.Update(3500); s.UptimeMS != 2500 {
		t.Errorf("uptime %d, want 2500", s.UptimeMS)
	}
}

func TestBatteryCritical(t *testing.T) {
	src := &fakeSource{volts: 10.0, temp: 30}
	col := NewCollector(src, testThresholds(), 0)
	col.Update(0)
	if !col.BatteryCritical() {
		t.Error("10.0V not critical")
	}
	src.volts = 12.0
	col.Update(100)
	if col.BatteryCritical() {
		t.Error("critical flag stuck after recovery")
	}
}
