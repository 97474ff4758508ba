// Package telemetry samples battery voltage and CPU temperature and turns
// them into the health flags the safety layer consumes. The core only ever
// reads the boolean/numeric outputs; where the numbers come from sits behind
// the Source interface.
package telemetry

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Source provides raw sensor readings.
type Source interface {
	BatteryVolts() (float64, error)
	CPUTempC() (float64, error)
}

// Thresholds for flagging battery and temperature state.
type Thresholds struct {
	BatteryMinVolts      float64 // 0% / emergency floor
	BatteryLowVolts      float64 // warn
	BatteryCriticalVolts float64 // force stop (when cutoff enabled)
	BatteryMaxVolts      float64 // 100%
	OvertempC            float64
}

// Sample is one telemetry snapshot.
type Sample struct {
	BatteryVolts    float64 `json:"battery_volts"`
	BatteryPercent  int     `json:"battery_percent"`
	CPUTempC        float64 `json:"cpu_temp_c"`
	UptimeMS        uint32  `json:"uptime_ms"`
	BatteryLow      bool    `json:"battery_low"`
	BatteryCritical bool    `json:"battery_critical"`
	Overtemp        bool    `json:"overtemp"`
}

// Collector periodically updates a Sample from a Source. Update runs on the
// control loop; Last may be called from the web handlers, hence the mutex.
type Collector struct {
	mu      sync.Mutex
	src     Source
	thr     Thresholds
	startMS uint32
	last    Sample
	log     *logrus.Entry
}

// NewCollector starts the uptime clock at now.
func NewCollector(src Source, thr Thresholds, now uint32) *Collector {
	return &Collector{
		src:     src,
		thr:     thr,
		startMS: now,
		log:     logrus.WithField("component", "telemetry"),
	}
}

// Update reads the source and recomputes flags. Read errors keep the previous
// values; a battery sensor dropping out must not flap the critical flag.
func (c *Collector) Update(now uint32) Sample {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.last
	s.UptimeMS = now - c.startMS

	if volts, err := c.src.BatteryVolts(); err == nil {
		s.BatteryVolts = volts
		percent := (volts - c.thr.BatteryMinVolts) / (c.thr.BatteryMaxVolts - c.thr.BatteryMinVolts) * 100
		if percent < 0 {
			percent = 0
		} else if percent > 100 {
			percent = 100
		}
		s.BatteryPercent = int(percent)
		s.BatteryLow = volts < c.thr.BatteryLowVolts
		s.BatteryCritical = volts < c.thr.BatteryCriticalVolts
	} else {
		c.log.WithError(err).Debug("battery read failed")
	}

	if temp, err := c.src.CPUTempC(); err == nil {
		s.CPUTempC = temp
		s.Overtemp = temp > c.thr.OvertempC
	} else {
		c.log.WithError(err).Debug("cpu temp read failed")
	}

	c.last = s
	return s
}

// Last returns the most recent sample without touching the source.
func (c *Collector) Last() Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// BatteryCritical reports whether the last sample crossed the critical
// threshold.
func (c *Collector) BatteryCritical() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last.BatteryCritical
}

// AnalogReader is the slice of the servo controller the battery sense line
// hangs off (the Maestro's spare channels double as a 10-bit ADC).
type AnalogReader interface {
	GetAnalog(channel uint8) (uint16, error)
}

// BoardSource reads the battery through the servo controller's ADC and the
// CPU temperature from the SoC thermal zone.
type BoardSource struct {
	ADC          AnalogReader
	BatteryCh    uint8
	DividerRatio float64 // external voltage divider on the battery sense line
	ThermalZone  string  // e.g. /sys/class/thermal/thermal_zone0/temp
}

// BatteryVolts converts the raw ADC count (0..1023 over 0..5V) through the
// divider ratio.
func (b *BoardSource) BatteryVolts() (float64, error) {
	raw, err := b.ADC.GetAnalog(b.BatteryCh)
	if err != nil {
		return 0, err
	}
	return float64(raw) / 1023.0 * 5.0 * b.DividerRatio, nil
}

// CPUTempC reads the kernel thermal zone (millidegrees).
func (b *BoardSource) CPUTempC() (float64, error) {
	raw, err := os.ReadFile(b.ThermalZone)
	if err != nil {
		return 0, err
	}
	milli, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, err
	}
	return float64(milli) / 1000.0, nil
}
