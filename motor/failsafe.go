package motor

// FailsafeMonitor tracks command recency. When no command has been accepted
// for longer than the timeout the controller forces an all-stop, exactly once
// per stale period. Times are monotonic milliseconds; subtraction is
// wrap-tolerant by being unsigned.
type FailsafeMonitor struct {
	enabled   bool
	timeoutMS uint32

	lastCommandMS uint32
	triggered     bool
}

// NewFailsafeMonitor starts the staleness window at now.
func NewFailsafeMonitor(enabled bool, timeoutMS, now uint32) *FailsafeMonitor {
	return &FailsafeMonitor{
		enabled:       enabled,
		timeoutMS:     timeoutMS,
		lastCommandMS: now,
	}
}

// Reset marks a command as accepted and clears any triggered state.
func (f *FailsafeMonitor) Reset(now uint32) {
	f.lastCommandMS = now
	f.triggered = false
}

// Stale reports whether the window has expired. Always false when the
// failsafe is disabled.
func (f *FailsafeMonitor) Stale(now uint32) bool {
	if !f.enabled {
		return false
	}
	return now-f.lastCommandMS > f.timeoutMS
}

// Trip latches the triggered flag. Returns true only on the first call of a
// stale period, so the stop action fires once.
func (f *FailsafeMonitor) Trip() bool {
	if f.triggered {
		return false
	}
	f.triggered = true
	return true
}

// Triggered reports whether the failsafe has fired in the current period.
func (f *FailsafeMonitor) Triggered() bool { return f.triggered }
