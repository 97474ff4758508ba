package motor

import "golang.org/x/exp/constraints"

// Pure mixing math. No state, no hardware.

// Clamp limits v to lo..hi.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MapRange maps v from one integer range onto another, linearly, truncating
// toward zero.
func MapRange[T constraints.Integer](v, inMin, inMax, outMin, outMax T) T {
	return (v-inMin)*(outMax-outMin)/(inMax-inMin) + outMin
}

// ApplyDeadband returns 0 for inputs smaller than threshold and passes
// everything else through unchanged. No rescaling: a stick just past the
// deadband jumps to its raw value, same as the stock firmware.
func ApplyDeadband(v, threshold int) int {
	if v < threshold && v > -threshold {
		return 0
	}
	return v
}

// Tank passes the two side speeds through unchanged.
func Tank(left, right int) (int, int) {
	return left, right
}

// Arcade mixes a throttle and a turn input into side speeds. If either side
// exceeds maxSpeed, both are rescaled by integer division so the left:right
// ratio and signs are preserved. Deadband is the caller's job and applies to
// the raw inputs, not the mixed outputs.
func Arcade(throttle, turn, maxSpeed int) (left, right int) {
	left = throttle + turn
	right = throttle - turn

	maxVal := left
	if maxVal < 0 {
		maxVal = -maxVal
	}
	if r := right; r < 0 {
		if -r > maxVal {
			maxVal = -r
		}
	} else if r > maxVal {
		maxVal = r
	}

	if maxVal > maxSpeed {
		left = left * maxSpeed / maxVal
		right = right * maxSpeed / maxVal
	}
	return left, right
}
