// Package servo replaces the lift motor and its rotation sensor with a single
// Feetech STS servo acting as a winch.
package servo

import "github.com/hagbeck/containerterminal/pkg/brick"

// Calibration maps servo positions onto rotation sensor readings.
type Calibration struct {
	// Home is the servo position that reads as rotation 0.
	Home int
	// TicksPerStep is the servo travel of one rotation step of 16 units.
	TicksPerStep int
	// TicksPerPower is the travel per jog period and power level.
	TicksPerPower int
	RangeMin      int
	RangeMax      int
}

// Rotation converts a raw servo position to a rotation sensor reading, a
// multiple of brick.RotationStep.
func (c Calibration) Rotation(pos int) int {
	if c.TicksPerStep == 0 {
		return 0
	}
	return (pos - c.Home) / c.TicksPerStep * brick.RotationStep
}

// Position converts a rotation reading back to a servo position.
func (c Calibration) Position(rotation int) int {
	return c.Home + rotation/brick.RotationStep*c.TicksPerStep
}

// Jog returns the target after one jog period in direction dir at power.
func (c Calibration) Jog(target int, dir brick.Direction, power int) int {
	delta := power * c.TicksPerPower
	switch dir {
	case brick.Forward:
		target += delta
	case brick.Backward:
		target -= delta
	default:
		return target
	}
	return c.Clamp(target)
}

// Clamp limits pos to the servo range. An empty range leaves pos unchanged.
func (c Calibration) Clamp(pos int) int {
	if c.RangeMax <= c.RangeMin {
		return pos
	}
	return max(c.RangeMin, min(c.RangeMax, pos))
}
