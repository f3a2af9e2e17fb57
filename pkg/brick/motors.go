// Package brick provides the hardware abstraction of the container terminal's brick.
package brick

// MotorName identifies a motor output on the brick.
type MotorName string

// Motor outputs of the brick.
const (
	MotorA MotorName = "A" // crane carriage
	MotorB MotorName = "B" // lift wagon
	MotorC MotorName = "C"
)

// MaxPower is the highest power level a motor accepts.
const MaxPower = 7

// AllMotors returns all motor names in output order.
func AllMotors() []MotorName {
	return []MotorName{
		MotorA,
		MotorB,
		MotorC,
	}
}

// Direction is the drive state of a motor.
type Direction int

const (
	Idle Direction = iota
	Forward
	Backward
)

func (d Direction) String() string {
	switch d {
	case Idle:
		return "idle"
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	}
	return "unknown"
}

// Motor is a single motor output.
type Motor interface {
	// SetPower sets the power level, clamped to [0, MaxPower].
	SetPower(power int)
	Forward()
	Backward()
	// Stop brakes the motor. The power level is kept.
	Stop()
	Power() int
	Direction() Direction
}

// ClampPower limits power to the range [0, MaxPower].
func ClampPower(power int) int {
	return min(max(power, 0), MaxPower)
}

// MotorState tracks power and direction for motors whose device cannot be queried.
type MotorState struct {
	power int
	dir   Direction
}

func (s *MotorState) SetPower(power int) { s.power = ClampPower(power) }
func (s *MotorState) Forward()           { s.dir = Forward }
func (s *MotorState) Backward()          { s.dir = Backward }
func (s *MotorState) Stop()              { s.dir = Idle }
func (s *MotorState) Power() int         { return s.power }
func (s *MotorState) Direction() Direction {
	return s.dir
}

// Signed returns the power with the direction as its sign.
func (s *MotorState) Signed() int {
	return Signed(s.power, s.dir)
}

// Signed combines a power level and direction into one signed value.
// Idle motors report 0.
func Signed(power int, dir Direction) int {
	switch dir {
	case Forward:
		return power
	case Backward:
		return -power
	}
	return 0
}
