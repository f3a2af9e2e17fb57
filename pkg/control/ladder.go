package control

import "github.com/hagbeck/containerterminal/pkg/brick"

// The power ladder is a signed accumulator over [-MaxPower, MaxPower]: power holds
// the magnitude and the motor direction holds the sign. Stepping through zero
// stops the motor, the next step starts it in the other direction.

// increment moves a motor one step toward full forward power.
func increment(m brick.Motor) {
	power := m.Power()
	switch {
	case power == 0:
		m.SetPower(1)
		m.Forward()
	case m.Direction() == brick.Backward:
		slowDown(m, power)
	default:
		m.SetPower(min(brick.MaxPower, power+1))
		m.Forward()
	}
}

// decrement moves a motor one step toward full backward power.
func decrement(m brick.Motor) {
	power := m.Power()
	switch {
	case power == 0:
		m.SetPower(1)
		m.Backward()
	case m.Direction() == brick.Forward:
		slowDown(m, power)
	default:
		m.SetPower(min(brick.MaxPower, power+1))
		m.Backward()
	}
}

func slowDown(m brick.Motor, power int) {
	power = max(0, power-1)
	m.SetPower(power)
	if power == 0 {
		m.Stop()
	}
}
