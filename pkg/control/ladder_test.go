package control

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/hagbeck/containerterminal/pkg/brick"
)

// applyLadder runs a sequence of "up" and "down" steps on a motor.
func applyLadder(m brick.Motor, steps string) {
	for _, s := range strings.Fields(steps) {
		switch s {
		case "up":
			increment(m)
		case "down":
			decrement(m)
		}
	}
}

func TestLadder(t *testing.T) {
	tests := []struct {
		name  string
		steps string
		power int
		dir   brick.Direction
	}{
		{"three up", "up up up", 3, brick.Forward},
		{"back to rest", "up up up down down down", 0, brick.Idle},
		{"through zero", "up up up down down down down", 1, brick.Backward},
		{"saturate forward", strings.Repeat("up ", 10), 7, brick.Forward},
		{"saturate backward", strings.Repeat("down ", 9), 7, brick.Backward},
		{"full forward minus one", strings.Repeat("up ", 7) + "down", 6, brick.Forward},
		{"full forward to rest", strings.Repeat("up ", 7) + strings.Repeat("down ", 7), 0, brick.Idle},
		{"full forward to backward", strings.Repeat("up ", 7) + strings.Repeat("down ", 8), 1, brick.Backward},
		{"round trip", "up down", 0, brick.Idle},
		{"backward slows on up", "down down down up", 2, brick.Backward},
		{"backward to forward", "down up up", 1, brick.Forward},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &brick.MotorState{}
			applyLadder(m, tt.steps)
			if m.Power() != tt.power || m.Direction() != tt.dir {
				t.Errorf("after %q: power %d %s, want %d %s", tt.steps, m.Power(), m.Direction(), tt.power, tt.dir)
			}
		})
	}
}

func TestLadder_IdleWithPower(t *testing.T) {
	// Motors idle with power left, as after boot or a limit stop.
	m := &brick.MotorState{}
	m.SetPower(5)
	decrement(m)
	if m.Power() != 6 || m.Direction() != brick.Backward {
		t.Errorf("decrement from idle power 5: %d %s, want 6 backward", m.Power(), m.Direction())
	}

	m = &brick.MotorState{}
	m.SetPower(5)
	increment(m)
	if m.Power() != 6 || m.Direction() != brick.Forward {
		t.Errorf("increment from idle power 5: %d %s, want 6 forward", m.Power(), m.Direction())
	}
}

func TestLadder_Invariant(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	m := &brick.MotorState{}
	signed := 0

	for i := 0; i < 2000; i++ {
		if rng.Intn(2) == 0 {
			increment(m)
			signed = min(signed+1, brick.MaxPower)
		} else {
			decrement(m)
			signed = max(signed-1, -brick.MaxPower)
		}

		power, dir := m.Power(), m.Direction()
		if power < 0 || power > brick.MaxPower {
			t.Fatalf("step %d: power %d out of range", i, power)
		}
		if (power == 0) != (dir == brick.Idle) {
			t.Fatalf("step %d: power %d with direction %s", i, power, dir)
		}
		if got := m.Signed(); got != signed {
			t.Fatalf("step %d: signed power %d, want %d", i, got, signed)
		}
	}
}
