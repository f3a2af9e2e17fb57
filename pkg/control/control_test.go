package control

import (
	"testing"
	"time"

	"github.com/edaniels/golog"

	"github.com/hagbeck/containerterminal/pkg/brick"
	"github.com/hagbeck/containerterminal/pkg/sim"
)

// newTestController returns a controller on a fresh simulator with an empty call log.
func newTestController(t *testing.T, cfg Config) (*Controller, *sim.Terminal) {
	t.Helper()
	term := sim.New(sim.Config{}, golog.NewTestLogger(t))
	if cfg.Hz == 0 {
		cfg.Hz = 1000
	}
	c := New(term.Brick(), cfg, golog.NewTestLogger(t))
	term.ResetCalls()
	return c, term
}

var resetCalls = []string{
	"A.Stop", "A.SetPower(0)",
	"B.Stop", "B.SetPower(0)",
	"C.Stop", "C.SetPower(0)",
	"S1.Passivate", "S2.Passivate", "S3.Passivate",
}

func press(c *Controller, cmd brick.Command, motor brick.MotorName, n int) {
	for i := 0; i < n; i++ {
		c.Handle(brick.Event{Cmd: cmd, Motor: motor})
	}
}

func motorStatus(b *brick.Brick, name brick.MotorName) MotorStatus {
	m := b.Motor(name)
	return MotorStatus{Power: m.Power(), Direction: m.Direction()}
}

// scriptedSensor replays rotation readings; the last one repeats.
type scriptedSensor struct {
	brick.Sensor
	values []int
	reads  int
}

func (s *scriptedSensor) ReadValue() int {
	v := s.values[min(s.reads, len(s.values)-1)]
	s.reads++
	return v
}

func (s *scriptedSensor) ReadBoolean() bool {
	return s.ReadValue() != 0
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 2s")
		}
		time.Sleep(time.Millisecond)
	}
}
