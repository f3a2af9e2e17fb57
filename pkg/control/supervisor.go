package control

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/hagbeck/containerterminal/pkg/brick"
)

// ErrHomingTimeout is returned by Run when the lift did not reach home within
// Config.HomingTimeout.
var ErrHomingTimeout = errors.New("lift did not reach home position")

// Run supervises the terminal until the RUN button is pressed, then returns the
// lift wagon home and resets the brick. Remote events are handled between
// samples. Cancelling ctx during supervision resets the brick; cancelling it
// while homing stops the lift where it is and shuts down.
func (c *Controller) Run(ctx context.Context) error {
	c.setPhase(PhaseRunning)

	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.Reset()
			c.log("Control stopped")
			return ctx.Err()
		case ev := <-c.events:
			c.Handle(ev)
			if c.Phase() == PhaseHalted {
				c.setPhase(PhaseRunning)
			}
		case <-ticker.C:
			if c.brick.Run.IsPressed() {
				return c.returnHome(ctx)
			}
			c.supervise()
		}
	}
}

// supervise samples the sensors once and stops every motion that ran into a limit.
func (c *Controller) supervise() {
	crane := c.brick.Motor(brick.MotorA)
	lift := c.brick.Motor(brick.MotorB)

	rotation := c.brick.Sensor(brick.S1).ReadValue()
	front := c.brick.Sensor(brick.S2).ReadBoolean()
	rear := c.brick.Sensor(brick.S3).ReadBoolean()

	if drivingLimit(crane.Direction(), front, rear) {
		crane.Stop()
		c.brick.Sound.BeepSequence()
		if front {
			c.halt("Crane stopped at front touch switch")
		} else {
			c.halt("Crane stopped at rear touch switch")
		}
	}
	if liftLimit(lift.Direction(), rotation) {
		lift.Stop()
		c.brick.Sound.BeepSequence()
		c.halt("Lift stopped at rotation %d", rotation)
	}

	c.sendState(c.snapshot(rotation, front, rear))
}

func (c *Controller) halt(format string, args ...any) {
	c.setPhase(PhaseHalted)
	c.log(format, args...)
}

// drivingLimit reports whether the crane runs into the touch switch ahead of it.
func drivingLimit(dir brick.Direction, front, rear bool) bool {
	return (dir == brick.Forward && front) || (dir == brick.Backward && rear)
}

// liftLimit reports whether the lift wagon reached its travel limit.
func liftLimit(dir brick.Direction, rotation int) bool {
	return dir == brick.Backward && rotation == RotationLimit
}

// returnHome drives the lift wagon backward until S1 reads home. The last
// stretch after RotationSlowdown runs at power 1 to avoid overshooting the stop.
func (c *Controller) returnHome(ctx context.Context) error {
	c.setPhase(PhaseReturningHome)

	c.brick.Sound.TwoBeeps()
	c.cfg.Sleep(c.cfg.HomingDelay)
	c.brick.Sound.TwoBeeps()

	lift := c.brick.Motor(brick.MotorB)
	s1 := c.brick.Sensor(brick.S1)
	if lift.Power() == 0 {
		lift.SetPower(c.cfg.HomingPower)
	}
	lift.Backward()
	c.log("Returning lift home at power %d", lift.Power())

	var deadline <-chan time.Time
	if c.cfg.HomingTimeout > 0 {
		timer := time.NewTimer(c.cfg.HomingTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	for {
		rotation := s1.ReadValue()
		switch {
		case rotation == RotationHome:
			lift.Stop()
			c.shutdown(rotation)
			return nil
		case rotation == RotationSlowdown && lift.Power() != 1:
			lift.SetPower(1)
		}
		c.sendState(c.snapshot(rotation, false, false))

		select {
		case <-deadline:
			lift.Stop()
			c.brick.Sound.BeepSequence()
			c.log("Lift did not reach home within %s", c.cfg.HomingTimeout)
			c.shutdown(s1.ReadValue())
			return ErrHomingTimeout
		case <-ctx.Done():
			lift.Stop()
			c.log("Homing aborted")
			c.shutdown(s1.ReadValue())
			return ctx.Err()
		case ev := <-c.events:
			c.log("Ignoring %v while returning home", ev)
		case <-ticker.C:
		}
	}
}

func (c *Controller) shutdown(rotation int) {
	c.Reset()
	c.setPhase(PhaseShutdown)
	c.sendState(c.snapshot(rotation, false, false))
}
