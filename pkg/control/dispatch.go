package control

import "github.com/hagbeck/containerterminal/pkg/brick"

var programTokens = map[brick.Command]Token{
	brick.CmdProgram1: TokenProgram1,
	brick.CmdProgram2: TokenProgram2,
	brick.CmdProgram3: TokenProgram3,
	brick.CmdProgram4: TokenProgram4,
	brick.CmdProgram5: TokenProgram5,
}

// Handle applies one remote control event. It must only be called from the
// goroutine running the controller.
func (c *Controller) Handle(ev brick.Event) {
	switch ev.Cmd {
	case brick.CmdMessage1:
		c.showToken(TokenMessage1)
		c.toggleSensor(brick.S1)
	case brick.CmdMessage2:
		c.showToken(TokenMessage2)
		c.toggleSensor(brick.S2)
	case brick.CmdMessage3:
		c.showToken(TokenMessage3)
		c.toggleSensor(brick.S3)
	case brick.CmdMotorDown:
		c.showToken(TokenMotorDown)
		c.step(ev.Motor, decrement)
	case brick.CmdMotorUp:
		c.showToken(TokenMotorUp)
		c.step(ev.Motor, increment)
	case brick.CmdProgram1, brick.CmdProgram2, brick.CmdProgram3, brick.CmdProgram4, brick.CmdProgram5:
		// Reserved, display only.
		c.showToken(programTokens[ev.Cmd])
	case brick.CmdSound:
		c.showToken(TokenSound)
		c.brick.Sound.Beep()
	case brick.CmdStop:
		c.showToken(TokenStop)
		c.Reset()
	default:
		c.log("Ignoring unknown remote command %v", ev.Cmd)
	}
}

func (c *Controller) step(name brick.MotorName, ladder func(brick.Motor)) {
	m := c.brick.Motor(name)
	if m == nil {
		c.log("Ignoring ladder step for unknown motor %q", name)
		return
	}
	ladder(m)
	c.showMotorsPower()
}

// Reset stops and zeroes all motors and passivates all sensor ports.
func (c *Controller) Reset() {
	for _, name := range brick.AllMotors() {
		m := c.brick.Motor(name)
		m.Stop()
		m.SetPower(0)
	}
	for _, name := range brick.AllSensors() {
		c.brick.Sensor(name).Passivate()
	}
	c.active = Activation{}
}
