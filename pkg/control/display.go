package control

import "github.com/hagbeck/containerterminal/pkg/brick"

// Token is a status word shown on the LCD.
type Token string

const (
	TokenMessage1  Token = "MSG1"
	TokenMessage2  Token = "MSG2"
	TokenMessage3  Token = "MSG3"
	TokenMotorDown Token = "MOT-"
	TokenMotorUp   Token = "MOT+"
	TokenProgram1  Token = "PROG1"
	TokenProgram2  Token = "PROG2"
	TokenProgram3  Token = "PROG3"
	TokenProgram4  Token = "PROG4"
	TokenProgram5  Token = "PROG5"
	TokenStop      Token = "STOP"
	TokenSound     Token = "SOUND"
	TokenReady     Token = "READY"
)

func (c *Controller) showToken(t Token) {
	c.text = t
	c.brick.LCD.ShowText(string(t))
}

// showMotorsPower shows the powers of motors A, B and C as the digits of one number.
func (c *Controller) showMotorsPower() {
	c.number = packPowers(
		c.brick.Motor(brick.MotorA).Power(),
		c.brick.Motor(brick.MotorB).Power(),
		c.brick.Motor(brick.MotorC).Power(),
	)
	c.brick.LCD.ShowNumber(c.number)
}

func packPowers(a, b, c int) int {
	return a*100 + b*10 + c
}
