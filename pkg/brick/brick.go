package brick

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

// LCD is the brick's display.
type LCD interface {
	// ShowText shows up to five glyphs.
	ShowText(text string)
	ShowNumber(n int)
}

// Sound is the brick's speaker.
type Sound interface {
	Beep()
	TwoBeeps()
	BeepSequence()
}

// Button is a push button on the brick.
type Button interface {
	IsPressed() bool
}

// Brick aggregates the devices of one brick.
type Brick struct {
	Motors  map[MotorName]Motor
	Sensors map[SensorName]Sensor
	LCD     LCD
	Sound   Sound
	Run     Button
	// Remote is nil when the backend has no infrared receiver.
	Remote Remote

	closers []func() error
}

// Motor returns the named motor, or nil.
func (b *Brick) Motor(name MotorName) Motor {
	return b.Motors[name]
}

// Sensor returns the named sensor port, or nil.
func (b *Brick) Sensor(name SensorName) Sensor {
	return b.Sensors[name]
}

// Validate checks that every device of the brick is present.
func (b *Brick) Validate() error {
	for _, name := range AllMotors() {
		if b.Motors[name] == nil {
			return errors.Errorf("motor %s missing", name)
		}
	}
	for _, name := range AllSensors() {
		if b.Sensors[name] == nil {
			return errors.Errorf("sensor %s missing", name)
		}
	}
	switch {
	case b.LCD == nil:
		return errors.New("lcd missing")
	case b.Sound == nil:
		return errors.New("sound missing")
	case b.Run == nil:
		return errors.New("run button missing")
	}
	return nil
}

// OnClose registers fn to run when the brick is closed.
func (b *Brick) OnClose(fn func() error) {
	b.closers = append(b.closers, fn)
}

// Close releases the brick's connections in reverse registration order.
func (b *Brick) Close() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	b.closers = nil
	return first
}

// Latch is a button pressed from the host. It stays pressed once pressed.
type Latch struct {
	pressed atomic.Bool
}

func (l *Latch) Press()          { l.pressed.Store(true) }
func (l *Latch) IsPressed() bool { return l.pressed.Load() }

type anyButton []Button

func (a anyButton) IsPressed() bool {
	for _, b := range a {
		if b.IsPressed() {
			return true
		}
	}
	return false
}

// AnyButton returns a button that is pressed while any of buttons is pressed.
// Nil buttons are skipped.
func AnyButton(buttons ...Button) Button {
	var a anyButton
	for _, b := range buttons {
		if b != nil {
			a = append(a, b)
		}
	}
	return a
}
