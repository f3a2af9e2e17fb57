package firmata

import (
	"sync"
	"time"

	"github.com/edaniels/golog"

	"github.com/hagbeck/containerterminal/pkg/brick"
)

type digitalOutput interface {
	On() error
	Off() error
}

type pwmOutput interface {
	PwmWrite(level byte) error
}

type digitalInput interface {
	DigitalRead() (int, error)
}

type analogInput interface {
	Read() (int, error)
}

type noInput struct{}

func (noInput) DigitalRead() (int, error) { return 0, nil }

type noOutput struct{}

func (noOutput) On() error  { return nil }
func (noOutput) Off() error { return nil }

// duty converts a power level to a PWM duty cycle.
func duty(power int) byte {
	return byte(brick.ClampPower(power) * 255 / brick.MaxPower)
}

// hbridge drives one motor through an enable pin and two direction pins.
type hbridge struct {
	name   brick.MotorName
	enable pwmOutput
	in1    digitalOutput
	in2    digitalOutput
	logger golog.Logger

	mu    sync.Mutex
	state brick.MotorState
}

func newHBridge(name brick.MotorName, enable pwmOutput, in1, in2 digitalOutput, logger golog.Logger) *hbridge {
	return &hbridge{name: name, enable: enable, in1: in1, in2: in2, logger: logger}
}

// apply writes the current state to the pins. Must be called with mu held.
func (m *hbridge) apply() {
	var err error
	switch m.state.Direction() {
	case brick.Forward:
		err = firstErr(m.in2.Off(), m.in1.On(), m.enable.PwmWrite(duty(m.state.Power())))
	case brick.Backward:
		err = firstErr(m.in1.Off(), m.in2.On(), m.enable.PwmWrite(duty(m.state.Power())))
	default:
		err = firstErr(m.enable.PwmWrite(0), m.in1.Off(), m.in2.Off())
	}
	if err != nil {
		m.logger.Warnw("motor write failed", "motor", m.name, "error", err)
	}
}

func (m *hbridge) SetPower(power int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.SetPower(power)
	m.apply()
}

func (m *hbridge) Forward() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Forward()
	m.apply()
}

func (m *hbridge) Backward() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Backward()
	m.apply()
}

func (m *hbridge) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Stop()
	m.apply()
}

func (m *hbridge) Power() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Power()
}

func (m *hbridge) Direction() brick.Direction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Direction()
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// analogScale maps analog readings onto rotation units.
type analogScale struct {
	min, max int
	steps    int
}

// rotation returns the reading as a multiple of brick.RotationStep.
func (s analogScale) rotation(raw int) int {
	raw = max(s.min, min(s.max, raw))
	return brick.Quantize((raw - s.min) * s.steps * brick.RotationStep / (s.max - s.min))
}

// sensorState tracks what the control program configured on a port. Switches
// and potentiometers are always powered.
type sensorState struct {
	mu     sync.Mutex
	typ    brick.SensorType
	mode   brick.SensorMode
	active bool
}

func (s *sensorState) SetTypeAndMode(typ brick.SensorType, mode brick.SensorMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typ, s.mode = typ, mode
}

func (s *sensorState) Activate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = true
}

func (s *sensorState) Passivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

type rotation struct {
	sensorState
	input  analogInput
	scale  analogScale
	logger golog.Logger

	last int
}

func (r *rotation) ReadValue() int {
	raw, err := r.input.Read()
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.logger.Warnw("rotation read failed", "error", err)
		return r.last
	}
	r.last = r.scale.rotation(raw)
	return r.last
}

func (r *rotation) ReadBoolean() bool {
	return r.ReadValue() != 0
}

type touch struct {
	sensorState
	name   brick.SensorName
	input  digitalInput
	logger golog.Logger
}

func (t *touch) ReadBoolean() bool {
	v, err := t.input.DigitalRead()
	if err != nil {
		t.logger.Warnw("touch read failed", "sensor", t.name, "error", err)
		return false
	}
	return v != 0
}

func (t *touch) ReadValue() int {
	if t.ReadBoolean() {
		return 1
	}
	return 0
}

type button struct {
	input  digitalInput
	logger golog.Logger
}

func (b button) IsPressed() bool {
	v, err := b.input.DigitalRead()
	if err != nil {
		b.logger.Warnw("run button read failed", "error", err)
		return false
	}
	return v != 0
}

// tone is one buzzer interval: on for on, then off for off.
type tone struct {
	on, off time.Duration
}

var (
	beepPattern         = []tone{{100 * time.Millisecond, 0}}
	twoBeepsPattern     = []tone{{100 * time.Millisecond, 100 * time.Millisecond}, {100 * time.Millisecond, 0}}
	beepSequencePattern = []tone{
		{60 * time.Millisecond, 40 * time.Millisecond},
		{60 * time.Millisecond, 40 * time.Millisecond},
		{60 * time.Millisecond, 40 * time.Millisecond},
		{200 * time.Millisecond, 0},
	}
)

// buzzer plays patterns in the background, one at a time, so sounds do not
// block the caller.
type buzzer struct {
	out    digitalOutput
	logger golog.Logger
	sleep  func(time.Duration)
	queue  chan []tone
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

func newBuzzer(out digitalOutput, logger golog.Logger) *buzzer {
	b := &buzzer{
		out:    out,
		logger: logger,
		sleep:  time.Sleep,
		queue:  make(chan []tone, 4),
		done:   make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *buzzer) loop() {
	defer close(b.done)
	for pattern := range b.queue {
		b.play(pattern)
	}
}

func (b *buzzer) play(pattern []tone) {
	for _, t := range pattern {
		if err := b.out.On(); err != nil {
			b.logger.Warnw("buzzer write failed", "error", err)
			return
		}
		b.sleep(t.on)
		b.out.Off()
		b.sleep(t.off)
	}
}

func (b *buzzer) enqueue(pattern []tone) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.queue <- pattern:
	default:
		b.logger.Debugw("buzzer busy, sound dropped")
	}
}

// Close finishes the queued sounds and stops the player. Later sounds are
// dropped.
func (b *buzzer) Close() error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()
	<-b.done
	return nil
}

func (b *buzzer) Beep()         { b.enqueue(beepPattern) }
func (b *buzzer) TwoBeeps()     { b.enqueue(twoBeepsPattern) }
func (b *buzzer) BeepSequence() { b.enqueue(beepSequencePattern) }
