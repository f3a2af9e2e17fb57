// Package sim provides a simulated container terminal.
//
// The crane carriage runs on a track driven by motor A. Touch switch S2 closes at
// the front end of the track, S3 at the rear end. The lift wagon is driven by motor B
// and counted by the rotation sensor on S1: forward counts up, backward counts down.
// Physics only advance on Step, so tests stay deterministic.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edaniels/golog"

	"github.com/hagbeck/containerterminal/pkg/brick"
)

// DefaultTrackLength is the carriage travel in steps.
const DefaultTrackLength = 200

// DefaultMaxCalls is the number of hardware operations kept in the call log.
const DefaultMaxCalls = 256

// Config holds the simulator attributes.
type Config struct {
	TrackLength int `json:"track_length"`
	// Carriage is the initial carriage position, defaults to mid track.
	Carriage int `json:"carriage"`
	// Rotation is the initial raw lift rotation count.
	Rotation int `json:"rotation"`
	// Hz runs physics in real time when positive.
	Hz int `json:"hz"`
	// MaxCalls bounds the call log; older operations are dropped.
	MaxCalls int `json:"max_calls"`
}

func init() {
	brick.Register("sim", open)
}

func open(ctx context.Context, attrs map[string]any, logger golog.Logger) (*brick.Brick, error) {
	var cfg Config
	if err := brick.DecodeAttributes(attrs, &cfg); err != nil {
		return nil, err
	}
	t := New(cfg, logger)
	if cfg.Hz > 0 {
		runCtx, cancel := context.WithCancel(ctx)
		go t.Run(runCtx, cfg.Hz)
		b := t.Brick()
		b.OnClose(func() error { cancel(); return nil })
		return b, nil
	}
	return t.Brick(), nil
}

// Terminal is the simulated hardware.
type Terminal struct {
	logger golog.Logger

	mu          sync.Mutex
	motors      map[brick.MotorName]*motor
	sensors     map[brick.SensorName]*sensor
	text        string
	number      int
	run         bool
	trackLength int
	carriage    int
	rotation    int
	touch       map[brick.SensorName]bool
	calls       []string
	maxCalls    int

	events chan brick.Event
}

// New creates a simulated terminal.
func New(cfg Config, logger golog.Logger) *Terminal {
	if cfg.TrackLength <= 0 {
		cfg.TrackLength = DefaultTrackLength
	}
	if cfg.MaxCalls <= 0 {
		cfg.MaxCalls = DefaultMaxCalls
	}
	if cfg.Carriage == 0 {
		cfg.Carriage = cfg.TrackLength / 2
	}
	t := &Terminal{
		logger:      logger,
		motors:      make(map[brick.MotorName]*motor),
		sensors:     make(map[brick.SensorName]*sensor),
		trackLength: cfg.TrackLength,
		maxCalls:    cfg.MaxCalls,
		carriage:    cfg.Carriage,
		rotation:    cfg.Rotation,
		touch:       make(map[brick.SensorName]bool),
		events:      make(chan brick.Event, 16),
	}
	for _, name := range brick.AllMotors() {
		t.motors[name] = &motor{t: t, name: name}
	}
	for _, name := range brick.AllSensors() {
		t.sensors[name] = &sensor{t: t, name: name}
	}
	t.updateTouch()
	return t
}

// Brick returns the brick view of the terminal.
func (t *Terminal) Brick() *brick.Brick {
	b := &brick.Brick{
		Motors:  make(map[brick.MotorName]brick.Motor),
		Sensors: make(map[brick.SensorName]brick.Sensor),
		LCD:     lcd{t},
		Sound:   sound{t},
		Run:     runButton{t},
		Remote:  t,
	}
	for name, m := range t.motors {
		b.Motors[name] = m
	}
	for name, s := range t.sensors {
		b.Sensors[name] = s
	}
	return b
}

// Events implements brick.Remote.
func (t *Terminal) Events() <-chan brick.Event {
	return t.events
}

// Press sends a remote control event. It drops the event if nobody is listening.
func (t *Terminal) Press(ev brick.Event) {
	select {
	case t.events <- ev:
	default:
		t.logger.Warnw("remote event dropped", "event", ev)
	}
}

// PressRun presses the RUN button.
func (t *Terminal) PressRun() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.run = true
}

// Step advances the physics by one step: every moving motor with power
// moves its mechanism by one unit.
func (t *Terminal) Step() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if d := t.motors[brick.MotorA].delta(); d != 0 {
		t.carriage = min(max(t.carriage+d, 0), t.trackLength)
		t.updateTouch()
	}
	t.rotation += t.motors[brick.MotorB].delta()
}

// Run steps the physics at hz until ctx is done.
func (t *Terminal) Run(ctx context.Context, hz int) {
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Step()
		}
	}
}

// updateTouch must be called with mu held.
func (t *Terminal) updateTouch() {
	t.touch[brick.S2] = t.carriage >= t.trackLength
	t.touch[brick.S3] = t.carriage <= 0
}

// SetTouch forces a touch switch state until the carriage moves.
func (t *Terminal) SetTouch(name brick.SensorName, pressed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch[name] = pressed
}

// SetRotation sets the raw lift rotation count.
func (t *Terminal) SetRotation(raw int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rotation = raw
}

// Carriage returns the carriage position on the track.
func (t *Terminal) Carriage() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.carriage
}

// Display returns the LCD text and number.
func (t *Terminal) Display() (string, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.text, t.number
}

// Active reports whether a sensor port is activated.
func (t *Terminal) Active(name brick.SensorName) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sensors[name].active
}

// Calls returns the most recent hardware operations, oldest first.
func (t *Terminal) Calls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.calls[max(0, len(t.calls)-t.maxCalls):]...)
}

// ResetCalls clears the call log.
func (t *Terminal) ResetCalls() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = nil
}

// Record appends an external note to the call log.
func (t *Terminal) Record(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record(format, args...)
}

// record must be called with mu held. The log is trimmed in batches once it
// holds twice maxCalls entries.
func (t *Terminal) record(format string, args ...any) {
	t.calls = append(t.calls, fmt.Sprintf(format, args...))
	if len(t.calls) >= 2*t.maxCalls {
		n := copy(t.calls, t.calls[len(t.calls)-t.maxCalls:])
		clear(t.calls[n:])
		t.calls = t.calls[:n]
	}
}

type motor struct {
	t     *Terminal
	name  brick.MotorName
	state brick.MotorState
}

// delta must be called with mu held.
func (m *motor) delta() int {
	if m.state.Power() == 0 {
		return 0
	}
	switch m.state.Direction() {
	case brick.Forward:
		return 1
	case brick.Backward:
		return -1
	}
	return 0
}

func (m *motor) SetPower(power int) {
	m.t.mu.Lock()
	defer m.t.mu.Unlock()
	m.state.SetPower(power)
	m.t.record("%s.SetPower(%d)", m.name, m.state.Power())
}

func (m *motor) Forward() {
	m.t.mu.Lock()
	defer m.t.mu.Unlock()
	m.state.Forward()
	m.t.record("%s.Forward", m.name)
}

func (m *motor) Backward() {
	m.t.mu.Lock()
	defer m.t.mu.Unlock()
	m.state.Backward()
	m.t.record("%s.Backward", m.name)
}

func (m *motor) Stop() {
	m.t.mu.Lock()
	defer m.t.mu.Unlock()
	m.state.Stop()
	m.t.record("%s.Stop", m.name)
}

func (m *motor) Power() int {
	m.t.mu.Lock()
	defer m.t.mu.Unlock()
	return m.state.Power()
}

func (m *motor) Direction() brick.Direction {
	m.t.mu.Lock()
	defer m.t.mu.Unlock()
	return m.state.Direction()
}

type sensor struct {
	t      *Terminal
	name   brick.SensorName
	typ    brick.SensorType
	mode   brick.SensorMode
	active bool
}

func (s *sensor) SetTypeAndMode(typ brick.SensorType, mode brick.SensorMode) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	s.typ, s.mode = typ, mode
	s.t.record("%s.SetTypeAndMode(%s,%s)", s.name, typ, mode)
}

func (s *sensor) Activate() {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	s.active = true
	s.t.record("%s.Activate", s.name)
}

func (s *sensor) Passivate() {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	s.active = false
	s.t.record("%s.Passivate", s.name)
}

func (s *sensor) ReadBoolean() bool {
	return s.ReadValue() != 0
}

func (s *sensor) ReadValue() int {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if s.name == brick.S1 {
		return brick.Quantize(s.t.rotation)
	}
	if s.t.touch[s.name] {
		return 1
	}
	return 0
}

type lcd struct{ t *Terminal }

func (l lcd) ShowText(text string) {
	l.t.mu.Lock()
	defer l.t.mu.Unlock()
	l.t.text = text
	l.t.record("LCD.ShowText(%s)", text)
}

func (l lcd) ShowNumber(n int) {
	l.t.mu.Lock()
	defer l.t.mu.Unlock()
	l.t.number = n
	l.t.record("LCD.ShowNumber(%d)", n)
}

type sound struct{ t *Terminal }

func (s sound) Beep()         { s.t.Record("Sound.Beep") }
func (s sound) TwoBeeps()     { s.t.Record("Sound.TwoBeeps") }
func (s sound) BeepSequence() { s.t.Record("Sound.BeepSequence") }

type runButton struct{ t *Terminal }

func (r runButton) IsPressed() bool {
	r.t.mu.Lock()
	defer r.t.mu.Unlock()
	return r.t.run
}
