package firmata

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"github.com/google/go-cmp/cmp"

	"github.com/hagbeck/containerterminal/pkg/brick"
)

// pinLog records pin writes in order.
type pinLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *pinLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

func (l *pinLog) take() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	calls := l.calls
	l.calls = nil
	return calls
}

type fakePin struct {
	name  string
	log   *pinLog
	value int
	err   error
}

func (p *fakePin) On() error                 { p.log.add("%s.On", p.name); return nil }
func (p *fakePin) Off() error                { p.log.add("%s.Off", p.name); return nil }
func (p *fakePin) PwmWrite(level byte) error { p.log.add("%s.Pwm(%d)", p.name, level); return nil }
func (p *fakePin) DigitalRead() (int, error) { return p.value, p.err }
func (p *fakePin) Read() (int, error)        { return p.value, p.err }

func TestDuty(t *testing.T) {
	tests := []struct {
		power    int
		expected byte
	}{
		{0, 0},
		{1, 36},
		{5, 182},
		{7, 255},
		{9, 255},
	}
	for _, tt := range tests {
		if got := duty(tt.power); got != tt.expected {
			t.Errorf("duty(%d) = %d, want %d", tt.power, got, tt.expected)
		}
	}
}

func TestHBridge(t *testing.T) {
	log := &pinLog{}
	m := newHBridge(brick.MotorA,
		&fakePin{name: "en", log: log},
		&fakePin{name: "in1", log: log},
		&fakePin{name: "in2", log: log},
		golog.NewTestLogger(t))

	m.SetPower(7)
	m.Forward()
	m.Backward()
	m.Stop()

	want := []string{
		"en.Pwm(0)", "in1.Off", "in2.Off",
		"in2.Off", "in1.On", "en.Pwm(255)",
		"in1.Off", "in2.On", "en.Pwm(255)",
		"en.Pwm(0)", "in1.Off", "in2.Off",
	}
	if diff := cmp.Diff(want, log.take()); diff != "" {
		t.Errorf("pin writes mismatch (-want +got):\n%s", diff)
	}
	if m.Power() != 7 || m.Direction() != brick.Idle {
		t.Errorf("motor = %d/%v, want 7/idle", m.Power(), m.Direction())
	}
}

func TestAnalogScale(t *testing.T) {
	s := analogScale{min: 0, max: 1023, steps: 12}

	tests := []struct {
		raw      int
		expected int
	}{
		{0, 0},
		{-20, 0},
		{85, 0},
		{86, 16},
		{171, 32},
		{1023, 192},
		{2000, 192},
	}
	for _, tt := range tests {
		if got := s.rotation(tt.raw); got != tt.expected {
			t.Errorf("rotation(%d) = %d, want %d", tt.raw, got, tt.expected)
		}
	}
}

func TestRotationKeepsLastValueOnError(t *testing.T) {
	in := &fakePin{value: 1023}
	r := &rotation{input: in, scale: analogScale{max: 1023, steps: 12}, logger: golog.NewTestLogger(t)}

	if got := r.ReadValue(); got != 192 {
		t.Fatalf("ReadValue() = %d, want 192", got)
	}
	in.err = errors.New("timeout")
	if got := r.ReadValue(); got != 192 {
		t.Errorf("ReadValue() after error = %d, want 192", got)
	}
}

func TestTouchAndButton(t *testing.T) {
	in := &fakePin{value: 1}
	logger := golog.NewTestLogger(t)
	s := &touch{name: brick.S2, input: in, logger: logger}
	b := button{input: in, logger: logger}

	if !s.ReadBoolean() || s.ReadValue() != 1 || !b.IsPressed() {
		t.Error("closed switch not reported as pressed")
	}
	in.value = 0
	if s.ReadBoolean() || s.ReadValue() != 0 || b.IsPressed() {
		t.Error("open switch reported as pressed")
	}
	in.err = errors.New("timeout")
	in.value = 1
	if s.ReadBoolean() || b.IsPressed() {
		t.Error("failed read reported as pressed")
	}
}

func TestBuzzerPlay(t *testing.T) {
	log := &pinLog{}
	var slept []time.Duration
	b := &buzzer{
		out:    &fakePin{name: "buzzer", log: log},
		logger: golog.NewTestLogger(t),
		sleep:  func(d time.Duration) { slept = append(slept, d) },
	}

	b.play(twoBeepsPattern)

	if diff := cmp.Diff([]string{"buzzer.On", "buzzer.Off", "buzzer.On", "buzzer.Off"}, log.take()); diff != "" {
		t.Errorf("pin writes mismatch (-want +got):\n%s", diff)
	}
	want := []time.Duration{100 * time.Millisecond, 100 * time.Millisecond, 100 * time.Millisecond, 0}
	if diff := cmp.Diff(want, slept); diff != "" {
		t.Errorf("sleeps mismatch (-want +got):\n%s", diff)
	}
}

func TestBuzzerClose(t *testing.T) {
	log := &pinLog{}
	b := newBuzzer(&fakePin{name: "buzzer", log: log}, golog.NewTestLogger(t))
	b.sleep = func(time.Duration) {}

	b.Beep()
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case <-b.done:
	default:
		t.Fatal("player still running after Close")
	}
	if diff := cmp.Diff([]string{"buzzer.On", "buzzer.Off"}, log.take()); diff != "" {
		t.Errorf("pin writes mismatch (-want +got):\n%s", diff)
	}

	b.TwoBeeps()
	if err := b.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if calls := log.take(); len(calls) != 0 {
		t.Errorf("sound played after Close: %v", calls)
	}
}

func TestConfigDecode(t *testing.T) {
	attrs := map[string]any{
		"port": "/dev/ttyACM0",
		"motors": map[string]any{
			"A": map[string]any{"enable": "3", "in1": "4", "in2": "5"},
			"B": map[string]any{"enable": "6", "in1": "7", "in2": "8"},
			"C": map[string]any{"enable": "9", "in1": "10", "in2": "11"},
		},
		"touch":    map[string]any{"S2": "12", "S3": "13"},
		"rotation": "0",
	}
	var cfg Config
	if err := brick.DecodeAttributes(attrs, &cfg); err != nil {
		t.Fatalf("DecodeAttributes: %v", err)
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got := cfg.Motors[brick.MotorB]; got != (MotorPins{Enable: "6", In1: "7", In2: "8"}) {
		t.Errorf("motor B pins = %+v", got)
	}
	if cfg.Touch[brick.S3] != "13" || cfg.Steps != DefaultSteps || cfg.AnalogMax != DefaultAnalogMax {
		t.Errorf("decoded config = %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	full := func() Config {
		return Config{
			Port: "/dev/ttyACM0",
			Motors: map[brick.MotorName]MotorPins{
				brick.MotorA: {"3", "4", "5"},
				brick.MotorB: {"6", "7", "8"},
				brick.MotorC: {"9", "10", "11"},
			},
			Rotation:  "0",
			AnalogMax: 1023,
		}
	}

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no port", func(c *Config) { c.Port = "" }},
		{"no motor C", func(c *Config) { delete(c.Motors, brick.MotorC) }},
		{"no direction pin", func(c *Config) { c.Motors[brick.MotorA] = MotorPins{Enable: "3", In1: "4"} }},
		{"no rotation", func(c *Config) { c.Rotation = "" }},
		{"empty range", func(c *Config) { c.AnalogMin = 1023 }},
	}

	good := full()
	if err := good.validate(); err != nil {
		t.Fatalf("validate(full) = %v", err)
	}
	for _, tt := range tests {
		cfg := full()
		tt.modify(&cfg)
		if err := cfg.validate(); err == nil {
			t.Errorf("%s: validate succeeded", tt.name)
		}
	}
}
