// Package firmata runs the container terminal on an Arduino with the Firmata
// sketch: H-bridge motors, touch switches, a potentiometer on the lift winch
// and a piezo buzzer.
package firmata

import (
	"context"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"gobot.io/x/gobot/drivers/aio"
	"gobot.io/x/gobot/drivers/gpio"
	"gobot.io/x/gobot/platforms/firmata"

	"github.com/hagbeck/containerterminal/pkg/brick"
)

// Defaults for Config.
const (
	DefaultSteps     = 12
	DefaultAnalogMax = 1023
)

// MotorPins wires one H-bridge channel.
type MotorPins struct {
	Enable string `json:"enable"`
	In1    string `json:"in1"`
	In2    string `json:"in2"`
}

// Config holds the firmata backend attributes. Pins are Firmata pin numbers.
type Config struct {
	Port   string                        `json:"port"`
	Motors map[brick.MotorName]MotorPins `json:"motors"`
	Touch  map[brick.SensorName]string   `json:"touch"`
	// Rotation is the analog pin of the lift potentiometer on S1.
	Rotation  string `json:"rotation"`
	AnalogMin int    `json:"analog_min,omitempty"`
	AnalogMax int    `json:"analog_max,omitempty"`
	// Steps is the number of rotation steps across the analog range.
	Steps  int    `json:"steps,omitempty"`
	Run    string `json:"run,omitempty"`
	Buzzer string `json:"buzzer,omitempty"`
}

func (c *Config) setDefaults() {
	if c.AnalogMax == 0 {
		c.AnalogMax = DefaultAnalogMax
	}
	if c.Steps == 0 {
		c.Steps = DefaultSteps
	}
}

func (c *Config) validate() error {
	if c.Port == "" {
		return errors.New("firmata: port missing")
	}
	for _, name := range brick.AllMotors() {
		p, ok := c.Motors[name]
		if !ok || p.Enable == "" || p.In1 == "" || p.In2 == "" {
			return errors.Errorf("firmata: pins of motor %s missing", name)
		}
	}
	if c.Rotation == "" {
		return errors.New("firmata: rotation pin missing")
	}
	if c.AnalogMax <= c.AnalogMin {
		return errors.Errorf("firmata: empty analog range %d..%d", c.AnalogMin, c.AnalogMax)
	}
	return nil
}

func init() {
	brick.Register("firmata", open)
}

func open(ctx context.Context, attrs map[string]any, logger golog.Logger) (*brick.Brick, error) {
	var cfg Config
	if err := brick.DecodeAttributes(attrs, &cfg); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	adaptor := firmata.NewAdaptor(cfg.Port)
	if err := adaptor.Connect(); err != nil {
		return nil, errors.Wrapf(err, "connect firmata on %s", cfg.Port)
	}
	logger.Infow("firmata connected", "port", cfg.Port)

	pin := func(p string) *gpio.DirectPinDriver { return gpio.NewDirectPinDriver(adaptor, p) }

	b := &brick.Brick{
		Motors:  make(map[brick.MotorName]brick.Motor),
		Sensors: make(map[brick.SensorName]brick.Sensor),
		LCD:     lcd{logger},
	}
	for _, name := range brick.AllMotors() {
		p := cfg.Motors[name]
		b.Motors[name] = newHBridge(name, pin(p.Enable), pin(p.In1), pin(p.In2), logger)
	}

	scale := analogScale{min: cfg.AnalogMin, max: cfg.AnalogMax, steps: cfg.Steps}
	b.Sensors[brick.S1] = &rotation{
		input:  aio.NewAnalogSensorDriver(adaptor, cfg.Rotation),
		scale:  scale,
		logger: logger,
	}
	for _, name := range []brick.SensorName{brick.S2, brick.S3} {
		var in digitalInput = noInput{}
		if p := cfg.Touch[name]; p != "" {
			in = pin(p)
		}
		b.Sensors[name] = &touch{name: name, input: in, logger: logger}
	}

	var out digitalOutput = noOutput{}
	if cfg.Buzzer != "" {
		out = pin(cfg.Buzzer)
	}
	sound := newBuzzer(out, logger)
	b.Sound = sound

	b.Run = &brick.Latch{}
	if cfg.Run != "" {
		b.Run = button{input: pin(cfg.Run), logger: logger}
	}

	// Closers run in reverse: the buzzer stops before the adaptor goes away.
	b.OnClose(adaptor.Finalize)
	b.OnClose(sound.Close)
	return b, nil
}

type lcd struct{ logger golog.Logger }

func (l lcd) ShowText(text string) { l.logger.Infow("lcd", "text", text) }
func (l lcd) ShowNumber(n int)     { l.logger.Infow("lcd", "number", n) }
