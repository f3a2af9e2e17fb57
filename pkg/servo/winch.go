package servo

import (
	"context"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"github.com/pkg/errors"

	"github.com/hagbeck/containerterminal/pkg/brick"
)

// Defaults for Config.
const (
	DefaultTicksPerStep  = 256
	DefaultTicksPerPower = 16
	DefaultJogMs         = 100
	DefaultRangeMax      = 4095
)

// IDs probed when looking for the winch servo.
const (
	scanFirst = 1
	scanLast  = 20
)

// Config is the "lift" section of the config file.
type Config struct {
	Port string `json:"port"`
	ID   int    `json:"id"`
	// Home defaults to the servo position when attaching.
	Home          *int `json:"home,omitempty"`
	TicksPerStep  int  `json:"ticks_per_step,omitempty"`
	TicksPerPower int  `json:"ticks_per_power,omitempty"`
	JogMs         int  `json:"jog_ms,omitempty"`
	RangeMin      int  `json:"range_min,omitempty"`
	RangeMax      int  `json:"range_max,omitempty"`
}

func (c *Config) setDefaults() {
	if c.TicksPerStep == 0 {
		c.TicksPerStep = DefaultTicksPerStep
	}
	if c.TicksPerPower == 0 {
		c.TicksPerPower = DefaultTicksPerPower
	}
	if c.JogMs == 0 {
		c.JogMs = DefaultJogMs
	}
	if c.RangeMax == 0 {
		c.RangeMax = DefaultRangeMax
	}
}

// Calibration returns the calibration for a servo currently at pos.
func (c Config) Calibration(pos int) Calibration {
	home := pos
	if c.Home != nil {
		home = *c.Home
	}
	return Calibration{
		Home:          home,
		TicksPerStep:  c.TicksPerStep,
		TicksPerPower: c.TicksPerPower,
		RangeMin:      c.RangeMin,
		RangeMax:      c.RangeMax,
	}
}

// Attach opens the servo bus described by attrs and installs the winch as
// motor B and sensor S1 of b. Closing b stops and releases the servo.
func Attach(ctx context.Context, b *brick.Brick, attrs map[string]any, logger golog.Logger) error {
	var cfg Config
	if err := brick.DecodeAttributes(attrs, &cfg); err != nil {
		return errors.Wrap(err, "lift")
	}
	cfg.setDefaults()

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return errors.Wrapf(err, "open servo bus %s", cfg.Port)
	}

	servo, err := findServo(ctx, bus, cfg.ID)
	if err != nil {
		bus.Close()
		return err
	}
	pos, err := servo.Position(ctx)
	if err != nil {
		bus.Close()
		return errors.Wrap(err, "read winch position")
	}
	if err := servo.Enable(ctx); err != nil {
		bus.Close()
		return errors.Wrap(err, "enable winch")
	}

	cal := cfg.Calibration(pos)
	logger.Infow("winch attached", "port", cfg.Port, "id", cfg.ID, "position", pos, "home", cal.Home)
	w := NewWinch(cal, pos, servo.Position, func(ctx context.Context, target int) {
		servo.SetPositionWithTime(ctx, target, cfg.JogMs)
	}, logger)

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(runCtx, time.Duration(cfg.JogMs)*time.Millisecond)
	}()

	b.Motors[brick.MotorB] = w
	b.Sensors[brick.S1] = w.Sensor()
	b.OnClose(func() error {
		cancel()
		<-done
		servo.Disable(context.Background())
		return bus.Close()
	})
	return nil
}

func findServo(ctx context.Context, bus *feetech.Bus, id int) (*feetech.Servo, error) {
	found, err := bus.Scan(ctx, scanFirst, scanLast)
	if err != nil {
		return nil, errors.Wrap(err, "scan servo bus")
	}
	for _, s := range found {
		if s.ID == id {
			return feetech.NewServo(bus, s.ID, s.Model), nil
		}
	}
	return nil, errors.Errorf("servo %d not found", id)
}

// Winch is a lift motor driven by jogging a position servo. Each jog period
// moves the target by power*TicksPerPower in the current direction.
type Winch struct {
	cal    Calibration
	read   func(context.Context) (int, error)
	move   func(context.Context, int)
	logger golog.Logger

	// busMu serialises read and move.
	busMu sync.Mutex

	mu       sync.Mutex
	state    brick.MotorState
	target   int
	position int
	moving   bool
}

// NewWinch returns a winch at position pos. read reports the servo position
// and move commands a new target.
func NewWinch(cal Calibration, pos int, read func(context.Context) (int, error), move func(context.Context, int), logger golog.Logger) *Winch {
	return &Winch{
		cal:      cal,
		read:     read,
		move:     move,
		logger:   logger,
		target:   cal.Clamp(pos),
		position: pos,
	}
}

func (w *Winch) SetPower(power int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.SetPower(power)
}

func (w *Winch) Forward() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.Forward()
}

func (w *Winch) Backward() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.Backward()
}

// Stop holds the winch at the last target.
func (w *Winch) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.Stop()
}

func (w *Winch) Power() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Power()
}

func (w *Winch) Direction() brick.Direction {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Direction()
}

// Target returns the position the servo is driven to.
func (w *Winch) Target() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.target
}

// Step advances the target by one jog period and sends it when it changed.
func (w *Winch) Step(ctx context.Context) {
	w.mu.Lock()
	next := w.cal.Jog(w.target, w.state.Direction(), w.state.Power())
	changed := next != w.target
	w.target = next
	w.mu.Unlock()

	if !changed {
		return
	}
	w.busMu.Lock()
	defer w.busMu.Unlock()
	w.move(ctx, next)
}

// Run steps the winch every period until ctx is done.
func (w *Winch) Run(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Step(ctx)
		}
	}
}

// readPosition returns the servo position, or the last known one when the
// bus does not answer.
func (w *Winch) readPosition() int {
	w.busMu.Lock()
	pos, err := w.read(context.Background())
	w.busMu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.logger.Warnw("winch position read failed", "error", err)
		return w.position
	}
	w.position = pos
	return pos
}

// Sensor returns the rotation sensor of the winch.
func (w *Winch) Sensor() brick.Sensor {
	return &winchSensor{winch: w}
}

// winchSensor reads the winch position as a rotation sensor. The position is
// tracked by the servo, so activation only changes the reported state.
type winchSensor struct {
	winch *Winch

	mu     sync.Mutex
	active bool
}

func (s *winchSensor) SetTypeAndMode(typ brick.SensorType, mode brick.SensorMode) {
	if typ != brick.SensorRotation {
		s.winch.logger.Warnw("winch only reads rotation", "type", typ, "mode", mode)
	}
}

func (s *winchSensor) Activate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = true
}

func (s *winchSensor) Passivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

// Active reports whether the sensor was activated.
func (s *winchSensor) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *winchSensor) ReadValue() int {
	return s.winch.cal.Rotation(s.winch.readPosition())
}

func (s *winchSensor) ReadBoolean() bool {
	return s.ReadValue() != 0
}
