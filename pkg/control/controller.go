// Package control implements the container terminal's control program: remote
// control dispatch, the motor power ladder, sensor activation, the material
// protection supervisor and the return-to-home sequence.
package control

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edaniels/golog"

	"github.com/hagbeck/containerterminal/pkg/brick"
)

// Rotation limits in rotation units.
const (
	RotationHome     = 0
	RotationSlowdown = 2 * brick.RotationStep
	RotationLimit    = 12 * brick.RotationStep
)

// Defaults for Config.
const (
	DefaultHz          = 100
	MaxHz              = 1000
	DefaultPower       = 5
	DefaultHomingDelay = 2000 * time.Millisecond
)

// Config holds configuration for the controller.
type Config struct {
	// Hz is the supervisor sampling frequency.
	Hz int
	// DefaultPower is set on motors A and B at boot.
	DefaultPower int
	// HomingPower drives the lift home when motor B has no power left.
	HomingPower int
	// HomingDelay separates the two warning beeps before homing.
	HomingDelay time.Duration
	// HomingTimeout aborts homing when positive. Zero waits forever.
	HomingTimeout time.Duration
	// Sleep waits during the homing warning. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

// ConfigFrom converts the file configuration into a controller Config.
func ConfigFrom(cc brick.ControlConfig) Config {
	return Config{
		Hz:            cc.Hz,
		DefaultPower:  cc.DefaultPower,
		HomingPower:   cc.HomingPower,
		HomingDelay:   time.Duration(cc.HomingDelayMs) * time.Millisecond,
		HomingTimeout: time.Duration(cc.HomingTimeoutMs) * time.Millisecond,
	}
}

func (cfg *Config) setDefaults() {
	if cfg.Hz <= 0 {
		cfg.Hz = DefaultHz
	}
	cfg.Hz = min(cfg.Hz, MaxHz)
	if cfg.DefaultPower <= 0 {
		cfg.DefaultPower = DefaultPower
	}
	if cfg.HomingPower <= 0 {
		cfg.HomingPower = cfg.DefaultPower
	}
	if cfg.HomingDelay <= 0 {
		cfg.HomingDelay = DefaultHomingDelay
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	cfg.DefaultPower = brick.ClampPower(cfg.DefaultPower)
	cfg.HomingPower = brick.ClampPower(cfg.HomingPower)
}

// Phase is the supervisor state.
type Phase int

const (
	PhaseRunning Phase = iota
	PhaseHalted
	PhaseReturningHome
	PhaseShutdown
)

func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhaseHalted:
		return "halted-by-limit"
	case PhaseReturningHome:
		return "returning-home"
	case PhaseShutdown:
		return "shutdown"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// MotorStatus is a snapshot of one motor.
type MotorStatus struct {
	Power     int
	Direction brick.Direction
}

// State is a snapshot of the control program.
type State struct {
	Phase     Phase
	Text      Token
	Number    int
	Motors    map[brick.MotorName]MotorStatus
	Rotation  int
	Touch     map[brick.SensorName]bool
	Active    Activation
	Timestamp time.Time
}

// Controller runs the control program against a brick.
type Controller struct {
	brick  *brick.Brick
	cfg    Config
	logger golog.Logger
	period time.Duration

	// Owned by the goroutine running the controller.
	active Activation
	text   Token
	number int

	mu    sync.RWMutex
	phase Phase

	events  chan brick.Event
	stateCh chan State
	logCh   chan string
}

// New creates a controller, resets the brick and shows READY.
func New(b *brick.Brick, cfg Config, logger golog.Logger) *Controller {
	cfg.setDefaults()
	c := &Controller{
		brick:   b,
		cfg:     cfg,
		logger:  logger,
		period:  time.Second / time.Duration(cfg.Hz),
		events:  make(chan brick.Event, 16),
		stateCh: make(chan State, 1),
		logCh:   make(chan string, 10),
	}
	c.Reset()
	c.showToken(TokenReady)
	return c
}

// Boot installs the remote listener and configures the hardware: S1 counts lift
// rotation, S2 and S3 are the crane touch switches, motors A and B get the
// default power.
func (c *Controller) Boot(ctx context.Context) {
	c.listen(ctx)
	c.Reset()

	c.brick.Sensor(brick.S1).SetTypeAndMode(brick.SensorRotation, brick.ModeAngle)
	c.brick.Sensor(brick.S2).SetTypeAndMode(brick.SensorTouch, brick.ModeBoolean)
	c.brick.Sensor(brick.S3).SetTypeAndMode(brick.SensorTouch, brick.ModeBoolean)

	// Motor C keeps its power.
	c.brick.Motor(brick.MotorA).SetPower(c.cfg.DefaultPower)
	c.brick.Motor(brick.MotorB).SetPower(c.cfg.DefaultPower)

	c.log("Booted at %d Hz", c.cfg.Hz)
}

// listen forwards events from the brick's infrared receiver.
func (c *Controller) listen(ctx context.Context) {
	if c.brick.Remote == nil {
		return
	}
	src := c.brick.Remote.Events()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-src:
				c.Press(ev)
			}
		}
	}()
}

// Press queues a remote control event. Events are dropped when the queue is full,
// like a missed infrared packet.
func (c *Controller) Press(ev brick.Event) {
	select {
	case c.events <- ev:
	default:
		c.log("Dropped remote event %v", ev)
	}
}

// States returns a channel that receives state updates.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Logs returns a channel that receives log messages.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

// Hz returns the supervisor frequency.
func (c *Controller) Hz() int {
	return c.cfg.Hz
}

// Phase returns the supervisor state.
func (c *Controller) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	changed := c.phase != p
	c.phase = p
	c.mu.Unlock()
	if changed {
		c.log("Phase %s", p)
	}
}

func (c *Controller) log(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	c.logger.Info(text)
	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), text)
	select {
	case c.logCh <- msg:
	default:
		// Drop if channel full
	}
}

func (c *Controller) sendState(s State) {
	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		select {
		case c.stateCh <- s:
		default:
		}
	}
}

func (c *Controller) snapshot(rotation int, front, rear bool) State {
	motors := make(map[brick.MotorName]MotorStatus, 3)
	for _, name := range brick.AllMotors() {
		m := c.brick.Motor(name)
		motors[name] = MotorStatus{Power: m.Power(), Direction: m.Direction()}
	}
	return State{
		Phase:     c.Phase(),
		Text:      c.text,
		Number:    c.number,
		Motors:    motors,
		Rotation:  rotation,
		Touch:     map[brick.SensorName]bool{brick.S2: front, brick.S3: rear},
		Active:    c.active,
		Timestamp: time.Now(),
	}
}
