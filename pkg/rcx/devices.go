package rcx

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/edaniels/golog"

	"github.com/hagbeck/containerterminal/pkg/brick"
)

// Config holds the rcx backend attributes.
type Config struct {
	Port      string `json:"port"`
	TimeoutMs int    `json:"timeout_ms,omitempty"`
}

func init() {
	brick.Register("rcx", open)
}

func open(ctx context.Context, attrs map[string]any, logger golog.Logger) (*brick.Brick, error) {
	var cfg Config
	if err := brick.DecodeAttributes(attrs, &cfg); err != nil {
		return nil, err
	}
	port, err := OpenPort(cfg.Port)
	if err != nil {
		return nil, err
	}
	tower := NewTower(port, time.Duration(cfg.TimeoutMs)*time.Millisecond, logger)
	if err := tower.Ping(ctx); err != nil {
		tower.Close()
		return nil, err
	}
	b := NewBrick(tower, logger)
	b.OnClose(tower.Close)
	return b, nil
}

// NewBrick returns the devices of the RCX behind tower. The RUN button of the
// RCX cannot be read over infrared, so Run is a host latch.
func NewBrick(t *Tower, logger golog.Logger) *brick.Brick {
	d := &device{tower: t, logger: logger}
	b := &brick.Brick{
		Motors:  make(map[brick.MotorName]brick.Motor),
		Sensors: make(map[brick.SensorName]brick.Sensor),
		LCD:     lcd{d},
		Sound:   sound{d},
		Run:     &brick.Latch{},
		Remote:  t,
	}
	for _, name := range brick.AllMotors() {
		b.Motors[name] = &motor{device: d, name: name, mask: motorMask(name)}
	}
	for _, name := range brick.AllSensors() {
		b.Sensors[name] = &sensor{device: d, name: name, index: byte(name.Index())}
	}
	return b
}

// device issues commands whose failures are logged, not returned.
type device struct {
	tower  *Tower
	logger golog.Logger
}

func (d *device) exec(op byte, args ...byte) {
	if _, err := d.tower.Send(context.Background(), op, 0, args...); err != nil {
		d.logger.Warnw("rcx command failed", "opcode", op, "error", err)
	}
}

func (d *device) query(op byte, replyLen int, args ...byte) ([]byte, bool) {
	data, err := d.tower.Send(context.Background(), op, replyLen, args...)
	if err != nil {
		d.logger.Warnw("rcx query failed", "opcode", op, "error", err)
		return nil, false
	}
	return data, true
}

type motor struct {
	*device
	name brick.MotorName
	mask byte

	mu    sync.Mutex
	state brick.MotorState
}

func (m *motor) SetPower(power int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.SetPower(power)
	m.exec(opSetPower, m.mask, sourceConstant, byte(m.state.Power()))
}

func (m *motor) Forward() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Forward()
	m.exec(opMotorDir, m.mask|motorForward)
	m.exec(opMotorOnOff, m.mask|motorOn)
}

func (m *motor) Backward() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Backward()
	m.exec(opMotorDir, m.mask|motorBackward)
	m.exec(opMotorOnOff, m.mask|motorOn)
}

func (m *motor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Stop()
	m.exec(opMotorOnOff, m.mask|motorOff)
}

func (m *motor) Power() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Power()
}

func (m *motor) Direction() brick.Direction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Direction()
}

// sensor powers a port by giving it its configured type and passivates it by
// switching it to the unpowered raw type.
type sensor struct {
	*device
	name  brick.SensorName
	index byte

	mu     sync.Mutex
	typ    brick.SensorType
	active bool
}

func (s *sensor) SetTypeAndMode(typ brick.SensorType, mode brick.SensorMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typ = typ
	if s.active {
		s.exec(opSensorType, s.index, sensorType(typ))
	}
	s.exec(opSensorMode, s.index, sensorMode(mode))
}

func (s *sensor) Activate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = true
	s.exec(opSensorType, s.index, sensorType(s.typ))
}

func (s *sensor) Passivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.exec(opSensorType, s.index, rcxTypeRaw)
}

func (s *sensor) ReadBoolean() bool {
	return s.ReadValue() != 0
}

// ReadValue returns 0 when the RCX does not answer.
func (s *sensor) ReadValue() int {
	data, ok := s.query(opGetValue, 2, sourceSensor, s.index)
	if !ok {
		return 0
	}
	return int(int16(binary.LittleEndian.Uint16(data)))
}

type lcd struct{ *device }

// ShowText is logged: the standard firmware has no opcode for text.
func (l lcd) ShowText(text string) {
	l.logger.Infow("lcd", "text", text)
}

// ShowNumber stores n in variable 0 and points the user display at it.
func (l lcd) ShowNumber(n int) {
	v := uint16(int16(n))
	l.exec(opSetVar, 0, sourceConstant, byte(v), byte(v>>8))
	l.exec(opUserDisplay, sourceVariable, 0, 0, 0)
}

type sound struct{ *device }

func (s sound) Beep()         { s.exec(opPlaySound, soundBeep) }
func (s sound) TwoBeeps()     { s.exec(opPlaySound, soundTwoBeeps) }
func (s sound) BeepSequence() { s.exec(opPlaySound, soundBeepSequence) }
