package rcx

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"github.com/google/go-cmp/cmp"

	"github.com/hagbeck/containerterminal/pkg/brick"
)

func TestEncodeFrame(t *testing.T) {
	tests := []struct {
		op   byte
		args []byte
		want []byte
	}{
		{opPing, nil, []byte{0x55, 0xff, 0x00, 0x10, 0xef, 0x10, 0xef}},
		{opPlaySound, []byte{soundTwoBeeps}, []byte{0x55, 0xff, 0x00, 0x51, 0xae, 0x01, 0xfe, 0x52, 0xad}},
		{opMotorOnOff, []byte{0x81}, []byte{0x55, 0xff, 0x00, 0x21, 0xde, 0x81, 0x7e, 0xa2, 0x5d}},
	}
	for _, tt := range tests {
		got := encodeFrame(tt.op, tt.args...)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("encodeFrame(%#02x, %v) = % x, want % x", tt.op, tt.args, got, tt.want)
		}
	}
}

func fixedLen(n int) func(byte) (int, bool) {
	return func(byte) (int, bool) { return n, true }
}

func TestParseFrame(t *testing.T) {
	valid := encodeFrame(opPlaySound, soundBeep)

	f, n, err := parseFrame(valid, fixedLen(1))
	if err != nil || n != len(valid) {
		t.Fatalf("parseFrame(valid) = %d, %v", n, err)
	}
	if diff := cmp.Diff(frame{op: opPlaySound, data: []byte{soundBeep}}, f, cmp.AllowUnexported(frame{})); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}

	if _, n, err := parseFrame(valid[:6], fixedLen(1)); err != errIncomplete || n != 0 {
		t.Errorf("truncated frame: n=%d err=%v, want errIncomplete", n, err)
	}
	if _, n, err := parseFrame([]byte{0x55, 0xff}, fixedLen(1)); err != errIncomplete || n != 0 {
		t.Errorf("bare header: n=%d err=%v, want errIncomplete", n, err)
	}

	corrupt := append([]byte(nil), valid...)
	corrupt[len(corrupt)-1] ^= 0x01
	if _, n, err := parseFrame(corrupt, fixedLen(1)); err != errGarbage || n < 1 {
		t.Errorf("bad checksum: n=%d err=%v, want errGarbage", n, err)
	}
	if _, n, err := parseFrame(append([]byte{0x00}, valid...), fixedLen(1)); err != errGarbage || n != 1 {
		t.Errorf("leading noise: n=%d err=%v, want errGarbage", n, err)
	}
	if _, _, err := parseFrame(valid, func(byte) (int, bool) { return 0, false }); err != errGarbage {
		t.Errorf("unexpected opcode: err=%v, want errGarbage", err)
	}
}

func TestDecodeRemote(t *testing.T) {
	tests := []struct {
		prev, cur uint16
		want      []brick.Event
	}{
		{0, 0x0100, []brick.Event{{Cmd: brick.CmdMessage1}}},
		{0x0100, 0x0100, nil},
		{0x0100, 0, nil},
		{0, 0x4000, []brick.Event{{Cmd: brick.CmdMotorDown, Motor: brick.MotorA}}},
		{0, 0x0001, []brick.Event{{Cmd: brick.CmdMotorDown, Motor: brick.MotorC}}},
		{0x1000, 0x1040, []brick.Event{{Cmd: brick.CmdStop}}},
		{0, 0x0880, []brick.Event{{Cmd: brick.CmdMotorUp, Motor: brick.MotorA}, {Cmd: brick.CmdSound}}},
	}
	for _, tt := range tests {
		got := decodeRemote(tt.prev, tt.cur)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("decodeRemote(%#04x, %#04x) mismatch (-want +got):\n%s", tt.prev, tt.cur, diff)
		}
	}
}

// argLens are the parameter counts of the opcodes sent by this package.
var argLens = map[byte]int{
	opPing:        0,
	opGetValue:    2,
	opSetPower:    3,
	opSetVar:      4,
	opMotorOnOff:  1,
	opBattery:     0,
	opSensorType:  2,
	opSensorMode:  2,
	opPlaySound:   1,
	opMotorDir:    1,
	opUserDisplay: 4,
}

// fakeRCX echoes every message and answers it like an RCX.
type fakeRCX struct {
	conn   net.Conn
	silent bool

	mu      sync.Mutex
	frames  []frame
	battery uint16
	values  map[byte]int16
}

func newFakeRCX(t *testing.T) (*fakeRCX, *Tower) {
	host, dev := net.Pipe()
	f := &fakeRCX{conn: dev, battery: 9000, values: map[byte]int16{}}
	go f.serve()
	tower := NewTower(host, 200*time.Millisecond, golog.NewTestLogger(t))
	t.Cleanup(func() {
		tower.Close()
		dev.Close()
	})
	return f, tower
}

func (f *fakeRCX) serve() {
	var buf []byte
	chunk := make([]byte, 64)
	dataLen := func(op byte) (int, bool) {
		n, ok := argLens[op&^toggleBit]
		return n, ok
	}
	for {
		n, err := f.conn.Read(chunk)
		if err != nil {
			return
		}
		buf = append(buf, chunk[:n]...)
		for len(buf) > 0 {
			fr, n, err := parseFrame(buf, dataLen)
			if err == errIncomplete {
				break
			}
			buf = buf[n:]
			if err != nil {
				continue
			}
			f.answer(fr)
		}
	}
}

func (f *fakeRCX) answer(fr frame) {
	f.mu.Lock()
	f.frames = append(f.frames, fr)
	var reply []byte
	switch fr.op &^ toggleBit {
	case opBattery:
		reply = binary.LittleEndian.AppendUint16(nil, f.battery)
	case opGetValue:
		reply = binary.LittleEndian.AppendUint16(nil, uint16(f.values[fr.data[1]]))
	}
	silent := f.silent
	f.mu.Unlock()

	f.conn.Write(encodeFrame(fr.op, fr.data...))
	if !silent {
		f.conn.Write(encodeFrame(^fr.op, reply...))
	}
}

func (f *fakeRCX) remote(mask uint16) {
	f.conn.Write(encodeFrame(opRemote, byte(mask>>8), byte(mask)))
}

// sent returns the received messages with the toggle bit cleared.
func (f *fakeRCX) sent() []frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]frame, len(f.frames))
	for i, fr := range f.frames {
		out[i] = frame{op: fr.op &^ toggleBit, data: fr.data}
	}
	return out
}

func (f *fakeRCX) ops() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ops []byte
	for _, fr := range f.frames {
		ops = append(ops, fr.op)
	}
	return ops
}

func TestTowerBattery(t *testing.T) {
	fake, tower := newFakeRCX(t)
	fake.battery = 8765

	mv, err := tower.Battery(context.Background())
	if err != nil {
		t.Fatalf("Battery: %v", err)
	}
	if mv != 8765 {
		t.Errorf("Battery = %d, want 8765", mv)
	}
}

func TestTowerTogglesRepeatedOpcode(t *testing.T) {
	fake, tower := newFakeRCX(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := tower.Ping(ctx); err != nil {
			t.Fatalf("Ping %d: %v", i, err)
		}
	}
	if _, err := tower.Battery(ctx); err != nil {
		t.Fatalf("Battery: %v", err)
	}
	want := []byte{0x10, 0x18, 0x10, 0x30}
	if diff := cmp.Diff(want, fake.ops()); diff != "" {
		t.Errorf("opcodes mismatch (-want +got):\n%s", diff)
	}
}

func TestTowerTimeout(t *testing.T) {
	fake, tower := newFakeRCX(t)
	fake.mu.Lock()
	fake.silent = true
	fake.mu.Unlock()

	err := tower.Ping(context.Background())
	if err == nil {
		t.Fatal("Ping succeeded without a reply")
	}
}

func TestTowerRemoteEvents(t *testing.T) {
	fake, tower := newFakeRCX(t)

	go func() {
		fake.remote(0x0800)
		fake.remote(0x0800) // held
		fake.remote(0)
		fake.remote(0x8000)
	}()

	want := []brick.Event{
		{Cmd: brick.CmdMotorUp, Motor: brick.MotorA},
		{Cmd: brick.CmdMotorDown, Motor: brick.MotorB},
	}
	var got []brick.Event
	timeout := time.After(2 * time.Second)
	for len(got) < len(want) {
		select {
		case ev := <-tower.Events():
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("got %v before timeout, want %v", got, want)
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestBrickCommands(t *testing.T) {
	fake, tower := newFakeRCX(t)
	b := NewBrick(tower, golog.NewTestLogger(t))
	if err := b.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	a := b.Motor(brick.MotorA)
	a.SetPower(3)
	a.Forward()
	a.Stop()
	b.Motor(brick.MotorC).Backward()
	b.Sound.TwoBeeps()
	b.LCD.ShowNumber(302)

	want := []frame{
		{op: opSetPower, data: []byte{0x01, sourceConstant, 3}},
		{op: opMotorDir, data: []byte{0x81}},
		{op: opMotorOnOff, data: []byte{0x81}},
		{op: opMotorOnOff, data: []byte{0x41}},
		{op: opMotorDir, data: []byte{0x04}},
		{op: opMotorOnOff, data: []byte{0x84}},
		{op: opPlaySound, data: []byte{soundTwoBeeps}},
		{op: opSetVar, data: []byte{0, sourceConstant, 0x2e, 0x01}},
		{op: opUserDisplay, data: []byte{sourceVariable, 0, 0, 0}},
	}
	if diff := cmp.Diff(want, fake.sent(), cmp.AllowUnexported(frame{})); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
	if a.Power() != 3 || a.Direction() != brick.Idle {
		t.Errorf("motor A = %d/%v, want 3/idle", a.Power(), a.Direction())
	}
}

func TestSensorActivation(t *testing.T) {
	fake, tower := newFakeRCX(t)
	b := NewBrick(tower, golog.NewTestLogger(t))
	s := b.Sensor(brick.S1)

	s.SetTypeAndMode(brick.SensorRotation, brick.ModeAngle)
	s.Activate()
	s.Passivate()

	want := []frame{
		{op: opSensorMode, data: []byte{0, rcxModeAngle}},
		{op: opSensorType, data: []byte{0, rcxTypeRotation}},
		{op: opSensorType, data: []byte{0, rcxTypeRaw}},
	}
	if diff := cmp.Diff(want, fake.sent(), cmp.AllowUnexported(frame{})); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestSensorRead(t *testing.T) {
	fake, tower := newFakeRCX(t)
	b := NewBrick(tower, golog.NewTestLogger(t))
	fake.mu.Lock()
	fake.values[0] = -48
	fake.values[1] = 1
	fake.mu.Unlock()

	if got := b.Sensor(brick.S1).ReadValue(); got != -48 {
		t.Errorf("S1.ReadValue() = %d, want -48", got)
	}
	if !b.Sensor(brick.S2).ReadBoolean() {
		t.Error("S2.ReadBoolean() = false, want true")
	}
	if b.Sensor(brick.S3).ReadBoolean() {
		t.Error("S3.ReadBoolean() = true, want false")
	}
}
