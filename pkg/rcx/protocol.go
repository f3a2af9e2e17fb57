// Package rcx drives a LEGO RCX brick through a serial infrared tower.
//
// Every message starts with the header 55 ff 00. Each following byte is sent
// together with its complement, and the message ends with the sum of the opcode
// and parameter bytes plus its complement. The RCX answers with the complemented
// opcode. A message identical to the previous one is ignored by the RCX unless
// bit 0x08 of the opcode is toggled.
package rcx

import (
	"github.com/pkg/errors"

	"github.com/hagbeck/containerterminal/pkg/brick"
)

// Opcodes of the RCX standard firmware.
const (
	opPing        = 0x10
	opGetValue    = 0x12
	opSetPower    = 0x13
	opSetVar      = 0x14
	opMotorOnOff  = 0x21
	opBattery     = 0x30
	opSensorType  = 0x32
	opSensorMode  = 0x42
	opPlaySound   = 0x51
	opRemote      = 0xd2
	opMotorDir    = 0xe1
	opUserDisplay = 0xe5

	toggleBit = 0x08
)

// Value sources for opGetValue, opSetPower and opSetVar.
const (
	sourceVariable = 0
	sourceConstant = 2
	sourceSensor   = 9
)

// Motor on/off and direction flags, or'ed with the motor mask.
const (
	motorOn       = 0x80
	motorOff      = 0x40
	motorForward  = 0x80
	motorBackward = 0x00
)

// Sensor types and modes of the RCX firmware.
const (
	rcxTypeRaw      = 0
	rcxTypeTouch    = 1
	rcxTypeRotation = 4

	rcxModeRaw     = 0x00
	rcxModeBoolean = 0x20
	rcxModeAngle   = 0xe0
)

// System sounds.
const (
	soundBeep         = 0 // blip
	soundTwoBeeps     = 1
	soundBeepSequence = 2 // downward sweep
)

// remoteMessageBytes is the data length of a remote control message.
const remoteMessageBytes = 2

var header = []byte{0x55, 0xff, 0x00}

var (
	errIncomplete = errors.New("incomplete frame")
	errGarbage    = errors.New("not a frame")
)

// frame is a decoded message.
type frame struct {
	op   byte
	data []byte
}

// encodeFrame builds the bytes sent for one message.
func encodeFrame(op byte, args ...byte) []byte {
	out := make([]byte, 0, len(header)+2*(len(args)+2))
	out = append(out, header...)
	sum := op
	out = append(out, op, ^op)
	for _, b := range args {
		out = append(out, b, ^b)
		sum += b
	}
	return append(out, sum, ^sum)
}

// parseFrame decodes the frame at the start of buf. dataLen returns the number of
// data bytes that follow an opcode, or false for opcodes not expected now.
// It returns the number of bytes consumed, errIncomplete if buf ends inside the
// frame, and errGarbage with at least one byte consumed if buf does not start
// with a valid frame.
func parseFrame(buf []byte, dataLen func(op byte) (int, bool)) (frame, int, error) {
	if len(buf) < len(header)+2 {
		if !hasPrefix(buf, header) {
			return frame{}, 1, errGarbage
		}
		return frame{}, 0, errIncomplete
	}
	if !hasPrefix(buf, header) {
		return frame{}, 1, errGarbage
	}
	op, opc := buf[3], buf[4]
	if op != ^opc {
		return frame{}, 1, errGarbage
	}
	n, ok := dataLen(op)
	if !ok {
		return frame{}, 1, errGarbage
	}
	total := len(header) + 2*(n+2)
	if len(buf) < total {
		return frame{}, 0, errIncomplete
	}

	sum := op
	data := make([]byte, n)
	for i := 0; i < n; i++ {
		b, bc := buf[5+2*i], buf[6+2*i]
		if b != ^bc {
			return frame{}, 1, errGarbage
		}
		data[i] = b
		sum += b
	}
	if buf[total-2] != sum || buf[total-1] != ^sum {
		return frame{}, 1, errGarbage
	}
	return frame{op: op, data: data}, total, nil
}

// hasPrefix reports whether buf starts with prefix, or with the first len(buf)
// bytes of it when buf is shorter.
func hasPrefix(buf, prefix []byte) bool {
	for i := 0; i < len(buf) && i < len(prefix); i++ {
		if buf[i] != prefix[i] {
			return false
		}
	}
	return true
}

// isRemote reports whether op is a remote control message.
func isRemote(op byte) bool {
	return op&^toggleBit == opRemote
}

// Remote control button bits.
var remoteButtons = []struct {
	mask uint16
	ev   brick.Event
}{
	{0x0100, brick.Event{Cmd: brick.CmdMessage1}},
	{0x0200, brick.Event{Cmd: brick.CmdMessage2}},
	{0x0400, brick.Event{Cmd: brick.CmdMessage3}},
	{0x0800, brick.Event{Cmd: brick.CmdMotorUp, Motor: brick.MotorA}},
	{0x1000, brick.Event{Cmd: brick.CmdMotorUp, Motor: brick.MotorB}},
	{0x2000, brick.Event{Cmd: brick.CmdMotorUp, Motor: brick.MotorC}},
	{0x4000, brick.Event{Cmd: brick.CmdMotorDown, Motor: brick.MotorA}},
	{0x8000, brick.Event{Cmd: brick.CmdMotorDown, Motor: brick.MotorB}},
	{0x0001, brick.Event{Cmd: brick.CmdMotorDown, Motor: brick.MotorC}},
	{0x0002, brick.Event{Cmd: brick.CmdProgram1}},
	{0x0004, brick.Event{Cmd: brick.CmdProgram2}},
	{0x0008, brick.Event{Cmd: brick.CmdProgram3}},
	{0x0010, brick.Event{Cmd: brick.CmdProgram4}},
	{0x0020, brick.Event{Cmd: brick.CmdProgram5}},
	{0x0040, brick.Event{Cmd: brick.CmdStop}},
	{0x0080, brick.Event{Cmd: brick.CmdSound}},
}

// decodeRemote returns the events for buttons pressed in cur but not in prev.
// The remote repeats the mask while buttons are held and sends 0 on release.
func decodeRemote(prev, cur uint16) []brick.Event {
	pressed := cur &^ prev
	var events []brick.Event
	for _, b := range remoteButtons {
		if pressed&b.mask != 0 {
			events = append(events, b.ev)
		}
	}
	return events
}

func motorMask(name brick.MotorName) byte {
	switch name {
	case brick.MotorA:
		return 0x01
	case brick.MotorB:
		return 0x02
	case brick.MotorC:
		return 0x04
	}
	return 0
}

func sensorType(t brick.SensorType) byte {
	switch t {
	case brick.SensorTouch:
		return rcxTypeTouch
	case brick.SensorRotation:
		return rcxTypeRotation
	}
	return rcxTypeRaw
}

func sensorMode(m brick.SensorMode) byte {
	switch m {
	case brick.ModeBoolean:
		return rcxModeBoolean
	case brick.ModeAngle:
		return rcxModeAngle
	}
	return rcxModeRaw
}
