package rcx

import (
	"context"
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.bug.st/serial"

	"github.com/hagbeck/containerterminal/pkg/brick"
)

// DefaultTimeout bounds the wait for a reply.
const DefaultTimeout = 500 * time.Millisecond

// ErrTimeout is returned when the RCX does not answer in time.
var ErrTimeout = errors.New("rcx: no reply")

// OpenPort opens the serial port of an infrared tower.
func OpenPort(name string) (serial.Port, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: 2400,
		DataBits: 8,
		Parity:   serial.OddParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}
	return port, nil
}

type request struct {
	op       byte
	args     int
	replyLen int
	reply    chan []byte
}

// Tower exchanges messages with an RCX through an infrared tower.
type Tower struct {
	port    io.ReadWriteCloser
	timeout time.Duration
	logger  golog.Logger

	// mu serialises requests; the tower is half duplex.
	mu     sync.Mutex
	lastOp byte

	pendingMu sync.Mutex
	pending   *request

	buttons uint16
	events  chan brick.Event
	done    chan struct{}
}

// NewTower starts reading from port. Close the tower to release the port.
func NewTower(port io.ReadWriteCloser, timeout time.Duration, logger golog.Logger) *Tower {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	t := &Tower{
		port:    port,
		timeout: timeout,
		logger:  logger,
		events:  make(chan brick.Event, 16),
		done:    make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// Close closes the port and stops the reader.
func (t *Tower) Close() error {
	err := t.port.Close()
	<-t.done
	return err
}

// Events implements brick.Remote.
func (t *Tower) Events() <-chan brick.Event {
	return t.events
}

// Send transmits one message and waits for a reply carrying replyLen data bytes.
func (t *Tower) Send(ctx context.Context, op byte, replyLen int, args ...byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if op == t.lastOp&^toggleBit && t.lastOp&toggleBit == 0 {
		op |= toggleBit
	}
	t.lastOp = op

	req := &request{op: op, args: len(args), replyLen: replyLen, reply: make(chan []byte, 1)}
	t.pendingMu.Lock()
	t.pending = req
	t.pendingMu.Unlock()
	defer func() {
		t.pendingMu.Lock()
		t.pending = nil
		t.pendingMu.Unlock()
	}()

	if _, err := t.port.Write(encodeFrame(op, args...)); err != nil {
		return nil, errors.Wrapf(err, "write opcode %#02x", op)
	}

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()
	select {
	case data := <-req.reply:
		return data, nil
	case <-timer.C:
		return nil, errors.Wrapf(ErrTimeout, "opcode %#02x", op)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
		return nil, errors.New("rcx: tower closed")
	}
}

// Ping checks that the RCX answers.
func (t *Tower) Ping(ctx context.Context) error {
	_, err := t.Send(ctx, opPing, 0)
	return err
}

// Battery returns the battery voltage in millivolts.
func (t *Tower) Battery(ctx context.Context) (int, error) {
	data, err := t.Send(ctx, opBattery, 2)
	if err != nil {
		return 0, err
	}
	return int(binary.LittleEndian.Uint16(data)), nil
}

func (t *Tower) readLoop() {
	defer close(t.done)

	var buf []byte
	chunk := make([]byte, 64)
	for {
		n, err := t.port.Read(chunk)
		if err != nil {
			if err != io.EOF {
				t.logger.Debugw("tower read stopped", "error", err)
			}
			return
		}
		buf = append(buf, chunk[:n]...)
		buf = t.consume(buf)
	}
}

// consume handles every complete frame in buf and returns the unparsed rest.
func (t *Tower) consume(buf []byte) []byte {
	for len(buf) > 0 {
		f, n, err := parseFrame(buf, t.dataLen)
		switch {
		case err == errIncomplete:
			return buf
		case err == errGarbage:
			buf = buf[n:]
			continue
		}
		buf = buf[n:]
		t.dispatch(f)
	}
	return buf
}

// dataLen knows the length of our own echo, of the reply to the pending request
// and of remote control messages.
func (t *Tower) dataLen(op byte) (int, bool) {
	if isRemote(op) {
		return remoteMessageBytes, true
	}
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	if t.pending == nil {
		return 0, false
	}
	switch op {
	case t.pending.op:
		return t.pending.args, true
	case ^t.pending.op:
		return t.pending.replyLen, true
	}
	return 0, false
}

func (t *Tower) dispatch(f frame) {
	if isRemote(f.op) {
		mask := binary.BigEndian.Uint16(f.data)
		for _, ev := range decodeRemote(t.buttons, mask) {
			select {
			case t.events <- ev:
			default:
				t.logger.Warnw("remote event dropped", "event", ev)
			}
		}
		t.buttons = mask
		return
	}

	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	if t.pending != nil && f.op == ^t.pending.op {
		select {
		case t.pending.reply <- f.data:
		default:
		}
	}
	// Anything else is the echo of our own message.
}
