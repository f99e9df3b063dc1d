// Package serialport adapts a serial link (the ESP32 USB bridge) to the
// ingest transport interface. Lines arrive newline-terminated at 250000 or
// 500000 baud.
package serialport

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

type Config struct {
	Port        string
	Baud        int
	ReadTimeout time.Duration // zero means 1s
}

type Transport struct {
	cfg  Config
	port serial.Port
	r    io.Reader // the open port
	buf  []byte    // partial line carried between reads
}

func New(cfg Config) *Transport {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = time.Second
	}
	return &Transport{cfg: cfg}
}

func (t *Transport) Connect(ctx context.Context) error {
	mode := &serial.Mode{
		BaudRate: t.cfg.Baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(t.cfg.Port, mode)
	if err != nil {
		return errors.Wrapf(err, "open %s", t.cfg.Port)
	}

	if err := port.SetReadTimeout(t.cfg.ReadTimeout); err != nil {
		_ = port.Close()
		return errors.Wrap(err, "set read timeout")
	}

	t.port = port
	t.r = port
	return nil
}

// ReadLine returns the next newline-terminated line. The port is read raw,
// one timed read at a time: a quiet link surfaces as an empty line after a
// single read timeout, so the ingest loop sees a pending stop request within
// one ReadTimeout rather than after some buffered retry count.
func (t *Transport) ReadLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if line, ok := t.popLine(); ok {
		return line, nil
	}

	chunk := make([]byte, 256)
	for {
		n, err := t.r.Read(chunk)
		t.buf = append(t.buf, chunk[:n]...)

		if line, ok := t.popLine(); ok {
			return line, nil
		}
		if err != nil {
			return "", errors.Wrap(err, "read")
		}
		if n == 0 {
			// read timeout with nothing pending
			return "", nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}
}

func (t *Transport) popLine() (string, bool) {
	i := bytes.IndexByte(t.buf, '\n')
	if i < 0 {
		return "", false
	}
	line := string(t.buf[:i])
	t.buf = append(t.buf[:0], t.buf[i+1:]...)
	return line, true
}

// SendAck is never called: the serial protocol is one-way.
func (t *Transport) SendAck(ctx context.Context, ack string) error {
	return errors.New("serial transport does not acknowledge")
}

func (t *Transport) Acks() bool { return false }

func (t *Transport) Peer() string { return t.cfg.Port }

func (t *Transport) Close() error {
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	return err
}
